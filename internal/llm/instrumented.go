package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/logging"
	"github.com/ziadkadry99/nae/internal/metrics"
)

// InstrumentedProvider wraps a Provider with request metrics and debug logging.
type InstrumentedProvider struct {
	provider Provider
	logger   *zap.Logger
}

// NewInstrumentedProvider wraps the given provider. A nil logger disables logging.
func NewInstrumentedProvider(provider Provider, logger *zap.Logger) Provider {
	logger = logging.OrNop(logger)
	return &InstrumentedProvider{provider: provider, logger: logger}
}

func (p *InstrumentedProvider) Name() string {
	return p.provider.Name()
}

func (p *InstrumentedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := p.provider.Complete(ctx, req)
	elapsed := time.Since(start)

	name := p.provider.Name()
	model := req.Model
	if resp != nil && resp.Model != "" {
		model = resp.Model
	}

	metrics.InferenceDuration.WithLabelValues(name, model).Observe(elapsed.Seconds())
	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(name, model, "error").Inc()
		p.logger.Debug("inference request failed",
			zap.String("provider", name),
			zap.String("model", model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	metrics.InferenceRequestsTotal.WithLabelValues(name, model, "ok").Inc()
	metrics.InferenceTokens.WithLabelValues(name, model, "input").Add(float64(resp.InputTokens))
	metrics.InferenceTokens.WithLabelValues(name, model, "output").Add(float64(resp.OutputTokens))
	metrics.InferenceCostUSD.WithLabelValues(name, model).Add(EstimateCost(model, resp.InputTokens, resp.OutputTokens))

	p.logger.Debug("inference request completed",
		zap.String("provider", name),
		zap.String("model", model),
		zap.Duration("elapsed", elapsed),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.String("finish_reason", resp.FinishReason),
		zap.Int("grounding_refs", len(resp.GroundingRefs)))
	return resp, nil
}
