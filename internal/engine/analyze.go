package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/llm"
	"github.com/ziadkadry99/nae/internal/logging"
	"github.com/ziadkadry99/nae/internal/metrics"
)

// Analyzer runs the schema-constrained analysis call.
type Analyzer struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewAnalyzer creates an Analyzer. A nil logger disables logging.
func NewAnalyzer(provider llm.Provider, cfg Config, logger *zap.Logger) *Analyzer {
	logger = logging.OrNop(logger)
	return &Analyzer{provider: provider, cfg: cfg, logger: logger, now: time.Now}
}

// Analyze sends asset, event and the context snapshot to the service and
// returns the decoded record. Failures are an InferenceError when the call
// fails or the payload is not JSON, and a SchemaViolationError when the JSON
// does not match ResponseSchema.
func (a *Analyzer) Analyze(ctx context.Context, asset, event string, snapshot ContextObject) (*AnalysisRecord, error) {
	start := time.Now()
	rec, err := a.analyze(ctx, asset, event, snapshot)
	metrics.PipelineOutcomesTotal.WithLabelValues("analyze", Outcome(err)).Inc()

	var sv *SchemaViolationError
	switch {
	case errors.As(err, &sv):
		metrics.SchemaViolationsTotal.WithLabelValues(violationGroup(sv.Path)).Inc()
		a.logger.Error("analysis response violates declared schema",
			zap.String("asset", asset),
			zap.String("path", sv.Path),
			zap.String("reason", sv.Reason))
	case err != nil:
		a.logger.Warn("analysis failed",
			zap.String("asset", asset),
			zap.Error(err))
	default:
		a.logger.Info("analysis completed",
			zap.String("asset", asset),
			zap.String("id", rec.ID),
			zap.String("narrative_state", string(rec.NeuralSynthesis.NarrativeState)),
			zap.String("permission", string(rec.RiskManagement.Permission)),
			zap.Duration("elapsed", time.Since(start)))
	}
	return rec, err
}

func (a *Analyzer) analyze(ctx context.Context, asset, event string, snapshot ContextObject) (*AnalysisRecord, error) {
	if strings.TrimSpace(asset) == "" {
		return nil, &InferenceError{Op: "analyze", Err: errors.New("asset is required")}
	}
	contextJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, &InferenceError{Op: "analyze", Err: fmt.Errorf("encoding context: %w", err)}
	}

	prompt := analysisPrompt(asset, event, contextJSON)
	a.logger.Debug("submitting analysis",
		zap.String("asset", asset),
		zap.Int("prompt_tokens_est", llm.EstimateTokens(analysisInstruction+prompt)))

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: analysisInstruction},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:      a.cfg.MaxOutputTokens,
		ThinkingBudget: a.cfg.ThinkingBudget,
		Temperature:    0.2,
		Schema:         ResponseSchema(),
		SchemaName:     "analysis_record",
	})
	if err != nil {
		return nil, &InferenceError{Op: "analyze", Err: err}
	}
	return DecodeRecord(resp.Content, a.now())
}

// violationGroup reduces a violation path to its top-level schema group so the
// metric label set stays bounded. Unknown groups collapse to "other".
func violationGroup(path string) string {
	head, _, _ := strings.Cut(path, ".")
	if i := strings.IndexByte(head, '['); i >= 0 {
		head = head[:i]
	}
	if head == "" {
		return "root"
	}
	if _, ok := ResponseSchema().Properties[head]; !ok {
		return "other"
	}
	return head
}
