package llm

import (
	"context"
	"sync"
	"time"

	"github.com/ziadkadry99/nae/internal/metrics"
)

// RateLimitedProvider wraps a Provider with one token bucket per model, so the
// ingestion/analysis model and the lighter assistant model draw on separate
// vendor quotas.
type RateLimitedProvider struct {
	provider Provider
	rpm      int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewRateLimitedProvider wraps the given provider with a rate limiter that
// allows at most rpm requests per minute per model. A non-positive rpm
// returns provider unchanged.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	if rpm <= 0 {
		return provider
	}
	return &RateLimitedProvider{
		provider: provider,
		rpm:      rpm,
		buckets:  make(map[string]*bucket),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.wait(ctx, req.Model); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

// wait blocks until the model's bucket holds a token or ctx ends. Time spent
// blocked is recorded per provider and model.
func (r *RateLimitedProvider) wait(ctx context.Context, model string) error {
	start := time.Now()
	throttled := false
	defer func() {
		if throttled {
			name := r.provider.Name()
			metrics.RateLimitedRequestsTotal.WithLabelValues(name, model).Inc()
			metrics.RateLimitWaitSeconds.WithLabelValues(name, model).Add(time.Since(start).Seconds())
		}
	}()

	for {
		delay := r.take(model)
		if delay == 0 {
			return nil
		}
		throttled = true
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take consumes a token for model, or returns how long until one is due.
func (r *RateLimitedProvider) take(model string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	b, ok := r.buckets[model]
	if !ok {
		b = &bucket{tokens: float64(r.rpm), lastFill: now}
		r.buckets[model] = b
	}
	b.tokens += now.Sub(b.lastFill).Minutes() * float64(r.rpm)
	if b.tokens > float64(r.rpm) {
		b.tokens = float64(r.rpm)
	}
	b.lastFill = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	d := time.Duration((1 - b.tokens) / float64(r.rpm) * float64(time.Minute))
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}
