// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/ziadkadry99/nae/internal/llm"
)

// Provider returns queued replies in order. When the queue is empty the last
// reply repeats. A nil queue answers with an empty completion.
type Provider struct {
	mu      sync.Mutex
	replies []Reply
	calls   []llm.CompletionRequest

	// Hook, if set, runs before a reply is returned. Tests use it to block
	// or to observe the request.
	Hook func(ctx context.Context, req llm.CompletionRequest)
}

// Reply is one scripted answer.
type Reply struct {
	Content string
	Refs    []string
	Err     error
}

// New creates a Provider that answers with the given replies.
func New(replies ...Reply) *Provider {
	return &Provider{replies: replies}
}

// Text is shorthand for a provider that always answers content.
func Text(content string) *Provider {
	return New(Reply{Content: content})
}

// Failing is shorthand for a provider that always returns err.
func Failing(err error) *Provider {
	return New(Reply{Err: err})
}

func (p *Provider) Name() string { return "scripted" }

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	var r Reply
	switch len(p.replies) {
	case 0:
	case 1:
		r = p.replies[0]
	default:
		r = p.replies[0]
		p.replies = p.replies[1:]
	}
	hook := p.Hook
	p.mu.Unlock()

	if hook != nil {
		hook(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResponse{
		Content:       r.Content,
		Model:         req.Model,
		GroundingRefs: r.Refs,
		FinishReason:  "STOP",
	}, nil
}

// Calls returns a copy of the requests received so far.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.calls...)
}

// LastCall returns the most recent request. It panics if there were none.
func (p *Provider) LastCall() llm.CompletionRequest {
	calls := p.Calls()
	return calls[len(calls)-1]
}

// UserPrompt joins the user messages of req.
func UserPrompt(req llm.CompletionRequest) string {
	var out string
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			out += m.Content
		}
	}
	return out
}
