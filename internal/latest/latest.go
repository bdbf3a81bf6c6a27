// Package latest implements a last-request-wins guard for overlapping
// asynchronous actions.
package latest

import "sync"

// Token identifies one issued request.
type Token uint64

// Guard issues monotonically increasing tokens per operation and tells
// whether a completing request is still the most recent one.
type Guard struct {
	mu     sync.Mutex
	issued map[string]Token
}

// New creates an empty Guard.
func New() *Guard {
	return &Guard{issued: make(map[string]Token)}
}

// Next issues a new token for op, superseding all earlier ones.
func (g *Guard) Next(op string) Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued[op]++
	return g.issued[op]
}

// IsCurrent reports whether tok is the latest token issued for op.
func (g *Guard) IsCurrent(op string, tok Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued[op] == tok
}

// Apply runs fn only if tok is still current for op. The check and fn run
// under the guard's lock so no newer token can be issued in between.
// It reports whether fn ran.
func (g *Guard) Apply(op string, tok Token, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.issued[op] != tok {
		return false
	}
	fn()
	return true
}
