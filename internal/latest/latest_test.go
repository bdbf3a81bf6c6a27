package latest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsMonotonic(t *testing.T) {
	g := New()
	a := g.Next("analyze")
	b := g.Next("analyze")
	assert.Greater(t, b, a)
	assert.False(t, g.IsCurrent("analyze", a))
	assert.True(t, g.IsCurrent("analyze", b))
}

func TestOperationsAreIndependent(t *testing.T) {
	g := New()
	a := g.Next("analyze")
	g.Next("ask")
	assert.True(t, g.IsCurrent("analyze", a))
}

func TestApplyDiscardsStale(t *testing.T) {
	g := New()
	first := g.Next("ingest")
	second := g.Next("ingest")

	var applied []Token
	// The older request resolves last but must not win.
	assert.True(t, g.Apply("ingest", second, func() { applied = append(applied, second) }))
	assert.False(t, g.Apply("ingest", first, func() { applied = append(applied, first) }))
	assert.Equal(t, []Token{second}, applied)
}

func TestUnissuedToken(t *testing.T) {
	g := New()
	assert.True(t, g.IsCurrent("x", 0))
	assert.False(t, g.IsCurrent("x", 1))
}

func TestConcurrentNext(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	seen := make(chan Token, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- g.Next("op")
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[Token]bool{}
	for tok := range seen {
		unique[tok] = true
	}
	assert.Len(t, unique, 100)
	assert.True(t, g.IsCurrent("op", 100))
}
