// Package workbench holds the interactive analysis session: the asset under
// study, the editable context draft, the selected record and its chat
// transcript. Overlapping actions resolve last-request-wins.
package workbench

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/engine"
	"github.com/ziadkadry99/nae/internal/history"
	"github.com/ziadkadry99/nae/internal/latest"
	"github.com/ziadkadry99/nae/internal/logging"
	"github.com/ziadkadry99/nae/internal/metrics"
)

// ErrSuperseded is returned when a newer request of the same kind was issued
// while this one was in flight. Its result was not applied to the session.
var ErrSuperseded = errors.New("superseded by a newer request")

const (
	opIngest  = "ingest"
	opAnalyze = "analyze"
)

// State is a read-only copy of the session.
type State struct {
	Asset      string                 `json:"asset"`
	Event      string                 `json:"event"`
	Context    engine.ContextObject   `json:"context"`
	Sources    []string               `json:"sources"`
	Selected   *engine.AnalysisRecord `json:"selected,omitempty"`
	Transcript []engine.Turn          `json:"transcript"`
	LastError  string                 `json:"last_error,omitempty"`
}

// Session is one user's workbench. It is safe for concurrent use.
type Session struct {
	assembler *engine.Assembler
	analyzer  *engine.Analyzer
	assistant *engine.Assistant
	history   *history.Store
	guard     *latest.Guard
	logger    *zap.Logger

	mu         sync.Mutex
	asset      string
	event      string
	draft      engine.ContextObject
	sources    []string
	selected   *engine.AnalysisRecord
	transcript *engine.Transcript
	lastErr    string
}

// New creates a Session. A nil logger disables logging.
func New(assembler *engine.Assembler, analyzer *engine.Analyzer, assistant *engine.Assistant, store *history.Store, logger *zap.Logger) *Session {
	logger = logging.OrNop(logger)
	return &Session{
		assembler:  assembler,
		analyzer:   analyzer,
		assistant:  assistant,
		history:    store,
		guard:      latest.New(),
		logger:     logger,
		transcript: engine.NewTranscript(nil),
	}
}

// FetchContext ingests live context for asset and event and replaces the
// draft with it.
func (s *Session) FetchContext(ctx context.Context, asset, event string) (engine.ContextObject, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	tok := s.guard.Next(opIngest)

	ing, err := s.assembler.Ingest(ctx, asset, event)
	if err != nil {
		if !s.apply(opIngest, tok, func() { s.lastErr = err.Error() }) {
			return engine.ContextObject{}, ErrSuperseded
		}
		return engine.ContextObject{}, err
	}
	applied := s.apply(opIngest, tok, func() {
		s.asset, s.event = asset, event
		s.draft = ing.Context
		s.sources = ing.Sources
		s.lastErr = ""
	})
	if !applied {
		return engine.ContextObject{}, ErrSuperseded
	}
	return ing.Context, nil
}

// UpdateContext replaces the draft, for manual edits before analysis.
// An empty asset leaves the current one.
func (s *Session) UpdateContext(asset, event string, c engine.ContextObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := strings.ToUpper(strings.TrimSpace(asset)); a != "" {
		s.asset = a
	}
	if event != "" {
		s.event = event
	}
	s.draft = c
}

// Analyze runs analysis over a snapshot of the current draft. A successful
// record is always written to history; it becomes the selection only if no
// newer analysis was started meanwhile.
func (s *Session) Analyze(ctx context.Context) (*engine.AnalysisRecord, error) {
	s.mu.Lock()
	asset, event, snapshot := s.asset, s.event, s.draft
	s.mu.Unlock()
	tok := s.guard.Next(opAnalyze)

	rec, err := s.analyzer.Analyze(ctx, asset, event, snapshot)
	if err != nil {
		if !s.apply(opAnalyze, tok, func() { s.lastErr = err.Error() }) {
			return nil, ErrSuperseded
		}
		return nil, err
	}
	if !s.guard.IsCurrent(opAnalyze, tok) {
		s.logger.Info("analysis superseded, keeping it in history only",
			zap.String("id", rec.ID),
			zap.String("asset", rec.Asset))
	}
	if err := s.history.Save(ctx, rec); err != nil {
		s.logger.Error("saving analysis to history failed", zap.String("id", rec.ID), zap.Error(err))
	}
	applied := s.apply(opAnalyze, tok, func() {
		s.selected = rec
		s.transcript = engine.NewTranscript(rec)
		s.lastErr = ""
	})
	if !applied {
		return rec, ErrSuperseded
	}
	return rec, nil
}

// Select makes a stored record current and starts a fresh transcript for it.
func (s *Session) Select(ctx context.Context, id string) (*engine.AnalysisRecord, error) {
	rec, err := s.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Selecting supersedes any analysis still in flight.
	s.guard.Next(opAnalyze)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = rec
	s.asset = rec.Asset
	s.transcript = engine.NewTranscript(rec)
	return rec, nil
}

// Ask questions the selected record. On failure the fallback answer is
// recorded and returned with the error. If the selection changes while the
// question is in flight, the answer is dropped.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	rec, tr := s.selected, s.transcript
	s.mu.Unlock()
	if rec == nil {
		return engine.FallbackAnswer, &engine.InferenceError{Op: "ask", Err: errors.New("no analysis selected")}
	}

	answer, err := s.assistant.Ask(ctx, question, rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript != tr {
		metrics.StaleResponsesTotal.WithLabelValues("ask").Inc()
		return answer, ErrSuperseded
	}
	tr.Append(engine.SpeakerUser, question)
	if err != nil {
		tr.Append(engine.SpeakerAssistant, engine.FallbackAnswer)
		return engine.FallbackAnswer, err
	}
	tr.Append(engine.SpeakerAssistant, answer)
	return answer, nil
}

// History lists stored records, newest first.
func (s *Session) History(ctx context.Context) []engine.AnalysisRecord {
	return s.history.List(ctx)
}

// ClearHistory purges stored records. The current selection stays on screen.
func (s *Session) ClearHistory(ctx context.Context) error {
	return s.history.Clear(ctx)
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Asset:      s.asset,
		Event:      s.event,
		Context:    s.draft,
		Sources:    append([]string{}, s.sources...),
		Selected:   s.selected,
		Transcript: s.transcript.Turns(),
		LastError:  s.lastErr,
	}
}

// apply runs fn under the session lock if tok is still current for op.
func (s *Session) apply(op string, tok latest.Token, fn func()) bool {
	ok := s.guard.Apply(op, tok, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn()
	})
	if !ok {
		metrics.StaleResponsesTotal.WithLabelValues(op).Inc()
		s.logger.Debug("discarding stale response", zap.String("operation", op), zap.Uint64("token", uint64(tok)))
	}
	return ok
}
