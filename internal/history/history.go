// Package history keeps the most recent analysis records in a capped,
// newest-first log persisted as a single blob.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/engine"
	"github.com/ziadkadry99/nae/internal/kvstore"
	"github.com/ziadkadry99/nae/internal/logging"
	"github.com/ziadkadry99/nae/internal/metrics"
)

const (
	// Key is the blob the log is stored under.
	Key = "nae_analysis_history"
	// MaxRecords caps the log. Older records are dropped first.
	MaxRecords = 50
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("analysis not found")

// Store is the bounded history log.
type Store struct {
	kv     kvstore.KV
	logger *zap.Logger
	// mu serializes read-modify-write cycles on the blob.
	mu sync.Mutex
}

// NewStore creates a Store over kv. A nil logger disables logging.
func NewStore(kv kvstore.KV, logger *zap.Logger) *Store {
	logger = logging.OrNop(logger)
	return &Store{kv: kv, logger: logger}
}

// Save prepends rec and drops the oldest records beyond MaxRecords.
func (s *Store) Save(ctx context.Context, rec *engine.AnalysisRecord) error {
	if rec == nil {
		return errors.New("nil record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := append([]engine.AnalysisRecord{*rec}, s.load(ctx)...)
	if n := len(records) - MaxRecords; n > 0 {
		records = records[:MaxRecords]
		metrics.HistoryEvictionsTotal.Add(float64(n))
		s.logger.Debug("history evicted oldest records", zap.Int("count", n))
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := s.kv.Set(ctx, Key, data); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	metrics.HistoryRecords.Set(float64(len(records)))
	return nil
}

// List returns all records, newest first. A missing, unreadable or corrupt
// blob reads as an empty log.
func (s *Store) List(ctx context.Context) []engine.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (*engine.AnalysisRecord, error) {
	for _, rec := range s.List(ctx) {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Filter returns the records whose asset matches the glob pattern,
// case-insensitively. An empty pattern matches everything.
func (s *Store) Filter(ctx context.Context, pattern string) ([]engine.AnalysisRecord, error) {
	all := s.List(ctx)
	if pattern == "" {
		return all, nil
	}
	pattern = strings.ToUpper(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid asset pattern %q", pattern)
	}
	out := []engine.AnalysisRecord{}
	for _, rec := range all {
		if ok, _ := doublestar.Match(pattern, strings.ToUpper(rec.Asset)); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Clear deletes the log.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	metrics.HistoryRecords.Set(0)
	s.logger.Info("history cleared")
	return nil
}

func (s *Store) load(ctx context.Context) []engine.AnalysisRecord {
	data, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		s.logger.Warn("reading history failed, treating as empty", zap.Error(err))
		return []engine.AnalysisRecord{}
	}
	if !ok || len(data) == 0 {
		return []engine.AnalysisRecord{}
	}
	var records []engine.AnalysisRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("history blob is corrupt, treating as empty", zap.Error(err))
		return []engine.AnalysisRecord{}
	}
	if records == nil {
		records = []engine.AnalysisRecord{}
	}
	return records
}
