package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/example/visit-trip-linker/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

// ResultStore persists the records of a linker run.
type ResultStore interface {
	SaveRun(ctx context.Context, run models.Run, records []models.MatchRecord) error
	Records(ctx context.Context, runID string) ([]models.MatchRecord, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]models.Run
	records map[string][]models.MatchRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]models.Run), records: make(map[string][]models.MatchRecord)}
}

func (m *MemoryStore) SaveRun(_ context.Context, run models.Run, records []models.MatchRecord) error {
	cp := make([]models.MatchRecord, len(records))
	copy(cp, records)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.records[run.ID] = cp
	return nil
}

func (m *MemoryStore) Records(_ context.Context, runID string) ([]models.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs, ok := m.records[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	out := make([]models.MatchRecord, len(recs))
	copy(out, recs)
	return out, nil
}

func (m *MemoryStore) Run(runID string) (models.Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[runID]
	return r, ok
}

// MultiStore writes to every backend in order and reads from the first.
type MultiStore []ResultStore

func (s MultiStore) SaveRun(ctx context.Context, run models.Run, records []models.MatchRecord) error {
	var errs []error
	for _, st := range s {
		if err := st.SaveRun(ctx, run, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s MultiStore) Records(ctx context.Context, runID string) ([]models.MatchRecord, error) {
	if len(s) == 0 {
		return nil, ErrRunNotFound
	}
	return s[0].Records(ctx, runID)
}
