package result

import (
	"context"
	"fmt"
	"sync"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
)

// MemoryStore is an in-memory result store.
type MemoryStore struct {
	results []*backtest.Result
	index   map[string]int
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryStore{
		results: make([]*backtest.Result, 0, min(maxSize, 1024)),
		index:   make(map[string]int),
		maxSize: maxSize,
	}
}

// Save adds a result to the store.
func (m *MemoryStore) Save(ctx context.Context, r *backtest.Result) error {
	if r == nil || r.ID == "" {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("result without id"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	if i, ok := m.index[r.ID]; ok {
		m.results[i] = &cp
		return nil
	}

	m.results = append(m.results, &cp)

	// Trim if over capacity (remove oldest)
	if len(m.results) > m.maxSize {
		m.results = m.results[len(m.results)-m.maxSize:]
		m.reindex()
		return nil
	}
	m.index[r.ID] = len(m.results) - 1
	return nil
}

func (m *MemoryStore) reindex() {
	clear(m.index)
	for i, r := range m.results {
		m.index[r.ID] = i
	}
}

// GetByID retrieves a result by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*backtest.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[id]
	if !ok {
		return nil, core.WrapError(core.ErrResultNotFound, fmt.Errorf("%q", id))
	}
	cp := *m.results[i]
	return &cp, nil
}

// List returns results matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*backtest.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*backtest.Result
	skipped := 0
	for i := len(m.results) - 1; i >= 0; i-- {
		r := m.results[i]
		if !filter.matches(r) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		cp := *r
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	if out == nil {
		out = []*backtest.Result{}
	}
	return out, nil
}

// Count returns the count of matching results.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.results {
		if filter.matches(r) {
			count++
		}
	}
	return count, nil
}
