package runs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("run not found")

// Run is a finished norm calculation kept for later download.
type Run struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	FeMethod  string    `json:"fe_method"`
	FeParams  string    `json:"fe_params,omitempty"`
	Samples   int       `json:"samples"`
	OverSum   []int     `json:"over_sum"`
	ResultCSV []byte    `json:"-"`
}

type Repository interface {
	Save(ctx context.Context, run *Run) (int64, error)
	Get(ctx context.Context, id int64) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}

// MemoryRepository keeps runs for the life of the process.
type MemoryRepository struct {
	mu   sync.RWMutex
	next int64
	runs map[int64]Run
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: make(map[int64]Run)}
}

func (m *MemoryRepository) Save(ctx context.Context, run *Run) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	run.ID = m.next
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[run.ID] = *run
	return run.ID, nil
}

func (m *MemoryRepository) Get(ctx context.Context, id int64) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

// List returns the newest runs first, without their result data.
func (m *MemoryRepository) List(ctx context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		r.ResultCSV = nil
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
