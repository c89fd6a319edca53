package job

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/fastquant/internal/core"
)

// Status represents job status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Done reports whether the job reached a terminal state.
func (s Status) Done() bool {
	return s == StatusComplete || s == StatusFailed
}

// Job represents an async backtest or batch run.
type Job struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Status    Status      `json:"status"`
	Progress  int         `json:"progress"`
	Result    any         `json:"result,omitempty"`
	Error     *core.Error `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store keeps jobs in memory. It holds at most maxSize jobs, evicting the
// oldest first, and forgets finished jobs after ttl.
type Store struct {
	jobs    map[string]*Job
	order   []string // insertion order for eviction
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewStore creates a new job store. A zero ttl keeps finished jobs until
// they are evicted by size.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create creates a new pending job and returns a copy of it.
func (s *Store) Create(jobType string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	now := s.now()
	job := &Job{
		ID:        "job_" + uuid.NewString(),
		Type:      jobType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Evict oldest if at capacity
	for len(s.jobs) >= s.maxSize && len(s.order) > 0 {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return *job
}

// Get retrieves a copy of a job by ID.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok || s.expired(job) {
		return nil, core.WrapError(core.ErrJobNotFound, fmt.Errorf("%q", id))
	}
	cp := *job
	return &cp, nil
}

// Update modifies a job in place under the store lock.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return core.WrapError(core.ErrJobNotFound, fmt.Errorf("%q", id))
	}
	fn(job)
	job.UpdatedAt = s.now()
	return nil
}

// List returns all live jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !s.expired(job) {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) expired(job *Job) bool {
	return s.ttl > 0 && job.Status.Done() && s.now().Sub(job.UpdatedAt) > s.ttl
}

func (s *Store) pruneLocked() {
	if s.ttl <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if s.expired(s.jobs[id]) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}
