package operation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// TrackedJob is a job registered with a Store, with bookkeeping timestamps.
type TrackedJob struct {
	Job
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store tracks the jobs a process is polling. Jobs are keyed by their
// server-issued id.
type Store interface {
	// Track registers a pending job for id. It reports false, and returns the
	// existing job, when id is already tracked. It fails with ErrStoreFull
	// when no room can be made for a new job.
	Track(id string) (*TrackedJob, bool, error)
	Get(id string) (*TrackedJob, error)
	Update(job Job) error
	List() []TrackedJob
}

// ErrStoreFull is returned by Track when the store is at capacity and every
// tracked job is still pending.
var ErrStoreFull = errors.New("too many jobs in progress")

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithCapacity bounds the number of tracked jobs. When the store is full,
// tracking a new job evicts the oldest finished one. Zero means unbounded.
func WithCapacity(n int) StoreOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// MemoryStore is a concurrency-safe in-memory Store implementation. Nothing
// outlives the process.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]*TrackedJob
	capacity int
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{jobs: make(map[string]*TrackedJob)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Track(id string) (*TrackedJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[id]; ok {
		return existing.copy(), false, nil
	}

	if s.capacity > 0 && len(s.jobs) >= s.capacity {
		if !s.evictOldestFinished() {
			return nil, false, ErrStoreFull
		}
	}

	now := time.Now()
	tj := &TrackedJob{Job: *NewJob(id), CreatedAt: now, UpdatedAt: now}
	s.jobs[id] = tj
	return tj.copy(), true, nil
}

// evictOldestFinished removes the terminal job created first. The caller
// holds the write lock.
func (s *MemoryStore) evictOldestFinished() bool {
	var oldest *TrackedJob
	for _, tj := range s.jobs {
		if !tj.State.Terminal() {
			continue
		}
		if oldest == nil || tj.CreatedAt.Before(oldest.CreatedAt) {
			oldest = tj
		}
	}
	if oldest == nil {
		return false
	}
	delete(s.jobs, oldest.ID)
	return true
}

func (s *MemoryStore) Get(id string) (*TrackedJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tj, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %q not found", id)
	}
	// Return a copy to prevent callers from mutating internal state.
	return tj.copy(), nil
}

// Update replaces the stored state of job. A terminal job cannot be moved to
// another state.
func (s *MemoryStore) Update(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tj, ok := s.jobs[job.ID]
	if !ok {
		return fmt.Errorf("job %q not found", job.ID)
	}
	if tj.State.Terminal() && tj.State != job.State {
		return fmt.Errorf("job %q is already %s", job.ID, tj.State)
	}

	tj.Job = job.Snapshot()
	tj.UpdatedAt = time.Now()
	return nil
}

// List returns every tracked job, most recently created first.
func (s *MemoryStore) List() []TrackedJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]TrackedJob, 0, len(s.jobs))
	for _, tj := range s.jobs {
		jobs = append(jobs, *tj.copy())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (tj *TrackedJob) copy() *TrackedJob {
	c := *tj
	c.Job = tj.Job.Snapshot()
	return &c
}
