package hull

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrSchedulerExists  = errors.New("scheduler already exists")
	ErrSchedulerMissing = errors.New("scheduler does not exist")
	ErrRegistryClosed   = errors.New("registry closed")
)

// DepsFactory builds the collaborators of the scheduler of a world
type DepsFactory func(key WorldKey) Deps

// Registry owns one Scheduler per world and the worker pool they share.
// Create and Destroy follow the load and unload of the host worlds.
type Registry struct {
	cfg     Config
	factory DepsFactory
	pool    *WorkerPool

	mu         sync.RWMutex
	schedulers map[WorldKey]*Scheduler
	closed     bool
}

func NewRegistry(cfg Config, factory DepsFactory) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Registry{
		cfg:        cfg,
		factory:    factory,
		pool:       NewWorkerPool(cfg.Workers),
		schedulers: make(map[WorldKey]*Scheduler),
	}, nil
}

// Create builds and starts the scheduler of key
func (r *Registry) Create(key WorldKey) (*Scheduler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if _, ok := r.schedulers[key]; ok {
		return nil, fmt.Errorf("world %q: %w", key, ErrSchedulerExists)
	}

	deps := r.factory(key)
	if deps.Pool == nil {
		deps.Pool = r.pool
	}
	s, err := NewScheduler(key, r.cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("world %q: %w", key, err)
	}

	r.schedulers[key] = s
	s.Start()

	return s, nil
}

func (r *Registry) Get(key WorldKey) (*Scheduler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedulers[key]
	return s, ok
}

// Destroy stops the scheduler of key, after its tick in progress, and forgets it
func (r *Registry) Destroy(key WorldKey) error {
	r.mu.Lock()
	s, ok := r.schedulers[key]
	delete(r.schedulers, key)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("world %q: %w", key, ErrSchedulerMissing)
	}
	s.Stop()
	return nil
}

// Keys returns the worlds with a scheduler, sorted
func (r *Registry) Keys() []WorldKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]WorldKey, 0, len(r.schedulers))
	for key := range r.schedulers {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Close destroys every scheduler then stops the shared pool
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	schedulers := r.schedulers
	r.schedulers = make(map[WorldKey]*Scheduler)
	r.mu.Unlock()

	for _, s := range schedulers {
		s.Stop()
	}
	r.pool.Close()
}
