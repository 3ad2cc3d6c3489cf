package hull

import (
	"errors"
	"fmt"
	"sync"
)

const DEFAULT_WORKERS = 1

// ErrPoolClosed is returned by Invoke once the pool is closed
var ErrPoolClosed = errors.New("worker pool closed")

// task splits data in contiguous chunks, one goroutine per chunk, and waits for all of them
func task[T any](workersCount int, data []T, fn func(data T)) {
	var wg sync.WaitGroup
	dataSize := len(data)
	workersCount = max(DEFAULT_WORKERS, workersCount)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		start, end := workerID*chunkSize, min((workerID+1)*chunkSize, dataSize)
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(data[i])
			}
		}(start, end)
	}
	wg.Wait()
}

type job struct {
	fn   func()
	wg   *sync.WaitGroup
	errs []error
	slot int
}

// WorkerPool runs batches of jobs on a fixed number of goroutines.
// Several schedulers can share one pool; each Invoke only waits for its own batch.
type WorkerPool struct {
	jobs    chan job
	workers sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewWorkerPool(workers int) *WorkerPool {
	workers = max(DEFAULT_WORKERS, workers)

	pool := &WorkerPool{jobs: make(chan job, workers*2)}
	for range workers {
		pool.workers.Add(1)
		go pool.work()
	}
	return pool
}

func (p *WorkerPool) work() {
	defer p.workers.Done()
	for j := range p.jobs {
		j.errs[j.slot] = run(j.fn)
		j.wg.Done()
	}
}

func run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	fn()
	return nil
}

// Invoke runs every job exactly once and returns when all of them are done.
// A panicking job does not stop the others, its panic is returned as an error.
func (p *WorkerPool) Invoke(jobs []func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	var wg sync.WaitGroup
	errs := make([]error, len(jobs))
	wg.Add(len(jobs))
	for i, fn := range jobs {
		p.jobs <- job{fn: fn, wg: &wg, errs: errs, slot: i}
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close stops the workers once the running batches are done
func (p *WorkerPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.jobs)
	p.workers.Wait()
}
