package worker

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("worker queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

type Task func(ctx context.Context)

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
// Submit never waits for a worker; Stop drains the queue before returning.
type Pool struct {
	name    string
	size    int
	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

const (
	DefaultSize     = 16
	DefaultCapacity = 1024
)

func NewPool(name string, size, capacity int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Pool{
		name:  name,
		size:  size,
		tasks: make(chan Task, capacity),
	}
}

func (p *Pool) Name() string {
	return p.name
}

func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task(ctx)
			}
		}()
	}
}

func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new tasks and waits for queued ones to finish. A pool that was
// never started drops nothing: queued tasks are run on the caller.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	close(p.tasks)
	p.mu.Unlock()

	if !started {
		for task := range p.tasks {
			task(ctx)
		}
		return
	}

	p.wg.Wait()
}
