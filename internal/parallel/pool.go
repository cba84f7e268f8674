package parallel

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Pool is a fixed set of worker goroutines reading from one task queue.
// Tasks carry no ordering guarantee relative to each other.
//
// A Pool built from a disabled Config has no workers and runs every task
// inline on the submitting goroutine.
type Pool struct {
	tasks     chan func()
	workers   int
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewPool starts cfg.NumWorkers workers when cfg.Enabled is set.
func NewPool(cfg Config) *Pool {
	p := &Pool{}
	if !cfg.Enabled || cfg.NumWorkers < 1 {
		return p
	}
	p.workers = cfg.NumWorkers
	p.tasks = make(chan func(), cfg.NumWorkers*4)
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Workers returns the number of worker goroutines, 0 when running inline.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit queues f for execution. It blocks while the queue is full.
// It panics once the pool is closed.
func (p *Pool) Submit(f func()) {
	if p.closed.Load() {
		panic(errors.Errorf("parallel: submit on closed pool (%d workers)", p.workers))
	}
	if p.tasks == nil {
		f()
		return
	}
	p.tasks <- f
}

// Close stops the workers after the queued tasks drain.
// Submitting after Close panics. Close must not race with Submit.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if p.tasks != nil {
			close(p.tasks)
			p.wg.Wait()
		}
	})
}

// Group returns a barrier over tasks submitted through it.
func (p *Pool) Group() *Group {
	return &Group{pool: p}
}

// Group tracks a set of tasks on a Pool so the caller can wait for all of them.
// A panic inside a task is captured and re-raised by Wait.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup

	mu        sync.Mutex
	recovered any
}

// Go submits f to the pool as part of the group.
func (g *Group) Go(f func()) {
	g.wg.Add(1)
	g.pool.Submit(func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.mu.Lock()
				if g.recovered == nil {
					g.recovered = r
				}
				g.mu.Unlock()
			}
		}()
		f()
	})
}

// Wait blocks until every task of the group has finished. If any task
// panicked, Wait panics with the first recovered value.
func (g *Group) Wait() {
	g.wg.Wait()
	g.mu.Lock()
	r := g.recovered
	g.mu.Unlock()
	if r != nil {
		panic(r)
	}
}
