package lpd

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/marmos91/dittolpd/internal/logger"
)

// workerPool runs connection tasks on a fixed number of goroutines fed by a
// FIFO queue.
//
// The queue is unbounded unless maxPending > 0, so the accept loop never
// blocks on a busy pool. After shutdown no task is accepted, but every
// queued task still runs before the workers exit.
type workerPool struct {
	mu         sync.Mutex
	cond       *sync.Cond
	tasks      []func()
	maxPending int
	closed     bool

	wg   sync.WaitGroup
	done chan struct{}
}

func newWorkerPool(workers, maxPending int) *workerPool {
	if workers < 1 {
		workers = 1
	}
	p := &workerPool{
		maxPending: maxPending,
		done:       make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return p
}

// Submit queues task. It returns false if the pool is shut down or the
// queue is full.
func (p *workerPool) Submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if p.maxPending > 0 && len(p.tasks) >= p.maxPending {
		return false
	}
	p.tasks = append(p.tasks, task)
	p.cond.Signal()
	return true
}

// Pending returns the number of queued tasks not yet picked by a worker.
func (p *workerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Shutdown stops accepting tasks. It does not wait.
func (p *workerPool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// AwaitTermination waits up to timeout for every worker to exit and reports
// whether they did.
func (p *workerPool) AwaitTermination(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-p.done:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

// Done is closed once all workers have exited.
func (p *workerPool) Done() <-chan struct{} {
	return p.done
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.tasks) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks[0] = nil
		p.tasks = p.tasks[1:]
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *workerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in LPD worker: %v\n%s", r, debug.Stack())
		}
	}()
	task()
}
