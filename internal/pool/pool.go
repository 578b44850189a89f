// Package pool implements a fixed-capacity execution pool with an unbounded
// waiting area.
//
// At most Capacity tasks run concurrently. Waiting tasks can be withdrawn
// before they start; running tasks receive a cooperative stop signal through
// their context when interrupted.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var ErrClosed = errors.New("pool closed")

// backlogWarnFactor controls when Submit starts warning about queue growth:
// a backlog of capacity*factor waiting tasks is considered noteworthy.
const backlogWarnFactor = 8

// Task is a unit of work handed to the pool.
//
// Run receives a context that is cancelled when the task is interrupted or
// the pool shuts down. Run is free to ignore it; the pool never kills a task.
type Task struct {
	ID  string
	Run func(ctx context.Context)
}

type Pool struct {
	log *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Handle
	closed bool

	capacity int
	running  atomic.Int32

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	// Rate-limits backlog warnings so a burst of submissions does not spam
	// the log once per task.
	warnLimit *rate.Limiter
}

// New starts a pool with the given number of worker slots. Capacity is fixed
// for the lifetime of the pool.
func New(capacity int, log *slog.Logger) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		log:       log,
		capacity:  capacity,
		runCtx:    ctx,
		runCancel: cancel,
		warnLimit: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	p.cond = sync.NewCond(&p.mu)

	p.workerWG.Add(capacity)
	for i := 0; i < capacity; i++ {
		idx := i
		go func() {
			defer p.workerWG.Done()
			p.log.Debug("worker started", slog.Int("worker", idx))
			p.worker(idx)
			p.log.Debug("worker stopped", slog.Int("worker", idx))
		}()
	}
	return p
}

func (p *Pool) Capacity() int { return p.capacity }

// Submit appends the task to the waiting area. It never blocks; the waiting
// area is unbounded.
func (p *Pool) Submit(t Task) (*Handle, error) {
	h := &Handle{pool: p, task: t, done: make(chan struct{})}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.queue = append(p.queue, h)
	waiting := len(p.queue)
	p.cond.Signal()
	p.mu.Unlock()

	if waiting >= p.capacity*backlogWarnFactor && p.warnLimit.Allow() {
		p.log.Warn("waiting area backlog growing",
			slog.Int("waiting", waiting), slog.Int("capacity", p.capacity))
	}
	return h, nil
}

// Stats is a point-in-time view for diagnostics.
type Stats struct {
	Capacity int
	Running  int
	Waiting  int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	waiting := len(p.queue)
	p.mu.Unlock()
	return Stats{
		Capacity: p.capacity,
		Running:  int(p.running.Load()),
		Waiting:  waiting,
	}
}

// Shutdown stops accepting new tasks and waits up to drain for queued and
// in-flight tasks to finish. After the timeout the remaining waiting tasks are
// withdrawn and running tasks get a cooperative cancellation request; tasks
// that ignore their context keep their worker busy in the background.
func (p *Pool) Shutdown(drain time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workerWG.Wait()
		close(done)
	}()

	var expired <-chan time.Time
	if drain > 0 {
		t := time.NewTimer(drain)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-done:
		p.runCancel()
		return
	case <-expired:
	}

	// Drain window elapsed: withdraw everything still waiting, then ask
	// running tasks to stop.
	p.mu.Lock()
	pending := p.queue
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, h := range pending {
		h.markWithdrawn()
	}
	p.runCancel()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		// Workers still busy with tasks that ignore cancellation; they exit
		// on their own once those tasks return.
		p.log.Warn("shutdown leaving uncooperative tasks behind",
			slog.Int("running", int(p.running.Load())))
	}
}
