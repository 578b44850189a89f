package pool

import "sync"

type handleState int

const (
	statePending handleState = iota
	stateRunning
	stateDone
	stateCancelled
)

// Handle tracks one submitted task. It is the caller's lever for withdrawing
// a waiting task or interrupting a running one.
type Handle struct {
	pool *Pool
	task Task

	mu     sync.Mutex
	state  handleState
	cancel func() // set while running

	done chan struct{}
}

// Done is closed once the task has finished, was withdrawn before starting,
// or was interrupted and returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel withdraws or interrupts the task.
//
// A task that has not started is removed from the waiting area and never
// runs; this always succeeds. A running task is only signalled when interrupt
// is true, and only cooperatively: Cancel returns without waiting for the
// task to actually stop. Returns false once the task already finished, or
// for a running task when interrupt is false.
func (h *Handle) Cancel(interrupt bool) bool {
	h.mu.Lock()
	switch h.state {
	case statePending:
		h.state = stateCancelled
		h.mu.Unlock()
		h.pool.remove(h)
		close(h.done)
		return true
	case stateRunning:
		if !interrupt {
			h.mu.Unlock()
			return false
		}
		cancel := h.cancel
		h.state = stateCancelled
		h.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return true
	default:
		h.mu.Unlock()
		return false
	}
}

// markWithdrawn flips a still-pending handle to cancelled during shutdown.
// The handle has already been cut out of the waiting area by the caller.
func (h *Handle) markWithdrawn() {
	h.mu.Lock()
	if h.state != statePending {
		h.mu.Unlock()
		return
	}
	h.state = stateCancelled
	h.mu.Unlock()
	close(h.done)
}

func (p *Pool) remove(h *Handle) {
	p.mu.Lock()
	for i, cur := range p.queue {
		if cur == h {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}
