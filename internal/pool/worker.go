package pool

import (
	"context"
	"log/slog"
	"runtime/debug"
)

func (p *Pool) worker(idx int) {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		h := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.runOne(h, idx)
	}
}

func (p *Pool) runOne(h *Handle, idx int) {
	h.mu.Lock()
	if h.state != statePending {
		// Withdrawn while waiting; its done channel is already closed.
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(p.runCtx)
	h.state = stateRunning
	h.cancel = cancel
	h.mu.Unlock()

	p.running.Add(1)
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("panic in pool task",
					slog.Int("worker", idx), slog.String("task", h.task.ID),
					slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()
		h.task.Run(ctx)
	}()
	p.running.Add(-1)
	cancel()

	h.mu.Lock()
	if h.state == stateRunning {
		h.state = stateDone
	}
	h.cancel = nil
	h.mu.Unlock()
	close(h.done)
}
