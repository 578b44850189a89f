package sched

import (
	"sync"
	"time"

	"jobmill/internal/pool"
)

// record is the scheduler's tracked state for one submission.
//
// The registry map has its own lock for insert/lookup; everything inside a
// record is serialized by the record's own mutex so operations on different
// job IDs never contend. All status changes go through the methods below,
// which admit exactly the legal transitions and nothing else.
type record struct {
	id       string
	priority int
	job      Job

	mu       sync.Mutex
	status   Status
	handle   *pool.Handle
	err      error
	started  time.Time
	finished time.Time

	done chan struct{} // closed exactly once, on the terminal transition

	// bodyDone is closed when a body that actually started has returned.
	// It lags done for a job cancelled mid-run; Await uses it for confirmed
	// termination.
	bodyDone chan struct{}
}

func newRecord(job Job) *record {
	return &record{
		id:       job.ID(),
		priority: job.Priority(),
		job:      job,
		status:   StatusQueued,
		done:     make(chan struct{}),
		bodyDone: make(chan struct{}),
	}
}

func (r *record) statusNow() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *record) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// awaitBody returns the channel that confirms the body has returned, or nil
// if the body never started (so there is nothing to wait for).
func (r *record) awaitBody() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.IsZero() {
		return nil
	}
	return r.bodyDone
}

// attach stores the execution handle for a freshly (re)dispatched record.
//
// The record may have moved on in the window between the pool submit and this
// call; in that case the pool entry must not be left behind.
func (r *record) attach(h *pool.Handle) {
	r.mu.Lock()
	switch r.status {
	case StatusQueued, StatusRunning:
		r.handle = h
		r.mu.Unlock()
	case StatusCancelled:
		r.mu.Unlock()
		// Withdraws the entry if still waiting, interrupts it if the body
		// managed to start inside the window.
		h.Cancel(true)
	default: // suspended
		r.mu.Unlock()
		h.Cancel(false)
	}
}

// begin is the worker-side QUEUED -> RUNNING transition. It returns false if
// the record was suspended or cancelled before the worker got here, in which
// case the body must not run.
func (r *record) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusQueued {
		return false
	}
	r.status = StatusRunning
	r.started = time.Now()
	return true
}

// finish is the worker-side RUNNING -> COMPLETED transition. A body error is
// captured on the record; a failed run still completes. Returns false when
// the record was cancelled mid-run, which is already terminal.
func (r *record) finish(err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return false
	}
	r.status = StatusCompleted
	r.err = err
	r.finished = time.Now()
	r.handle = nil
	close(r.done)
	return true
}

// cancelRequest moves any non-terminal record to CANCELLED and releases the
// handle to the caller, reporting which state the record was in. Terminal
// records are left untouched.
func (r *record) cancelRequest() (prev Status, h *pool.Handle, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return r.status, nil, false
	}
	prev = r.status
	h = r.handle
	r.status = StatusCancelled
	r.handle = nil
	r.finished = time.Now()
	close(r.done)
	return prev, h, true
}

// suspendRequest is the QUEUED -> SUSPENDED transition. It only succeeds if
// the record is exactly QUEUED at the instant of the call; a record already
// dispatched to RUNNING lost the race and proceeds normally.
func (r *record) suspendRequest() (h *pool.Handle, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusQueued {
		return nil, false
	}
	r.status = StatusSuspended
	h = r.handle
	r.handle = nil
	return h, true
}

// resumeRequest is the SUSPENDED -> QUEUED transition.
func (r *record) resumeRequest() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusSuspended {
		return false
	}
	r.status = StatusQueued
	return true
}

// unresume rolls a failed resume back to SUSPENDED (the pool refused the
// re-entry, e.g. during shutdown).
func (r *record) unresume() {
	r.mu.Lock()
	if r.status == StatusQueued {
		r.status = StatusSuspended
	}
	r.mu.Unlock()
}

func (r *record) historyItem() HistoryItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := HistoryItem{
		ID:       r.id,
		Priority: r.priority,
		Status:   r.status,
		Started:  r.started,
	}
	if !r.started.IsZero() && !r.finished.IsZero() {
		item.Duration = r.finished.Sub(r.started)
	}
	if r.err != nil {
		item.Error = r.err.Error()
	}
	return item
}
