package sched

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jobmill/internal/eventbus"
	"jobmill/internal/pool"
)

// Service is the job lifecycle scheduler: it owns the registry and the
// execution pool and enforces the state machine
//
//	QUEUED -> RUNNING -> COMPLETED
//	QUEUED <-> SUSPENDED
//	QUEUED/RUNNING/SUSPENDED -> CANCELLED
//
// All public operations are non-blocking and safe for any number of
// concurrent callers. Job bodies are the only thing that may block, and they
// do so inside pool worker slots.
type Service struct {
	log *slog.Logger
	bus eventbus.Bus
	cfg Config

	pool   *pool.Pool
	reg    *registry
	closed atomic.Bool

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log *slog.Logger, bus eventbus.Bus) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 2
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 200
	}
	s := &Service{
		log: log,
		bus: bus,
		cfg: cfg,
		reg: newRegistry(),
	}
	s.pool = pool.New(cfg.Capacity, log.With(slog.String("comp", "pool")))
	return s
}

// Submit registers the job and hands it to the execution pool. It returns
// the job's ID; the body may begin running asynchronously at any point after
// this call returns.
//
// Submitting an ID that already has an active record fails with
// ErrDuplicateJob. After Shutdown it fails with ErrClosed.
func (s *Service) Submit(job Job) (string, error) {
	if job == nil {
		return "", ErrNilJob
	}
	id := strings.TrimSpace(job.ID())
	if id == "" {
		return "", ErrEmptyID
	}
	if s.closed.Load() {
		return "", ErrClosed
	}

	rec := newRecord(job)
	if err := s.reg.insert(rec); err != nil {
		return "", err
	}

	// Publish before the pool hand-off so job.queued always precedes
	// job.started for the same submission.
	s.log.Debug("job queued", slog.String("job", id), slog.Int("priority", rec.priority))
	s.publish(EventQueued, rec, 0)

	if err := s.dispatch(rec); err != nil {
		// Lost the race with Shutdown after the closed check.
		s.reg.remove(rec)
		return "", ErrClosed
	}
	return id, nil
}

// dispatch enters the record into the pool's waiting area and wires the
// resulting handle back onto the record.
func (s *Service) dispatch(rec *record) error {
	h, err := s.pool.Submit(pool.Task{
		ID:  rec.id,
		Run: func(ctx context.Context) { s.execute(ctx, rec) },
	})
	if err != nil {
		return err
	}
	rec.attach(h)
	return nil
}

// execute runs on a pool worker.
func (s *Service) execute(ctx context.Context, rec *record) {
	if !rec.begin() {
		// Suspended or cancelled before dispatch won; the slot frees
		// immediately and the body never runs.
		return
	}
	defer close(rec.bodyDone)
	s.log.Debug("job started", slog.String("job", rec.id))
	s.publish(EventStarted, rec, 0)

	start := time.Now()
	err := runBody(ctx, rec.job)
	dur := time.Since(start)

	if !rec.finish(err) {
		// Cancelled mid-run; the cancel path already published and recorded.
		s.log.Debug("job body returned after cancel", slog.String("job", rec.id), slog.Duration("dur", dur))
		return
	}

	if err != nil {
		s.log.Warn("job failed", slog.String("job", rec.id), slog.Any("err", err), slog.Duration("dur", dur))
		s.publish(EventFailed, rec, dur)
	} else {
		s.log.Info("job completed", slog.String("job", rec.id), slog.Duration("dur", dur))
		s.publish(EventCompleted, rec, dur)
	}
	s.record(rec)
}

// runBody shields the worker from a panicking job body; a panic is a failed
// run, not a dead worker.
func runBody(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return job.Run(ctx)
}

// Cancel moves a non-terminal record to CANCELLED. A queued or suspended job
// is withdrawn from the waiting area and its body never runs. A running job
// gets a cooperative interrupt through its context, and the record is marked
// CANCELLED immediately regardless of when (or whether) the body actually
// stops; use Await for confirmed termination.
//
// Returns false for unknown IDs and records that are already terminal.
func (s *Service) Cancel(id string) bool {
	rec, ok := s.reg.get(id)
	if !ok {
		return false
	}
	prev, h, ok := rec.cancelRequest()
	if !ok {
		return false
	}
	if h != nil {
		h.Cancel(prev == StatusRunning)
	}
	s.log.Info("job cancelled", slog.String("job", id), slog.String("was", string(prev)))
	s.publish(EventCancelled, rec, 0)
	s.record(rec)
	return true
}

// Suspend moves a QUEUED job into SUSPENDED and withdraws it from the
// waiting area. If the job was already dispatched to RUNNING, Suspend returns
// false and the job proceeds normally; suspension never preempts a running
// body.
func (s *Service) Suspend(id string) bool {
	rec, ok := s.reg.get(id)
	if !ok {
		return false
	}
	h, ok := rec.suspendRequest()
	if !ok {
		return false
	}
	if h != nil {
		h.Cancel(false)
	}
	s.log.Info("job suspended", slog.String("job", id))
	s.publish(EventSuspended, rec, 0)
	return true
}

// Resume moves a SUSPENDED job back to QUEUED and re-enters it into the
// pool's waiting area. Returns false if the job is not currently suspended.
func (s *Service) Resume(id string) bool {
	rec, ok := s.reg.get(id)
	if !ok {
		return false
	}
	if !rec.resumeRequest() {
		return false
	}
	if err := s.dispatch(rec); err != nil {
		rec.unresume()
		return false
	}
	s.log.Info("job resumed", slog.String("job", id))
	s.publish(EventResumed, rec, 0)
	return true
}

// StatusOf reports the current status of the record under id.
// Cancelled and completed records are retained and stay queryable until
// evicted with Forget.
func (s *Service) StatusOf(id string) (Status, error) {
	rec, ok := s.reg.get(id)
	if !ok {
		return "", ErrNotFound
	}
	return rec.statusNow(), nil
}

// Await blocks until the record under id is terminal and, if an execution
// handle is still live, until the body has actually returned. It reports the
// body's error for completed-with-failure runs.
func (s *Service) Await(ctx context.Context, id string) error {
	rec, ok := s.reg.get(id)
	if !ok {
		return ErrNotFound
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-rec.done:
	}
	if ch := rec.awaitBody(); ch != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
	return rec.lastErr()
}

// Forget evicts a terminal record, freeing its ID for reuse and its memory.
// Returns false while the record is still active.
func (s *Service) Forget(id string) bool {
	return s.reg.evictTerminal(id)
}

// Shutdown stops accepting submissions, drains the pool for up to drain, and
// cancels whatever is left. Lifecycle calls on retained records keep working.
func (s *Service) Shutdown(drain time.Duration) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.log.Info("shutdown requested", slog.Duration("drain", drain))
	s.pool.Shutdown(drain)

	// Whatever the drain left behind becomes CANCELLED so no record is
	// stranded in an active status.
	for _, rec := range s.reg.all() {
		if _, _, ok := rec.cancelRequest(); ok {
			s.publish(EventCancelled, rec, 0)
			s.record(rec)
		}
	}
	s.log.Info("shutdown complete")
}

// Snapshot is a point-in-time diagnostic view.
func (s *Service) Snapshot() Snapshot {
	st := s.pool.Stats()
	snap := Snapshot{Capacity: st.Capacity, Running: st.Running, Waiting: st.Waiting}
	for _, rec := range s.reg.all() {
		switch rec.statusNow() {
		case StatusQueued:
			snap.Queued++
		case StatusSuspended:
			snap.Suspended++
		case StatusCompleted:
			snap.Completed++
		case StatusCancelled:
			snap.Cancelled++
		}
	}

	s.hmu.Lock()
	snap.History = make([]HistoryItem, len(s.history))
	copy(snap.History, s.history)
	s.hmu.Unlock()
	return snap
}

// record appends the terminal outcome to the bounded history ring.
func (s *Service) record(rec *record) {
	item := rec.historyItem()
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.hmu.Unlock()
}

func (s *Service) publish(typ string, rec *record, dur time.Duration) {
	if s.bus == nil {
		return
	}
	ev := JobEvent{ID: rec.id, Priority: rec.priority, Status: rec.statusNow(), Duration: dur}
	if err := rec.lastErr(); err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
}
