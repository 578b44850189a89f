package sched

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a submitted job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Job is the unit of work the scheduler manages.
//
// ID must be unique among currently active (non-terminal) jobs. Priority is
// an informational ordering hint; it is carried on records, events and
// history but does not reorder the waiting area. Run is invoked at most once
// per submission, on a pool worker; it should watch ctx to honor cooperative
// cancellation, but is not required to.
type Job interface {
	ID() string
	Priority() int
	Run(ctx context.Context) error
}

type funcJob struct {
	id       string
	priority int
	fn       func(ctx context.Context) error
}

// NewJob adapts a plain function into a Job. An empty id gets a generated
// UUID so ad-hoc submissions cannot collide.
func NewJob(id string, priority int, fn func(ctx context.Context) error) Job {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	return &funcJob{id: id, priority: priority, fn: fn}
}

func (j *funcJob) ID() string    { return j.id }
func (j *funcJob) Priority() int { return j.priority }
func (j *funcJob) Run(ctx context.Context) error {
	if j.fn == nil {
		return nil
	}
	return j.fn(ctx)
}

// Config controls the scheduler.
type Config struct {
	// Capacity is the number of concurrent worker slots. Fixed once started.
	Capacity int
	// HistorySize bounds the in-memory terminal-run ring. Default 200.
	HistorySize int
}

// Event type strings published on the bus.
const (
	EventQueued    = "job.queued"
	EventStarted   = "job.started"
	EventSuspended = "job.suspended"
	EventResumed   = "job.resumed"
	EventCancelled = "job.cancelled"
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
)

// JobEvent is the payload attached to job.* bus events.
type JobEvent struct {
	ID       string        `json:"id"`
	Priority int           `json:"priority"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// HistoryItem records one job that reached a terminal status.
type HistoryItem struct {
	ID       string
	Priority int
	Status   Status
	Started  time.Time
	Duration time.Duration
	Error    string
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Capacity  int
	Running   int
	Waiting   int
	Queued    int
	Suspended int
	Completed int
	Cancelled int
	History   []HistoryItem
}
