package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunEntry records one job that reached a terminal status.
// Keep it compact and schema-stable.
type RunEntry struct {
	At       time.Time `json:"at"`
	JobID    string    `json:"job_id"`
	Priority int       `json:"priority,omitempty"`
	Status   string    `json:"status"`
	TookMS   int64     `json:"took_ms,omitempty"`
	Error    string    `json:"error,omitempty"`
}
