package config

// Config is the daemon's root configuration. YAML and JSON are both
// accepted; YAML is coerced to JSON before strict decoding, so unknown keys
// are rejected in either format.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Jobs      []JobDef        `json:"jobs,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the execution core.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type SchedulerConfig struct {
	// Capacity is the number of concurrent worker slots (default 2).
	// Fixed for the process lifetime; changing it requires a restart.
	Capacity int `json:"capacity,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	// DrainTimeout bounds how long shutdown waits for in-flight jobs
	// before requesting cancellation. Default "5s".
	DrainTimeout string `json:"drain_timeout,omitempty"`
}

// StorageConfig controls the optional run-history persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./jobmill_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// JobDef declares a recurring command job the feed submits on a schedule.
//
// Schedule accepts either a cron expression ("*/5 * * * *", optional
// "cron:" prefix) or a Go duration ("10m", optional "every:" prefix).
//
// Enabled is a pointer so an omitted field defaults to true while an
// explicit false stays false.
type JobDef struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	Command  []string `json:"command"`
	Priority int      `json:"priority,omitempty"`
	Timeout  string   `json:"timeout,omitempty"` // per-run timeout, Go duration string
	Enabled  *bool    `json:"enabled,omitempty"`
}

func (d JobDef) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}
