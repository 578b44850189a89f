// Package storage persists job run history.
//
// It records terminal outcomes only (completed, failed, cancelled); the
// scheduler never restores state from it. Drivers:
//   - "file": dependency-free JSONL backend
//   - "sqlite": SQLite database file (build with -tags sqlite)
package storage
