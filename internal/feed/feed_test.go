package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"jobmill/internal/sched"
)

func TestLifecycle(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	target := sched.New(sched.Config{Capacity: 1}, log, nil)
	defer target.Shutdown(time.Second)

	spec, err := ParseSchedule("cron:0 0 1 1 *")
	if err != nil {
		t.Fatalf("ParseSchedule error: %v", err)
	}

	s := New(log, target)
	s.Apply([]Definition{{Name: "yearly", Spec: spec, Command: []string{"true"}}})

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx) // idempotent

	// Hot-reload path: replacing definitions on a started service rebuilds
	// the trigger set without deadlocking.
	s.Apply([]Definition{
		{Name: "yearly", Spec: spec, Command: []string{"true"}},
		{Name: "also-yearly", Spec: spec, Command: []string{"true"}},
	})

	s.Stop()
	s.Stop()
}
