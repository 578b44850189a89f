package core

import (
	"context"

	"jobmill/internal/eventbus"
	"jobmill/internal/sched"
	"jobmill/internal/storage"
	logx "jobmill/pkg/logx"
)

// recorder drains job lifecycle events from the bus into the store. It only
// persists terminal outcomes; queued/started/suspended events are log noise
// from persistence's point of view.
func runRecorder(ctx context.Context, bus eventbus.Bus, store storage.Store, log logx.Logger) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			switch ev.Type {
			case sched.EventCompleted, sched.EventFailed, sched.EventCancelled:
			default:
				continue
			}
			je, ok := ev.Data.(sched.JobEvent)
			if !ok {
				continue
			}
			entry := storage.RunEntry{
				At:       ev.Time,
				JobID:    je.ID,
				Priority: je.Priority,
				Status:   string(je.Status),
				TookMS:   je.Duration.Milliseconds(),
				Error:    je.Error,
			}
			if err := store.AppendRun(ctx, entry); err != nil && ctx.Err() == nil {
				log.Warn("run history append failed", logx.String("job", je.ID), logx.Err(err))
			}
		}
	}
}
