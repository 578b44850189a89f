// Package feed turns config-declared recurring jobs into scheduler
// submissions. It owns the cron triggers; lifecycle control of each
// submitted run stays with the scheduler.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"jobmill/internal/jobs"
	"jobmill/internal/sched"
)

// Definition is one recurring job from config, already validated.
type Definition struct {
	Name     string
	Spec     Spec
	Command  []string
	Priority int
	Timeout  time.Duration
}

type Service struct {
	log    *slog.Logger
	target *sched.Service

	mu      sync.Mutex
	c       *cron.Cron
	defs    []Definition
	started bool
}

func New(log *slog.Logger, target *sched.Service) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, target: target}
}

// Apply replaces the active definitions. Safe to call on a running service;
// triggers are rebuilt (hot reload path).
func (s *Service) Apply(defs []Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = defs
	if s.started {
		s.rebuildLocked()
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.rebuildLocked()
	s.log.Info("feed started", slog.Int("definitions", len(s.defs)))
}

func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.started = false
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.log.Info("feed stopped")
}

func (s *Service) rebuildLocked() {
	if s.c != nil {
		// Swap out the old trigger set; in-flight submissions are unaffected.
		old := s.c
		go func() { <-old.Stop().Done() }()
	}
	s.c = cron.New(cron.WithParser(specParser))
	for i := range s.defs {
		def := s.defs[i]
		s.c.Schedule(def.Spec.Schedule, cron.FuncJob(func() { s.fire(def) }))
	}
	s.c.Start()
}

// fire submits one run of the definition. Every firing gets a fresh unique
// ID so a long run never blocks the next trigger with a duplicate error —
// overlap control is the pool's job, not the feed's.
func (s *Service) fire(def Definition) {
	id := def.Name + "-" + uuid.NewString()[:8]
	job, err := jobs.NewCommand(id, def.Priority, def.Command, def.Timeout)
	if err != nil {
		s.log.Error("bad job definition", slog.String("name", def.Name), slog.Any("err", err))
		return
	}
	if _, err := s.target.Submit(job); err != nil {
		s.log.Warn("submission rejected", slog.String("job", id), slog.Any("err", err))
		return
	}
	s.log.Debug("job submitted", slog.String("job", id), slog.String("name", def.Name))
}
