package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the scan cycle and the retention prune on fixed intervals.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	log    *slog.Logger

	prune func(ctx context.Context) error
}

// NewScheduler creates a Scheduler. pruneInterval of zero disables the prune
// job; prune may be nil in that case.
func NewScheduler(
	eng *Engine,
	scanInterval time.Duration,
	pruneInterval time.Duration,
	prune func(ctx context.Context) error,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:   c,
		engine: eng,
		log:    log,
		prune:  prune,
	}

	if _, err := c.AddFunc(
		"@every "+scanInterval.String(),
		s.runScan,
	); err != nil {
		return nil, err
	}

	if pruneInterval > 0 && prune != nil {
		if _, err := c.AddFunc(
			"@every "+pruneInterval.String(),
			s.runPrune,
		); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runScan() {
	ctx := context.Background()
	s.log.Info("scheduled scan starting")
	if err := s.engine.Scan(ctx); err != nil {
		s.log.Error("scheduled scan failed", "error", err)
	}
}

func (s *Scheduler) runPrune() {
	ctx := context.Background()
	s.log.Info("scheduled prune starting")
	if err := s.prune(ctx); err != nil {
		s.log.Error("scheduled prune failed", "error", err)
	}
}
