// FILE: internal/scheduler/scheduler.go
// Cron wiring for the lifecycle sweep and the reminder scan.
package scheduler

import (
	"context"

	"portfolio-commerce-be/internal/config"
	"portfolio-commerce-be/internal/pkg/logger"
	"portfolio-commerce-be/internal/service"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron    *cron.Cron
	sweeper service.ISweeperService
	logger  logger.ILogger
	cfg     *config.Config
}

func New(sweeper service.ISweeperService, log logger.ILogger, cfg *config.Config) *Scheduler {
	// Recover keeps one panicking job from taking the whole scheduler down.
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Scheduler{
		cron:    c,
		sweeper: sweeper,
		logger:  log,
		cfg:     cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.cfg.Sweep.SweepSchedule, s.runSweep); err != nil {
		s.logger.Error("scheduler", "failed to schedule lifecycle sweep", map[string]interface{}{
			"schedule": s.cfg.Sweep.SweepSchedule,
			"error":    err.Error(),
		})
	} else {
		s.logger.Info("scheduler", "scheduled lifecycle sweep", map[string]interface{}{
			"schedule": s.cfg.Sweep.SweepSchedule,
		})
	}

	if _, err := s.cron.AddFunc(s.cfg.Sweep.ReminderSchedule, s.runReminderScan); err != nil {
		s.logger.Error("scheduler", "failed to schedule reminder scan", map[string]interface{}{
			"schedule": s.cfg.Sweep.ReminderSchedule,
			"error":    err.Error(),
		})
	} else {
		s.logger.Info("scheduler", "scheduled reminder scan", map[string]interface{}{
			"schedule": s.cfg.Sweep.ReminderSchedule,
		})
	}

	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runSweep() {
	if err := s.sweeper.RunSweep(context.Background()); err != nil {
		s.logger.Error("scheduler", "lifecycle sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Scheduler) runReminderScan() {
	if err := s.sweeper.RunReminderScan(context.Background()); err != nil {
		s.logger.Error("scheduler", "reminder scan failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
