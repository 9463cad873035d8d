package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"price-watch/internal/alerts"
	"price-watch/internal/config"
	"price-watch/internal/history"
	"price-watch/internal/scheduler"
	"price-watch/internal/storage"
)

// Service runs the two periodic loops of the monitor: the alert evaluation
// cycle on the aligned scheduler and the history compaction pass on its own
// ticker. Both loops take a postgres advisory lock first, so multiple
// replicas can run while each cycle executes on exactly one of them.
type Service struct {
	evaluator  *alerts.Evaluator
	compactor  *history.Compactor
	locker     storage.AdvisoryLocker
	scheduler  config.SchedulerConfig
	compaction config.CompactionConfig
	logger     zerolog.Logger
}

// New wires the runtime service.
func New(evaluator *alerts.Evaluator, compactor *history.Compactor, locker storage.AdvisoryLocker, schedulerCfg config.SchedulerConfig, compactionCfg config.CompactionConfig, logger zerolog.Logger) *Service {
	return &Service{
		evaluator:  evaluator,
		compactor:  compactor,
		locker:     locker,
		scheduler:  schedulerCfg,
		compaction: compactionCfg,
		logger:     logger.With().Str("component", "service").Logger(),
	}
}

// Run blocks until ctx is cancelled, driving both loops.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.compactionLoop(ctx)
	}()

	sched := scheduler.New(scheduler.Options{
		Interval:     s.scheduler.Interval,
		AlignToStart: s.scheduler.AlignToBucket,
		StartupDelay: s.scheduler.StartupDelay,
	}, s.logger)

	err := sched.Run(ctx, s.evaluationTick)
	wg.Wait()

	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// evaluationTick runs one alert evaluation cycle under the advisory lock.
func (s *Service) evaluationTick(ctx context.Context, bucket time.Time) error {
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.scheduler.AdvisoryLockKey)
	if err != nil {
		return err
	}
	if !acquired {
		s.logger.Info().Time("bucket", bucket).Msg("another instance holds the evaluation lock; skipping cycle")
		return nil
	}
	defer unlock()

	report, err := s.evaluator.RunCycle(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug().
		Time("bucket", bucket).
		Int("alerts", report.Alerts).
		Int("notified", report.Notified).
		Msg("evaluation tick finished")
	return nil
}

func (s *Service) compactionLoop(ctx context.Context) {
	ticker := time.NewTicker(s.compaction.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCompaction(ctx)
		}
	}
}

func (s *Service) runCompaction(ctx context.Context) {
	// Distinct lock key so compaction and evaluation never contend.
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.scheduler.AdvisoryLockKey+1)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire compaction lock")
		return
	}
	if !acquired {
		s.logger.Info().Msg("another instance holds the compaction lock; skipping pass")
		return
	}
	defer unlock()

	if _, err := s.compactor.Compact(ctx, s.compaction.RetentionDays); err != nil {
		s.logger.Error().Err(err).Msg("compaction pass failed")
	}
}
