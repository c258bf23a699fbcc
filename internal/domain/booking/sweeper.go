package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// CompletionSweeper periodically marks past confirmed appointments completed.
type CompletionSweeper struct {
	svc       *Service
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
	scheduler *gocron.Scheduler
}

func NewCompletionSweeper(svc *Service, interval time.Duration, logger zerolog.Logger) *CompletionSweeper {
	return &CompletionSweeper{
		svc:      svc,
		interval: interval,
		timeout:  time.Minute,
		logger:   logger,
	}
}

// Start schedules the sweep and returns immediately. The first sweep runs
// right away.
func (s *CompletionSweeper) Start() error {
	s.scheduler = gocron.NewScheduler(time.UTC)
	if _, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.sweep); err != nil {
		return fmt.Errorf("schedule completion sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("completion sweeper started")
	return nil
}

func (s *CompletionSweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunOnce performs a single sweep.
func (s *CompletionSweeper) RunOnce(ctx context.Context) (int, error) {
	return s.svc.MarkCompleted(ctx)
}

func (s *CompletionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("completion sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int("completed", n).Msg("appointments marked completed")
	}
}
