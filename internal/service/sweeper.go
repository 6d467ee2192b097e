package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	repo "github.com/aliskhannn/ielts-mock-engine/internal/repository"
)

// ExpirySweeper periodically closes sessions left open past their deadline.
// Exclusivity never depends on it; reads and writes re-check deadlines themselves.
type ExpirySweeper struct {
	store     repo.Transactor
	registry  *Registry
	schedule  string
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

// NewExpirySweeper creates a new sweeper.
func NewExpirySweeper(store repo.Transactor, registry *Registry, schedule string, batchSize int, logger *zap.Logger) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ExpirySweeper{
		store:     store,
		registry:  registry,
		schedule:  schedule,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// SetClock replaces the time source.
func (s *ExpirySweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs the sweep on schedule until ctx is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(s.schedule, func() {
		n, err := s.SweepOnce(ctx)
		if err != nil {
			s.logger.Error("failed to sweep expired sessions", zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("expired sessions swept", zap.Int("count", n))
		}
	})
	if err != nil {
		return fmt.Errorf("add sweep job: %w", err)
	}

	c.Start()
	s.logger.Info("expiry sweeper started", zap.String("schedule", s.schedule))

	<-ctx.Done()

	<-c.Stop().Done()
	s.logger.Info("expiry sweeper stopped")

	return nil
}

// SweepOnce expires due sessions in batches, one unit of work per batch.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var n int
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
			var err error
			n, err = s.registry.SweepExpired(ctx, tx, now, s.batchSize)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("sweep batch: %w", err)
		}

		total += n
		if n < s.batchSize {
			return total, nil
		}
	}
}
