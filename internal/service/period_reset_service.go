package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/pkg/jobs"
)

const periodResetJobType = "period_reset"

type periodStore interface {
	Reset(ctx context.Context, kind models.PeriodKind, periodStart time.Time) (int64, bool, error)
}

// PeriodResetConfig tunes the reset scheduler.
type PeriodResetConfig struct {
	CheckInterval time.Duration
	Workers       int
	Retries       int
	RetryDelay    time.Duration
	Location      *time.Location
}

type periodResetPayload struct {
	Kind  models.PeriodKind
	Start time.Time
}

// PeriodResetService restarts weekly and monthly XP at each period boundary
// on the rewards calendar. Checks run on a ticker and hand resets to a job
// queue; the period_resets table makes every reset run at most once.
type PeriodResetService struct {
	store       periodStore
	leaderboard boardInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         PeriodResetConfig
	queue       *jobs.Queue
	now         func() time.Time
	stop        context.CancelFunc
}

// NewPeriodResetService constructs the scheduler and its queue.
func NewPeriodResetService(store periodStore, leaderboard boardInvalidator, metrics *MetricsService, cfg PeriodResetConfig, logger *zap.Logger) *PeriodResetService {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 15 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PeriodResetService{
		store:       store,
		leaderboard: leaderboard,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
	s.queue = jobs.NewQueue("period-resets", s.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start runs an immediate check and then one per CheckInterval until ctx ends
// or Stop is called.
func (s *PeriodResetService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.queue.Start(ctx)
	s.Check()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check()
			}
		}
	}()
}

// Stop halts the ticker and drains the workers.
func (s *PeriodResetService) Stop() {
	if s.stop != nil {
		s.stop()
	}
	s.queue.Stop()
}

// periodStarts returns the first instant of the current week and month.
func (s *PeriodResetService) periodStarts() map[models.PeriodKind]time.Time {
	now := s.now().In(s.cfg.Location)
	week := models.WeekStart(now)
	return map[models.PeriodKind]time.Time{
		models.PeriodWeekly:  time.Date(week.Year(), week.Month(), week.Day(), 0, 0, 0, 0, s.cfg.Location),
		models.PeriodMonthly: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.cfg.Location),
	}
}

// Check enqueues the resets for the current periods. Repeats of a pending
// reset are ignored; completed ones are skipped by the store.
func (s *PeriodResetService) Check() {
	starts := s.periodStarts()
	for _, kind := range []models.PeriodKind{models.PeriodWeekly, models.PeriodMonthly} {
		start := starts[kind]
		job := jobs.Job{
			ID:      fmt.Sprintf("%s:%s", kind, start.Format("2006-01-02")),
			Type:    periodResetJobType,
			Payload: periodResetPayload{Kind: kind, Start: start},
		}
		if err := s.queue.Enqueue(job); err != nil && !errors.Is(err, jobs.ErrJobPending) {
			s.logger.Warn("enqueue period reset failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// Handle executes one reset job.
func (s *PeriodResetService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(periodResetPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	affected, ran, err := s.store.Reset(ctx, payload.Kind, payload.Start)
	if err != nil {
		s.metrics.RecordPeriodReset(payload.Kind, "error")
		return err
	}
	if !ran {
		s.metrics.RecordPeriodReset(payload.Kind, "skipped")
		return nil
	}
	s.metrics.RecordPeriodReset(payload.Kind, "reset")
	s.logger.Info("period xp reset",
		zap.String("period", string(payload.Kind)),
		zap.String("period_start", payload.Start.Format("2006-01-02")),
		zap.Int64("students", affected),
	)
	if s.leaderboard != nil {
		if err := s.leaderboard.Invalidate(ctx); err != nil {
			s.logger.Warn("leaderboard invalidate after reset failed", zap.Error(err))
		}
	}
	return nil
}
