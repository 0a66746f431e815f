package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

type badgeStore interface {
	ListByTypes(ctx context.Context, types []string) ([]models.Badge, error)
	EarnedIDs(ctx context.Context, studentID string) (map[string]struct{}, error)
	CountEarned(ctx context.Context, studentID string) (int, error)
	CountByActivity(ctx context.Context, studentID string, activity models.ActivityType) (int, error)
	CountPerfectQuizzes(ctx context.Context, studentID string) (int, error)
	CurrentStreak(ctx context.Context, studentID string) (int, error)
	Award(ctx context.Context, award models.StudentBadge, xpReward int) (bool, error)
}

// BadgeEvaluator awards catalog badges whose requirement a student now meets.
type BadgeEvaluator struct {
	store   badgeStore
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewBadgeEvaluator constructs an evaluator.
func NewBadgeEvaluator(store badgeStore, metrics *MetricsService, logger *zap.Logger) *BadgeEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeEvaluator{store: store, metrics: metrics, logger: logger, now: time.Now}
}

// Evaluate checks the badges tied to activity plus the special ones and
// returns those newly awarded. Badge XP never re-enters evaluation; when a
// pass awards anything, one follow-up pass over badge-count badges runs and
// nothing chains beyond it. Failures on individual badges are joined into the
// returned error alongside whatever was awarded.
func (e *BadgeEvaluator) Evaluate(ctx context.Context, studentID string, activity models.ActivityType, facts models.ActivityFacts) ([]models.Badge, error) {
	if activity == models.ActivityBadge {
		return nil, nil
	}
	awarded, err := e.pass(ctx, studentID, activity, facts, []string{string(activity), models.BadgeTypeSpecial})
	if len(awarded) == 0 {
		return awarded, err
	}
	more, moreErr := e.pass(ctx, studentID, models.ActivityBadge, facts, []string{string(models.ActivityBadge)})
	return append(awarded, more...), errors.Join(err, moreErr)
}

type progressFacts struct {
	store     badgeStore
	studentID string
	counts    map[models.ActivityType]int
	perfect   *int
	streak    *int
}

func (f *progressFacts) count(ctx context.Context, activity models.ActivityType) (int, error) {
	if v, ok := f.counts[activity]; ok {
		return v, nil
	}
	var (
		v   int
		err error
	)
	if activity == models.ActivityBadge {
		v, err = f.store.CountEarned(ctx, f.studentID)
	} else {
		v, err = f.store.CountByActivity(ctx, f.studentID, activity)
	}
	if err != nil {
		return 0, err
	}
	f.counts[activity] = v
	return v, nil
}

func (f *progressFacts) perfectQuizzes(ctx context.Context) (int, error) {
	if f.perfect == nil {
		v, err := f.store.CountPerfectQuizzes(ctx, f.studentID)
		if err != nil {
			return 0, err
		}
		f.perfect = &v
	}
	return *f.perfect, nil
}

func (f *progressFacts) currentStreak(ctx context.Context) (int, error) {
	if f.streak == nil {
		v, err := f.store.CurrentStreak(ctx, f.studentID)
		if err != nil {
			return 0, err
		}
		f.streak = &v
	}
	return *f.streak, nil
}

func (e *BadgeEvaluator) pass(ctx context.Context, studentID string, activity models.ActivityType, facts models.ActivityFacts, types []string) ([]models.Badge, error) {
	candidates, err := e.store.ListByTypes(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("list candidate badges: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	earned, err := e.store.EarnedIDs(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list earned badges: %w", err)
	}

	pf := &progressFacts{store: e.store, studentID: studentID, counts: map[models.ActivityType]int{}}
	var (
		awarded []models.Badge
		errs    []error
	)
	for _, badge := range candidates {
		if _, ok := earned[badge.BadgeID]; ok {
			continue
		}
		progress, qualifies, err := e.progress(ctx, pf, badge, activity, facts)
		if err != nil {
			errs = append(errs, fmt.Errorf("badge %s: %w", badge.BadgeID, err))
			continue
		}
		if !qualifies {
			continue
		}
		ok, err := e.store.Award(ctx, models.StudentBadge{
			StudentID: studentID,
			BadgeID:   badge.BadgeID,
			EarnedAt:  e.now().UTC(),
			Progress:  progress,
		}, badge.XPReward)
		if err != nil {
			errs = append(errs, fmt.Errorf("award badge %s: %w", badge.BadgeID, err))
			continue
		}
		if !ok {
			continue
		}
		e.metrics.RecordBadgeAwarded(badge.BadgeID)
		if badge.XPReward > 0 {
			e.metrics.RecordXP(models.ActivityBadge, badge.XPReward, "credited")
		}
		e.logger.Info("badge awarded",
			zap.String("student_id", studentID),
			zap.String("badge_id", badge.BadgeID),
			zap.Int("xp_reward", badge.XPReward),
		)
		awarded = append(awarded, badge)
	}
	return awarded, errors.Join(errs...)
}

func (e *BadgeEvaluator) progress(ctx context.Context, pf *progressFacts, badge models.Badge, activity models.ActivityType, facts models.ActivityFacts) (int, bool, error) {
	switch badge.RequirementType {
	case models.RequirementCount:
		target := activity
		if badge.BadgeType != models.BadgeTypeSpecial {
			target = models.ActivityType(badge.BadgeType)
		}
		n, err := pf.count(ctx, target)
		if err != nil {
			return 0, false, err
		}
		return n, n >= badge.RequirementValue, nil
	case models.RequirementScore:
		if activity != models.ActivityQuiz || facts.Score != perfectQuizScore {
			return 0, false, nil
		}
		n, err := pf.perfectQuizzes(ctx)
		if err != nil {
			return 0, false, err
		}
		return n, n >= badge.RequirementValue, nil
	case models.RequirementStreak:
		n, err := pf.currentStreak(ctx)
		if err != nil {
			return 0, false, err
		}
		return n, n >= badge.RequirementValue, nil
	case models.RequirementSpeed:
		if activity != models.ActivityLesson || facts.CompletionSeconds <= 0 || facts.CompletionSeconds > badge.RequirementValue {
			return 0, false, nil
		}
		return 1, true, nil
	}
	return 0, false, nil
}
