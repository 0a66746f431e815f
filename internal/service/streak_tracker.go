package service

import (
	"context"
	"time"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/internal/repository"
)

type streakStore interface {
	RecordLogin(ctx context.Context, studentID, displayName string, today time.Time, advance repository.StreakAdvancer) (*models.LoginOutcome, error)
	Get(ctx context.Context, studentID string) (*models.DailyStreak, error)
}

// AdvanceStreak applies one login on today to prev. A login the day after the
// last one extends the streak; any other gap restarts it at 1. The second
// return is false when today was already counted.
func AdvanceStreak(prev models.DailyStreak, today time.Time) (models.DailyStreak, bool) {
	day := models.CivilDate(today)
	var last time.Time
	if prev.LastLoginDate != nil {
		last = models.CivilDate(*prev.LastLoginDate)
		if last.Equal(day) {
			return prev, false
		}
	}

	next := prev
	if prev.LastLoginDate != nil && prev.CurrentStreak > 0 && last.AddDate(0, 0, 1).Equal(day) {
		next.CurrentStreak = prev.CurrentStreak + 1
	} else {
		next.CurrentStreak = 1
	}
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	next.TotalLoginDays = prev.TotalLoginDays + 1
	next.LastLoginDate = &day
	return next, true
}

// StreakTracker credits daily logins on the configured calendar.
type StreakTracker struct {
	store streakStore
	calc  *XPCalculator
	loc   *time.Location
	now   func() time.Time
}

// NewStreakTracker builds a tracker. A nil location means UTC.
func NewStreakTracker(store streakStore, calc *XPCalculator, loc *time.Location) *StreakTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &StreakTracker{store: store, calc: calc, loc: loc, now: time.Now}
}

// Today returns the current calendar day in the tracker's location.
func (t *StreakTracker) Today() time.Time {
	return models.CivilDate(t.now().In(t.loc))
}

// RecordDailyLogin credits today's login once; repeat calls on the same day
// report AlreadyCredited with zero XP and the streak unchanged.
func (t *StreakTracker) RecordDailyLogin(ctx context.Context, studentID, displayName string) (*models.LoginOutcome, error) {
	today := t.Today()
	return t.store.RecordLogin(ctx, studentID, displayName, today, func(prev models.DailyStreak) (models.DailyStreak, int) {
		next, advanced := AdvanceStreak(prev, today)
		if !advanced {
			return next, 0
		}
		return next, t.calc.LoginXP(next.CurrentStreak)
	})
}

// Get returns the stored streak.
func (t *StreakTracker) Get(ctx context.Context, studentID string) (*models.DailyStreak, error) {
	return t.store.Get(ctx, studentID)
}
