package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/internal/repository"
	"github.com/noah-isme/kidcode-rewards-api/pkg/config"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvanceStreakConsecutiveDay(t *testing.T) {
	last := day(2024, 6, 3)
	prev := models.DailyStreak{CurrentStreak: 7, LongestStreak: 7, LastLoginDate: &last, TotalLoginDays: 20}

	next, advanced := AdvanceStreak(prev, time.Date(2024, 6, 4, 23, 59, 0, 0, time.UTC))
	require.True(t, advanced)
	assert.Equal(t, 8, next.CurrentStreak)
	assert.Equal(t, 8, next.LongestStreak)
	assert.Equal(t, 21, next.TotalLoginDays)
	assert.Equal(t, day(2024, 6, 4), *next.LastLoginDate)
}

func TestAdvanceStreakGapResetsToOne(t *testing.T) {
	last := day(2024, 6, 1)
	prev := models.DailyStreak{CurrentStreak: 5, LongestStreak: 12, LastLoginDate: &last, TotalLoginDays: 30}

	next, advanced := AdvanceStreak(prev, day(2024, 6, 3))
	require.True(t, advanced)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, 12, next.LongestStreak)
	assert.Equal(t, 31, next.TotalLoginDays)
}

func TestAdvanceStreakFirstLogin(t *testing.T) {
	next, advanced := AdvanceStreak(models.DailyStreak{}, day(2024, 6, 3))
	require.True(t, advanced)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, 1, next.LongestStreak)
	assert.Equal(t, 1, next.TotalLoginDays)
}

func TestAdvanceStreakSameDayUnchanged(t *testing.T) {
	last := day(2024, 6, 3)
	prev := models.DailyStreak{CurrentStreak: 4, LongestStreak: 4, LastLoginDate: &last, TotalLoginDays: 4}

	next, advanced := AdvanceStreak(prev, time.Date(2024, 6, 3, 18, 0, 0, 0, time.UTC))
	assert.False(t, advanced)
	assert.Equal(t, prev, next)
}

func TestAdvanceStreakCalendarNotRolling(t *testing.T) {
	last := time.Date(2024, 6, 3, 23, 55, 0, 0, time.UTC)
	prev := models.DailyStreak{CurrentStreak: 2, LongestStreak: 2, LastLoginDate: &last}

	next, _ := AdvanceStreak(prev, time.Date(2024, 6, 4, 0, 5, 0, 0, time.UTC))
	assert.Equal(t, 3, next.CurrentStreak)
}

func TestAdvanceStreakAcrossMonthBoundary(t *testing.T) {
	last := day(2024, 2, 29)
	prev := models.DailyStreak{CurrentStreak: 3, LongestStreak: 3, LastLoginDate: &last}

	next, _ := AdvanceStreak(prev, day(2024, 3, 1))
	assert.Equal(t, 4, next.CurrentStreak)
}

func TestAdvanceStreakLongestNeverDecreases(t *testing.T) {
	prev := models.DailyStreak{}
	longest := 0
	logins := []time.Time{day(2024, 6, 1), day(2024, 6, 2), day(2024, 6, 3), day(2024, 6, 7), day(2024, 6, 8), day(2024, 6, 20)}
	for _, d := range logins {
		next, _ := AdvanceStreak(prev, d)
		assert.GreaterOrEqual(t, next.LongestStreak, longest)
		assert.GreaterOrEqual(t, next.LongestStreak, next.CurrentStreak)
		longest = next.LongestStreak
		prev = next
	}
	assert.Equal(t, 3, longest)
	assert.Equal(t, 1, prev.CurrentStreak)
}

type streakStoreStub struct {
	streak   models.DailyStreak
	credited map[string]bool
	lastDay  time.Time
}

func (s *streakStoreStub) RecordLogin(ctx context.Context, studentID, displayName string, today time.Time, advance repository.StreakAdvancer) (*models.LoginOutcome, error) {
	s.lastDay = today
	key := studentID + today.Format("2006-01-02")
	if s.credited[key] {
		return &models.LoginOutcome{Streak: s.streak, AlreadyCredited: true}, nil
	}
	s.credited[key] = true
	next, xp := advance(s.streak)
	s.streak = next
	return &models.LoginOutcome{Streak: next, XPEarned: xp}, nil
}

func (s *streakStoreStub) Get(ctx context.Context, studentID string) (*models.DailyStreak, error) {
	streak := s.streak
	return &streak, nil
}

func TestStreakTrackerTierMovesWithNewStreak(t *testing.T) {
	last := day(2024, 6, 3)
	store := &streakStoreStub{
		streak:   models.DailyStreak{StudentID: "stu-1", CurrentStreak: 7, LongestStreak: 7, LastLoginDate: &last},
		credited: map[string]bool{},
	}
	tracker := NewStreakTracker(store, NewXPCalculator(config.DefaultRewardTable()), time.UTC)
	tracker.now = func() time.Time { return time.Date(2024, 6, 4, 8, 0, 0, 0, time.UTC) }

	outcome, err := tracker.RecordDailyLogin(context.Background(), "stu-1", "Ayu")
	require.NoError(t, err)
	assert.Equal(t, 8, outcome.Streak.CurrentStreak)
	assert.Equal(t, 30, outcome.XPEarned)

	again, err := tracker.RecordDailyLogin(context.Background(), "stu-1", "Ayu")
	require.NoError(t, err)
	assert.True(t, again.AlreadyCredited)
	assert.Equal(t, 0, again.XPEarned)
	assert.Equal(t, 8, again.Streak.CurrentStreak)
}

func TestStreakTrackerUsesConfiguredCalendar(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	store := &streakStoreStub{credited: map[string]bool{}}
	tracker := NewStreakTracker(store, NewXPCalculator(config.DefaultRewardTable()), loc)
	tracker.now = func() time.Time { return time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC) }

	_, err := tracker.RecordDailyLogin(context.Background(), "stu-1", "")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 6, 4), store.lastDay)
}
