package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

var streakCols = []string{"student_id", "current_streak", "longest_streak", "last_login_date", "total_login_days"}

func TestStreakRecordLoginAdvancesAndCredits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStreakRepository(db)
	now := time.Date(2024, 6, 4, 7, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	today := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (student_id, display_name, created_at)")).
		WithArgs("stu-1", "Ayu", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO daily_logins")).
		WithArgs("stu-1", "2024-06-04").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("stu-1"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO daily_streaks (student_id)")).
		WithArgs("stu-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(streakCols).AddRow("stu-1", 7, 7, yesterday, 12))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE daily_streaks")).
		WithArgs("stu-1", 8, 8, "2024-06-04", 13).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (student_id, display_name, total_xp")).
		WithArgs("stu-1", "", 30, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO xp_transactions")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "daily_login", 30, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen models.DailyStreak
	outcome, err := repo.RecordLogin(context.Background(), "stu-1", "Ayu", today, func(prev models.DailyStreak) (models.DailyStreak, int) {
		seen = prev
		next := prev
		next.CurrentStreak = prev.CurrentStreak + 1
		next.LongestStreak = 8
		next.TotalLoginDays = prev.TotalLoginDays + 1
		next.LastLoginDate = &today
		return next, 30
	})
	require.NoError(t, err)
	assert.Equal(t, 7, seen.CurrentStreak)
	assert.False(t, outcome.AlreadyCredited)
	assert.Equal(t, 30, outcome.XPEarned)
	assert.Equal(t, 8, outcome.Streak.CurrentStreak)
}

func TestStreakRecordLoginSameDayIsNoOp(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStreakRepository(db)
	today := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO daily_logins")).
		WithArgs("stu-1", "2024-06-04").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}))
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta("FROM daily_streaks WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(streakCols).AddRow("stu-1", 8, 8, today, 13))

	called := false
	outcome, err := repo.RecordLogin(context.Background(), "stu-1", "", today, func(prev models.DailyStreak) (models.DailyStreak, int) {
		called = true
		return prev, 0
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.True(t, outcome.AlreadyCredited)
	assert.Equal(t, 0, outcome.XPEarned)
	assert.Equal(t, 8, outcome.Streak.CurrentStreak)
}

func TestStreakGetMissingRowIsZero(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStreakRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM daily_streaks")).
		WithArgs("stu-2").
		WillReturnRows(sqlmock.NewRows(streakCols))

	streak, err := repo.Get(context.Background(), "stu-2")
	require.NoError(t, err)
	assert.Equal(t, "stu-2", streak.StudentID)
	assert.Zero(t, streak.CurrentStreak)
	assert.Nil(t, streak.LastLoginDate)
}
