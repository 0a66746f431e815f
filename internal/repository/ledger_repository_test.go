package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

func TestLedgerRecordRunsGuardsThenIncrements(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	ledger := NewLedgerRepository(db)
	activities := NewActivityRepository(db)
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_completions")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "lesson-3", true, true, 95, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students (student_id, display_name, total_xp, weekly_xp, monthly_xp")).
		WithArgs("stu-1", "Ayu", 125, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO xp_transactions")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "lesson", 125, sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := ledger.Record(context.Background(), models.XPEntry{
		StudentID:   "stu-1",
		DisplayName: "Ayu",
		XP:          125,
		Activity:    models.ActivityLesson,
		Reason:      "lesson:lesson-3",
		EarnedAt:    at,
	}, activities.LessonWriter(models.LessonCompletion{
		StudentID:         "stu-1",
		LessonID:          "lesson-3",
		IsFirstAttempt:    true,
		IsPerfect:         true,
		CompletionSeconds: 95,
		CreatedAt:         at,
	}))
	require.NoError(t, err)
	assert.Equal(t, 125, txn.XPEarned)
	require.NotNil(t, txn.Reason)
	assert.Equal(t, "lesson:lesson-3", *txn.Reason)
	assert.NotEmpty(t, txn.ID)
}

func TestLedgerRecordDuplicateGuardWritesNothing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	ledger := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	duplicate := func(ctx context.Context, tx *sqlx.Tx) error { return ErrDuplicate }
	_, err := ledger.Record(context.Background(), models.XPEntry{StudentID: "stu-1", XP: 200, Activity: models.ActivityWeeklyChallenge}, duplicate)
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestLedgerRecordRejectsNegativeXP(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	ledger := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := ledger.Record(context.Background(), models.XPEntry{StudentID: "stu-1", XP: -5, Activity: models.ActivityGame})
	assert.ErrorIs(t, err, ErrNegativeXP)
}

func TestLedgerRecordFailedIncrementRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	ledger := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := ledger.Record(context.Background(), models.XPEntry{StudentID: "stu-1", XP: 50, Activity: models.ActivityGame})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment student xp")
}

func TestLedgerListRecent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	ledger := NewLedgerRepository(db)
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "student_id", "activity_type", "xp_earned", "reason", "earned_at"}).
		AddRow("t-2", "stu-1", "badge", 25, "badge:first_lesson", at).
		AddRow("t-1", "stu-1", "lesson", 100, nil, at.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("FROM xp_transactions")).
		WithArgs("stu-1", 10).
		WillReturnRows(rows)

	items, err := ledger.ListRecent(context.Background(), "stu-1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.ActivityBadge, items[0].ActivityType)
	assert.Nil(t, items[1].Reason)
}

func TestLedgerGetStudentNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	ledger := NewLedgerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := ledger.GetStudent(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
