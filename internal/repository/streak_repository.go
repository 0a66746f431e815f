package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

// StreakAdvancer computes the next streak state and the XP it earns.
type StreakAdvancer func(prev models.DailyStreak) (models.DailyStreak, int)

const streakColumns = `student_id, current_streak, longest_streak, last_login_date, total_login_days`

// StreakRepository persists daily login streaks.
type StreakRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStreakRepository constructs a streak repository.
func NewStreakRepository(db *sqlx.DB) *StreakRepository {
	return &StreakRepository{db: db, now: time.Now}
}

// Get returns the student's streak row, or a zero streak when none exists.
func (r *StreakRepository) Get(ctx context.Context, studentID string) (*models.DailyStreak, error) {
	var streak models.DailyStreak
	err := r.db.GetContext(ctx, &streak, `SELECT `+streakColumns+` FROM daily_streaks WHERE student_id = $1`, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.DailyStreak{StudentID: studentID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily streak: %w", err)
	}
	return &streak, nil
}

// RecordLogin credits today's login at most once. The daily_logins primary key
// is the idempotency signal; the streak row is locked while advance runs so
// concurrent logins for the same student serialise.
func (r *StreakRepository) RecordLogin(ctx context.Context, studentID, displayName string, today time.Time, advance StreakAdvancer) (*models.LoginOutcome, error) {
	day := today.Format(dateLayout)
	var outcome models.LoginOutcome
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := r.now().UTC()
		if err := ensureStudent(ctx, tx, studentID, displayName, now); err != nil {
			return err
		}

		var inserted string
		err := tx.QueryRowxContext(ctx, `
INSERT INTO daily_logins (student_id, login_date)
VALUES ($1, $2)
ON CONFLICT (student_id, login_date) DO NOTHING
RETURNING student_id`, studentID, day).Scan(&inserted)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("insert daily login: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO daily_streaks (student_id) VALUES ($1) ON CONFLICT (student_id) DO NOTHING`, studentID); err != nil {
			return fmt.Errorf("ensure daily streak: %w", err)
		}

		var prev models.DailyStreak
		if err := tx.GetContext(ctx, &prev, `SELECT `+streakColumns+` FROM daily_streaks WHERE student_id = $1 FOR UPDATE`, studentID); err != nil {
			return fmt.Errorf("lock daily streak: %w", err)
		}

		next, xp := advance(prev)
		if _, err := tx.ExecContext(ctx, `
UPDATE daily_streaks
SET current_streak = $2, longest_streak = $3, last_login_date = $4, total_login_days = $5
WHERE student_id = $1`, studentID, next.CurrentStreak, next.LongestStreak, day, next.TotalLoginDays); err != nil {
			return fmt.Errorf("update daily streak: %w", err)
		}

		if xp > 0 {
			if _, err := appendXP(ctx, tx, models.XPEntry{
				StudentID: studentID,
				XP:        xp,
				Activity:  models.ActivityDailyLogin,
				Reason:    "daily_login:" + day,
				EarnedAt:  now,
			}); err != nil {
				return err
			}
		}
		outcome = models.LoginOutcome{Streak: next, XPEarned: xp}
		return nil
	})
	if errors.Is(err, ErrDuplicate) {
		current, getErr := r.Get(ctx, studentID)
		if getErr != nil {
			return nil, getErr
		}
		return &models.LoginOutcome{Streak: *current, AlreadyCredited: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}
