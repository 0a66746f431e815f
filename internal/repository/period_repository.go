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

var errPeriodAlreadyReset = errors.New("period already reset")

// PeriodRepository restarts the rolling XP aggregates once per period.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs a period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// periodLockQueries take row locks on every student whose aggregate is about
// to be recomputed. Ledger writes block on the lock until the reset commits,
// and the recompute statement starts after the lock so its snapshot includes
// every increment committed before it.
var periodLockQueries = map[models.PeriodKind]string{
	models.PeriodWeekly:  `SELECT student_id FROM students WHERE weekly_xp <> 0 ORDER BY student_id FOR UPDATE`,
	models.PeriodMonthly: `SELECT student_id FROM students WHERE monthly_xp <> 0 ORDER BY student_id FOR UPDATE`,
}

// The rolling aggregate is recomputed from the ledger so XP earned between the
// period boundary and a late reset is kept.
var periodResetQueries = map[models.PeriodKind]string{
	models.PeriodWeekly: `
UPDATE students s
SET weekly_xp = COALESCE((
	SELECT SUM(t.xp_earned) FROM xp_transactions t
	WHERE t.student_id = s.student_id AND t.earned_at >= $1
), 0)
WHERE s.weekly_xp <> 0`,
	models.PeriodMonthly: `
UPDATE students s
SET monthly_xp = COALESCE((
	SELECT SUM(t.xp_earned) FROM xp_transactions t
	WHERE t.student_id = s.student_id AND t.earned_at >= $1
), 0)
WHERE s.monthly_xp <> 0`,
}

// Reset restarts the aggregate for kind at periodStart unless that period was
// already handled. It returns the number of students touched and whether the
// reset ran.
func (r *PeriodRepository) Reset(ctx context.Context, kind models.PeriodKind, periodStart time.Time) (int64, bool, error) {
	update, ok := periodResetQueries[kind]
	if !ok {
		return 0, false, fmt.Errorf("unknown period kind %q", kind)
	}
	var affected int64
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var inserted string
		err := tx.QueryRowxContext(ctx, `
INSERT INTO period_resets (period_kind, period_start)
VALUES ($1, $2)
ON CONFLICT (period_kind, period_start) DO NOTHING
RETURNING period_kind`, kind, periodStart.Format(dateLayout)).Scan(&inserted)
		if errors.Is(err, sql.ErrNoRows) {
			return errPeriodAlreadyReset
		}
		if err != nil {
			return fmt.Errorf("record %s reset: %w", kind, err)
		}
		if _, err := tx.ExecContext(ctx, periodLockQueries[kind]); err != nil {
			return fmt.Errorf("lock students for %s reset: %w", kind, err)
		}
		res, err := tx.ExecContext(ctx, update, periodStart)
		if err != nil {
			return fmt.Errorf("reset %s xp: %w", kind, err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if errors.Is(err, errPeriodAlreadyReset) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return affected, true, nil
}
