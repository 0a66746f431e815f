package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

// ErrDuplicate is returned by a TxFunc when its unique row already exists; the
// surrounding transaction is rolled back and the event treated as already credited.
var ErrDuplicate = errors.New("duplicate event")

// ErrNegativeXP rejects ledger entries below zero.
var ErrNegativeXP = errors.New("xp must not be negative")

// dateLayout formats civil dates bound to DATE columns so the session time
// zone cannot shift the day.
const dateLayout = "2006-01-02"

// TxFunc runs inside a ledger transaction before the XP is appended.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

const upsertStudentXPQuery = `
INSERT INTO students (student_id, display_name, total_xp, weekly_xp, monthly_xp, last_activity, created_at)
VALUES ($1, $2, $3, $3, $3, $4, $4)
ON CONFLICT (student_id) DO UPDATE SET
	total_xp = students.total_xp + EXCLUDED.total_xp,
	weekly_xp = students.weekly_xp + EXCLUDED.weekly_xp,
	monthly_xp = students.monthly_xp + EXCLUDED.monthly_xp,
	display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), students.display_name),
	last_activity = EXCLUDED.last_activity`

const insertTransactionQuery = `
INSERT INTO xp_transactions (id, student_id, activity_type, xp_earned, reason, earned_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const ensureStudentQuery = `
INSERT INTO students (student_id, display_name, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (student_id) DO UPDATE SET
	display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), students.display_name)`

// appendXP applies the aggregate increment as a single atomic upsert, creating
// the student row on first write, then appends the transaction row.
func appendXP(ctx context.Context, ext sqlx.ExtContext, entry models.XPEntry) (*models.XPTransaction, error) {
	if entry.XP < 0 {
		return nil, ErrNegativeXP
	}
	if entry.EarnedAt.IsZero() {
		entry.EarnedAt = time.Now().UTC()
	}
	if _, err := ext.ExecContext(ctx, upsertStudentXPQuery, entry.StudentID, entry.DisplayName, entry.XP, entry.EarnedAt); err != nil {
		return nil, fmt.Errorf("increment student xp: %w", err)
	}

	txn := &models.XPTransaction{
		ID:           uuid.NewString(),
		StudentID:    entry.StudentID,
		ActivityType: entry.Activity,
		XPEarned:     entry.XP,
		EarnedAt:     entry.EarnedAt,
	}
	var reason sql.NullString
	if entry.Reason != "" {
		reason = sql.NullString{String: entry.Reason, Valid: true}
		txn.Reason = &entry.Reason
	}
	if _, err := ext.ExecContext(ctx, insertTransactionQuery, txn.ID, txn.StudentID, txn.ActivityType, txn.XPEarned, reason, txn.EarnedAt); err != nil {
		return nil, fmt.Errorf("insert xp transaction: %w", err)
	}
	return txn, nil
}

func ensureStudent(ctx context.Context, ext sqlx.ExtContext, studentID, displayName string, at time.Time) error {
	if _, err := ext.ExecContext(ctx, ensureStudentQuery, studentID, displayName, at); err != nil {
		return fmt.Errorf("ensure student: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LedgerRepository owns the XP transaction log and student aggregates.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs a ledger repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Record runs the guards and appends the XP entry in one transaction. When a
// guard reports ErrDuplicate nothing is written and ErrDuplicate is returned.
func (r *LedgerRepository) Record(ctx context.Context, entry models.XPEntry, guards ...TxFunc) (*models.XPTransaction, error) {
	var txn *models.XPTransaction
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, guard := range guards {
			if err := guard(ctx, tx); err != nil {
				return err
			}
		}
		var err error
		txn, err = appendXP(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ListRecent returns the newest transactions for a student.
func (r *LedgerRepository) ListRecent(ctx context.Context, studentID string, limit int) ([]models.XPTransaction, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
SELECT id, student_id, activity_type, xp_earned, reason, earned_at
FROM xp_transactions
WHERE student_id = $1
ORDER BY earned_at DESC, id
LIMIT $2`
	var items []models.XPTransaction
	if err := r.db.SelectContext(ctx, &items, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list recent xp: %w", err)
	}
	return items, nil
}

// GetStudent returns the aggregates for a student or sql.ErrNoRows.
func (r *LedgerRepository) GetStudent(ctx context.Context, studentID string) (*models.Student, error) {
	const query = `
SELECT student_id, display_name, total_xp, weekly_xp, monthly_xp, total_badges, last_activity, created_at
FROM students
WHERE student_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentID); err != nil {
		return nil, err
	}
	return &student, nil
}
