package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
)

// ActivityRepository logs lesson, game and weekly challenge events alongside
// the XP they earn.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs an activity repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// LessonWriter stores the completion in the ledger transaction.
func (r *ActivityRepository) LessonWriter(completion models.LessonCompletion) TxFunc {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		if completion.ID == "" {
			completion.ID = uuid.NewString()
		}
		const query = `
INSERT INTO lesson_completions (id, student_id, lesson_id, is_first_attempt, is_perfect, completion_seconds, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, query,
			completion.ID,
			completion.StudentID,
			completion.LessonID,
			completion.IsFirstAttempt,
			completion.IsPerfect,
			completion.CompletionSeconds,
			completion.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert lesson completion: %w", err)
		}
		return nil
	}
}

// GameWriter stores the game session in the ledger transaction.
func (r *ActivityRepository) GameWriter(session models.GameSession) TxFunc {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		const query = `
INSERT INTO game_sessions (id, student_id, lesson_id, game_type, score, is_high_score, attempts, completion_seconds, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.ExecContext(ctx, query,
			session.ID,
			session.StudentID,
			session.LessonID,
			session.GameType,
			session.Score,
			session.IsHighScore,
			session.Attempts,
			session.CompletionSeconds,
			session.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert game session: %w", err)
		}
		return nil
	}
}

// ChallengeClaimGuard inserts the weekly claim row; an existing claim yields ErrDuplicate.
func (r *ActivityRepository) ChallengeClaimGuard(claim models.ChallengeClaim) TxFunc {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		const query = `
INSERT INTO weekly_challenge_claims (student_id, challenge_id, week_start)
VALUES ($1, $2, $3)
ON CONFLICT (student_id, challenge_id, week_start) DO NOTHING
RETURNING student_id`
		var inserted string
		err := tx.QueryRowxContext(ctx, query, claim.StudentID, claim.ChallengeID, claim.WeekStart.Format(dateLayout)).Scan(&inserted)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("claim weekly challenge: %w", err)
		}
		return nil
	}
}
