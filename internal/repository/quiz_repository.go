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

const quizQuestionColumns = `question_id, quiz_index, prompt, correct_answer, position`

// QuizRepository reads quiz reference data and records answer credits and attempts.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs a quiz repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// FindQuestion returns a question or sql.ErrNoRows.
func (r *QuizRepository) FindQuestion(ctx context.Context, questionID string) (*models.QuizQuestion, error) {
	var q models.QuizQuestion
	if err := r.db.GetContext(ctx, &q, `SELECT `+quizQuestionColumns+` FROM quiz_questions WHERE question_id = $1`, questionID); err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuestions returns the questions of one quiz stage in display order.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizIndex int) ([]models.QuizQuestion, error) {
	var questions []models.QuizQuestion
	query := `SELECT ` + quizQuestionColumns + ` FROM quiz_questions WHERE quiz_index = $1 ORDER BY position, question_id`
	if err := r.db.SelectContext(ctx, &questions, query, quizIndex); err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	return questions, nil
}

// CreditAnswerGuard claims the one-time credit for a correctly answered
// question; an existing credit yields ErrDuplicate.
func (r *QuizRepository) CreditAnswerGuard(studentID, questionID string) TxFunc {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		const query = `
INSERT INTO quiz_answer_credits (student_id, question_id)
VALUES ($1, $2)
ON CONFLICT (student_id, question_id) DO NOTHING
RETURNING question_id`
		var inserted string
		err := tx.QueryRowxContext(ctx, query, studentID, questionID).Scan(&inserted)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("credit quiz answer: %w", err)
		}
		return nil
	}
}

// AttemptWriter stores a scored submission in the ledger transaction.
func (r *QuizRepository) AttemptWriter(attempt models.QuizAttempt) TxFunc {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		if attempt.ID == "" {
			attempt.ID = uuid.NewString()
		}
		const query = `
INSERT INTO quiz_attempts (id, student_id, quiz_index, score, correct, total, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, query,
			attempt.ID,
			attempt.StudentID,
			attempt.QuizIndex,
			attempt.Score,
			attempt.Correct,
			attempt.Total,
			attempt.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert quiz attempt: %w", err)
		}
		return nil
	}
}
