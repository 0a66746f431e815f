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

// ProgressRepository stores stage completions. Rows are only ever inserted or
// have signals OR-ed in, so completion never regresses.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs a progress repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// ListStages returns every completed stage for a student.
func (r *ProgressRepository) ListStages(ctx context.Context, studentID string) ([]models.ProgressStage, error) {
	const query = `
SELECT student_id, stage_type, stage_index, signals, completed_at
FROM progress_stages
WHERE student_id = $1
ORDER BY stage_type, stage_index`
	var stages []models.ProgressStage
	if err := r.db.SelectContext(ctx, &stages, query, studentID); err != nil {
		return nil, fmt.Errorf("list progress stages: %w", err)
	}
	return stages, nil
}

// MarkComplete records the stage when its prerequisite (if any) is complete.
// The gate check and the upsert are a single statement. It returns false when
// the stage is locked.
func (r *ProgressRepository) MarkComplete(ctx context.Context, stage models.ProgressStage) (bool, error) {
	prereq, _ := stage.StageType.Prerequisite()
	if stage.CompletedAt.IsZero() {
		stage.CompletedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO progress_stages (student_id, stage_type, stage_index, signals, completed_at)
SELECT $1::text, $2::text, $3::int, $4::int, $5::timestamptz
WHERE $6::text = '' OR EXISTS (
	SELECT 1 FROM progress_stages
	WHERE student_id = $1::text AND stage_type = $6::text AND stage_index = $3::int
)
ON CONFLICT (student_id, stage_type, stage_index) DO UPDATE
SET signals = progress_stages.signals | EXCLUDED.signals
RETURNING stage_type`
	var stored string
	err := r.db.QueryRowxContext(ctx, query,
		stage.StudentID,
		stage.StageType,
		stage.StageIndex,
		stage.Signals,
		stage.CompletedAt,
		prereq,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark %s %d complete: %w", stage.StageType, stage.StageIndex, err)
	}
	return true, nil
}
