package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/noah-isme/kidcode-rewards-api/internal/dto"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
)

type progressStore interface {
	ListStages(ctx context.Context, studentID string) ([]models.ProgressStage, error)
	MarkComplete(ctx context.Context, stage models.ProgressStage) (bool, error)
}

var lessonIDPattern = regexp.MustCompile(`^(?i:lesson[-_]?)?([1-9][0-9]*)$`)

// ProgressGate owns the lesson → quiz → puzzle unlock chains.
type ProgressGate struct {
	store progressStore
	now   func() time.Time
}

// NewProgressGate constructs a gate over store.
func NewProgressGate(store progressStore) *ProgressGate {
	return &ProgressGate{store: store, now: time.Now}
}

// State loads the completion view of every chain.
func (g *ProgressGate) State(ctx context.Context, studentID string) (models.ProgressState, error) {
	stages, err := g.store.ListStages(ctx, studentID)
	if err != nil {
		return models.ProgressState{}, err
	}
	return models.NewProgressState(stages), nil
}

// StatusView derives the unlock view from a state.
func StatusView(state models.ProgressState) dto.ProgressStatus {
	unlocked := dto.UnlockedView{
		Quizzes: make(map[int]bool, models.MaxStageIndex),
		Puzzles: make(map[int]bool, models.MaxStageIndex),
	}
	for i := 1; i <= models.MaxStageIndex; i++ {
		unlocked.Quizzes[i] = state.Attemptable(models.StageQuiz, i)
		unlocked.Puzzles[i] = state.Attemptable(models.StagePuzzle, i)
	}
	return dto.ProgressStatus{ProgressState: state, Unlocked: unlocked}
}

// Complete marks stage[index] done. Lessons need at least one signal; quizzes
// and puzzles are rejected with STAGE_LOCKED until their prerequisite is done.
// Completing an already complete stage is a no-op.
func (g *ProgressGate) Complete(ctx context.Context, studentID string, stage models.StageType, index int, signals models.SignalSet) error {
	if !stage.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "type must be one of [lesson quiz puzzle]")
	}
	if index < 1 || index > models.MaxStageIndex {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("id must be between 1 and %d", models.MaxStageIndex))
	}
	if stage == models.StageLesson && !signals.Any() {
		return appErrors.Clone(appErrors.ErrValidation, "lesson completion requires at least one signal")
	}
	if stage != models.StageLesson {
		signals = 0
	}

	ok, err := g.store.MarkComplete(ctx, models.ProgressStage{
		StudentID:   studentID,
		StageType:   stage,
		StageIndex:  index,
		Signals:     signals,
		CompletedAt: g.now().UTC(),
	})
	if err != nil {
		return appErrors.Internal(err, "failed to update progress")
	}
	if !ok {
		prereq, _ := stage.Prerequisite()
		return appErrors.Clone(appErrors.ErrStageLocked, fmt.Sprintf("%s %d is locked until %s %d is complete", stage, index, prereq, index))
	}
	return nil
}

// LessonIndex maps a lesson id such as "3", "lesson-3" or "lesson_3" to its
// stage index. The second return is false for ids outside the 1..5 chain.
func LessonIndex(lessonID string) (int, bool) {
	m := lessonIDPattern.FindStringSubmatch(lessonID)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > models.MaxStageIndex {
		return 0, false
	}
	return n, true
}
