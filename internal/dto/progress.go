package dto

import "github.com/noah-isme/kidcode-rewards-api/internal/models"

// UpdateProgressRequest marks a stage complete. Signals only apply to lessons
// and default to step_completed.
type UpdateProgressRequest struct {
	Type    string   `json:"type" validate:"required,oneof=lesson quiz puzzle"`
	ID      int      `json:"id" validate:"required,min=1,max=5"`
	Signals []string `json:"signals" validate:"omitempty,dive,oneof=step_completed code_run code_modified output_observed challenge_completed"`
}

// UnlockedView lists which gated stages are attemptable.
type UnlockedView struct {
	Quizzes map[int]bool `json:"quizzes"`
	Puzzles map[int]bool `json:"puzzles"`
}

// ProgressStatus is the completion state plus the derived unlock view.
type ProgressStatus struct {
	models.ProgressState
	Unlocked UnlockedView `json:"unlocked"`
}

// UpdateProgressResult acknowledges a stage completion.
type UpdateProgressResult struct {
	Success  bool           `json:"success"`
	Progress ProgressStatus `json:"progress"`
}
