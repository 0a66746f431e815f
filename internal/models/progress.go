package models

import (
	"fmt"
	"time"
)

// StageType is one of the three progression chains.
type StageType string

const (
	StageLesson StageType = "lesson"
	StageQuiz   StageType = "quiz"
	StagePuzzle StageType = "puzzle"
)

// MaxStageIndex is the number of stages per chain.
const MaxStageIndex = 5

// Valid reports whether s names a known chain.
func (s StageType) Valid() bool {
	return s == StageLesson || s == StageQuiz || s == StagePuzzle
}

// Prerequisite returns the stage that must be complete before s is attemptable.
func (s StageType) Prerequisite() (StageType, bool) {
	switch s {
	case StageQuiz:
		return StageLesson, true
	case StagePuzzle:
		return StageQuiz, true
	}
	return "", false
}

// CompletionSignal is one observation that a lesson was worked through.
type CompletionSignal uint8

const (
	SignalStepCompleted CompletionSignal = 1 << iota
	SignalCodeRun
	SignalCodeModified
	SignalOutputObserved
	SignalChallengeCompleted
)

var signalNames = map[string]CompletionSignal{
	"step_completed":      SignalStepCompleted,
	"code_run":            SignalCodeRun,
	"code_modified":       SignalCodeModified,
	"output_observed":     SignalOutputObserved,
	"challenge_completed": SignalChallengeCompleted,
}

// ParseSignal maps a wire name to its signal.
func ParseSignal(name string) (CompletionSignal, error) {
	sig, ok := signalNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown completion signal %q", name)
	}
	return sig, nil
}

// SignalSet is a bitmask of completion signals.
type SignalSet uint8

// With returns the set with sig added.
func (s SignalSet) With(sig CompletionSignal) SignalSet { return s | SignalSet(sig) }

// Has reports whether sig is in the set.
func (s SignalSet) Has(sig CompletionSignal) bool { return s&SignalSet(sig) != 0 }

// Any reports whether at least one signal is set; a single signal completes a lesson.
func (s SignalSet) Any() bool { return s != 0 }

// ProgressStage is a stored completion.
type ProgressStage struct {
	StudentID   string    `db:"student_id"`
	StageType   StageType `db:"stage_type"`
	StageIndex  int       `db:"stage_index"`
	Signals     SignalSet `db:"signals"`
	CompletedAt time.Time `db:"completed_at"`
}

// ProgressState is the completion view of every chain.
type ProgressState struct {
	Lessons map[int]bool `json:"lessons"`
	Quizzes map[int]bool `json:"quizzes"`
	Puzzles map[int]bool `json:"puzzles"`
}

// NewProgressState builds a state with every stage false, then marks the
// given completions.
func NewProgressState(stages []ProgressStage) ProgressState {
	state := ProgressState{
		Lessons: make(map[int]bool, MaxStageIndex),
		Quizzes: make(map[int]bool, MaxStageIndex),
		Puzzles: make(map[int]bool, MaxStageIndex),
	}
	for i := 1; i <= MaxStageIndex; i++ {
		state.Lessons[i] = false
		state.Quizzes[i] = false
		state.Puzzles[i] = false
	}
	for _, st := range stages {
		if st.StageIndex < 1 || st.StageIndex > MaxStageIndex {
			continue
		}
		if m := state.chain(st.StageType); m != nil {
			m[st.StageIndex] = true
		}
	}
	return state
}

func (p ProgressState) chain(stage StageType) map[int]bool {
	switch stage {
	case StageLesson:
		return p.Lessons
	case StageQuiz:
		return p.Quizzes
	case StagePuzzle:
		return p.Puzzles
	}
	return nil
}

// Completed reports whether stage[index] is done.
func (p ProgressState) Completed(stage StageType, index int) bool {
	m := p.chain(stage)
	return m != nil && m[index]
}

// Attemptable reports whether stage[index] is unlocked.
func (p ProgressState) Attemptable(stage StageType, index int) bool {
	if index < 1 || index > MaxStageIndex || !stage.Valid() {
		return false
	}
	prereq, gated := stage.Prerequisite()
	if !gated {
		return true
	}
	return p.Completed(prereq, index)
}
