package models

import "time"

// LessonCompletion logs one finished lesson.
type LessonCompletion struct {
	ID                string    `db:"id"`
	StudentID         string    `db:"student_id"`
	LessonID          string    `db:"lesson_id"`
	IsFirstAttempt    bool      `db:"is_first_attempt"`
	IsPerfect         bool      `db:"is_perfect"`
	CompletionSeconds int       `db:"completion_seconds"`
	CreatedAt         time.Time `db:"created_at"`
}

// GameSession logs one finished mini-game.
type GameSession struct {
	ID                string    `db:"id"`
	StudentID         string    `db:"student_id"`
	LessonID          string    `db:"lesson_id"`
	GameType          string    `db:"game_type"`
	Score             int       `db:"score"`
	IsHighScore       bool      `db:"is_high_score"`
	Attempts          int       `db:"attempts"`
	CompletionSeconds int       `db:"completion_seconds"`
	CreatedAt         time.Time `db:"created_at"`
}

// ChallengeClaim marks a weekly challenge as credited for one ISO week.
type ChallengeClaim struct {
	StudentID   string
	ChallengeID string
	WeekStart   time.Time
}
