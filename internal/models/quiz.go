package models

import "time"

// QuizQuestion is reference data for a quiz stage.
type QuizQuestion struct {
	QuestionID    string `db:"question_id" json:"questionId"`
	QuizIndex     int    `db:"quiz_index" json:"quizIndex"`
	Prompt        string `db:"prompt" json:"prompt"`
	CorrectAnswer string `db:"correct_answer" json:"-"`
	Position      int    `db:"position" json:"position"`
}

// QuizAttempt stores a scored quiz submission.
type QuizAttempt struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	QuizIndex int       `db:"quiz_index"`
	Score     int       `db:"score"`
	Correct   int       `db:"correct"`
	Total     int       `db:"total"`
	CreatedAt time.Time `db:"created_at"`
}
