package dto

import "github.com/noah-isme/kidcode-rewards-api/internal/models"

// QuizAnswerRequest checks a single answer.
type QuizAnswerRequest struct {
	QuestionID string `json:"questionId" validate:"required,max=64"`
	Answer     string `json:"answer" validate:"max=512"`
}

// QuizAnswerResult reports correctness and XP for one answer.
type QuizAnswerResult struct {
	IsCorrect       bool     `json:"isCorrect"`
	XPEarned        int      `json:"xpEarned"`
	AlreadyCredited bool     `json:"alreadyCredited,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// QuizSubmitRequest submits a whole quiz stage; Answers maps question id to answer.
type QuizSubmitRequest struct {
	QuizID  int               `json:"quizId" validate:"required,min=1,max=5"`
	Answers map[string]string `json:"answers" validate:"required"`
}

// QuizSubmitResult is the scored submission.
type QuizSubmitResult struct {
	Score           int            `json:"score"`
	Correct         int            `json:"correct"`
	Total           int            `json:"total"`
	XPEarned        int            `json:"xpEarned"`
	BaseXP          int            `json:"baseXP"`
	BonusXP         int            `json:"bonusXP"`
	NewBadges       []models.Badge `json:"newBadges"`
	ProgressUpdated bool           `json:"progressUpdated"`
	Warnings        []string       `json:"warnings,omitempty"`
}
