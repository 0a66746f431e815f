package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/kidcode-rewards-api/internal/dto"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
)

// quizScore is the rounded percentage of correct answers. Only a fully
// correct submission scores 100; anything short of that caps at 99.
func quizScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	if correct >= total {
		return 100
	}
	score := int(math.Round(float64(correct) * 100 / float64(total)))
	if score > 99 {
		score = 99
	}
	return score
}

func answersMatch(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}

// SubmitQuizAnswer checks one answer. The first correct answer to a question
// earns the per-answer XP; later correct answers report AlreadyCredited.
func (s *RewardsService) SubmitQuizAnswer(ctx context.Context, req dto.QuizAnswerRequest, claims *models.JWTClaims) (*dto.QuizAnswerResult, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	question, err := s.quizzes.FindQuestion(ctx, req.QuestionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load question")
	}

	result := &dto.QuizAnswerResult{IsCorrect: answersMatch(req.Answer, question.CorrectAnswer)}
	if !result.IsCorrect {
		return result, nil
	}

	xp := s.calc.QuizAnswerXP()
	credited, err := s.record(ctx, models.XPEntry{
		StudentID:   claims.UserID,
		DisplayName: claims.FullName,
		XP:          xp,
		Activity:    models.ActivityQuiz,
		Reason:      models.QuizAnswerReasonPrefix + question.QuestionID,
	}, s.quizzes.CreditAnswerGuard(claims.UserID, question.QuestionID))
	if err != nil {
		return nil, err
	}
	if !credited {
		result.AlreadyCredited = true
		return result, nil
	}
	result.XPEarned = xp
	result.Warnings = s.refreshLeaderboard(ctx, claims.UserID, result.Warnings)
	return result, nil
}

// SubmitQuiz scores a whole quiz stage from per-question correctness, credits
// the quiz XP, evaluates quiz badges and marks the quiz stage complete. The
// quiz must be unlocked by its lesson; no minimum score is needed to complete it.
func (s *RewardsService) SubmitQuiz(ctx context.Context, req dto.QuizSubmitRequest, claims *models.JWTClaims) (*dto.QuizSubmitResult, error) {
	if err := requireActor(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	state, err := s.gate.State(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load progress")
	}
	if !state.Attemptable(models.StageQuiz, req.QuizID) {
		return nil, appErrors.Clone(appErrors.ErrStageLocked,
			fmt.Sprintf("quiz %d is locked until lesson %d is complete", req.QuizID, req.QuizID))
	}

	questions, err := s.quizzes.ListQuestions(ctx, req.QuizID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load quiz")
	}
	if len(questions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
	}

	correct := 0
	for _, q := range questions {
		if answer, ok := req.Answers[q.QuestionID]; ok && answersMatch(answer, q.CorrectAnswer) {
			correct++
		}
	}
	total := len(questions)
	score := quizScore(correct, total)

	now := s.now().UTC()
	award := s.calc.Calculate(models.ActivityQuiz, models.Performance{Score: score})
	if _, err := s.record(ctx, models.XPEntry{
		StudentID:   claims.UserID,
		DisplayName: claims.FullName,
		XP:          award.Total,
		Activity:    models.ActivityQuiz,
		Reason:      fmt.Sprintf("quiz:%d", req.QuizID),
		EarnedAt:    now,
	}, s.quizzes.AttemptWriter(models.QuizAttempt{
		StudentID: claims.UserID,
		QuizIndex: req.QuizID,
		Score:     score,
		Correct:   correct,
		Total:     total,
		CreatedAt: now,
	})); err != nil {
		return nil, err
	}

	result := &dto.QuizSubmitResult{
		Score:    score,
		Correct:  correct,
		Total:    total,
		XPEarned: award.Total,
		BaseXP:   award.BaseXP,
		BonusXP:  award.BonusXP,
	}
	result.NewBadges, result.Warnings = s.evaluateBadges(ctx, claims.UserID, models.ActivityQuiz, models.ActivityFacts{Score: score}, result.Warnings)
	if err := s.gate.Complete(ctx, claims.UserID, models.StageQuiz, req.QuizID, 0); err != nil {
		result.Warnings = s.enrichmentFailed(result.Warnings, stepProgress, claims.UserID, err)
	} else {
		result.ProgressUpdated = true
	}
	result.Warnings = s.refreshLeaderboard(ctx, claims.UserID, result.Warnings)
	return result, nil
}
