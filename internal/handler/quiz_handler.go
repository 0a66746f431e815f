package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kidcode-rewards-api/internal/dto"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/pkg/response"
)

type quizService interface {
	SubmitQuizAnswer(ctx context.Context, req dto.QuizAnswerRequest, claims *models.JWTClaims) (*dto.QuizAnswerResult, error)
	SubmitQuiz(ctx context.Context, req dto.QuizSubmitRequest, claims *models.JWTClaims) (*dto.QuizSubmitResult, error)
}

// QuizHandler checks answers and scores quiz stages.
type QuizHandler struct {
	service quizService
}

// NewQuizHandler constructs the handler.
func NewQuizHandler(service quizService) *QuizHandler {
	return &QuizHandler{service: service}
}

// Answer godoc
// @Summary Check one quiz answer
// @Tags Quiz
// @Accept json
// @Produce json
// @Param payload body dto.QuizAnswerRequest true "Answer"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quiz/answer [post]
func (h *QuizHandler) Answer(c *gin.Context) {
	var req dto.QuizAnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.SubmitQuizAnswer(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, result, result.Warnings)
}

// Submit godoc
// @Summary Submit a whole quiz stage
// @Tags Quiz
// @Accept json
// @Produce json
// @Param payload body dto.QuizSubmitRequest true "Answers by question id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /quiz/submit [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	var req dto.QuizSubmitRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.SubmitQuiz(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, result, result.Warnings)
}
