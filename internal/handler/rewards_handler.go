package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kidcode-rewards-api/internal/dto"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/pkg/response"
)

type rewardsService interface {
	CompleteLesson(ctx context.Context, req dto.CompleteLessonRequest, claims *models.JWTClaims) (*dto.RewardResult, error)
	CompleteGame(ctx context.Context, req dto.CompleteGameRequest, claims *models.JWTClaims) (*dto.RewardResult, error)
	CompleteWeeklyChallenge(ctx context.Context, req dto.WeeklyChallengeRequest, claims *models.JWTClaims) (*dto.RewardResult, error)
	RecordDailyLogin(ctx context.Context, claims *models.JWTClaims) (*dto.DailyLoginResult, error)
	ProgressSummary(ctx context.Context, claims *models.JWTClaims) (*dto.ProgressSummary, error)
	Badges(ctx context.Context, claims *models.JWTClaims) ([]dto.BadgeStatus, error)
}

// RewardsHandler exposes activity completion and the rewards dashboard.
type RewardsHandler struct {
	service rewardsService
}

// NewRewardsHandler constructs the handler.
func NewRewardsHandler(service rewardsService) *RewardsHandler {
	return &RewardsHandler{service: service}
}

// CompleteLesson godoc
// @Summary Credit a completed lesson
// @Tags Rewards
// @Accept json
// @Produce json
// @Param payload body dto.CompleteLessonRequest true "Lesson completion"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rewards/lesson-complete [post]
func (h *RewardsHandler) CompleteLesson(c *gin.Context) {
	var req dto.CompleteLessonRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.CompleteLesson(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, result, result.Warnings)
}

// CompleteGame godoc
// @Summary Credit a completed mini-game
// @Tags Rewards
// @Accept json
// @Produce json
// @Param payload body dto.CompleteGameRequest true "Game completion"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rewards/game-complete [post]
func (h *RewardsHandler) CompleteGame(c *gin.Context) {
	var req dto.CompleteGameRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.CompleteGame(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, result, result.Warnings)
}

// CompleteWeeklyChallenge godoc
// @Summary Claim a weekly challenge
// @Tags Rewards
// @Accept json
// @Produce json
// @Param payload body dto.WeeklyChallengeRequest true "Challenge claim"
// @Success 200 {object} response.Envelope
// @Router /rewards/weekly-challenge [post]
func (h *RewardsHandler) CompleteWeeklyChallenge(c *gin.Context) {
	var req dto.WeeklyChallengeRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.CompleteWeeklyChallenge(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, result, result.Warnings)
}

// DailyLogin godoc
// @Summary Record today's login
// @Tags Rewards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rewards/daily-login [post]
func (h *RewardsHandler) DailyLogin(c *gin.Context) {
	result, err := h.service.RecordDailyLogin(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, result, result.Warnings)
}

// Progress godoc
// @Summary Rewards dashboard
// @Tags Rewards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rewards/progress [get]
func (h *RewardsHandler) Progress(c *gin.Context) {
	summary, err := h.service.ProgressSummary(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, summary, nil)
}

// Badges godoc
// @Summary Badge catalog with earned flags
// @Tags Rewards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /badges [get]
func (h *RewardsHandler) Badges(c *gin.Context) {
	badges, err := h.service.Badges(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, badges, nil)
}
