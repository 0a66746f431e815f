package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kidcode-rewards-api/internal/dto"
	"github.com/noah-isme/kidcode-rewards-api/internal/middleware"
	"github.com/noah-isme/kidcode-rewards-api/internal/service"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
	"github.com/noah-isme/kidcode-rewards-api/pkg/response"
)

type leaderboardService interface {
	Get(ctx context.Context, boardType string) (*dto.LeaderboardResponse, bool, error)
	MyRank(ctx context.Context, boardType, studentID string) (*dto.MyRankResponse, error)
	Export(ctx context.Context, boardType, format string) (*service.LeaderboardExport, error)
}

// LeaderboardHandler serves rankings.
type LeaderboardHandler struct {
	service leaderboardService
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(service leaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

// Get godoc
// @Summary Ranked leaderboard
// @Tags Leaderboard
// @Produce json
// @Param type query string false "all_time | weekly_xp | streak | monthly_badges"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leaderboard [get]
func (h *LeaderboardHandler) Get(c *gin.Context) {
	board, hit, err := h.service.Get(c.Request.Context(), c.Query("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	ok(c, board, nil)
}

// MyRank godoc
// @Summary Caller's leaderboard position
// @Tags Leaderboard
// @Produce json
// @Param type query string false "all_time | weekly_xp | streak | monthly_badges"
// @Success 200 {object} response.Envelope
// @Router /leaderboard/me [get]
func (h *LeaderboardHandler) MyRank(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rank, err := h.service.MyRank(c.Request.Context(), c.Query("type"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, rank, nil)
}

// Export godoc
// @Summary Download a leaderboard
// @Tags Leaderboard
// @Produce text/csv
// @Produce application/pdf
// @Param type query string false "all_time | weekly_xp | streak | monthly_badges"
// @Param format query string false "csv | pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /leaderboard/export [get]
func (h *LeaderboardHandler) Export(c *gin.Context) {
	out, err := h.service.Export(c.Request.Context(), c.Query("type"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Payload)
}
