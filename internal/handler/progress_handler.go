package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kidcode-rewards-api/internal/dto"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/pkg/response"
)

type progressService interface {
	ProgressStatus(ctx context.Context, claims *models.JWTClaims) (*dto.ProgressStatus, error)
	UpdateProgress(ctx context.Context, req dto.UpdateProgressRequest, claims *models.JWTClaims) (*dto.UpdateProgressResult, error)
}

// ProgressHandler exposes the lesson/quiz/puzzle gate.
type ProgressHandler struct {
	service progressService
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service progressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// Status godoc
// @Summary Stage completion and unlock state
// @Tags Progress
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /progress [get]
func (h *ProgressHandler) Status(c *gin.Context) {
	status, err := h.service.ProgressStatus(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, status, nil)
}

// Update godoc
// @Summary Mark a stage complete
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body dto.UpdateProgressRequest true "Stage completion"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /progress [post]
func (h *ProgressHandler) Update(c *gin.Context) {
	var req dto.UpdateProgressRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.UpdateProgress(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	ok(c, result, nil)
}
