package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kidcode-rewards-api/internal/middleware"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
	"github.com/noah-isme/kidcode-rewards-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// bindJSON decodes the body into dest, answering 400 on malformed JSON.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// ok writes a 200 envelope with the request metadata, flagging partial
// success when enrichment steps failed.
func ok(c *gin.Context, data interface{}, warnings []string) {
	meta := middleware.ExtractMeta(c)
	if len(warnings) > 0 {
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["partial"] = true
	}
	response.JSON(c, http.StatusOK, data, meta)
}
