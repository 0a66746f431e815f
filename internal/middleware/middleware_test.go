package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/internal/service"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
	"github.com/noah-isme/kidcode-rewards-api/pkg/logger"
	"github.com/noah-isme/kidcode-rewards-api/pkg/middleware/requestid"
)

type stubVerifier struct {
	claims *models.JWTClaims
	token  string
}

func (s stubVerifier) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != s.token {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) appErrors.Error {
	t.Helper()
	var body struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func protectedRouter(verifier TokenVerifier, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(verifier), RequireRoles(roles...))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(logger.UserIDKey)})
	})
	return router
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	router := protectedRouter(stubVerifier{token: "good"}, models.RoleStudent)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer forged")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decodeError(t, rec).Message)
}

func TestJWTStoresClaimsForDownstream(t *testing.T) {
	claims := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}
	router := protectedRouter(stubVerifier{token: "good", claims: claims}, models.RoleStudent)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer good")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"stu-1"}`, rec.Body.String())
}

func TestRequireRolesForbidsOtherRoles(t *testing.T) {
	claims := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}
	router := protectedRouter(stubVerifier{token: "good", claims: claims}, models.RoleTeacher, models.RoleAdmin)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RequireRoles(models.RoleStudent)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResponseMetaCarriesRequestIDAndCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestid.Middleware(), WithResponseMeta())
	router.GET("/board", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/board", nil)
	req.Header.Set(requestid.HeaderKey, "req-42")
	router.ServeHTTP(rec, req)
	assert.JSONEq(t, `{"request_id":"req-42","cache_hit":true}`, rec.Body.String())
}

func TestMetricsLabelsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/leaderboard", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/leaderboard", "/leaderboard", "/nope/1", "/nope/2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `path="/leaderboard"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.False(t, strings.Contains(body, "/nope/1"))
}
