package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/pkg/config"
	appErrors "github.com/noah-isme/kidcode-rewards-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() models.JWTClaims {
	return models.JWTClaims{
		UserID:   "stu-1",
		Role:     models.RoleStudent,
		FullName: "Ayu",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kidcode-auth",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestValidateTokenAcceptsHS256(t *testing.T) {
	v := NewVerifier(config.JWTConfig{Secret: "s3cret", Issuer: "kidcode-auth"})
	token := signToken(t, jwt.SigningMethodHS256, []byte("s3cret"), validClaims())

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	v := NewVerifier(config.JWTConfig{Secret: "s3cret"})
	token := signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims())

	_, err := v.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenRejectsExpiredAndForeignIssuer(t *testing.T) {
	v := NewVerifier(config.JWTConfig{Secret: "s3cret", Issuer: "kidcode-auth"})

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err := v.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("s3cret"), expired))
	assert.Error(t, err)

	foreign := validClaims()
	foreign.Issuer = "someone-else"
	_, err = v.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("s3cret"), foreign))
	assert.Error(t, err)
}

func TestValidateTokenRequiresUserID(t *testing.T) {
	v := NewVerifier(config.JWTConfig{Secret: "s3cret"})
	claims := validClaims()
	claims.UserID = ""

	_, err := v.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("s3cret"), claims))
	assert.Error(t, err)
}
