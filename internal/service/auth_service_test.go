package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-scheduler/internal/models"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, expires time.Time) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: "u-1",
		Role:   models.RolePlanner,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService("secret")

	claims, err := svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RolePlanner, claims.Role)

	_, err = svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("other"), time.Now().Add(time.Hour)))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), time.Now().Add(-time.Minute)))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken(signToken(t, jwt.SigningMethodHS512, []byte("secret"), time.Now().Add(time.Hour)))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenWithoutSecret(t *testing.T) {
	_, err := NewAuthService("").ValidateToken("anything")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
