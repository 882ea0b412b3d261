package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisig-backend/internal/config"
)

const testCaller = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func newAuth() *AuthMiddleware {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewAuthMiddleware(config.AuthConfig{JWTSecret: "test-secret"}, logger)
}

func protectedRouter(auth *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": c.GetString("caller_address")})
	})
	return r
}

func TestIssuedTokenPassesAuth(t *testing.T) {
	auth := newAuth()
	token, err := auth.IssueToken(testCaller)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter(auth).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testCaller)
}

func TestMissingTokenRejected(t *testing.T) {
	auth := newAuth()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	protectedRouter(auth).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenSignedWithWrongSecretRejected(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	other := NewAuthMiddleware(config.AuthConfig{JWTSecret: "different-secret"}, logger)
	token, err := other.IssueToken(testCaller)
	require.NoError(t, err)

	auth := newAuth()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter(auth).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	claims := Claims{
		Address: testCaller,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	auth := newAuth()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter(auth).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNonHMACTokenRejected(t *testing.T) {
	// alg=none tokens must never validate.
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Address: testCaller}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	auth := newAuth()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter(auth).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
