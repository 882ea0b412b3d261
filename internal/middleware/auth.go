package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/config"
)

// Claims is the JWT payload carried by API callers. Address identifies
// the caller for request scoping; on-chain authorization is enforced
// by the wallet contracts regardless.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens on protected routes.
type AuthMiddleware struct {
	secret []byte
	ttl    time.Duration
	logger *logrus.Logger
}

func NewAuthMiddleware(cfg config.AuthConfig, logger *logrus.Logger) *AuthMiddleware {
	ttl := 24 * time.Hour
	if cfg.TokenTTL > 0 {
		ttl = time.Duration(cfg.TokenTTL) * time.Hour
	}
	return &AuthMiddleware{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		logger: logger,
	}
}

// IssueToken mints a token for an authenticated address.
func (a *AuthMiddleware) IssueToken(address string) (string, error) {
	claims := Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "multisig-backend",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// RequireAuth rejects requests without a valid bearer token and
// stores the caller address in the gin context.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("request rejected, missing bearer token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "authentication required",
			})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			a.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("request rejected, invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("caller_address", claims.Address)
		c.Next()
	}
}
