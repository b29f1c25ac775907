package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/coursetrack-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
)

// TokenClaims carries the tenant scope. Subject is the user id.
type TokenClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), secret: []byte(secret)}
}

// IssueToken signs an HS256 token for scope.
func IssueToken(secret string, scope ctxutil.Scope, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		ClientID: scope.ClientID.String(),
		Role:     scope.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   scope.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ScopeFromToken validates tokenString and returns the scope it carries.
func (am *AuthMiddleware) ScopeFromToken(tokenString string) (ctxutil.Scope, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &TokenClaims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return am.secret, nil
	})
	if err != nil {
		return ctxutil.Scope{}, fmt.Errorf("parse token: %w", err)
	}
	if !tok.Valid {
		return ctxutil.Scope{}, errors.New("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctxutil.Scope{}, fmt.Errorf("invalid user id in token: %w", err)
	}
	clientID, err := uuid.Parse(claims.ClientID)
	if err != nil {
		return ctxutil.Scope{}, fmt.Errorf("invalid client id in token: %w", err)
	}
	scope := ctxutil.Scope{ClientID: clientID, UserID: userID, Role: strings.ToLower(strings.TrimSpace(claims.Role))}
	return scope, scope.Validate()
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		scope, err := am.ScopeFromToken(tokenString)
		if err != nil {
			am.log.Debug("Rejected token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": err.Error(), "code": "unauthorized"},
			})
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := ctxutil.GetScope(c.Request.Context())
		if !ok || !scope.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"message": "admin role required", "code": "forbidden"},
			})
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
