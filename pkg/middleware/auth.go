package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prohmpiriya/concert-booking/pkg/response"
)

const (
	// ContextKeyUserID is the gin context key holding the authenticated user
	ContextKeyUserID = "user_id"
	// UserIDHeader is trusted only when AllowUserIDHeader is set
	UserIDHeader = "X-User-ID"
)

var errInvalidBearer = errors.New("invalid bearer token")

// AuthConfig configures bearer token authentication
type AuthConfig struct {
	Secret string
	Issuer string
	// AllowUserIDHeader accepts X-User-ID without a token (development and load tests)
	AllowUserIDHeader bool
}

// Auth validates an HS256 bearer token and stores its user_id claim in the context
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if cfg.AllowUserIDHeader {
				if userID := c.GetHeader(UserIDHeader); userID != "" {
					c.Set(ContextKeyUserID, userID)
					c.Next()
					return
				}
			}
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header is required")
			return
		}

		userID, err := parseBearer(header, cfg)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

func parseBearer(header string, cfg AuthConfig) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errInvalidBearer
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", errInvalidBearer
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidBearer
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return "", errInvalidBearer
	}
	return userID, nil
}

// GetUserID returns the authenticated user id, or "" when unauthenticated
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
