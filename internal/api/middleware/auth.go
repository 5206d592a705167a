package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"tunnelout/internal/api/constants"
	"tunnelout/internal/api/dto/common"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware gates the API behind the admin API key. The tunnel is a
// single-operator resource: every authenticated request acts as the
// configured admin identity.
type AuthMiddleware struct {
	keyHash [32]byte
	userID  string
}

// NewAuthMiddleware creates an auth middleware for the given API key and the
// caller identity it maps to.
func NewAuthMiddleware(apiKey, userID string) *AuthMiddleware {
	return &AuthMiddleware{
		keyHash: sha256.Sum256([]byte(apiKey)),
		userID:  userID,
	}
}

// RequireAuth validates the X-Api-Key header (or Bearer token) in constant
// time and injects the caller identity into the request context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Api-Key")
		if key == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				key = strings.TrimPrefix(h, "Bearer ")
			}
		}

		sum := sha256.Sum256([]byte(key))
		if key == "" || subtle.ConstantTimeCompare(sum[:], m.keyHash[:]) != 1 {
			c.JSON(http.StatusUnauthorized, common.NewErrorResponse(common.ErrCodeUnauthorized, "Invalid API key", nil))
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyUserID, m.userID)
		c.Next()
	}
}
