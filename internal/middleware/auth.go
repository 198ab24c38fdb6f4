package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// Context keys set by the auth and merchant middleware
const (
	ContextUserID        = "user_id"
	ContextUserEmail     = "user_email"
	ContextUserRoles     = "user_roles"
	ContextMerchantID    = "merchant_id"
	ContextAuthorization = "authorization"
)

const devID = "00000000-0000-0000-0000-000000000001"

// Claims represents the JWT claims of a merchant panel user. Older tokens
// carry the merchant as tenant_id.
type Claims struct {
	UserID     string   `json:"user_id"`
	Email      string   `json:"email"`
	MerchantID string   `json:"merchant_id"`
	TenantID   string   `json:"tenant_id"`
	Roles      []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c *Claims) merchant() string {
	if c.MerchantID != "" {
		return c.MerchantID
	}
	return c.TenantID
}

func (c *Claims) user() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// AuthMiddleware validates HS256 bearer tokens. The raw Authorization header
// is kept in the context so it can be forwarded to the platform API.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "MISSING_TOKEN", "Authorization header is required")
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			abortUnauthorized(c, "INVALID_TOKEN_FORMAT", "Authorization header must be in format: Bearer <token>")
			return
		}

		token, err := jwt.ParseWithClaims(tokenParts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			abortUnauthorized(c, "INVALID_CLAIMS", "Invalid token claims")
			return
		}

		c.Set(ContextUserID, claims.user())
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserRoles, claims.Roles)
		c.Set(ContextAuthorization, authHeader)
		if merchantID := claims.merchant(); merchantID != "" {
			c.Set(ContextMerchantID, merchantID)
		}

		c.Next()
	}
}

// DevelopmentAuthMiddleware trusts X-User-ID / X-Merchant-ID headers; used
// when no JWT secret is configured outside production
func DevelopmentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = devID
		}

		merchantID := c.GetHeader("X-Merchant-ID")
		if merchantID == "" {
			merchantID = devID
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserEmail, "dev@example.com")
		c.Set(ContextUserRoles, []string{"admin"})
		c.Set(ContextMerchantID, merchantID)
		c.Set(ContextAuthorization, c.GetHeader("Authorization"))

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}

// GetUserID retrieves the authenticated user ID from gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// GetAuthorization retrieves the caller's Authorization header
func GetAuthorization(c *gin.Context) string {
	return c.GetString(ContextAuthorization)
}
