package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MerchantMiddleware resolves the merchant a request acts for. The merchant
// from the token wins; X-Merchant-ID is accepted only when the token has
// none or names the same merchant.
// SECURITY: No default merchant fallback - fail closed
func MerchantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		headerID := c.GetHeader("X-Merchant-ID")
		merchantID := c.GetString(ContextMerchantID)

		if merchantID != "" && headerID != "" && headerID != merchantID {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MERCHANT_MISMATCH",
					"message": "X-Merchant-ID does not match the authenticated merchant",
				},
			})
			c.Abort()
			return
		}
		if merchantID == "" {
			merchantID = headerID
		}

		if merchantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MERCHANT_REQUIRED",
					"message": "Merchant ID is required. Include X-Merchant-ID header.",
				},
			})
			c.Abort()
			return
		}

		c.Set(ContextMerchantID, merchantID)
		c.Next()
	}
}

// GetMerchantID retrieves the merchant ID from gin context
func GetMerchantID(c *gin.Context) string {
	return c.GetString(ContextMerchantID)
}
