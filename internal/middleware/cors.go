package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS returns a CORS middleware. With no origins configured every origin is
// allowed and credentials are disabled, since both cannot be true at once.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Merchant-ID", "X-User-ID", "X-Requested-With", "Accept"}
	config.ExposeHeaders = []string{"Content-Length", "Content-Disposition"}
	config.MaxAge = 12 * time.Hour

	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
		config.AllowCredentials = false
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowWildcard = true
		config.AllowCredentials = true
	}

	return cors.New(config)
}
