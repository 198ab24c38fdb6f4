package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims *Claims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func setupAuthRouter() *gin.Engine {
	router := gin.New()
	router.Use(AuthMiddleware(testSecret), MerchantMiddleware())
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":          GetUserID(c),
			"merchant":      GetMerchantID(c),
			"authorization": GetAuthorization(c),
		})
	})
	return router
}

// ===========================================
// Auth Tests
// ===========================================

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := setupAuthRouter()
	token := signToken(t, &Claims{
		UserID:     "user-1",
		MerchantID: "merchant-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, jwt.SigningMethodHS256, []byte(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"merchant":"merchant-1"`)
	assert.Contains(t, w.Body.String(), `"user":"user-1"`)
	assert.Contains(t, w.Body.String(), "Bearer "+token)
}

func TestAuthMiddleware_TenantClaimFallback(t *testing.T) {
	router := setupAuthRouter()
	token := signToken(t, &Claims{
		TenantID:         "tenant-9",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-user"},
	}, jwt.SigningMethodHS256, []byte(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"merchant":"tenant-9"`)
	assert.Contains(t, w.Body.String(), `"user":"sub-user"`)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	router := setupAuthRouter()
	expired := signToken(t, &Claims{
		MerchantID: "merchant-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, jwt.SigningMethodHS256, []byte(testSecret))
	wrongKey := signToken(t, &Claims{MerchantID: "merchant-1"}, jwt.SigningMethodHS256, []byte("other"))

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "MISSING_TOKEN"},
		{"not bearer", "Basic abc", "INVALID_TOKEN_FORMAT"},
		{"garbage token", "Bearer abc.def", "INVALID_TOKEN"},
		{"expired", "Bearer " + expired, "INVALID_TOKEN"},
		{"wrong key", "Bearer " + wrongKey, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestDevelopmentAuthMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(DevelopmentAuthMiddleware(), MerchantMiddleware())
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, GetMerchantID(c)+"|"+GetUserID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Merchant-ID", "merchant-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "merchant-7|"+devID, w.Body.String())
}

// ===========================================
// Merchant Tests
// ===========================================

func TestMerchantMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		fromToken  string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"token only", "m-1", "", http.StatusOK, "m-1"},
		{"header only", "", "m-2", http.StatusOK, "m-2"},
		{"matching", "m-1", "m-1", http.StatusOK, "m-1"},
		{"mismatch", "m-1", "m-2", http.StatusForbidden, "MERCHANT_MISMATCH"},
		{"missing", "", "", http.StatusUnauthorized, "MERCHANT_REQUIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				if tt.fromToken != "" {
					c.Set(ContextMerchantID, tt.fromToken)
				}
			}, MerchantMiddleware())
			router.GET("/", func(c *gin.Context) {
				c.String(http.StatusOK, GetMerchantID(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Merchant-ID", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

// ===========================================
// Rate Limit Tests
// ===========================================

func TestRateLimiter_PerKey(t *testing.T) {
	limiter := NewRateLimiter(1, 2)

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))
}

func TestRateLimiter_EvictsIdleKeys(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(10 * time.Minute)
	limiter.Allow("b")

	assert.Len(t, limiter.limiters, 1)
}

func TestRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextMerchantID, c.GetHeader("X-Merchant-ID"))
	}, RateLimitMiddleware(NewRateLimiter(0.001, 1)))
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	send := func(merchant string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Merchant-ID", merchant)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, send("m-1"))
	assert.Equal(t, http.StatusTooManyRequests, send("m-1"))
	assert.Equal(t, http.StatusNoContent, send("m-2"))
}

// ===========================================
// CORS Tests
// ===========================================

func TestCORS_ConfiguredOrigins(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://panel.example.com"}))
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://panel.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://panel.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_AllowAll(t *testing.T) {
	router := gin.New()
	router.Use(CORS(nil))
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
