package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"merchant-panel-service/internal/clients"
	"merchant-panel-service/internal/middleware"
	"merchant-panel-service/internal/models"
	"merchant-panel-service/internal/repository"
	"merchant-panel-service/internal/services"
)

// PageLimits bounds list page sizes
type PageLimits struct {
	Default int
	Max     int
}

func (p PageLimits) parse(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = p.Default
	}
	if p.Max > 0 && limit > p.Max {
		limit = p.Max
	}
	return page, limit
}

func credentials(c *gin.Context) clients.Credentials {
	return clients.Credentials{
		Authorization: middleware.GetAuthorization(c),
		MerchantID:    middleware.GetMerchantID(c),
	}
}

func stringPtr(s string) *string {
	return &s
}

func errorResponse(code, message string) models.ErrorResponse {
	return models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	}
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, errorResponse(code, message))
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "INVALID_ID", "Invalid session ID format")
		return uuid.Nil, false
	}
	return id, true
}

func parseInt64Param(c *gin.Context, name, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "INVALID_ID", message)
		return 0, false
	}
	return id, true
}

// respondError maps a service error to its HTTP status and error code
func respondError(c *gin.Context, logger *logrus.Entry, err error) {
	status, code, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"merchantId": middleware.GetMerchantID(c),
		}).WithError(err).Error("Request failed")
	}
	c.JSON(status, errorResponse(code, message))
}

func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrCouponNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Coupon not found"
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Inventory session not found"
	case errors.Is(err, services.ErrProductNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Product not found"
	case errors.Is(err, services.ErrUnknownLocation):
		return http.StatusNotFound, "LOCATION_NOT_FOUND", err.Error()
	case errors.Is(err, services.ErrStaleLoad):
		return http.StatusConflict, "STALE_LOAD", err.Error()
	case errors.Is(err, services.ErrSessionLoading):
		return http.StatusConflict, "SESSION_LOADING", "Inventory session is loading, retry when the load completes"
	case errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict, "VERSION_CONFLICT", "Inventory session was modified concurrently, retry the request"
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidCouponBody),
		errors.Is(err, services.ErrInvalidPolicy),
		errors.Is(err, services.ErrInvalidSheet):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Platform API did not respond in time"
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Platform API request failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
