package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"merchant-panel-service/internal/clients"
	"merchant-panel-service/internal/middleware"
	"merchant-panel-service/internal/models"
	"merchant-panel-service/internal/services"
)

// CouponService is the coupon behavior the handlers depend on
type CouponService interface {
	List(ctx context.Context, creds clients.Credentials, query models.CouponListQuery) ([]*models.Coupon, *models.PaginationMeta, error)
	Get(ctx context.Context, creds clients.Credentials, couponID int64) (*models.Coupon, error)
	Update(ctx context.Context, creds clients.Credentials, couponID int64, body json.RawMessage) (*models.Coupon, error)
	UpdateStatus(ctx context.Context, creds clients.Credentials, userID string, couponID int64, status models.CouponStatus) (*models.Coupon, error)
}

var _ CouponService = (*services.CouponService)(nil)

type CouponHandler struct {
	service CouponService
	pages   PageLimits
	logger  *logrus.Entry
}

func NewCouponHandler(service CouponService, pages PageLimits, logger *logrus.Logger) *CouponHandler {
	return &CouponHandler{
		service: service,
		pages:   pages,
		logger:  logger.WithField("component", "coupon-handler"),
	}
}

// ListCoupons lists normalized coupons
// @Summary List coupons
// @Description List the merchant's coupons with targeting rules normalized
// @Tags coupons
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param search query string false "Search by code or name"
// @Success 200 {object} models.CouponListResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /coupons [get]
// @Security BearerAuth
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	var query models.CouponListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	query.Page, query.Limit = h.pages.parse(c)

	coupons, pagination, err := h.service.List(c.Request.Context(), credentials(c), query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.CouponListResponse{
		Success:    true,
		Data:       coupons,
		Pagination: pagination,
	})
}

// GetCoupon returns a normalized coupon
// @Summary Get coupon by ID
// @Tags coupons
// @Produce json
// @Param id path int true "Coupon ID"
// @Success 200 {object} models.CouponResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /coupons/{id} [get]
// @Security BearerAuth
func (h *CouponHandler) GetCoupon(c *gin.Context) {
	id, ok := parseInt64Param(c, "id", "Invalid coupon ID format")
	if !ok {
		return
	}

	coupon, err := h.service.Get(c.Request.Context(), credentials(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.CouponResponse{
		Success: true,
		Data:    coupon,
	})
}

// UpdateCoupon forwards an edit form body to the platform
// @Summary Update coupon
// @Description Forward the coupon edit form to the platform and return the normalized result
// @Tags coupons
// @Accept json
// @Produce json
// @Param id path int true "Coupon ID"
// @Param coupon body object true "Coupon fields"
// @Success 200 {object} models.CouponResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /coupons/{id} [patch]
// @Security BearerAuth
func (h *CouponHandler) UpdateCoupon(c *gin.Context) {
	id, ok := parseInt64Param(c, "id", "Invalid coupon ID format")
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	coupon, err := h.service.Update(c.Request.Context(), credentials(c), id, json.RawMessage(body))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.CouponResponse{
		Success: true,
		Data:    coupon,
		Message: stringPtr("Coupon updated successfully"),
	})
}

// UpdateCouponStatus changes a coupon's status
// @Summary Update coupon status
// @Tags coupons
// @Accept json
// @Produce json
// @Param id path int true "Coupon ID"
// @Param request body models.UpdateCouponStatusRequest true "New status"
// @Success 200 {object} models.CouponResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /coupons/{id}/status [patch]
// @Security BearerAuth
func (h *CouponHandler) UpdateCouponStatus(c *gin.Context) {
	id, ok := parseInt64Param(c, "id", "Invalid coupon ID format")
	if !ok {
		return
	}

	var req models.UpdateCouponStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	coupon, err := h.service.UpdateStatus(c.Request.Context(), credentials(c), middleware.GetUserID(c), id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.CouponResponse{
		Success: true,
		Data:    coupon,
		Message: stringPtr("Coupon status updated"),
	})
}
