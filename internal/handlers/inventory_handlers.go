package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"merchant-panel-service/internal/clients"
	"merchant-panel-service/internal/middleware"
	"merchant-panel-service/internal/models"
	"merchant-panel-service/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// InventoryService is the inventory session behavior the handlers depend on
type InventoryService interface {
	OpenSession(ctx context.Context, creds clients.Credentials, userID string, productID int64, variantID *int64) (*models.InventorySession, error)
	GetSession(ctx context.Context, merchantID string, sessionID uuid.UUID) (*models.InventorySession, error)
	Reload(ctx context.Context, creds clients.Credentials, sessionID uuid.UUID, productID int64, variantID *int64) (*models.InventorySession, error)
	ApplyEdit(ctx context.Context, merchantID string, sessionID uuid.UUID, locationID int64, rawInput string) (*models.InventorySession, error)
	Changes(ctx context.Context, merchantID string, sessionID uuid.UUID) ([]models.LocationQuantity, error)
	Cancel(ctx context.Context, merchantID string, sessionID uuid.UUID) (*models.InventorySession, error)
	Close(ctx context.Context, merchantID string, sessionID uuid.UUID) error
	Save(ctx context.Context, creds clients.Credentials, userID string, sessionID uuid.UUID, policy models.SavePolicy) (*models.SaveResult, error)
	History(ctx context.Context, merchantID string, productID int64, page, limit int) ([]models.InventorySaveRecord, *models.PaginationMeta, error)
	ExportSession(ctx context.Context, merchantID string, sessionID uuid.UUID) ([]byte, error)
	ImportQuantities(ctx context.Context, merchantID string, sessionID uuid.UUID, filename string, file io.Reader) (*services.SheetImportResult, error)
}

var _ InventoryService = (*services.InventoryService)(nil)

type InventoryHandler struct {
	service InventoryService
	pages   PageLimits
	logger  *logrus.Entry
}

func NewInventoryHandler(service InventoryService, pages PageLimits, logger *logrus.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: service,
		pages:   pages,
		logger:  logger.WithField("component", "inventory-handler"),
	}
}

// OpenSession loads a product's per-location stock into an edit session
// @Summary Open inventory session
// @Tags inventory
// @Accept json
// @Produce json
// @Param request body models.OpenSessionRequest true "Product and optional variant"
// @Success 201 {object} models.InventorySessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /inventory/sessions [post]
// @Security BearerAuth
func (h *InventoryHandler) OpenSession(c *gin.Context) {
	var req models.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	session, err := h.service.OpenSession(c.Request.Context(), credentials(c), middleware.GetUserID(c), req.ProductID, req.VariantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, models.InventorySessionResponse{
		Success: true,
		Data:    session,
	})
}

// GetSession returns an inventory session
// @Summary Get inventory session
// @Tags inventory
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.InventorySessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /inventory/sessions/{id} [get]
// @Security BearerAuth
func (h *InventoryHandler) GetSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), middleware.GetMerchantID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.InventorySessionResponse{
		Success: true,
		Data:    session,
	})
}

// ReloadSession switches the session to another product or variant
// @Summary Reload inventory session
// @Description Load another product or variant into the session. A load superseded by a newer one returns 409 STALE_LOAD.
// @Tags inventory
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.OpenSessionRequest true "Product and optional variant"
// @Success 200 {object} models.InventorySessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /inventory/sessions/{id}/reload [post]
// @Security BearerAuth
func (h *InventoryHandler) ReloadSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req models.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	session, err := h.service.Reload(c.Request.Context(), credentials(c), id, req.ProductID, req.VariantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.InventorySessionResponse{
		Success: true,
		Data:    session,
	})
}

// EditQuantity records the merchant's input for a location
// @Summary Edit location quantity
// @Description The quantity is clamped to a non-negative whole number
// @Tags inventory
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param locationId path int true "Location ID"
// @Param request body models.QuantityEditRequest true "Raw quantity input"
// @Success 200 {object} models.InventorySessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /inventory/sessions/{id}/locations/{locationId} [patch]
// @Security BearerAuth
func (h *InventoryHandler) EditQuantity(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	locationID, err := strconv.ParseInt(c.Param("locationId"), 10, 64)
	if err != nil {
		badRequest(c, "INVALID_ID", "Invalid location ID format")
		return
	}

	var req models.QuantityEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	session, err := h.service.ApplyEdit(c.Request.Context(), middleware.GetMerchantID(c), id, locationID, req.RawInput())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.InventorySessionResponse{
		Success: true,
		Data:    session,
	})
}

// GetChanges previews the locations a save would write
// @Summary Preview changed locations
// @Tags inventory
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /inventory/sessions/{id}/changes [get]
// @Security BearerAuth
func (h *InventoryHandler) GetChanges(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	changes, err := h.service.Changes(c.Request.Context(), middleware.GetMerchantID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    changes,
	})
}

// SaveSession writes every changed location
// @Summary Save inventory session
// @Description Writes each changed location and reports every result. Responds 207 when some locations failed.
// @Tags inventory
// @Produce json
// @Param id path string true "Session ID"
// @Param policy query string false "all_or_nothing or advance_succeeded" default(all_or_nothing)
// @Success 200 {object} models.SaveResultResponse
// @Success 207 {object} models.SaveResultResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /inventory/sessions/{id}/save [post]
// @Security BearerAuth
func (h *InventoryHandler) SaveSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	policy := models.SavePolicy(c.Query("policy"))

	result, err := h.service.Save(c.Request.Context(), credentials(c), middleware.GetUserID(c), id, policy)
	if errors.Is(err, services.ErrPartialSave) && result != nil {
		c.JSON(http.StatusMultiStatus, models.SaveResultResponse{
			Success: false,
			Data:    result,
			Message: stringPtr(fmt.Sprintf("%d of %d location updates failed", len(result.Failed), result.Attempted)),
		})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SaveResultResponse{
		Success: true,
		Data:    result,
		Message: stringPtr("Inventory saved"),
	})
}

// CancelEdits discards pending edits
// @Summary Cancel pending edits
// @Tags inventory
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.InventorySessionResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /inventory/sessions/{id}/cancel [post]
// @Security BearerAuth
func (h *InventoryHandler) CancelEdits(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.service.Cancel(c.Request.Context(), middleware.GetMerchantID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.InventorySessionResponse{
		Success: true,
		Data:    session,
	})
}

// CloseSession deletes an inventory session
// @Summary Close inventory session
// @Tags inventory
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /inventory/sessions/{id} [delete]
// @Security BearerAuth
func (h *InventoryHandler) CloseSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	if err := h.service.Close(c.Request.Context(), middleware.GetMerchantID(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ExportSession downloads the session as an XLSX sheet
// @Summary Export inventory session
// @Tags inventory
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Session ID"
// @Success 200 {file} file
// @Failure 404 {object} models.ErrorResponse
// @Router /inventory/sessions/{id}/export [get]
// @Security BearerAuth
func (h *InventoryHandler) ExportSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	data, err := h.service.ExportSession(c.Request.Context(), middleware.GetMerchantID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="inventory-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ImportQuantities applies a CSV or XLSX sheet of quantities
// @Summary Import quantities
// @Description Upload a sheet with locationId and quantity columns
// @Tags inventory
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /inventory/sessions/{id}/import [post]
// @Security BearerAuth
func (h *InventoryHandler) ImportQuantities(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "MISSING_FILE", "A file field with a CSV or XLSX sheet is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "INVALID_FILE", "Failed to read uploaded file")
		return
	}
	defer file.Close()

	result, err := h.service.ImportQuantities(c.Request.Context(), middleware.GetMerchantID(c), id, fileHeader.Filename, file)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    result,
	})
}

// GetHistory lists the save audit trail of a product
// @Summary Inventory save history
// @Tags inventory
// @Produce json
// @Param productId query int true "Product ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} models.SaveRecordListResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /inventory/history [get]
// @Security BearerAuth
func (h *InventoryHandler) GetHistory(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Query("productId"), 10, 64)
	if err != nil || productID <= 0 {
		badRequest(c, "VALIDATION_ERROR", "productId query parameter is required")
		return
	}
	page, limit := h.pages.parse(c)

	records, pagination, err := h.service.History(c.Request.Context(), middleware.GetMerchantID(c), productID, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.SaveRecordListResponse{
		Success:    true,
		Data:       records,
		Pagination: pagination,
	})
}
