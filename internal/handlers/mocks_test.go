package handlers

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"merchant-panel-service/internal/clients"
	"merchant-panel-service/internal/middleware"
	"merchant-panel-service/internal/models"
	"merchant-panel-service/internal/services"
)

// MockCouponService is a mock implementation of CouponService
type MockCouponService struct {
	mock.Mock
}

func (m *MockCouponService) List(ctx context.Context, creds clients.Credentials, query models.CouponListQuery) ([]*models.Coupon, *models.PaginationMeta, error) {
	args := m.Called(ctx, creds, query)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]*models.Coupon), args.Get(1).(*models.PaginationMeta), args.Error(2)
}

func (m *MockCouponService) Get(ctx context.Context, creds clients.Credentials, couponID int64) (*models.Coupon, error) {
	args := m.Called(ctx, creds, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponService) Update(ctx context.Context, creds clients.Credentials, couponID int64, body json.RawMessage) (*models.Coupon, error) {
	args := m.Called(ctx, creds, couponID, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponService) UpdateStatus(ctx context.Context, creds clients.Credentials, userID string, couponID int64, status models.CouponStatus) (*models.Coupon, error) {
	args := m.Called(ctx, creds, userID, couponID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

// MockInventoryService is a mock implementation of InventoryService
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) session(args mock.Arguments) (*models.InventorySession, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventorySession), args.Error(1)
}

func (m *MockInventoryService) OpenSession(ctx context.Context, creds clients.Credentials, userID string, productID int64, variantID *int64) (*models.InventorySession, error) {
	return m.session(m.Called(ctx, creds, userID, productID, variantID))
}

func (m *MockInventoryService) GetSession(ctx context.Context, merchantID string, sessionID uuid.UUID) (*models.InventorySession, error) {
	return m.session(m.Called(ctx, merchantID, sessionID))
}

func (m *MockInventoryService) Reload(ctx context.Context, creds clients.Credentials, sessionID uuid.UUID, productID int64, variantID *int64) (*models.InventorySession, error) {
	return m.session(m.Called(ctx, creds, sessionID, productID, variantID))
}

func (m *MockInventoryService) ApplyEdit(ctx context.Context, merchantID string, sessionID uuid.UUID, locationID int64, rawInput string) (*models.InventorySession, error) {
	return m.session(m.Called(ctx, merchantID, sessionID, locationID, rawInput))
}

func (m *MockInventoryService) Changes(ctx context.Context, merchantID string, sessionID uuid.UUID) ([]models.LocationQuantity, error) {
	args := m.Called(ctx, merchantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LocationQuantity), args.Error(1)
}

func (m *MockInventoryService) Cancel(ctx context.Context, merchantID string, sessionID uuid.UUID) (*models.InventorySession, error) {
	return m.session(m.Called(ctx, merchantID, sessionID))
}

func (m *MockInventoryService) Close(ctx context.Context, merchantID string, sessionID uuid.UUID) error {
	args := m.Called(ctx, merchantID, sessionID)
	return args.Error(0)
}

func (m *MockInventoryService) Save(ctx context.Context, creds clients.Credentials, userID string, sessionID uuid.UUID, policy models.SavePolicy) (*models.SaveResult, error) {
	args := m.Called(ctx, creds, userID, sessionID, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SaveResult), args.Error(1)
}

func (m *MockInventoryService) History(ctx context.Context, merchantID string, productID int64, page, limit int) ([]models.InventorySaveRecord, *models.PaginationMeta, error) {
	args := m.Called(ctx, merchantID, productID, page, limit)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]models.InventorySaveRecord), args.Get(1).(*models.PaginationMeta), args.Error(2)
}

func (m *MockInventoryService) ExportSession(ctx context.Context, merchantID string, sessionID uuid.UUID) ([]byte, error) {
	args := m.Called(ctx, merchantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockInventoryService) ImportQuantities(ctx context.Context, merchantID string, sessionID uuid.UUID, filename string, file io.Reader) (*services.SheetImportResult, error) {
	args := m.Called(ctx, merchantID, sessionID, filename, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SheetImportResult), args.Error(1)
}

// Helper to setup test router
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextMerchantID, "merchant-1")
		c.Set(middleware.ContextUserID, "user-1")
		c.Set(middleware.ContextAuthorization, "Bearer token")
		c.Next()
	})
	return r
}

var testCreds = clients.Credentials{Authorization: "Bearer token", MerchantID: "merchant-1"}

var testPages = PageLimits{Default: 20, Max: 100}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
