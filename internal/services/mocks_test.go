package services

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"merchant-panel-service/internal/clients"
	"merchant-panel-service/internal/events"
	"merchant-panel-service/internal/models"
	"merchant-panel-service/internal/repository"
)

// MockPlatformClient is a mock implementation of clients.PlatformClient
type MockPlatformClient struct {
	mock.Mock
}

var _ clients.PlatformClient = (*MockPlatformClient)(nil)

func (m *MockPlatformClient) ListCoupons(ctx context.Context, creds clients.Credentials, query models.CouponListQuery) (*clients.CouponPage, error) {
	args := m.Called(ctx, creds, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.CouponPage), args.Error(1)
}

func (m *MockPlatformClient) GetCoupon(ctx context.Context, creds clients.Credentials, couponID int64) (*models.RawCoupon, error) {
	args := m.Called(ctx, creds, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawCoupon), args.Error(1)
}

func (m *MockPlatformClient) UpdateCoupon(ctx context.Context, creds clients.Credentials, couponID int64, body json.RawMessage) error {
	args := m.Called(ctx, creds, couponID, body)
	return args.Error(0)
}

func (m *MockPlatformClient) UpdateCouponStatus(ctx context.Context, creds clients.Credentials, couponID int64, status models.CouponStatus) error {
	args := m.Called(ctx, creds, couponID, status)
	return args.Error(0)
}

func (m *MockPlatformClient) GetProductInventoryByLocation(ctx context.Context, creds clients.Credentials, productID int64, variantID *int64) ([]byte, error) {
	args := m.Called(ctx, creds, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockPlatformClient) UpdateLocationInventory(ctx context.Context, creds clients.Credentials, update models.LocationInventoryUpdate) error {
	args := m.Called(ctx, creds, update)
	return args.Error(0)
}

// MockAuditRepository is a mock implementation of AuditRepositoryInterface
type MockAuditRepository struct {
	mock.Mock
}

var _ repository.AuditRepositoryInterface = (*MockAuditRepository)(nil)

func (m *MockAuditRepository) RecordSave(ctx context.Context, records []models.InventorySaveRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByProduct(ctx context.Context, merchantID string, productID int64, limit, offset int) ([]models.InventorySaveRecord, int64, error) {
	args := m.Called(ctx, merchantID, productID, limit, offset)
	return args.Get(0).([]models.InventorySaveRecord), args.Get(1).(int64), args.Error(2)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu        sync.Mutex
	adjusted  []*events.InventoryAdjustedEvent
	couponEvt []*events.CouponStatusChangedEvent
}

func (p *recordingPublisher) PublishInventoryAdjusted(ctx context.Context, event *events.InventoryAdjustedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adjusted = append(p.adjusted, event)
	return nil
}

func (p *recordingPublisher) PublishCouponStatusChanged(ctx context.Context, event *events.CouponStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.couponEvt = append(p.couponEvt, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// contextBoundStore fails every call made with a finished context, the way a
// network-backed store does
type contextBoundStore struct {
	*repository.MemorySessionStore
}

func (s contextBoundStore) Get(ctx context.Context, id uuid.UUID) (*models.InventorySession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemorySessionStore.Get(ctx, id)
}

func (s contextBoundStore) Update(ctx context.Context, session *models.InventorySession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemorySessionStore.Update(ctx, session)
}
