package repository

import (
	"context"

	"gorm.io/gorm"
	"merchant-panel-service/internal/models"
)

// AuditRepositoryInterface defines the methods for the inventory save audit
// trail, extracted so services can be tested with mocks
type AuditRepositoryInterface interface {
	RecordSave(ctx context.Context, records []models.InventorySaveRecord) error
	ListByProduct(ctx context.Context, merchantID string, productID int64, limit, offset int) ([]models.InventorySaveRecord, int64, error)
}

var _ AuditRepositoryInterface = (*AuditRepository)(nil)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordSave inserts one row per attempted location update
func (r *AuditRepository) RecordSave(ctx context.Context, records []models.InventorySaveRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

// ListByProduct returns a merchant's save history for a product, newest first
func (r *AuditRepository) ListByProduct(ctx context.Context, merchantID string, productID int64, limit, offset int) ([]models.InventorySaveRecord, int64, error) {
	var records []models.InventorySaveRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.InventorySaveRecord{}).
		Where("merchant_id = ? AND product_id = ?", merchantID, productID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error

	return records, total, err
}

// NoopAuditRepository is used when no database is configured
type NoopAuditRepository struct{}

func (NoopAuditRepository) RecordSave(ctx context.Context, records []models.InventorySaveRecord) error {
	return nil
}

func (NoopAuditRepository) ListByProduct(ctx context.Context, merchantID string, productID int64, limit, offset int) ([]models.InventorySaveRecord, int64, error) {
	return []models.InventorySaveRecord{}, 0, nil
}
