package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"merchant-panel-service/internal/clients"
	"merchant-panel-service/internal/events"
	"merchant-panel-service/internal/mapping"
	"merchant-panel-service/internal/metrics"
	"merchant-panel-service/internal/models"
)

var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrInvalidStatus     = errors.New("invalid coupon status")
	ErrInvalidCouponBody = errors.New("coupon update body must be a JSON object")
	ErrUpstream          = errors.New("platform request failed")
)

// CouponService serves normalized coupons. Reads go through the normalizer;
// writes are forwarded to the platform in the shape the edit form sent and
// the coupon is fetched again afterwards.
type CouponService struct {
	client    clients.PlatformClient
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Entry
}

// NewCouponService creates a new CouponService
func NewCouponService(client clients.PlatformClient, publisher events.Publisher, m *metrics.Metrics, logger *logrus.Logger) *CouponService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &CouponService{
		client:    client,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithField("component", "coupon-service"),
	}
}

// List returns a page of normalized coupons
func (s *CouponService) List(ctx context.Context, creds clients.Credentials, query models.CouponListQuery) ([]*models.Coupon, *models.PaginationMeta, error) {
	page, err := s.client.ListCoupons(ctx, creds, query)
	if err != nil {
		return nil, nil, wrapUpstream(err, ErrCouponNotFound)
	}

	if page.Skipped > 0 {
		s.logger.WithField("skipped", page.Skipped).Warn("Dropped undecodable coupons from list")
	}
	coupons := mapping.NormalizeCoupons(page.Coupons)
	s.metrics.CouponsNormalized.Add(float64(len(coupons)))
	return coupons, page.Pagination, nil
}

// Get returns a single normalized coupon
func (s *CouponService) Get(ctx context.Context, creds clients.Credentials, couponID int64) (*models.Coupon, error) {
	raw, err := s.client.GetCoupon(ctx, creds, couponID)
	if err != nil {
		return nil, wrapUpstream(err, ErrCouponNotFound)
	}

	coupon := mapping.NormalizeCoupon(raw)
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	s.metrics.CouponsNormalized.Inc()
	return coupon, nil
}

// Update forwards the edit form body and returns the refetched coupon
func (s *CouponService) Update(ctx context.Context, creds clients.Credentials, couponID int64, body json.RawMessage) (*models.Coupon, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil || probe == nil {
		return nil, ErrInvalidCouponBody
	}

	if err := s.client.UpdateCoupon(ctx, creds, couponID, body); err != nil {
		s.logger.WithFields(logrus.Fields{
			"couponId":   couponID,
			"merchantId": creds.MerchantID,
		}).WithError(err).Error("Failed to update coupon")
		return nil, wrapUpstream(err, ErrCouponNotFound)
	}

	s.logger.WithFields(logrus.Fields{
		"couponId":   couponID,
		"merchantId": creds.MerchantID,
	}).Info("Coupon updated")

	return s.Get(ctx, creds, couponID)
}

// UpdateStatus changes a coupon's status and announces the change
func (s *CouponService) UpdateStatus(ctx context.Context, creds clients.Credentials, userID string, couponID int64, status models.CouponStatus) (*models.Coupon, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	if err := s.client.UpdateCouponStatus(ctx, creds, couponID, status); err != nil {
		s.logger.WithFields(logrus.Fields{
			"couponId": couponID,
			"status":   status,
		}).WithError(err).Error("Failed to update coupon status")
		return nil, wrapUpstream(err, ErrCouponNotFound)
	}

	coupon, err := s.Get(ctx, creds, couponID)
	if err != nil {
		return nil, err
	}

	event := &events.CouponStatusChangedEvent{
		MerchantID: creds.MerchantID,
		UserID:     userID,
		CouponID:   couponID,
		Code:       coupon.Code,
		Status:     status,
	}
	if err := s.publisher.PublishCouponStatusChanged(ctx, event); err != nil {
		s.logger.WithError(err).Warn("Coupon status changed but event was not published")
	}

	return coupon, nil
}

// wrapUpstream maps a platform 404 to notFound and tags everything else as
// an upstream failure
func wrapUpstream(err error, notFound error) error {
	if errors.Is(err, clients.ErrNotFound) {
		return notFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
