// Package events provides NATS event publishing for merchant-panel-service
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"merchant-panel-service/internal/models"
)

const (
	SubjectInventoryAdjusted   = "inventory.adjusted"
	SubjectCouponStatusChanged = "coupon.status_changed"
)

// InventoryAdjustedEvent is published for every location whose quantity
// the platform accepted
type InventoryAdjustedEvent struct {
	EventID          string    `json:"eventId"`
	EventType        string    `json:"eventType"`
	MerchantID       string    `json:"merchantId"`
	UserID           string    `json:"userId,omitempty"`
	SessionID        string    `json:"sessionId"`
	ProductID        int64     `json:"productId"`
	VariantID        *int64    `json:"variantId,omitempty"`
	LocationID       int64     `json:"locationId"`
	PreviousQuantity int       `json:"previousQuantity"`
	Quantity         int       `json:"quantity"`
	Timestamp        time.Time `json:"timestamp"`
}

// CouponStatusChangedEvent is published after a status PATCH succeeds
type CouponStatusChangedEvent struct {
	EventID    string              `json:"eventId"`
	EventType  string              `json:"eventType"`
	MerchantID string              `json:"merchantId"`
	UserID     string              `json:"userId,omitempty"`
	CouponID   int64               `json:"couponId"`
	Code       string              `json:"code,omitempty"`
	Status     models.CouponStatus `json:"status"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Publisher publishes merchant panel domain events
type Publisher interface {
	PublishInventoryAdjusted(ctx context.Context, event *InventoryAdjustedEvent) error
	PublishCouponStatusChanged(ctx context.Context, event *CouponStatusChangedEvent) error
	Close()
}

// msgPublisher is the part of *nats.Conn the publisher needs
type msgPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher publishes events as JSON on core NATS subjects
type NATSPublisher struct {
	conn   msgPublisher
	close  func()
	logger *logrus.Entry
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(natsURL string, logger *logrus.Logger) (*NATSPublisher, error) {
	if natsURL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("merchant-panel-service-publisher"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{
		conn:   conn,
		close:  conn.Close,
		logger: logger.WithField("component", "events.publisher"),
	}, nil
}

func (p *NATSPublisher) PublishInventoryAdjusted(ctx context.Context, event *InventoryAdjustedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	event.EventType = SubjectInventoryAdjusted
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := p.publish(SubjectInventoryAdjusted, event); err != nil {
		p.logger.WithFields(logrus.Fields{
			"productId":  event.ProductID,
			"locationId": event.LocationID,
		}).WithError(err).Error("Failed to publish inventory.adjusted event")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"productId":  event.ProductID,
		"locationId": event.LocationID,
		"quantity":   event.Quantity,
	}).Debug("Published inventory.adjusted event")
	return nil
}

func (p *NATSPublisher) PublishCouponStatusChanged(ctx context.Context, event *CouponStatusChangedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	event.EventType = SubjectCouponStatusChanged
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := p.publish(SubjectCouponStatusChanged, event); err != nil {
		p.logger.WithField("couponId", event.CouponID).WithError(err).Error("Failed to publish coupon.status_changed event")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"couponId": event.CouponID,
		"status":   event.Status,
	}).Debug("Published coupon.status_changed event")
	return nil
}

func (p *NATSPublisher) publish(subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", subject, err)
	}
	return p.conn.Publish(subject, data)
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}

// NoopPublisher drops events; used when NATS is not configured
type NoopPublisher struct{}

func (NoopPublisher) PublishInventoryAdjusted(ctx context.Context, event *InventoryAdjustedEvent) error {
	return nil
}

func (NoopPublisher) PublishCouponStatusChanged(ctx context.Context, event *CouponStatusChangedEvent) error {
	return nil
}

func (NoopPublisher) Close() {}
