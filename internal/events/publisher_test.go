package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"merchant-panel-service/internal/models"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	messages []published
	err      error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{subject: subj, data: data})
	return nil
}

func newTestPublisher(conn *fakeConn) *NATSPublisher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &NATSPublisher{conn: conn, logger: logger.WithField("component", "test")}
}

func TestPublishInventoryAdjusted(t *testing.T) {
	conn := &fakeConn{}
	p := newTestPublisher(conn)

	err := p.PublishInventoryAdjusted(context.Background(), &InventoryAdjustedEvent{
		MerchantID: "merchant-1",
		ProductID:  42,
		LocationID: 9,
		Quantity:   25,
	})

	require.NoError(t, err)
	require.Len(t, conn.messages, 1)
	assert.Equal(t, SubjectInventoryAdjusted, conn.messages[0].subject)

	var event InventoryAdjustedEvent
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &event))
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, SubjectInventoryAdjusted, event.EventType)
	assert.Equal(t, int64(9), event.LocationID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestPublishCouponStatusChanged_Error(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := newTestPublisher(conn)

	err := p.PublishCouponStatusChanged(context.Background(), &CouponStatusChangedEvent{
		CouponID: 3,
		Status:   models.CouponStatusPaused,
	})

	assert.Error(t, err)
	assert.Empty(t, conn.messages)
}

func TestNewNATSPublisher_RequiresURL(t *testing.T) {
	_, err := NewNATSPublisher("", logrus.New())
	assert.Error(t, err)
}
