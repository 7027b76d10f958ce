package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestOrderEvent_Message(t *testing.T) {
	at := time.Date(2026, 3, 1, 19, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	order := &models.Order{
		ID:            "order-1",
		UserID:        "user-1",
		Status:        models.OrderConfirmed,
		PaymentStatus: models.PaymentConfirmed,
		TotalAmount:   decimal.RequireFromString("340.99"),
		Version:       3,
	}

	msg, err := newOrderEvent(EventPaymentConfirmed, order, at).Message()
	require.NoError(t, err)

	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, at.UTC(), msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "payment.confirmed", string(msg.Headers[0].Value))

	body := gjson.ParseBytes(msg.Value)
	assert.Equal(t, "payment.confirmed", body.Get("type").String())
	assert.Equal(t, "user-1", body.Get("user_id").String())
	assert.Equal(t, "confirmed", body.Get("status").String())
	assert.Equal(t, "340.99", body.Get("total_amount").String())
	assert.Equal(t, int64(3), body.Get("version").Int())
}

func TestPaymentEventType(t *testing.T) {
	tests := []struct {
		status models.PaymentStatus
		want   OrderEventType
	}{
		{models.PaymentConfirmed, EventPaymentConfirmed},
		{models.PaymentCancelled, EventPaymentCancelled},
		{models.PaymentRefunded, EventPaymentRefunded},
		{models.PaymentPending, OrderEventType("payment.pending")},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, paymentEventType(tt.status))
		})
	}
}

func TestNoopEventPublisher(t *testing.T) {
	var p EventPublisher = NoopEventPublisher{}
	assert.NoError(t, p.Publish(context.Background(), OrderEvent{Type: EventOrderPlaced}))
	assert.NoError(t, p.Close())
}
