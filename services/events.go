package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kendall-kelly/cosmetics-store-api/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// OrderEventType names a change to an order
type OrderEventType string

const (
	EventOrderPlaced           OrderEventType = "order.placed"
	EventOrderStatusChanged    OrderEventType = "order.status_changed"
	EventPaymentConfirmed      OrderEventType = "payment.confirmed"
	EventPaymentCancelled      OrderEventType = "payment.cancelled"
	EventPaymentRefunded       OrderEventType = "payment.refunded"
	EventPaymentProofSubmitted OrderEventType = "payment.proof_submitted"
)

func paymentEventType(status models.PaymentStatus) OrderEventType {
	switch status {
	case models.PaymentConfirmed:
		return EventPaymentConfirmed
	case models.PaymentCancelled:
		return EventPaymentCancelled
	case models.PaymentRefunded:
		return EventPaymentRefunded
	}
	return OrderEventType("payment." + string(status))
}

// OrderEvent is published after an order change has been committed
type OrderEvent struct {
	Type          OrderEventType       `json:"type"`
	OrderID       string               `json:"order_id"`
	UserID        string               `json:"user_id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Version       int                  `json:"version"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

func newOrderEvent(t OrderEventType, order *models.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          t,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		Version:       order.Version,
		OccurredAt:    at.UTC(),
	}
}

// Message encodes the event for the broker, keyed by order ID so one order stays in one partition
func (e OrderEvent) Message() (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode order event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.OrderID),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

// EventPublisher sends order events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// KafkaEventPublisher writes order events to a Kafka topic
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

// NewKafkaEventPublisher creates a publisher for topic on brokers
func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes one event
func (p *KafkaEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	msg, err := event.Message()
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for order %s: %w", event.Type, event.OrderID, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopEventPublisher discards events; used when no brokers are configured
type NoopEventPublisher struct{}

// Publish does nothing
func (NoopEventPublisher) Publish(ctx context.Context, event OrderEvent) error { return nil }

// Close does nothing
func (NoopEventPublisher) Close() error { return nil }
