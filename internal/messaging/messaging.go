// Package messaging carries order lifecycle events to a message broker.
package messaging

import (
	"context"
	"time"
)

const (
	TopicOrderPlaced = "orders.placed"
	TopicOrderPaid   = "orders.paid"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// OrderEvent is the payload published on the order topics.
type OrderEvent struct {
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	PaymentMethod string    `json:"paymentMethod"`
	Total         string    `json:"total"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, any) error {
	return nil
}
