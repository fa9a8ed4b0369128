package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/messaging"

	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafkaGo.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a Kafka publisher writing to brokers. The topic is set
// per message.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafkaGo.Writer{
			Addr:         kafkaGo.TCP(brokers...),
			Balancer:     &kafkaGo.LeastBytes{},
			RequiredAcks: kafkaGo.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

var _ messaging.Publisher = (*Publisher)(nil)

func (p *Publisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		logger.FromCtx(ctx).Error("publish failed",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
