package events

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/orderflow/shared/platform/bus"
)

// KafkaPublisher publica los mensajes del outbox en Kafka. El writer se
// configura sin topic fijo: cada mensaje lleva el suyo, derivado del tipo de
// evento por el relayer.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}

	p.log.Debug("Event published successfully",
		zap.String("topic", topic),
		zap.String("key", key),
	)
	return nil
}

// Verificación estática
var _ sharedBus.EventPublisher = (*KafkaPublisher)(nil)
