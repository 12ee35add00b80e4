package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ticketly/internal/logger"
)

// Producer writes JSON payloads to Kafka. The underlying writer has no
// fixed topic; each message carries its own.
type Producer struct {
	Writer *kafka.Writer
	Log    *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Log: log}
}

// Publish marshals the payload and writes it to the given topic keyed by key.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", topic, err)
	}

	p.Log.LogKafka("PUBLISH", topic, fmt.Sprintf("published %d bytes (key=%s)", len(msgBytes), key))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
