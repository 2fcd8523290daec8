// Package events publishes run notifications. It is an outbound sink only:
// nothing published here is ever read back by formation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
}

// Publisher delivers one event keyed by key.
type Publisher[T any] interface {
	Publish(ctx context.Context, key string, event T) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher[T any] struct {
	writer messageWriter
}

func NewKafkaPublisher[T any](cfg Config) *KafkaPublisher[T] {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher[T]{writer: w}
}

func (p *KafkaPublisher[T]) Publish(ctx context.Context, key string, event T) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("publish event %s: %w", key, err)
	}
	return nil
}

func (p *KafkaPublisher[T]) Close() error {
	return p.writer.Close()
}

type nopPublisher[T any] struct{}

func (nopPublisher[T]) Publish(context.Context, string, T) error { return nil }
func (nopPublisher[T]) Close() error                             { return nil }

// New returns a Kafka publisher when brokers are configured and a no-op one otherwise.
func New[T any](cfg Config) Publisher[T] {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nopPublisher[T]{}
	}
	return NewKafkaPublisher[T](cfg)
}
