package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes lifecycle events to a Kafka topic for downstream
// consumers (reporting, long-term analytics). Production is asynchronous;
// delivery failures are logged, never surfaced to the pipeline.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSink connects to the given brokers. Callers should only construct
// one when brokers are actually configured.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires at least one broker")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

// Handle implements Listener. Events are keyed by account number so one
// account's history lands in one partition, in order.
func (s *KafkaSink) Handle(ctx context.Context, ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal event for kafka", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(ev.Number),
		Value: value,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.ErrorContext(ctx, "kafka produce failed",
				"event_type", ev.Type,
				"error", err,
			)
		}
	})
}

// Close flushes buffered records and closes the client.
func (s *KafkaSink) Close(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		s.client.Close()
		return fmt.Errorf("kafka flush: %w", err)
	}
	s.client.Close()
	return nil
}
