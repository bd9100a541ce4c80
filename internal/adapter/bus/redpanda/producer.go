// Package redpanda publishes emitted signals to a Redpanda/Kafka topic so
// push consumers (dashboards, downstream pipelines) can follow the stream
// without polling worker endpoints.
package redpanda

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// TopicSignals is the Kafka topic signals are published to.
const TopicSignals = "stock-signals"

// Producer wraps a Kafka producer and implements domain.SignalBus.
// Publishing is best-effort: the worker pipeline treats a publish failure as
// a log line, not a run failure, so the producer uses plain at-least-once
// delivery without transactions.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a Producer against the given seed brokers and
// ensures the signal topic exists.
func NewProducer(ctx domain.Context, brokers []string) (*Producer, error) {
	return NewProducerWithTopic(ctx, brokers, TopicSignals)
}

// NewProducerWithTopic constructs a Producer publishing to a specific topic.
// Tests use unique topics for isolation.
func NewProducerWithTopic(ctx domain.Context, brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic), slog.Any("error", err))
	}
	return &Producer{client: client, topic: topic}, nil
}

// Publish sends one signal, keyed by stock code so per-stock ordering holds
// within a partition.
func (p *Producer) Publish(ctx domain.Context, sig domain.Signal) error {
	b, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(sig.StockCode),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(sig.Kind)},
		},
	}
	res := p.client.ProduceSync(ctx, record)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("produce signal: %w", err)
	}
	return nil
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() error {
	p.client.Close()
	return nil
}
