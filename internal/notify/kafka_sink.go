package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
)

type kafkaProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink produces alerts as JSON records keyed by subject.
type KafkaSink struct {
	client kafkaProducer
	topic  string
}

// NewKafkaSink connects a franz-go client to brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("gatekeeper"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// Name implements Sink.
func (s *KafkaSink) Name() string {
	return "kafka"
}

// Send implements Sink.
func (s *KafkaSink) Send(ctx context.Context, alert monitorDomain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(alert.Subject),
		Value: payload,
	}
	return s.client.ProduceSync(ctx, record).FirstErr()
}

// Close flushes and closes the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
