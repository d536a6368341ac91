package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// envelope is the wire format for published events.
type envelope struct {
	Event       string    `json:"event"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"publishedAt"`
}

// KafkaSink publishes events to a Kafka topic. Produces are asynchronous;
// delivery failures are logged and dropped, never returned to the caller.
type KafkaSink struct {
	client *kgo.Client
	lg     *zap.Logger
}

// NewKafkaSink connects a producer to the given brokers and topic.
func NewKafkaSink(brokers []string, topic string, lg *zap.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.LeaderAck()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}

	return &KafkaSink{client: client, lg: lg}, nil
}

// Publish serializes the event envelope and hands it to the async producer.
func (s *KafkaSink) Publish(ctx context.Context, event string, payload any) {
	value, err := json.Marshal(envelope{
		Event:       event,
		Payload:     payload,
		PublishedAt: time.Now(),
	})
	if err != nil {
		s.lg.Warn("drop unserializable event", zap.String("event", event), zap.Error(err))
		return
	}

	record := &kgo.Record{Key: []byte(event), Value: value}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.lg.Warn("event delivery failed", zap.String("event", event), zap.Error(err))
		}
	})
}

// Close flushes buffered records and releases the producer.
func (s *KafkaSink) Close(ctx context.Context) {
	if err := s.client.Flush(ctx); err != nil {
		s.lg.Warn("flush producer", zap.Error(err))
	}
	s.client.Close()
}
