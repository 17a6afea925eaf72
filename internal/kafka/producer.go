// Package kafka publishes booking events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/booking"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
)

const transport = "kafka"

type Producer struct {
	producer sarama.SyncProducer
	topic    string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewConfig is the producer configuration: every in-sync replica must
// acknowledge, with up to five retries.
func NewConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = "tutoring-booking-events"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	return config
}

func NewProducer(brokers []string, topic string, m *metrics.Metrics, logger *slog.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka producer initialized", "brokers", brokers, "topic", topic)

	return NewProducerFrom(producer, topic, m, logger), nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(producer sarama.SyncProducer, topic string, m *metrics.Metrics, logger *slog.Logger) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
		metrics:  m,
		logger:   logger,
	}
}

// Key partitions events by group, so one group's events stay ordered.
func Key(groupID int64) string {
	return "group:" + strconv.FormatInt(groupID, 10)
}

func (p *Producer) Publish(ctx context.Context, event booking.Event) error {
	start := time.Now()
	err := p.send(ctx, event)
	p.metrics.Events.RecordPublish(ctx, transport, event.Type, time.Since(start), err)
	return err
}

func (p *Producer) send(ctx context.Context, event booking.Event) error {
	valueBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := Key(event.GroupID)
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(valueBytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("event_id"), Value: []byte(event.EventID)},
		},
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send event to kafka", "topic", p.topic, "key", key, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "event sent to kafka", "topic", p.topic, "partition", partition, "offset", offset, "key", key)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
