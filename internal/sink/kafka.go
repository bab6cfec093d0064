package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/energynexus/nexus-cli/internal/models"
)

// DefaultTopic receives readings when none is configured
const DefaultTopic = "building-energy-readings"

// Kafka publishes readings as JSON keyed by reading ID
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka connects a synchronous producer to brokers
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	producer, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaWithProducer(producer, topic), nil
}

// ProducerConfig is the sarama configuration used for the reading topic
func ProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 5 * time.Second
	return config
}

// NewKafkaWithProducer wraps an existing producer
func NewKafkaWithProducer(producer sarama.SyncProducer, topic string) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Kafka{producer: producer, topic: topic}
}

func (s *Kafka) Name() string {
	return "kafka"
}

// WriteReading publishes one reading; ctx is unused by the sync producer
func (s *Kafka) WriteReading(_ context.Context, r models.Reading) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(r.ID),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish reading %s: %w", r.ID, err)
	}
	return nil
}

func (s *Kafka) Close() error {
	return s.producer.Close()
}
