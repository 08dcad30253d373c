package sink

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// KafkaConfig describes the Kafka destination.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each batch as one message keyed by dataset, so every
// dataset stays ordered within its partition.
type KafkaSink struct {
	w messageWriter
}

// NewKafkaSink returns a sink backed by a kafka.Writer with hash balancing.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	return &KafkaSink{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, dataset string, set model.EntitySet) error {
	payload, err := set.Encode(false)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(dataset),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "dataset", Value: []byte(dataset)},
			{Key: "records", Value: []byte(strconv.Itoa(len(set.Entities)))},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }
