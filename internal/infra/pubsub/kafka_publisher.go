package pubsub

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"userapi/internal/domain/entity"
	"userapi/internal/domain/service"
	"userapi/internal/errors"

	"github.com/segmentio/kafka-go"
)

// kafkaWriter is the subset of *kafka.Writer the publisher uses.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaPublisher writes user events to a Kafka topic, keyed by user ID so
// events for one user stay ordered within a partition.
type kafkaPublisher struct {
	writer kafkaWriter
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) service.EventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("Kafka publisher initialized",
		slog.Any("brokers", brokers),
		slog.String("topic", topic),
	)

	return newKafkaPublisherWithWriter(writer, logger)
}

func newKafkaPublisherWithWriter(writer kafkaWriter, logger *slog.Logger) *kafkaPublisher {
	return &kafkaPublisher{writer: writer, logger: logger}
}

func (p *kafkaPublisher) PublishUserEvent(ctx context.Context, event *entity.UserEvent) error {
	data, attributes, err := encodeUserEvent(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: data,
		Time:  time.Now(),
	}
	for key, value := range attributes {
		msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "kafka publish")
	}

	p.logger.DebugContext(ctx, "[Kafka] Event published",
		slog.String("type", string(event.Type)),
		slog.Int64("user_id", event.UserID),
	)

	return nil
}

func (p *kafkaPublisher) Close() error {
	return errors.WithStack(p.writer.Close())
}
