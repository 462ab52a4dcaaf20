package notify

import (
	"context"
	"errors"
	"time"

	"github.com/relabs-tech/kadmin/core"
	"github.com/relabs-tech/kadmin/core/logger"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes notifications to a Kafka topic. The message key is the
// resource, so all notifications of one resource land in the same partition.
type Kafka struct {
	writer messageWriter
}

// NewKafka returns a notifier writing to topic on brokers
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka notifier needs brokers and a topic")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           5 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Kafka{writer: w}, nil
}

// Notify implements core.Notifier
func (k *Kafka) Notify(ctx context.Context, resource string, operation core.Operation, payload []byte) {
	msg := kafka.Message{
		Key:   []byte(resource),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(operation)},
			{Key: "context", Value: logger.SerializeLoggerContext(ctx)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 5101: cannot publish %s notification for %s", operation, resource)
	}
}

// Close flushes and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}
