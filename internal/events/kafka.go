package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/logging"
)

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by subject so every event for
// one order or session lands on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher returns a publisher for topic. It returns nil when brokers or topic are empty;
// callers then fall back to Nop. Call Close when shutting down.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		logger: logging.OrNop(logger),
	}
}

// Publish serializes and writes the events in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, evs ...Event) error {
	if p == nil || p.writer == nil || len(evs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Subject),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(ev.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Warn("events: kafka write failed", zap.String("topic", p.writer.Topic), zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the writer. Safe on a nil publisher.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Handler processes one consumed event.
type Handler func(ctx context.Context, ev Event) error

// Fanout returns a Handler that passes each event to every non-nil h in order. All handlers run
// even when one fails; their errors are joined.
func Fanout(hs ...Handler) Handler {
	return func(ctx context.Context, ev Event) error {
		var errs []error
		for _, h := range hs {
			if h == nil {
				continue
			}
			if err := h(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// KafkaConsumer reads events from a topic as part of a consumer group.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

// NewKafkaConsumer returns a consumer, or nil when brokers, topic or groupID are empty.
func NewKafkaConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *KafkaConsumer {
	if len(brokers) == 0 || topic == "" || groupID == "" {
		return nil
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		logger: logging.OrNop(logger),
	}
}

// Run fetches messages until ctx is cancelled, passing each decoded event to h and committing
// its offset afterwards. Undecodable messages and handler errors are logged and committed so a
// poison message cannot stall the group.
func (c *KafkaConsumer) Run(ctx context.Context, h Handler) error {
	if c == nil {
		<-ctx.Done()
		return nil
	}
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		var ev Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.logger.Warn("events: undecodable message", zap.Int64("offset", msg.Offset), zap.Error(err))
		} else if err := h(ctx, ev); err != nil {
			c.logger.Warn("events: handler failed", zap.String("type", ev.Type), zap.String("subject", ev.Subject), zap.Error(err))
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// Close closes the reader. Safe on a nil consumer.
func (c *KafkaConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
