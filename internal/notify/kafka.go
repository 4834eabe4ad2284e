// Package notify publishes run summaries to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/catalog"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Option func(*Publisher)

func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// Publisher writes one message per run, keyed by run id.
type Publisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewPublisher(brokers []string, topic string, opts ...Option) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}, opts...)
}

// NewPublisherWithWriter builds a publisher on a custom writer (tests).
func NewPublisherWithWriter(writer messageWriter, opts ...Option) *Publisher {
	p := &Publisher{
		writer: writer,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) Record(ctx context.Context, s catalog.Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(s.RunID),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "state", Value: []byte(s.State)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	p.logger.Debug("run summary published", zap.String("run_id", s.RunID))
	return nil
}
