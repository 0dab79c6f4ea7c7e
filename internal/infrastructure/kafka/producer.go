// Package kafka publishes gateway events to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"dspacegw/internal/domain"
	"dspacegw/internal/infrastructure/telemetry"
	"dspacegw/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopic = "dspace-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.Topic), nil
}

func newProducer(writer messageWriter, topic string) *Producer {
	if strings.TrimSpace(topic) == "" {
		topic = defaultTopic
	}
	return &Producer{writer: writer, topic: topic}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// RecordSubmission publishes a tx_submitted event keyed by the sender address.
func (p *Producer) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	return p.publish(ctx, "gateway.publish_submission", []byte(submission.From), streaming.Message{
		Type:       streaming.MessageTypeTxSubmitted,
		OccurredAt: submission.SubmittedAt,
		TxHash:     submission.TxHash,
		From:       submission.From,
		To:         submission.To,
		Value:      submission.Value,
		DataSize:   submission.DataSize,
	}, attribute.String("tx.hash", submission.TxHash))
}

// RecordAccountCreation publishes an account_created event keyed by account name.
func (p *Producer) RecordAccountCreation(ctx context.Context, creation domain.AccountCreation) error {
	return p.publish(ctx, "gateway.publish_account", []byte(creation.Name), streaming.Message{
		Type:       streaming.MessageTypeAccountCreated,
		OccurredAt: creation.CreatedAt,
		Account:    creation.Name,
		Address:    creation.Address,
		Crypto:     creation.Crypto,
	}, attribute.String("account.name", creation.Name))
}

func (p *Producer) publish(ctx context.Context, spanName string, key []byte, msg streaming.Message, attrs ...attribute.KeyValue) error {
	ctx, span := otel.Tracer("dspacegw/kafka").Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(append(attrs, attribute.String("messaging.destination", p.topic))...),
	)
	defer span.End()

	msg.TraceID = telemetry.TraceIDFromContext(ctx)
	payload, err := streaming.Encode(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(ctx, &headers)

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     key,
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
