package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header names set on every message. Consumers can route on them without
// decoding the value.
const (
	HeaderEventID       = "ce-id"
	HeaderEventType     = "ce-type"
	HeaderEventSource   = "ce-source"
	HeaderCorrelationID = "x-correlation-id"
)

// ErrNoTopic is returned when Publish is called without a topic.
var ErrNoTopic = errors.New("kafka: topic is required")

// ProducerConfig tunes the underlying kafka-go writer.
type ProducerConfig struct {
	Brokers      []string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	// RequiredAcks follows kafka-go: -1 all replicas, 1 leader only.
	RequiredAcks int
	DialTimeout  time.Duration
}

// DefaultProducerConfig suits the BFF's notifications: nothing waits on
// them, so batches are flushed quickly and only the leader must ack.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		BatchTimeout: 5 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: int(kafka.RequireOne),
		DialTimeout:  3 * time.Second,
	}
}

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes Events to Kafka.
type Producer struct {
	writer      MessageWriter
	brokers     []string
	dialTimeout time.Duration
	logger      *slog.Logger
}

// NewProducer builds a producer backed by a kafka-go writer. The writer
// connects lazily on first publish. A nil logger discards output.
func NewProducer(cfg ProducerConfig, logger *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: true,
	}
	p := NewProducerWithWriter(w, cfg.Brokers, logger)
	if cfg.DialTimeout > 0 {
		p.dialTimeout = cfg.DialTimeout
	}
	return p
}

// NewProducerWithWriter builds a producer around w. Tests pass a fake.
func NewProducerWithWriter(w MessageWriter, brokers []string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Producer{
		writer:      w,
		brokers:     brokers,
		dialTimeout: 3 * time.Second,
		logger:      logger,
	}
}

// Publish writes event to topic and blocks until the brokers ack or ctx
// ends.
func (p *Producer) Publish(ctx context.Context, topic string, event *Event) error {
	msg, err := encodeMessage(topic, event)
	if err != nil {
		eventsTotal.WithLabelValues(topic, outcomeRejected).Inc()
		return err
	}
	InjectTraceContext(ctx, &msg)

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	observePublish(topic, start, err)
	if err != nil {
		p.logger.WarnContext(ctx, "event not published",
			slog.String("topic", topic),
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("write to %s: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("event_id", event.ID),
		slog.String("subject", event.Subject),
	)
	return nil
}

func encodeMessage(topic string, event *Event) (kafka.Message, error) {
	if strings.TrimSpace(topic) == "" {
		return kafka.Message{}, ErrNoTopic
	}
	if event == nil {
		return kafka.Message{}, errors.New("kafka: nil event")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(event.ID)},
		{Key: HeaderEventType, Value: []byte(event.Type)},
		{Key: HeaderEventSource, Value: []byte(event.Source)},
	}
	if event.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(event.CorrelationID)})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     event.key(),
		Value:   value,
		Headers: headers,
		Time:    event.Time,
	}, nil
}

// Ping reports whether any configured broker answers a metadata request.
func (p *Producer) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()
	return PingBrokers(ctx, p.brokers)
}

// PingBrokers tries each broker in turn and returns nil on the first one
// that lists the cluster's brokers.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}

	errs := make([]error, 0, len(brokers))
	for _, addr := range brokers {
		if err := pingBroker(ctx, addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		return nil
	}
	return fmt.Errorf("kafka: no broker reachable: %w", errors.Join(errs...))
}

func pingBroker(ctx context.Context, addr string) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	_, err = conn.Brokers()
	return err
}

// Close flushes buffered messages and releases connections.
func (p *Producer) Close() error {
	return p.writer.Close()
}
