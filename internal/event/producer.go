// Package event publishes the BFF's domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/abhishek-Rj/Topprix-sub001/pkg/kafka"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

// Kafka topics published by the BFF.
var (
	TopicListingPartialMerge  = pkgkafka.Topic("listing", "partial_merge")
	TopicConsentLocationSaved = pkgkafka.Topic("consent", "location_saved")
)

// Subject kinds carried on the envelope.
const (
	SubjectRetailer = "retailer"
	SubjectSession  = "session"
)

// SourceBFF identifies events originating from this service.
const SourceBFF = "topprix-bff"

// PartialMergeData is the payload of a listing.partial_merge event.
type PartialMergeData struct {
	Resource       string   `json:"resource"`
	RetailerEmail  string   `json:"retailer_email"`
	StoreCount     int      `json:"store_count"`
	FailedStoreIDs []string `json:"failed_store_ids"`
}

// LocationSavedData is the payload of a consent.location_saved event.
type LocationSavedData struct {
	SessionKey string  `json:"session_key"`
	UserID     string  `json:"user_id,omitempty"`
	Zip        string  `json:"zip"`
	Country    string  `json:"country"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Publisher is implemented by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes BFF domain events. A Producer without a publisher
// drops events, which is how the BFF runs when no brokers are configured.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. kafka may be nil.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// Enabled reports whether events are actually sent.
func (p *Producer) Enabled() bool {
	return p != nil && p.kafka != nil
}

// PublishPartialMerge reports a retailer listing merged with some stores
// missing.
func (p *Producer) PublishPartialMerge(ctx context.Context, data PartialMergeData) error {
	return p.publish(ctx, TopicListingPartialMerge, data.RetailerEmail, SubjectRetailer, data)
}

// PublishLocationSaved reports a location stored through the consent flow.
func (p *Producer) PublishLocationSaved(ctx context.Context, data LocationSavedData) error {
	return p.publish(ctx, TopicConsentLocationSaved, data.SessionKey, SubjectSession, data)
}

func (p *Producer) publish(ctx context.Context, topic, subject, kind string, data any) error {
	if !p.Enabled() {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, subject, kind, SourceBFF, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("subject", subject),
	)
	return nil
}
