package kafka

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix namespaces every topic the BFF publishes to.
const TopicPrefix = "topprix"

// SchemaVersion is stamped on every envelope. Consumers reject versions
// they do not know.
const SchemaVersion = 1

// Topic builds a dotted topic name under TopicPrefix, for example
// Topic("listing", "partial_merge") is "topprix.listing.partial_merge".
// Empty segments are skipped.
func Topic(segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, TopicPrefix)
	for _, s := range segments {
		if s = strings.Trim(s, ". "); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

// Event is the envelope written to Kafka. Subject is the entity the event
// is about (a retailer email, a session key) and doubles as the partition
// key, so events for one subject stay ordered.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Subject       string          `json:"subject"`
	SubjectKind   string          `json:"subjectKind"`
	Time          time.Time       `json:"time"`
	SchemaVersion int             `json:"schemaVersion"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent encodes data and wraps it in a fresh envelope.
func NewEvent(eventType, subject, subjectKind, source string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Subject:       subject,
		SubjectKind:   subjectKind,
		Time:          time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Data:          raw,
	}, nil
}

// WithCorrelationID ties the event to the HTTP request that caused it.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// UnmarshalData decodes the payload into target.
func (e *Event) UnmarshalData(target any) error {
	return json.Unmarshal(e.Data, target)
}

// key is the partition key. Subject-less events are spread by id.
func (e *Event) key() []byte {
	if e.Subject != "" {
		return []byte(e.Subject)
	}
	return []byte(e.ID)
}
