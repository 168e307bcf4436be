package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/abhishek-Rj/Topprix-sub001/pkg/kafka"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

type recordingPublisher struct {
	topics []string
	events []*pkgkafka.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, evt *pkgkafka.Event) error {
	r.topics = append(r.topics, topic)
	r.events = append(r.events, evt)
	return r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "topprix.listing.partial_merge", TopicListingPartialMerge)
	assert.Equal(t, "topprix.consent.location_saved", TopicConsentLocationSaved)
}

func TestPublishPartialMerge(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, discardLogger())
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	err := p.PublishPartialMerge(ctx, PartialMergeData{
		Resource:       "flyers",
		RetailerEmail:  "shop@topprix.re",
		StoreCount:     3,
		FailedStoreIDs: []string{"st-2"},
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	evt := pub.events[0]
	assert.Equal(t, TopicListingPartialMerge, pub.topics[0])
	assert.Equal(t, TopicListingPartialMerge, evt.Type)
	assert.Equal(t, "shop@topprix.re", evt.Subject)
	assert.Equal(t, SubjectRetailer, evt.SubjectKind)
	assert.Equal(t, SourceBFF, evt.Source)
	assert.Equal(t, "corr-1", evt.CorrelationID)

	var data PartialMergeData
	require.NoError(t, evt.UnmarshalData(&data))
	assert.Equal(t, []string{"st-2"}, data.FailedStoreIDs)
	assert.Equal(t, 3, data.StoreCount)
}

func TestPublishLocationSaved(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewProducer(pub, discardLogger())

	err := p.PublishLocationSaved(context.Background(), LocationSavedData{
		SessionKey: "visitor:v-1", Zip: "97400", Country: "RE", Latitude: -20.88, Longitude: 55.45,
	})
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "visitor:v-1", pub.events[0].Subject)
	assert.Empty(t, pub.events[0].CorrelationID)
}

func TestPublish_WrapsError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := NewProducer(pub, discardLogger())

	err := p.PublishLocationSaved(context.Background(), LocationSavedData{SessionKey: "user:u-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicConsentLocationSaved)
	assert.Contains(t, err.Error(), "broker down")
}

func TestProducer_NilPublisherIsNoop(t *testing.T) {
	p := NewProducer(nil, discardLogger())
	assert.False(t, p.Enabled())
	assert.NoError(t, p.PublishPartialMerge(context.Background(), PartialMergeData{}))

	var nilProducer *Producer
	assert.False(t, nilProducer.Enabled())
	assert.NoError(t, nilProducer.PublishLocationSaved(context.Background(), LocationSavedData{}))
}
