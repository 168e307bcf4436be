package consent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	"github.com/abhishek-Rj/Topprix-sub001/internal/event"
	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	pkgkafka "github.com/abhishek-Rj/Topprix-sub001/pkg/kafka"
)

type fakeGeocoder struct {
	loc domain.Location
	err error
}

func (g fakeGeocoder) Lookup(context.Context, string, string) (domain.Location, error) {
	return g.loc, g.err
}

type recordingProfiles struct {
	userID  string
	updates []domain.LocationUpdate
	err     error
}

func (p *recordingProfiles) UpdateLocation(_ context.Context, userID string, u domain.LocationUpdate) error {
	p.userID = userID
	p.updates = append(p.updates, u)
	return p.err
}

type recordingSessions struct{ invalidated []string }

func (s *recordingSessions) Invalidate(id string) { s.invalidated = append(s.invalidated, id) }

type recordingPublisher struct{ events []*pkgkafka.Event }

func (r *recordingPublisher) Publish(_ context.Context, _ string, e *pkgkafka.Event) error {
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	svc      *Service
	store    *RedisStore
	profiles *recordingProfiles
	sessions *recordingSessions
	pub      *recordingPublisher
}

func newFixture(t *testing.T, geo Geocoder) *fixture {
	t.Helper()
	_, client := setupRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fx := &fixture{
		store:    NewRedisStore(client, time.Hour),
		profiles: &recordingProfiles{},
		sessions: &recordingSessions{},
		pub:      &recordingPublisher{},
	}
	fx.svc = NewService(fx.store, geo, fx.profiles, fx.sessions, event.NewProducer(fx.pub, logger), logger)
	return fx
}

var reunion = domain.Location{Latitude: -20.8823, Longitude: 55.4504}

func TestEvaluate_PersistsShownMarker(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{})
	ctx := context.Background()
	sess := userSession(&domain.Profile{})

	d, err := fx.svc.Evaluate(ctx, "user:uid-1", "/", sess)
	require.NoError(t, err)
	assert.Equal(t, StateShowLocationDialog, d.State)

	d, err = fx.svc.Evaluate(ctx, "user:uid-1", "/", sess)
	require.NoError(t, err)
	assert.Equal(t, StateSuppressed, d.State, "dialog must not reappear on the same root session")
}

func TestEvaluate_AnonymousRoundTrip(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{})
	ctx := context.Background()
	anon := domain.AnonymousSession()

	steps := []struct {
		path string
		want State
	}{
		{"/", StateShowLoginPrompt},
		{"/", StateSuppressed},
		{"/flyers", StateIdle},
		{"/", StateShowLoginPrompt},
	}
	for i, step := range steps {
		d, err := fx.svc.Evaluate(ctx, "visitor:v-1", step.path, anon)
		require.NoError(t, err)
		assert.Equal(t, step.want, d.State, "step %d (%s)", i, step.path)
	}
}

func TestSubmitLocation_SignedInUpdatesProfile(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{loc: reunion})
	ctx := context.Background()
	sess := userSession(&domain.Profile{})

	_, err := fx.svc.Evaluate(ctx, "user:uid-1", "/", sess)
	require.NoError(t, err)

	loc, err := fx.svc.SubmitLocation(ctx, "user:uid-1", sess, LocationRequest{Zip: "97400", Country: "re"})
	require.NoError(t, err)
	assert.Equal(t, reunion, loc)

	require.Len(t, fx.profiles.updates, 1)
	assert.Equal(t, "u-1", fx.profiles.userID)
	assert.InDelta(t, reunion.Latitude, *fx.profiles.updates[0].Latitude, 1e-9)
	assert.Nil(t, fx.profiles.updates[0].LocationSkipped)
	assert.Equal(t, []string{"uid-1"}, fx.sessions.invalidated)

	m, err := fx.store.Load(ctx, "user:uid-1")
	require.NoError(t, err)
	assert.False(t, m.LocationPromptShown)
	assert.Nil(t, m.Latitude, "signed-in coordinates live on the profile")

	require.Len(t, fx.pub.events, 1)
	var data event.LocationSavedData
	require.NoError(t, fx.pub.events[0].UnmarshalData(&data))
	assert.Equal(t, "RE", data.Country)
	assert.Equal(t, "u-1", data.UserID)
}

func TestSubmitLocation_AnonymousStoresMarkers(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{loc: reunion})
	ctx := context.Background()

	_, err := fx.svc.SubmitLocation(ctx, "visitor:v-1", domain.AnonymousSession(), LocationRequest{Zip: "97400", Country: "RE"})
	require.NoError(t, err)

	assert.Empty(t, fx.profiles.updates)
	m, err := fx.store.Load(ctx, "visitor:v-1")
	require.NoError(t, err)
	require.NotNil(t, m.Latitude)
	require.NotNil(t, m.Longitude)
	assert.InDelta(t, reunion.Longitude, *m.Longitude, 1e-9)
}

func TestSubmitLocation_NotFoundLeavesMarkers(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{err: apperrors.NotFound("location", "00000/RE")})
	ctx := context.Background()
	sess := userSession(&domain.Profile{})

	_, err := fx.svc.Evaluate(ctx, "user:uid-1", "/", sess)
	require.NoError(t, err)

	_, err = fx.svc.SubmitLocation(ctx, "user:uid-1", sess, LocationRequest{Zip: "00000", Country: "RE"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	m, err := fx.store.Load(ctx, "user:uid-1")
	require.NoError(t, err)
	assert.True(t, m.LocationPromptShown)
	assert.Empty(t, fx.pub.events)
}

func TestSubmitLocation_ProfileUpdateFails(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{loc: reunion})
	fx.profiles.err = errors.New("backend down")

	_, err := fx.svc.SubmitLocation(context.Background(), "user:uid-1", userSession(&domain.Profile{}), LocationRequest{Zip: "97400", Country: "RE"})
	assert.Error(t, err)
	assert.Empty(t, fx.sessions.invalidated)
}

func TestSkip(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{})
	ctx := context.Background()
	sess := userSession(&domain.Profile{})

	_, err := fx.svc.Evaluate(ctx, "user:uid-1", "/", sess)
	require.NoError(t, err)
	require.NoError(t, fx.svc.Skip(ctx, "user:uid-1", sess))

	require.Len(t, fx.profiles.updates, 1)
	require.NotNil(t, fx.profiles.updates[0].LocationSkipped)
	assert.True(t, *fx.profiles.updates[0].LocationSkipped)
	assert.Nil(t, fx.profiles.updates[0].Latitude)

	// Navigating away and back must not bring the dialog back.
	_, err = fx.svc.Evaluate(ctx, "user:uid-1", "/flyers", sess)
	require.NoError(t, err)
	d, err := fx.svc.Evaluate(ctx, "user:uid-1", "/", sess)
	require.NoError(t, err)
	assert.Equal(t, StateSuppressed, d.State)
}

func TestSkip_AnonymousOnlyMarkers(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{})
	require.NoError(t, fx.svc.Skip(context.Background(), "visitor:v-1", domain.AnonymousSession()))

	assert.Empty(t, fx.profiles.updates)
	m, err := fx.svc.Markers(context.Background(), "visitor:v-1")
	require.NoError(t, err)
	assert.True(t, m.LocationSkipped)
}

func TestLogin_ClearsLoginMarker(t *testing.T) {
	fx := newFixture(t, fakeGeocoder{})
	ctx := context.Background()
	anon := domain.AnonymousSession()

	d, err := fx.svc.Evaluate(ctx, "visitor:v-1", "/", anon)
	require.NoError(t, err)
	require.Equal(t, StateShowLoginPrompt, d.State)

	require.NoError(t, fx.svc.Login(ctx, "visitor:v-1"))

	m, err := fx.svc.Markers(ctx, "visitor:v-1")
	require.NoError(t, err)
	assert.False(t, m.LoginPromptShown)
}
