package consent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	"github.com/abhishek-Rj/Topprix-sub001/internal/event"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

const eventPublishTimeout = 2 * time.Second

// Geocoder resolves a postal code. *geocode.Client implements it.
type Geocoder interface {
	Lookup(ctx context.Context, zip, country string) (domain.Location, error)
}

// ProfileUpdater writes location fields to a backend profile.
// *backend.Client implements it.
type ProfileUpdater interface {
	UpdateLocation(ctx context.Context, userID string, update domain.LocationUpdate) error
}

// SessionCache drops cached sessions whose profile changed.
// *session.Resolver implements it.
type SessionCache interface {
	Invalidate(principalID string)
}

// LocationRequest is the body of a location submission.
type LocationRequest struct {
	Zip     string `json:"zip" validate:"required,max=20"`
	Country string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// Service runs the consent flow against the marker store.
type Service struct {
	store    Store
	geocoder Geocoder
	profiles ProfileUpdater
	sessions SessionCache
	events   *event.Producer
	logger   *slog.Logger
}

// NewService creates a consent service.
func NewService(store Store, geocoder Geocoder, profiles ProfileUpdater, sessions SessionCache, events *event.Producer, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		geocoder: geocoder,
		profiles: profiles,
		sessions: sessions,
		events:   events,
		logger:   logger,
	}
}

// Evaluate decides what to show for a page view at path and persists the
// markers the decision changed.
func (s *Service) Evaluate(ctx context.Context, key, path string, sess domain.Session) (Decision, error) {
	m, err := s.store.Load(ctx, key)
	if err != nil {
		return Decision{}, err
	}

	d := Decide(Input{Path: normalizePath(path), Session: sess, Markers: m})
	if d.Changed {
		if err := s.store.Save(ctx, key, d.Markers); err != nil {
			return Decision{}, err
		}
	}
	return d, nil
}

// SubmitLocation geocodes req and stores the result: on the backend profile
// for signed-in users with a backend account, in the marker store
// otherwise. The location prompt marker is cleared on success.
func (s *Service) SubmitLocation(ctx context.Context, key string, sess domain.Session, req LocationRequest) (domain.Location, error) {
	loc, err := s.geocoder.Lookup(ctx, strings.TrimSpace(req.Zip), strings.ToUpper(req.Country))
	if err != nil {
		return domain.Location{}, err
	}

	m, err := s.store.Load(ctx, key)
	if err != nil {
		return domain.Location{}, err
	}

	if !sess.Anonymous() && sess.UserID != "" {
		lat, lon := loc.Latitude, loc.Longitude
		if err := s.profiles.UpdateLocation(ctx, sess.UserID, domain.LocationUpdate{Latitude: &lat, Longitude: &lon}); err != nil {
			return domain.Location{}, fmt.Errorf("save profile location: %w", err)
		}
		s.sessions.Invalidate(sess.Identity.ID)
	} else {
		m.Latitude = &loc.Latitude
		m.Longitude = &loc.Longitude
	}

	m.LocationPromptShown = false
	if err := s.store.Save(ctx, key, m); err != nil {
		return domain.Location{}, err
	}

	s.publishLocationSaved(ctx, key, sess, req, loc)
	return loc, nil
}

// Skip records that the caller declined to share a location.
func (s *Service) Skip(ctx context.Context, key string, sess domain.Session) error {
	m, err := s.store.Load(ctx, key)
	if err != nil {
		return err
	}

	if !sess.Anonymous() && sess.UserID != "" {
		skipped := true
		if err := s.profiles.UpdateLocation(ctx, sess.UserID, domain.LocationUpdate{LocationSkipped: &skipped}); err != nil {
			return fmt.Errorf("save location skip: %w", err)
		}
		s.sessions.Invalidate(sess.Identity.ID)
	}

	m.LocationSkipped = true
	m.LocationPromptShown = false
	return s.store.Save(ctx, key, m)
}

// Login records that the caller followed the login prompt.
func (s *Service) Login(ctx context.Context, key string) error {
	m, err := s.store.Load(ctx, key)
	if err != nil {
		return err
	}
	if !m.LoginPromptShown {
		return nil
	}
	m.LoginPromptShown = false
	return s.store.Save(ctx, key, m)
}

// Markers returns the stored markers of key.
func (s *Service) Markers(ctx context.Context, key string) (Markers, error) {
	return s.store.Load(ctx, key)
}

func (s *Service) publishLocationSaved(ctx context.Context, key string, sess domain.Session, req LocationRequest, loc domain.Location) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	err := s.events.PublishLocationSaved(pubCtx, event.LocationSavedData{
		SessionKey: key,
		UserID:     sess.UserID,
		Zip:        req.Zip,
		Country:    strings.ToUpper(req.Country),
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
	})
	if err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "failed to publish location saved event",
			slog.String("error", err.Error()),
		)
	}
}

// normalizePath treats "" and a trailing slash or query string on root as
// root.
func normalizePath(p string) string {
	p, _, _ = strings.Cut(p, "?")
	p, _, _ = strings.Cut(p, "#")
	if p == "" {
		return RootPath
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return RootPath
		}
	}
	return p
}
