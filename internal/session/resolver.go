package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

// Backend is the subset of the backend client the resolver needs.
type Backend interface {
	UserIDByEmail(ctx context.Context, email string) (string, error)
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
}

type cacheEntry struct {
	session domain.Session
	expires time.Time
}

// Resolver completes a verified identity into a session by looking up the
// backend account and its profile role. Successful resolutions are cached
// per principal; failures are retried on the next request.
type Resolver struct {
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewResolver creates a resolver whose cached sessions live for ttl.
func NewResolver(backend Backend, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		backend: backend,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
}

// Resolve returns the session of p. When the role cannot be determined the
// session keeps its identity with Role nil and Resolved false.
func (r *Resolver) Resolve(ctx context.Context, p *domain.Principal) domain.Session {
	if s, ok := r.cached(p.ID); ok {
		s.Identity = p
		return s
	}

	log := logger.WithContext(ctx, r.logger)
	sess := domain.Session{Identity: p}

	if p.Email == "" {
		log.WarnContext(ctx, "identity has no email, role left unresolved")
		return sess
	}

	userID, err := r.backend.UserIDByEmail(ctx, p.Email)
	if err != nil {
		log.WarnContext(ctx, "user lookup failed", slog.String("error", err.Error()))
		return sess
	}
	if userID == "" {
		log.InfoContext(ctx, "identity has no backend account yet")
		return sess
	}
	sess.UserID = userID

	profile, err := r.backend.Profile(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "profile lookup failed",
			slog.String("backend_user_id", userID),
			slog.String("error", err.Error()),
		)
		return sess
	}

	role, ok := domain.ParseRole(profile.Role)
	if !ok {
		log.WarnContext(ctx, "profile carries an unknown role",
			slog.String("backend_user_id", userID),
			slog.String("role", profile.Role),
		)
		return sess
	}

	sess.Role = &role
	sess.Profile = profile
	sess.Resolved = true
	r.store(p.ID, sess)
	return sess
}

// Invalidate drops the cached session of a principal, so the next request
// rereads the profile.
func (r *Resolver) Invalidate(principalID string) {
	r.mu.Lock()
	delete(r.cache, principalID)
	r.mu.Unlock()
}

func (r *Resolver) cached(id string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[id]
	if !ok {
		return domain.Session{}, false
	}
	if !r.now().Before(e.expires) {
		delete(r.cache, id)
		return domain.Session{}, false
	}
	return e.session, true
}

func (r *Resolver) store(id string, s domain.Session) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	r.cache[id] = cacheEntry{session: s, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()
}
