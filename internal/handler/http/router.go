package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhishek-Rj/Topprix-sub001/internal/assets"
	"github.com/abhishek-Rj/Topprix-sub001/internal/catalog"
	"github.com/abhishek-Rj/Topprix-sub001/internal/config"
	"github.com/abhishek-Rj/Topprix-sub001/internal/consent"
	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	"github.com/abhishek-Rj/Topprix-sub001/internal/listing"
	bffmiddleware "github.com/abhishek-Rj/Topprix-sub001/internal/middleware"
	"github.com/abhishek-Rj/Topprix-sub001/internal/retailer"
	"github.com/abhishek-Rj/Topprix-sub001/internal/session"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/health"
	pkgmiddleware "github.com/abhishek-Rj/Topprix-sub001/pkg/middleware"
)

const (
	serviceName      = "topprix-bff"
	categoryMaxAge   = 5 * time.Minute
	compressionLevel = 5
)

// Services bundles everything the routes delegate to.
type Services struct {
	Listings  *listing.Service
	Catalog   *catalog.Cache
	Retailers *retailer.Resolver
	Consent   *consent.Service
	Assets    *assets.Service
	Verifier  session.Verifier
	Sessions  *session.Resolver
}

// NewRouter creates the chi router with the global middleware stack, the
// operational endpoints and the /api/v1 routes. ctx bounds background work
// started by middleware.
func NewRouter(ctx context.Context, cfg *config.Config, svc Services, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	cors := pkgmiddleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.MaxAge = cfg.CORSMaxAge
	cors.Environment = cfg.Environment

	r.Use(pkgmiddleware.CORS(cors))
	r.Use(bffmiddleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Compress(compressionLevel))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.PrometheusMetrics(serviceName))
	r.Use(pkgmiddleware.Tracing(serviceName))
	r.Use(pkgmiddleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	r.With(pkgmiddleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())
	pkgmiddleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	listings := NewListingHandler(svc.Listings, logger)
	categories := NewCatalogHandler(svc.Catalog)
	retailers := NewRetailerHandler(svc.Listings, svc.Retailers, logger)
	consentHandler := NewConsentHandler(svc.Consent, logger)
	assetHandler := NewAssetHandler(svc.Assets, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(session.Middleware(svc.Verifier, svc.Sessions, logger))

		r.Get("/flyers", listings.List(domain.ResourceFlyers))
		r.Get("/coupons", listings.List(domain.ResourceCoupons))
		r.Get("/stores", listings.List(domain.ResourceStores))
		r.Get("/anti-waste-items", listings.List(domain.ResourceAntiWasteItems))

		r.Group(func(r chi.Router) {
			r.Use(pkgmiddleware.CacheControl(categoryMaxAge))
			r.Get("/categories", categories.Tree)
			r.Get("/categories/names", categories.Names)
		})

		r.Group(func(r chi.Router) {
			r.Use(pkgmiddleware.NoStore)

			r.Get("/session", GetSession)

			r.Route("/consent", func(r chi.Router) {
				r.Get("/", consentHandler.Markers)
				r.Post("/evaluate", consentHandler.Evaluate)
				r.Post("/location", consentHandler.SubmitLocation)
				r.Post("/skip", consentHandler.Skip)
				r.Post("/login", consentHandler.Login)
			})

			r.Route("/retailer", func(r chi.Router) {
				r.Use(session.RequireRole(logger, domain.RoleRetailer, domain.RoleAdmin))
				r.Get("/stores", retailers.Stores)
				r.Get("/flyers", retailers.List(domain.ResourceFlyers))
				r.Get("/coupons", retailers.List(domain.ResourceCoupons))
				r.Get("/anti-waste-items", retailers.List(domain.ResourceAntiWasteItems))
			})

			r.With(session.RequireRole(logger, domain.RoleRetailer, domain.RoleAdmin)).
				Post("/assets", assetHandler.Upload)
		})
	})

	return r
}
