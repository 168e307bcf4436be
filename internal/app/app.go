package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/abhishek-Rj/Topprix-sub001/internal/assets"
	"github.com/abhishek-Rj/Topprix-sub001/internal/backend"
	"github.com/abhishek-Rj/Topprix-sub001/internal/catalog"
	"github.com/abhishek-Rj/Topprix-sub001/internal/config"
	"github.com/abhishek-Rj/Topprix-sub001/internal/consent"
	"github.com/abhishek-Rj/Topprix-sub001/internal/event"
	"github.com/abhishek-Rj/Topprix-sub001/internal/geocode"
	handler "github.com/abhishek-Rj/Topprix-sub001/internal/handler/http"
	"github.com/abhishek-Rj/Topprix-sub001/internal/listing"
	"github.com/abhishek-Rj/Topprix-sub001/internal/retailer"
	"github.com/abhishek-Rj/Topprix-sub001/internal/session"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/database"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/health"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httpclient"
	pkgkafka "github.com/abhishek-Rj/Topprix-sub001/pkg/kafka"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/tracing"
)

const serviceName = "topprix-bff"

// App wires together all dependencies and runs the storefront BFF.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, connecting to Redis and
// building the dependency graph. Kafka and Cloudinary are optional.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Insecure:       cfg.OTELInsecure,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// undo releases what was built so far if a later step fails.
	var undo teardown
	undo.add(func() error {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer flushCancel()
		return tracerShutdown(flushCtx)
	})
	fail := func(err error) (*App, error) {
		if cerr := undo.run(); cerr != nil {
			logger.Warn("cleanup after failed startup", slog.String("error", cerr.Error()))
		}
		return nil, err
	}

	// Consent marker store.
	database.SetSlowCommandLogging(cfg.SlowRedisCommand, logger)
	redisCfg := database.DefaultRedisConfig()
	redisCfg.URL = cfg.RedisURL
	rdb, err := database.NewRedisClient(ctx, redisCfg, logger)
	if err != nil {
		return fail(fmt.Errorf("connect to redis: %w", err))
	}
	undo.add(rdb.Close)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, rdb, serviceName); err != nil {
		logger.Warn("redis pool metrics not registered", slog.String("error", err.Error()))
	}
	logger.Info("connected to Redis")

	// Events are published only when brokers are configured.
	var (
		producer  *pkgkafka.Producer
		publisher event.Publisher
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = producer
		undo.add(producer.Close)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("kafka brokers not configured, events disabled")
	}
	events := event.NewProducer(publisher, logger)

	storage, err := newStorage(cfg, logger)
	if err != nil {
		return fail(err)
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	// Upstream clients. Each upstream gets its own breaker so a failing
	// geocoder does not trip listings.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.UpstreamTimeout
	httpCfg.MaxRetries = cfg.UpstreamRetries
	backendHTTP := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), httpclient.DefaultCircuitBreakerConfig("backend"), logger)
	geocodeHTTP := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), httpclient.DefaultCircuitBreakerConfig("geocode"), logger)

	api := backend.New(cfg.BackendURL, backendHTTP, logger)
	geocoder := geocode.New(cfg.GeocodeURL, geocodeHTTP)

	// Build the dependency graph.
	categories := catalog.NewCache(api, cfg.CategoryCacheTTL, logger)
	stores := retailer.NewResolver(api, cfg.RetailerStoreLimit, logger)
	sessions := session.NewResolver(api, cfg.SessionRoleTTL, logger)
	merger := listing.NewMerger(api, events, cfg.FanOutLimit, cfg.FanOutConcurrency, logger)
	listings := listing.NewService(api, categories, stores, merger, listing.NewSequencer(), logger)
	consentService := consent.NewService(consent.NewRedisStore(rdb, cfg.ConsentTTL), geocoder, api, sessions, events, logger)
	assetService := assets.NewService(storage, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("backend", api.Ping)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	router := handler.NewRouter(bgCtx, cfg, handler.Services{
		Listings:  listings,
		Catalog:   categories,
		Retailers: stores,
		Consent:   consentService,
		Assets:    assetService,
		Verifier:  verifier,
		Sessions:  sessions,
	}, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
		stopBackground: stopBackground,
	}, nil
}

// teardown holds release funcs, run last-in first-out.
type teardown []func() error

func (t *teardown) add(release func() error) { *t = append(*t, release) }

func (t teardown) run() error {
	var errs []error
	for i := len(t) - 1; i >= 0; i-- {
		if err := t[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newStorage(cfg *config.Config, logger *slog.Logger) (assets.Storage, error) {
	if cfg.CloudinaryURL == "" {
		logger.Info("cloudinary not configured, assets kept in memory")
		return assets.NewMemoryStorage(cfg.AssetBaseURL), nil
	}
	s, err := assets.NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	if err != nil {
		return nil, fmt.Errorf("init asset storage: %w", err)
	}
	return s, nil
}

func newVerifier(ctx context.Context, cfg *config.Config) (session.Verifier, error) {
	if cfg.IdentityMode == config.IdentityOIDC {
		v, err := session.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("init oidc verifier: %w", err)
		}
		return v, nil
	}
	return session.NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown stops components in dependency order: HTTP first so in-flight
// requests can still publish and write markers, then Kafka and Redis, then
// the tracer so spans of drained requests are flushed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.stopBackground()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
