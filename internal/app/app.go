package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the outbox relay,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	brokers := events.ParseBrokers(cfg.Kafka.Brokers)

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))
	if len(brokers) > 0 {
		// Checkout keeps working while Kafka is down, so brokers only gate
		// liveness after a long outage, never readiness.
		healthSvc.Add(health.Liveness, "kafka", health.BrokerCheck(brokers),
			health.WithTimeout(5*time.Second),
			health.WithThresholds(30, 1),
		)
	}
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderStore := postgres.NewOrderStore(pool)
	userRepo := postgres.NewUserRepository(pool)

	// Domain services.
	orderService, err := order.NewService(orderStore,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	h := handler.New(
		product.NewService(productRepo),
		cart.NewService(cartRepo, productRepo),
		orderService,
		auth.NewService(userRepo, auth.NewTokens([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	relayDone := make(chan struct{})
	if len(brokers) > 0 {
		writer := events.NewKafkaWriter(brokers)
		relay := events.NewRelay(postgres.NewOutboxRepository(pool), writer, events.NewMetrics(registry), events.RelayConfig{
			Interval:  cfg.Kafka.PollInterval,
			BatchSize: cfg.Kafka.BatchSize,
		})
		go func() {
			defer close(relayDone)
			defer func() { _ = writer.Close() }()
			lg.Info("Outbox relay started", zap.Strings("brokers", brokers))
			if err := relay.Run(ctx); err != nil {
				lg.Error("Outbox relay stopped", zap.Error(err))
			}
		}()
	} else {
		lg.Warn("No Kafka brokers configured, order events stay in the outbox")
		close(relayDone)
	}

	// One mux for the API, probes and metrics.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("storefront-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		<-relayDone
		close(shutdownDone)
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
