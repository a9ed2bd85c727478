// Command courseforge runs the manual-enrollment review API and its admin
// subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfhttp "github.com/Strob0t/CourseForge/internal/adapter/http"
	cfnats "github.com/Strob0t/CourseForge/internal/adapter/nats"
	"github.com/Strob0t/CourseForge/internal/adapter/natskv"
	cfotel "github.com/Strob0t/CourseForge/internal/adapter/otel"
	"github.com/Strob0t/CourseForge/internal/adapter/postgres"
	"github.com/Strob0t/CourseForge/internal/adapter/slack"
	"github.com/Strob0t/CourseForge/internal/adapter/ws"
	"github.com/Strob0t/CourseForge/internal/config"
	"github.com/Strob0t/CourseForge/internal/logger"
	"github.com/Strob0t/CourseForge/internal/middleware"
	"github.com/Strob0t/CourseForge/internal/port/messagequeue"
	"github.com/Strob0t/CourseForge/internal/resilience"
	"github.com/Strob0t/CourseForge/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"cache_backend", cfg.Cache.Backend,
		"nats_enabled", cfg.NATS.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOtel, err := cfotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	applied, err := postgres.RunMigrations(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied", "count", applied)

	// NATS (optional)
	var queue *cfnats.Queue
	if cfg.NATS.Enabled {
		queue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
	}

	// --- Services ---
	store := postgres.NewStore(pool)

	tenantBackend, closeCache, err := buildTenantCache(ctx, cfg, queue)
	if err != nil {
		return fmt.Errorf("tenant cache: %w", err)
	}
	defer closeCache()

	resolver := service.NewTenantResolver(store, service.NewTenantCache(tenantBackend, metrics))
	enrollments := service.NewEnrollmentService(store, resolver, service.EnrollmentOptions{
		DefaultCurrency: cfg.Enrollment.DefaultCurrency,
		MetricsWindow:   cfg.Enrollment.MetricsWindow,
		MaxListLimit:    cfg.Enrollment.MaxListLimit,
	})
	enrollments.SetMetrics(metrics)

	hub := ws.NewHub(originPatterns(cfg.Server.CORSOrigin), resolver.Resolve)
	defer hub.Close()
	enrollments.SetBroadcaster(hub)

	var apiMiddleware []func(http.Handler) http.Handler
	if queue != nil {
		breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		breaker.OnStateChange(func(from, to resilience.State) {
			slog.Warn("event publisher breaker", "from", from.String(), "to", to.String())
		})
		enrollments.SetEventPublisher(service.NewQueuePublisher(queue, breaker))

		idem, err := natskv.Open(ctx, queue.JetStream(), cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
		if err != nil {
			return fmt.Errorf("idempotency bucket: %w", err)
		}
		apiMiddleware = append(apiMiddleware, middleware.Idempotency(idem, cfg.Idempotency.TTL))

		if cfg.Notify.SlackWebhookURL != "" {
			stopAlerts, err := subscribeAlerts(ctx, queue, slack.NewNotifier(cfg.Notify.SlackWebhookURL, cfg.Notify.ConsoleURL))
			if err != nil {
				return fmt.Errorf("slack alerts: %w", err)
			}
			defer stopAlerts()
		}
	}

	// --- HTTP ---
	handlers := &cfhttp.Handlers{
		Enrollments: enrollments,
		Store:       store,
		BodyLimit:   cfg.Server.BodyLimit,
	}
	if queue != nil {
		handlers.Queue = queue
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(limiter.Handler)

	// WebSocket feed stays outside the request timeout.
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		cfhttp.MountRoutes(r, handlers, apiMiddleware...)
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// subscribeAlerts attaches the reviewer alert handler to both enrollment
// subjects and returns a function that stops the consumers.
func subscribeAlerts(ctx context.Context, queue messagequeue.Queue, n *slack.Notifier) (func(), error) {
	var stops []func()
	stopAll := func() {
		for _, stop := range stops {
			stop()
		}
	}
	for _, subject := range []string{messagequeue.SubjectEnrollmentSubmitted, messagequeue.SubjectEnrollmentReviewed} {
		stop, err := queue.Subscribe(ctx, subject, n.HandleEvent)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		stops = append(stops, stop)
	}
	slog.Info("slack reviewer alerts enabled")
	return stopAll, nil
}

// originPatterns converts the CORS origin into WebSocket origin patterns.
// An empty origin leaves only same-host upgrades allowed.
func originPatterns(origin string) []string {
	switch origin {
	case "":
		return nil
	case "*":
		return []string{"*"}
	}
	if host, ok := hostOf(origin); ok {
		return []string{host}
	}
	return nil
}
