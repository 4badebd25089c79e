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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"storefront/internal/gate"
	"storefront/internal/platform/config"
	"storefront/internal/platform/httpserver"
	"storefront/internal/platform/logger"
	"storefront/internal/platform/metrics"
	"storefront/internal/platform/redis"
	ratelimitmetrics "storefront/internal/ratelimit/metrics"
	ratelimitmw "storefront/internal/ratelimit/middleware"
	sessionmetrics "storefront/internal/session/metrics"
	"storefront/internal/session/service"
	"storefront/internal/session/store"
	"storefront/internal/sessioncookie"
	httptransport "storefront/internal/transport/http"
	"storefront/internal/upstream"
	"storefront/internal/views"
	"storefront/pkg/platform/circuit"
	"storefront/pkg/platform/middleware/browsersession"
)

const cookieIssuer = "storefront"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	if err := parseFlags(&cfg, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.DefaultRegisterer
	health := map[string]httptransport.HealthChecker{}

	repo, closeRepo, err := buildRepository(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeRepo()

	api, err := upstream.New(cfg.APIBaseURL,
		upstream.WithBreaker(circuit.New("storefront-api")),
		upstream.WithLogger(log),
		upstream.WithMetrics(reg),
	)
	if err != nil {
		return fmt.Errorf("storefront api client: %w", err)
	}
	sessions := service.New(repo, api, service.Config{
		ProbeTimeout:    cfg.Session.ProbeTimeout,
		ProbeWait:       cfg.Session.ProbeWait,
		RecheckInterval: cfg.Session.RecheckInterval,
	}, log, service.WithMetrics(sessionmetrics.New(reg)))

	pages, err := views.New(log, 1)
	if err != nil {
		return fmt.Errorf("load views: %w", err)
	}
	gateHandler, err := gate.NewHandler(sessions, pages, log, gate.WithMetrics(gate.NewMetrics(reg)))
	if err != nil {
		return fmt.Errorf("route gate: %w", err)
	}

	limitMetrics := ratelimitmetrics.New(reg)
	limiter := ratelimitmw.NewIPLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute,
		ratelimitmw.WithMetrics(limitMetrics))
	go limiter.RunSweeper(ctx, cfg.Session.SweepInterval)
	authLimit := ratelimitmw.New(limiter, log,
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMiddlewareMetrics(limitMetrics))

	codec := sessioncookie.NewCodec(cfg.Session.SigningKey, cookieIssuer, cfg.Session.TTL)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Logger:  log,
		Gate:    gateHandler,
		Auth:    httptransport.NewAuthHandler(sessions, log),
		Session: httptransport.NewSessionHandler(sessions, log),
		BrowserSession: browsersession.Middleware(codec, browsersession.Options{
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.CookieSecure,
		}, log),
		AuthRateLimit: authLimit.RateLimitAuth(),
		Metrics:       metrics.New(reg),
		Gatherer:      prometheus.DefaultGatherer,
		Health:        health,
		TrustProxy:    cfg.TrustProxy,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting storefront", "addr", cfg.Addr, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// buildRepository picks Redis when REDIS_URL is set and process memory
// otherwise.
func buildRepository(ctx context.Context, cfg config.Server, log *slog.Logger, health map[string]httptransport.HealthChecker) (service.Repository, func(), error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client != nil {
		health["redis"] = client
		log.Info("using redis session store")
		return store.NewRedis(client.Client, cfg.Session.TTL), func() { _ = client.Close() }, nil
	}

	log.Warn("REDIS_URL not set; sessions are kept in memory and lost on restart")
	mem := store.NewInMemory(cfg.Session.TTL)
	go mem.RunSweeper(ctx, cfg.Session.SweepInterval)
	return mem, func() {}, nil
}

func parseFlags(cfg *config.Server, args []string) error {
	fs := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "storefront API base URL")
	fs.StringVar(&cfg.Redis.URL, "redis", cfg.Redis.URL, "Redis URL for shared sessions (empty keeps sessions in memory)")
	fs.DurationVar(&cfg.Session.ProbeTimeout, "probe-timeout", cfg.Session.ProbeTimeout, "upper bound on one session check")
	fs.DurationVar(&cfg.Session.ProbeWait, "probe-wait", cfg.Session.ProbeWait, "how long a page waits for a session check before showing the loading page")
	fs.BoolVar(&cfg.Session.CookieSecure, "secure-cookie", cfg.Session.CookieSecure, "mark the session cookie Secure")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", cfg.TrustProxy, "take the client IP from X-Forwarded-For / X-Real-IP")
	fs.BoolVar(&cfg.RateLimit.Disabled, "disable-rate-limit", cfg.RateLimit.Disabled, "turn off auth action throttling")
	level := fs.String("log-level", cfg.LogLevel.String(), "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(*level)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	return nil
}
