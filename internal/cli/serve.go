package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinel-systems/secmon/common/logging"
	"github.com/sentinel-systems/secmon/internal/cache"
	"github.com/sentinel-systems/secmon/internal/config"
	"github.com/sentinel-systems/secmon/internal/handlers"
	"github.com/sentinel-systems/secmon/internal/logstore"
	"github.com/sentinel-systems/secmon/internal/middleware"
	"github.com/sentinel-systems/secmon/internal/query"
	"github.com/sentinel-systems/secmon/internal/ratelimit"
	"github.com/sentinel-systems/secmon/internal/recorder"
	"github.com/sentinel-systems/secmon/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the security monitoring service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("secmon"))
	logging.SetDefault(logger)

	slog.Info("Starting security monitoring service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)

	// Durable log store
	store, err := logstore.New(logstore.Options{
		Dir:        cfg.Security.LogDir,
		BaseDir:    cfg.Security.BaseDir,
		LineFormat: cfg.Security.LineFormat,
		Logger:     logger.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize log store: %w", err)
	}
	slog.Info("Security log store ready", slog.String("dir", store.Dir()))

	// Recorder with in-memory cache
	eventCache := cache.New(cfg.Security.CacheCapacity)
	rec := recorder.New(store, eventCache, logger.Logger)

	// Rate limiters (global and sensitive-path classes)
	globalLimiter, sensitiveLimiter := buildLimiters(cfg.RateLimit)
	defer globalLimiter.Close()
	defer sensitiveLimiter.Close()

	// Request interceptor
	sec, err := middleware.NewSecurity(cfg.Security, globalLimiter, sensitiveLimiter, rec, logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize security middleware: %w", err)
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret)
	queries := query.New(store)
	handler := handlers.New(rec, queries, eventCache, cfg.Auth.APIKey, logger.Logger)
	router := server.NewRouter(handler, auth, sec)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Background log rotation on a periodic schedule, never inline in
	// request handling.
	stopRotation := make(chan struct{})
	go rotationLoop(store, cfg.Security.RotationMaxAge, cfg.Security.RotationInterval, stopRotation)

	go func() {
		log.Printf("Security monitoring service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	close(stopRotation)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// buildLimiters constructs the global and sensitive-path limiters from
// configuration, falling back to in-memory counters when Redis is not
// available.
func buildLimiters(cfg config.RateLimitConfig) (ratelimit.RateLimiter, ratelimit.RateLimiter) {
	if !cfg.Enabled {
		log.Println("Rate limiting disabled in configuration")
		return ratelimit.NoOpLimiter{}, ratelimit.NoOpLimiter{}
	}

	if cfg.Backend == "redis" {
		global, gerr := ratelimit.NewRedisLimiter(cfg.RedisURL, cfg.GlobalLimit, cfg.GlobalWindow)
		sensitive, serr := ratelimit.NewRedisLimiter(cfg.RedisURL, cfg.SensitiveLimit, cfg.SensitiveWindow)
		if gerr == nil && serr == nil {
			log.Printf("Redis rate limiting enabled: %d/%s global, %d/%s sensitive",
				cfg.GlobalLimit, cfg.GlobalWindow, cfg.SensitiveLimit, cfg.SensitiveWindow)
			return global, sensitive
		}
		log.Printf("WARNING: Redis rate limiter unavailable, falling back to in-memory counters")
	}

	log.Printf("In-memory rate limiting enabled: %d/%s global, %d/%s sensitive",
		cfg.GlobalLimit, cfg.GlobalWindow, cfg.SensitiveLimit, cfg.SensitiveWindow)
	return ratelimit.NewMemoryLimiter(cfg.GlobalLimit, cfg.GlobalWindow),
		ratelimit.NewMemoryLimiter(cfg.SensitiveLimit, cfg.SensitiveWindow)
}

func rotationLoop(store *logstore.Store, maxAge, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := store.Rotate(maxAge); err != nil {
				slog.Error("log rotation failed", slog.String("error", err.Error()))
			}
		}
	}
}
