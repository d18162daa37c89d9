package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coproportal/imageopt/internal/config"
	"github.com/coproportal/imageopt/internal/handler"
	"github.com/coproportal/imageopt/internal/middleware"
	"github.com/coproportal/imageopt/internal/optimizer"
	"github.com/coproportal/imageopt/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opt := optimizer.New(optimizerOptions(cfg.Optimize))

	pool := optimizer.NewWorkerPool(opt, cfg.WorkerCount)
	pool.Start()
	defer pool.Stop()

	uploader, err := newUploader(cfg.Storage)
	if err != nil {
		return err
	}

	h := handler.New(opt, pool, uploader, handler.Config{
		MaxUploadMB: cfg.MaxUploadMB,
		Bucket:      cfg.Storage.Bucket,
		BaseFolder:  cfg.Storage.BaseFolder,
	})

	// timeouts guard against slowloris and hanging connections
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(cfg, h),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().
		Str("addr", server.Addr).
		Strs("formats", formatNames(opt.Formats())).
		Int("max_upload_mb", cfg.MaxUploadMB).
		Int("max_concurrent", cfg.MaxConcurrent).
		Int("rate_limit", cfg.RateLimitPerSec).
		Int("workers", cfg.WorkerCount).
		Bool("storage", uploader != nil).
		Msg("starting image optimization API")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Warn().Msg("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// newRouter wires middleware and routes. Middlewares run outermost first:
// security headers, CORS, per-IP rate limit, global concurrency limit, panic
// recovery, request logging.
func newRouter(cfg *config.Config, h *handler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Security,
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		middleware.ConcurrencyLimit(cfg.MaxConcurrent),
		middleware.Recovery,
		middleware.Logger,
	)

	r.Post("/optimize", h.Optimize)
	r.Post("/upload", h.Upload)
	r.Get("/capabilities", h.Capabilities)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// newUploader returns nil when no storage endpoint is configured
func newUploader(c config.StorageConfig) (storage.Uploader, error) {
	if c.Endpoint == "" {
		log.Warn().Msg("no storage endpoint configured, /upload disabled")
		return nil, nil
	}
	b, err := storage.NewBucket(storage.BucketConfig{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Region:    c.Region,
		UseSSL:    c.UseSSL,
		PublicURL: c.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func formatNames(formats []optimizer.Format) []string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}
	return names
}
