// Drive Gallery server
//
// Serves a private, paginated photo gallery from a cloud file source
// (Google Drive service account or an S3-compatible bucket):
// - studio (root) and session (subfolder) navigation with search
// - TTL-cached listings, indefinitely cached downloads, manual cache clear
// - retried downloads, per-image failure isolation, EXIF-aware thumbnails
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seoulfie/drivegallery/internal/api"
	"github.com/seoulfie/drivegallery/internal/cache"
	"github.com/seoulfie/drivegallery/internal/config"
	"github.com/seoulfie/drivegallery/internal/gallery"
	"github.com/seoulfie/drivegallery/internal/logging"
	"github.com/seoulfie/drivegallery/internal/metrics"
	"github.com/seoulfie/drivegallery/internal/models"
	"github.com/seoulfie/drivegallery/internal/source"
	"github.com/seoulfie/drivegallery/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Drive Gallery server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("backend", cfg.SourceBackend),
		zap.Int("roots", len(cfg.RootFolderIDs)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := source.New(ctx, cfg)
	if err != nil {
		logging.Fatal("source init failed", zap.Error(err))
	}
	defer src.Close()

	// Probe the first root before serving: an invalid credential is fatal
	// at startup, while a single bad root id only degrades that selector.
	probeCtx, probeCancel := context.WithTimeout(ctx, 30*time.Second)
	name, err := src.FolderName(probeCtx, cfg.RootFolderIDs[0])
	probeCancel()
	if err != nil {
		var authErr *models.AuthError
		if errors.As(err, &authErr) {
			logging.Fatal("credential rejected by storage backend", zap.Error(err))
		}
		logging.Warn("root folder probe failed",
			zap.String("folder_id", cfg.RootFolderIDs[0]),
			zap.Error(err))
	} else {
		logging.Info("storage backend reachable", zap.String("first_root", name))
	}

	store := cache.New()
	cached := source.NewCached(src, store, cfg.ListTTL)
	renderer := gallery.NewRenderer(cached, store, cfg.ThumbMaxWidth, cfg.ThumbMaxHeight)
	controller := view.NewController(cached, cfg.RootFolderIDs)
	auth := api.NewAuth(cfg.PasswordHash, cfg.JWTSecret)
	if auth == nil {
		logging.Warn("no GALLERY_PASSWORD_HASH set, gallery is open")
	}

	server := api.NewServer(cached, controller, renderer, auth)

	// Metrics on a separate listener
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metrics.Handler())
		logging.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info("gallery listening", zap.String("addr", cfg.ListenAddr))
		if err := api.Serve(srv, cfg.TLSCertFile, cfg.TLSKeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown error", zap.Error(err))
	}
	logging.Info("bye")
}
