package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soa-extract/pkg/config"
	"soa-extract/pkg/handlers"
	"soa-extract/pkg/services/extract"
	"soa-extract/pkg/services/storage"
	"soa-extract/pkg/services/vision"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to an optional YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up the model client before serving any traffic
	model, err := vision.NewVertexClient(ctx, cfg.ProjectID, cfg.Region, cfg.ModelName)
	if err != nil {
		return err
	}

	// Set up upload storage
	store, err := storage.New(cfg.PublicDir)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	h := handlers.New(store, extract.NewService(store, model, cfg.MaxImageDimension))
	r := handlers.NewRouter(h, handlers.RouterConfig{
		UploadDir:      store.UploadDir(),
		CORSOrigins:    cfg.AllowedOrigins(),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "model", model.Model(), "uploads", store.UploadDir())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
