package main

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cvandijck/card-generator/internal/card"
	"github.com/cvandijck/card-generator/internal/config"
	"github.com/cvandijck/card-generator/internal/gemini"
	"github.com/cvandijck/card-generator/internal/httpclient"
	"github.com/cvandijck/card-generator/internal/preset"
	"github.com/cvandijck/card-generator/internal/web"
	"github.com/cvandijck/card-generator/pkg/metrics"
)

//go:embed static/*
var staticFS embed.FS

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)
	metrics.Init()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	generator := card.NewGenerator(card.GeneratorOptions{
		Model:  gem,
		Logger: logger,
	})

	presets, err := preset.Load(cfg.PresetsFile)
	if err != nil {
		logger.Error("presets load failed", "err", err)
		os.Exit(1)
	}

	srv := web.NewServer(web.Options{
		Generator: generator,
		Presets:   presets,
		Results:   web.NewResultStore(cfg.ResultTTL),
		Timeout:   cfg.RequestTimeout,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	srv.Routes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticSub)))

	httpSrv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           web.WithLogging(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("web started", "addr", cfg.WebAddr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
