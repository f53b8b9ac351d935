package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/floodwatch/flood-search-service/internal/adapter/feeds"
	"github.com/floodwatch/flood-search-service/internal/adapter/geocode"
	httpadapter "github.com/floodwatch/flood-search-service/internal/adapter/http"
	kafkaadapter "github.com/floodwatch/flood-search-service/internal/adapter/kafka"
	"github.com/floodwatch/flood-search-service/internal/adapter/newsindex"
	"github.com/floodwatch/flood-search-service/internal/adapter/sensor"
	"github.com/floodwatch/flood-search-service/internal/adapter/social"
	"github.com/floodwatch/flood-search-service/internal/config"
	"github.com/floodwatch/flood-search-service/internal/domain"
	"github.com/floodwatch/flood-search-service/internal/ingest"
	"github.com/floodwatch/flood-search-service/internal/observability"
	"github.com/floodwatch/flood-search-service/internal/search"
	"github.com/floodwatch/flood-search-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	// Geocoding is feature-flagged; without it, requests must carry
	// coordinates.
	var geocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		client := geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderTimeout, logger)
		geocoder = geocode.NewCachedGeocoder(client, cfg.GeocoderCacheSize)
		logger.Info("geocoding enabled", "cache_size", cfg.GeocoderCacheSize, "timeout", cfg.GeocoderTimeout)
	} else {
		logger.Info("geocoding disabled")
	}

	scorer := domain.NewScorer(nil)

	sources := []search.Source{
		feeds.New(feeds.DefaultFeeds(), scorer, cfg.FeedTimeout, logger),
		newsindex.New(cfg.NewsIndexURL, cfg.NewsIndexTimeout, scorer, logger),
		sensor.NewRainfall(cfg.RainfallURL, cfg.SensorAPIKey, cfg.SensorTimeout, scorer, logger),
		sensor.NewRiver(cfg.RiverLevelURL, cfg.SensorAPIKey, cfg.SensorTimeout, scorer, logger),
	}

	var generators []search.Source
	for _, platform := range social.DefaultPlatforms() {
		generators = append(generators, social.New(platform, scorer, nil, logger))
	}

	svc := search.New(search.Deps{
		Store:      st,
		Geocoder:   geocoder,
		Sources:    sources,
		Generators: generators,
		Logger:     logger,
		Metrics:    metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Incident ingestion is feature-flagged; without it, the heatmap only
	// ever shows news-derived and estimated points.
	var checkers []httpadapter.ReadinessChecker
	var reader *kafkaadapter.Reader
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		loop := ingest.New(reader, st, logger, metrics)
		checkers = append(checkers, loop)

		go func() {
			if err := loop.Run(ctx); err != nil {
				logger.Error("ingest loop error", "error", err)
			}
		}()
		logger.Info("incident ingestion enabled",
			"topic", cfg.KafkaReportTopic, "group", cfg.KafkaGroupID)
	} else {
		logger.Info("incident ingestion disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, checkers, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
