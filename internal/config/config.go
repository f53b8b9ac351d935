package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// SQLite store.
	DBPath string

	// Source adapter endpoints and timeouts.
	FeedTimeout      time.Duration
	NewsIndexURL     string
	NewsIndexTimeout time.Duration
	RainfallURL      string
	RiverLevelURL    string
	SensorTimeout    time.Duration
	SensorAPIKey     string

	// Geocoding collaborator (feature-flagged).
	GeocoderEnabled   bool
	GeocoderURL       string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int

	// Incident report ingestion (feature-flagged).
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaReportTopic string
	KafkaGroupID     string
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored for local runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parseDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	indexTimeout, err := parseDuration("NEWSINDEX_TIMEOUT", "8s")
	if err != nil {
		return nil, err
	}
	sensorTimeout, err := parseDuration("SENSOR_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	kafkaEnabled := envOrDefault("KAFKA_ENABLED", "false") == "true"

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBPath: envOrDefault("DB_PATH", "flood_search.db"),

		FeedTimeout:      feedTimeout,
		NewsIndexURL:     envOrDefault("NEWSINDEX_URL", "https://api.gdeltproject.org/api/v2/doc/doc"),
		NewsIndexTimeout: indexTimeout,
		RainfallURL:      envOrDefault("RAINFALL_URL", "https://opendata.cwa.gov.tw/api/v1/rest/datastore/O-A0002-001"),
		RiverLevelURL:    envOrDefault("RIVER_LEVEL_URL", "https://fhy.wra.gov.tw/WreApi/v2/Subject/RiverLevel"),
		SensorTimeout:    sensorTimeout,
		SensorAPIKey:     os.Getenv("SENSOR_API_KEY"),

		GeocoderEnabled:   envOrDefault("GEOCODER_ENABLED", "false") == "true",
		GeocoderURL:       envOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org/search"),
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: parseIntOrDefault("GEOCODER_CACHE_SIZE", 1000),

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReportTopic: envOrDefault("KAFKA_REPORT_TOPIC", "flood-incident-reports"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "flood-search-ingest"),
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaReportTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_REPORT_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseIntOrDefault(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
