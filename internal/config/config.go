/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Source backend selection for playlist and jingle files.
type SourceBackend string

const (
	SourceFS SourceBackend = "fs"
	SourceS3 SourceBackend = "s3"
)

// Event bus backend selection.
type BusBackend string

const (
	BusMemory BusBackend = "memory"
	BusRedis  BusBackend = "redis"
	BusNATS   BusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string
	InstanceID  string

	DBBackend DatabaseBackend
	DBDSN     string

	// Audio backend (Lavalink-compatible REST/WS node)
	LavalinkURL      string
	LavalinkPassword string
	BotUserID        string // platform user id announced to the audio node

	// Programme catalog and playback tuning
	CatalogPath          string
	OwnerID              string // listener id allowed to bypass limits and votes
	BlacklistPath        string
	UserQueueLimit       int           // max queued requests per listener
	MaxRequestDuration   time.Duration // user requests longer than this are rejected
	MaxAutoQueueDuration time.Duration // auto-queued candidates longer than this are redrawn
	JingleMinInterval    int           // tracks between jingles, lower bound
	JingleMaxInterval    int           // tracks between jingles, upper bound
	TickInterval         time.Duration
	StatsInterval        time.Duration
	LoadDelayMin         time.Duration // pacing between playlist line resolutions
	LoadDelayMax         time.Duration

	// Playlist/jingle sources
	SourceBackend  SourceBackend
	PlaylistsDir   string
	JinglesDir     string
	HighPlaylist   string
	MediumPlaylist string
	LowPlaylist    string

	// S3 source configuration (SKALD_SOURCE_BACKEND=s3)
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Base URL the audio backend can fetch objects from
	S3UsePathStyle    bool   // Required for MinIO

	JWTSigningKey string

	// Distributed event bus
	EventBusBackend BusBackend
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	NATSURL         string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("SKALD_ENV", "development"),
		HTTPBind:    getEnv("SKALD_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("SKALD_HTTP_PORT", 8080),
		MetricsBind: getEnv("SKALD_METRICS_BIND", "127.0.0.1:9000"),
		InstanceID:  getEnv("SKALD_INSTANCE_ID", ""),

		DBBackend: DatabaseBackend(getEnv("SKALD_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:     getEnv("SKALD_DB_DSN", ""),

		LavalinkURL:      getEnv("SKALD_LAVALINK_URL", "http://127.0.0.1:2333"),
		LavalinkPassword: getEnv("SKALD_LAVALINK_PASSWORD", "youshallnotpass"),
		BotUserID:        getEnv("SKALD_BOT_USER_ID", "0"),

		CatalogPath:          getEnv("SKALD_CATALOG_PATH", "./programmes.yaml"),
		OwnerID:              getEnv("SKALD_OWNER_ID", ""),
		BlacklistPath:        getEnv("SKALD_BLACKLIST_PATH", "./blacklist.json"),
		UserQueueLimit:       getEnvInt("SKALD_USER_QUEUE_LIMIT", 6),
		MaxRequestDuration:   getEnvDuration("SKALD_MAX_REQUEST_DURATION", 10*time.Minute),
		MaxAutoQueueDuration: getEnvDuration("SKALD_MAX_AUTOQUEUE_DURATION", 10*time.Minute),
		JingleMinInterval:    getEnvInt("SKALD_JINGLE_MIN_INTERVAL", 2),
		JingleMaxInterval:    getEnvInt("SKALD_JINGLE_MAX_INTERVAL", 3),
		TickInterval:         getEnvDuration("SKALD_TICK_INTERVAL", time.Second),
		StatsInterval:        getEnvDuration("SKALD_STATS_INTERVAL", time.Minute),
		LoadDelayMin:         getEnvDuration("SKALD_LOAD_DELAY_MIN", 2*time.Second),
		LoadDelayMax:         getEnvDuration("SKALD_LOAD_DELAY_MAX", 4*time.Second),

		SourceBackend:  SourceBackend(getEnv("SKALD_SOURCE_BACKEND", string(SourceFS))),
		PlaylistsDir:   getEnv("SKALD_PLAYLISTS_DIR", "./playlists"),
		JinglesDir:     getEnv("SKALD_JINGLES_DIR", "./jingles"),
		HighPlaylist:   getEnv("SKALD_PLAYLIST_HIGH", "high-priority.txt"),
		MediumPlaylist: getEnv("SKALD_PLAYLIST_MEDIUM", "medium-priority.txt"),
		LowPlaylist:    getEnv("SKALD_PLAYLIST_LOW", "low-priority.txt"),

		S3AccessKeyID:     getEnvAny([]string{"SKALD_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"SKALD_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"SKALD_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnv("SKALD_S3_BUCKET", ""),
		S3Endpoint:        getEnv("SKALD_S3_ENDPOINT", ""),
		S3PublicBaseURL:   getEnv("SKALD_S3_PUBLIC_BASE_URL", ""),
		S3UsePathStyle:    getEnvBool("SKALD_S3_USE_PATH_STYLE", false),

		JWTSigningKey: getEnv("SKALD_JWT_SIGNING_KEY", ""),

		EventBusBackend: BusBackend(getEnv("SKALD_EVENT_BUS", string(BusMemory))),
		RedisAddr:       getEnv("SKALD_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("SKALD_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("SKALD_REDIS_DB", 0),
		NATSURL:         getEnv("SKALD_NATS_URL", "nats://localhost:4222"),

		TracingEnabled:    getEnvBool("SKALD_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SKALD_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SKALD_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SKALD_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("SKALD_JWT_SIGNING_KEY must be provided")
	}

	if cfg.SourceBackend != SourceFS && cfg.SourceBackend != SourceS3 {
		return nil, fmt.Errorf("unsupported source backend %q", cfg.SourceBackend)
	}

	if cfg.SourceBackend == SourceS3 && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("SKALD_S3_BUCKET must be provided when SKALD_SOURCE_BACKEND=s3")
	}

	if cfg.EventBusBackend != BusMemory && cfg.EventBusBackend != BusRedis && cfg.EventBusBackend != BusNATS {
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.EventBusBackend)
	}

	if cfg.JingleMinInterval < 1 || cfg.JingleMaxInterval < cfg.JingleMinInterval {
		return nil, fmt.Errorf("invalid jingle interval bounds [%d, %d]", cfg.JingleMinInterval, cfg.JingleMaxInterval)
	}

	if cfg.LoadDelayMax < cfg.LoadDelayMin {
		return nil, fmt.Errorf("SKALD_LOAD_DELAY_MAX must be >= SKALD_LOAD_DELAY_MIN")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.LavalinkPassword == "" || strings.EqualFold(cfg.LavalinkPassword, "youshallnotpass") {
			return nil, fmt.Errorf("SKALD_LAVALINK_PASSWORD must be set to a non-default value in production")
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
