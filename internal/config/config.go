// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all gallery server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Source backend ("drive" or "s3", default: "drive")
	SourceBackend string

	// Google Drive
	DriveCredentialsFile string
	RootFolderIDs        []string

	// S3 source (folders as key prefixes)
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Cache
	ListTTL time.Duration

	// Thumbnails
	ThumbMaxWidth  int
	ThumbMaxHeight int

	// Optional gallery password (bcrypt hash). Empty = no login required.
	PasswordHash string
	JWTSecret    string

	// TLS (optional; if both set, server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:           envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:          envOr("METRICS_ADDR", ":9090"),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		LogFormat:            envOr("LOG_FORMAT", "json"),
		SourceBackend:        envOr("SOURCE_BACKEND", "drive"),
		DriveCredentialsFile: envOr("DRIVE_CREDENTIALS_FILE", ""),
		RootFolderIDs:        envList("ROOT_FOLDER_IDS"),
		S3Endpoint:           envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:             envOr("S3_BUCKET", "gallery"),
		S3AccessKey:          envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:          envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:             envOr("S3_REGION", "us-east-1"),
		S3UseSSL:             envBool("S3_USE_SSL", false),
		ListTTL:              envDuration("LIST_CACHE_TTL", 300*time.Second),
		ThumbMaxWidth:        envInt("THUMB_MAX_WIDTH", 2000),
		ThumbMaxHeight:       envInt("THUMB_MAX_HEIGHT", 2000),
		PasswordHash:         envOr("GALLERY_PASSWORD_HASH", ""),
		JWTSecret:            envOr("JWT_SECRET", ""),
		TLSCertFile:          envOr("TLS_CERT_FILE", ""),
		TLSKeyFile:           envOr("TLS_KEY_FILE", ""),
	}

	if len(cfg.RootFolderIDs) == 0 {
		return nil, fmt.Errorf("ROOT_FOLDER_IDS is required")
	}
	if cfg.SourceBackend == "drive" && cfg.DriveCredentialsFile == "" {
		return nil, fmt.Errorf("DRIVE_CREDENTIALS_FILE is required for the drive backend")
	}
	if cfg.PasswordHash != "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when GALLERY_PASSWORD_HASH is set")
	}
	if cfg.ThumbMaxWidth < 1 || cfg.ThumbMaxHeight < 1 {
		return nil, fmt.Errorf("thumbnail bounds must be positive")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList parses a comma-separated list, dropping empty entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
