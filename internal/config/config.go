// Package config loads runtime configuration from the environment,
// with matcher tuning defaults embedded at build time.
package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Provider ProviderConfig
	MIS      MISConfig
	Storage  StorageConfig
	Matching MatchingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // default 25
	MaxIdleConns int    // default 5
}

type ProviderConfig struct {
	URL string // face-embedding service base URL
}

type MISConfig struct {
	DSN string // MariaDB DSN of the school MIS, for roster import
}

type StorageConfig struct {
	SnapshotDir     string // per-course reference snapshots
	StudentImageDir string // enrollment images
	UploadDir       string // transient attendance uploads
}

type MatchingConfig struct {
	Threshold    float64 `yaml:"threshold"`
	Stride       int     `yaml:"stride"`
	Dim          int     `yaml:"dim"`
	MaxImageSize int     `yaml:"max_image_size"`
}

type defaultsFile struct {
	Matching MatchingConfig `yaml:"matching"`
}

// envInt reads an environment variable as a positive integer,
// falling back to the default when unset or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float, falling back to
// the default when unset or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded file; cannot fail in a correct build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	m := defaults.Matching
	return &Config{
		Server: ServerConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Provider: ProviderConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		MIS: MISConfig{
			DSN: os.Getenv("MIS_DATABASE_DSN"),
		},
		Storage: StorageConfig{
			SnapshotDir:     envString("SNAPSHOT_DIR", "encodings"),
			StudentImageDir: envString("STUDENT_IMAGE_DIR", "student_images"),
			UploadDir:       envString("UPLOAD_DIR", "uploads"),
		},
		Matching: MatchingConfig{
			Threshold:    envFloat("MATCH_THRESHOLD", m.Threshold),
			Stride:       envInt("VIDEO_STRIDE", m.Stride),
			Dim:          envInt("EMBEDDING_DIM", m.Dim),
			MaxImageSize: envInt("MAX_IMAGE_SIZE", m.MaxImageSize),
		},
	}
}
