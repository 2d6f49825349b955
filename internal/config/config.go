// Package config loads runtime configuration for objstream from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for objstream.
//
// YAML example:
//   logLevel: "info"
//   metricsAddress: ":9090"
//   stream:
//     bufferSize: 8388608
//     maxBuffers: 0
//     maxWorkers: 8
//   mounts:
//     - prefix: "s3://my-bucket"
//       backend: "s3"
//       s3:
//         region: "us-east-1"
//         bucket: "my-bucket"
//     - prefix: "file:///srv/data"
//       backend: "local"
//       local:
//         root: "/srv/data"
//
// Environment overrides:
//   OBJSTREAM_CONFIG path to the YAML file; when empty the loader tries
//   ./objstream.yaml then falls back to defaults.
//   OBJSTREAM_LOG_LEVEL overrides LogLevel.
//   OBJSTREAM_METRICS_ADDR overrides MetricsAddress.
//   OBJSTREAM_BUFFER_SIZE, OBJSTREAM_MAX_BUFFERS, OBJSTREAM_MAX_WORKERS
//   override the stream defaults.
type Config struct {
	LogLevel       string  `yaml:"logLevel"`       // "debug", "info", "warn" or "error"
	MetricsAddress string  `yaml:"metricsAddress"` // empty disables the metrics listener
	Stream         Stream  `yaml:"stream"`
	Mounts         []Mount `yaml:"mounts"`
}

// Stream holds the default stream tuning applied when a caller passes no
// explicit option. Zero values select the backend defaults.
type Stream struct {
	BufferSize int `yaml:"bufferSize"` // bytes per prefetch chunk / upload part
	MaxBuffers int `yaml:"maxBuffers"` // in-flight buffer cap, 0 unbounded on write
	MaxWorkers int `yaml:"maxWorkers"` // per-stream worker pool size
}

// Mount binds a path prefix to a storage backend.
type Mount struct {
	Prefix  string `yaml:"prefix"`
	Backend string `yaml:"backend"` // "s3", "postgres", "mongodb" or "local"

	S3       S3Mount       `yaml:"s3,omitempty"`
	Postgres PostgresMount `yaml:"postgres,omitempty"`
	MongoDB  MongoDBMount  `yaml:"mongodb,omitempty"`
	Local    LocalMount    `yaml:"local,omitempty"`
}

// S3Mount configures an S3 or S3-compatible backend. Credentials come from
// the standard AWS sources or the objstream passwd file.
type S3Mount struct {
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint,omitempty"`  // non-AWS endpoints (MinIO, LocalStack)
	PathStyle bool   `yaml:"pathStyle,omitempty"` // required by most S3-compatible servers
}

// PostgresMount configures a PostgreSQL-backed object table.
type PostgresMount struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table,omitempty"` // defaults to "objects"
}

// MongoDBMount configures a MongoDB-backed object collection.
type MongoDBMount struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection,omitempty"` // defaults to "objects"
}

// LocalMount configures a local-filesystem backend rooted at a directory.
type LocalMount struct {
	Root string `yaml:"root"`
}

// Default returns a Config with safe, local defaults and no mounts.
func Default() Config {
	return Config{
		LogLevel:       "info",
		MetricsAddress: "",
		Stream: Stream{
			BufferSize: 0, // backend default
			MaxBuffers: 0,
			MaxWorkers: 0,
		},
	}
}

// Load reads configuration from path. An empty path tries OBJSTREAM_CONFIG,
// then ./objstream.yaml, then returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("OBJSTREAM_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("objstream.yaml"); err == nil {
			path = "objstream.yaml"
		}
	}
	if path == "" {
		cfg := Default()
		return applyEnvOverrides(cfg), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			return applyEnvOverrides(cfg), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg = applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks mount definitions for the fields their backend requires.
func Validate(cfg Config) error {
	for i, m := range cfg.Mounts {
		if m.Prefix == "" {
			return fmt.Errorf("mount %d: prefix is required", i)
		}
		switch m.Backend {
		case "s3":
			if m.S3.Bucket == "" {
				return fmt.Errorf("mount %q: s3.bucket is required", m.Prefix)
			}
		case "postgres":
			if m.Postgres.DSN == "" {
				return fmt.Errorf("mount %q: postgres.dsn is required", m.Prefix)
			}
		case "mongodb":
			if m.MongoDB.URI == "" || m.MongoDB.Database == "" {
				return fmt.Errorf("mount %q: mongodb.uri and mongodb.database are required", m.Prefix)
			}
		case "local":
			if m.Local.Root == "" {
				return fmt.Errorf("mount %q: local.root is required", m.Prefix)
			}
		default:
			return fmt.Errorf("mount %q: unknown backend %q", m.Prefix, m.Backend)
		}
	}
	return nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("OBJSTREAM_LOG_LEVEL"); v != "" {
		level := strings.ToLower(strings.TrimSpace(v))
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			// ignore invalid value; keep existing
		}
	}
	if v := os.Getenv("OBJSTREAM_METRICS_ADDR"); v != "" {
		cfg.MetricsAddress = strings.TrimSpace(v)
	}
	if v := os.Getenv("OBJSTREAM_BUFFER_SIZE"); v != "" {
		if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x > 0 {
			cfg.Stream.BufferSize = x
		}
	}
	if v := os.Getenv("OBJSTREAM_MAX_BUFFERS"); v != "" {
		if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x >= 0 {
			cfg.Stream.MaxBuffers = x
		}
	}
	if v := os.Getenv("OBJSTREAM_MAX_WORKERS"); v != "" {
		if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x > 0 {
			cfg.Stream.MaxWorkers = x
		}
	}
	return cfg
}
