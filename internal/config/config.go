package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Fetch   FetchConfig
	Cache   CacheConfig
	Metrics MetricsConfig
	Tracing TracingConfig
	Logging LoggingConfig
}

// ServerConfig holds the local artifact server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig holds artifact store configuration
type StoreConfig struct {
	Backend string // "fs" or "s3"
	RootDir string
	S3      S3Config
}

// S3Config holds object storage configuration for the s3 store backend
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// FetchConfig holds configuration for fetching remote manifests and captions
type FetchConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// CacheConfig holds Redis fetch-cache configuration
type CacheConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// TracingConfig holds Jaeger tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads configuration from file and environment variables. A missing
// config file is not an error: the defaults describe a working local setup.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if _, err := os.Stat(configPath); err == nil {
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8888)
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Store defaults
	viper.SetDefault("store.backend", "fs")
	viper.SetDefault("store.rootDir", filepath.Join(os.TempDir(), "subinject"))
	viper.SetDefault("store.s3.endpoint", "localhost:9000")
	viper.SetDefault("store.s3.accessKeyID", "minioadmin")
	viper.SetDefault("store.s3.secretAccessKey", "minioadmin")
	viper.SetDefault("store.s3.bucketName", "subtitles")
	viper.SetDefault("store.s3.region", "us-east-1")
	viper.SetDefault("store.s3.useSSL", false)

	// Fetch defaults
	viper.SetDefault("fetch.timeout", "30s")
	viper.SetDefault("fetch.userAgent", "subinject/1.0")

	// Cache defaults
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", 6379)
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.ttl", "15m")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9100)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "subinject")
	viper.SetDefault("tracing.jaegerEndpoint", "http://localhost:14268/api/traces")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stderr")
}
