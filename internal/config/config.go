// Package config loads process configuration from environment variables (and
// an optional .env file), following spec §6's env var surface:
// {service}_BIND_ADDRESS, {service}_CLIENT_ADDRESS, counter/queue/graph DB
// coordinates, tracing endpoint, and healthcheck polling interval. No
// log-transport bootstrap server setting is read.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DBConfig is the connection shape shared by every Postgres-backed store.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN renders the libpq connection string used by pgx and lib/pq alike.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		d.Host, d.Port, d.Database, d.User, d.Password,
	)
}

// RetryCacheConfig controls the identifier's TTL retry cache (spec §4.B).
type RetryCacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	Addr    string        `mapstructure:"addr"` // empty = in-process only
	Enabled bool          `mapstructure:"enabled"`
}

// Config is the top-level process configuration for any core service.
type Config struct {
	ServiceName string `mapstructure:"service_name"`

	BindAddress   string `mapstructure:"bind_address"`
	ClientAddress string `mapstructure:"client_address"`

	CounterDB     DBConfig `mapstructure:"counter_db"`
	PluginQueueDB DBConfig `mapstructure:"plugin_queue_db"`
	GraphDB       DBConfig `mapstructure:"graph_db"`

	RetryCache RetryCacheConfig `mapstructure:"retry_cache"`

	TracingEndpoint     string        `mapstructure:"tracing_endpoint"`
	HealthcheckInterval time.Duration `mapstructure:"healthcheck_interval"`

	MaxCASRetries  int `mapstructure:"max_cas_retries"`
	MaxMutationFanOut int `mapstructure:"max_mutation_fan_out"`
	UidPreallocation  uint64 `mapstructure:"uid_preallocation"`
	MaxUidBatchSize   uint64 `mapstructure:"max_uid_batch_size"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	MaxTries          int           `mapstructure:"max_tries"`
}

// defaults matches the numeric defaults named throughout spec.md.
func defaults() Config {
	return Config{
		HealthcheckInterval: 10 * time.Second,
		RetryCache: RetryCacheConfig{
			TTL:     24 * time.Hour,
			Enabled: true,
		},
		MaxCASRetries:     5,
		MaxMutationFanOut: 1000,
		UidPreallocation:  1000,
		MaxUidBatchSize:   100000,
		VisibilityTimeout: 30 * time.Second,
		MaxTries:          5,
	}
}

// Load builds a Config for serviceName by reading "{SERVICE}_*" environment
// variables (and GRAPL_* shared ones), with an optional .env file loaded
// first the way the teacher's config loader does via godotenv.
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	cfg := defaults()
	cfg.ServiceName = serviceName

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	prefix := envPrefix(serviceName)
	cfg.BindAddress = getenvOr(prefix+"_BIND_ADDRESS", cfg.BindAddress)
	cfg.ClientAddress = getenvOr(prefix+"_CLIENT_ADDRESS", cfg.ClientAddress)

	cfg.CounterDB = loadDB("GRAPL_COUNTER_DB")
	cfg.PluginQueueDB = loadDB("GRAPL_PLUGIN_QUEUE_DB")
	cfg.GraphDB = loadDB("GRAPL_GRAPH_DB")

	cfg.RetryCache.Addr = getenvOr("GRAPL_RETRY_CACHE_ADDR", cfg.RetryCache.Addr)
	if ttl := os.Getenv("GRAPL_RETRY_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.RetryCache.TTL = d
		}
	}

	cfg.TracingEndpoint = getenvOr("GRAPL_TRACING_ENDPOINT", cfg.TracingEndpoint)
	if iv := os.Getenv("GRAPL_HEALTHCHECK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			cfg.HealthcheckInterval = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that must hold before a service starts serving.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("config: service name is required")
	}
	if c.MaxCASRetries <= 0 {
		return fmt.Errorf("config: max_cas_retries must be positive")
	}
	if c.UidPreallocation == 0 {
		return fmt.Errorf("config: uid_preallocation must be positive")
	}
	return nil
}

func envPrefix(serviceName string) string {
	out := make([]byte, 0, len(serviceName))
	for _, r := range serviceName {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, byte(r-'a'+'A'))
		case r == '-':
			out = append(out, '_')
		default:
			out = append(out, byte(r))
		}
	}
	return string(out)
}

func loadDB(prefix string) DBConfig {
	port := 5432
	if p := os.Getenv(prefix + "_PORT"); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}
	return DBConfig{
		Host:     getenvOr(prefix+"_HOST", "localhost"),
		Port:     port,
		Database: getenvOr(prefix+"_DATABASE", ""),
		User:     getenvOr(prefix+"_USER", ""),
		Password: os.Getenv(prefix + "_PASSWORD"),
	}
}

func getenvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
