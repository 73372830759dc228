// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App          AppConfig          `koanf:"app"`
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Supabase     SupabaseConfig     `koanf:"supabase"`
	JWT          JWTConfig          `koanf:"jwt"`
	RateLimit    RateLimitConfig    `koanf:"rate_limit"`
	CORS         CORSConfig         `koanf:"cors"`
	Log          LogConfig          `koanf:"log"`
	Otel         OtelConfig         `koanf:"otel"`
	Entitlements EntitlementsConfig `koanf:"entitlements"`
	Usage        UsageConfig        `koanf:"usage"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DrainDelay      time.Duration `koanf:"drain_delay"`
}

// DatabaseConfig.StatementTimeout bounds every statement server-side.
// Counter writes are single-row, so anything slower is a lock pile-up.
type DatabaseConfig struct {
	URL              string        `koanf:"url"`
	MaxOpenConns     int           `koanf:"max_open_conns"`
	MaxIdleConns     int           `koanf:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `koanf:"conn_max_idle_time"`
	MigrationsTable  string        `koanf:"migrations_table"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type SupabaseConfig struct {
	URL string `koanf:"url"`
	Key string `koanf:"key"`
}

// JWTConfig describes the Supabase-issued access tokens the API accepts.
// Secret is the project's JWT secret (HS256).
type JWTConfig struct {
	Secret            string        `koanf:"secret"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	ClockSkew         time.Duration `koanf:"clock_skew"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// EntitlementsConfig controls plan evaluation and the feature guard.
// An empty CatalogPath uses the built-in plan table.
type EntitlementsConfig struct {
	CatalogPath    string        `koanf:"catalog_path"`
	FailOpen       bool          `koanf:"fail_open"`
	StrictMetering bool          `koanf:"strict_metering"`
	StoreTimeout   time.Duration `koanf:"store_timeout"`
}

const (
	UsageStorePostgres = "postgres"
	UsageStoreSupabase = "supabase"
	UsageStoreMemory   = "memory"
)

type UsageConfig struct {
	Store    string        `koanf:"store"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// Load reads configuration in order: built-in defaults, the optional YAML
// file at configPath, then environment variables. A .env file in the working
// directory is loaded into the environment first when present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "ViralForge",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.drain_delay":      "5s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.migrations_table":   "forge_schema_migrations",
		"database.statement_timeout":  "5s",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.issuer":              "",
		"jwt.audience":            "authenticated",
		"jwt.access_token_expire": "1h",
		"jwt.clock_skew":          "30s",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "viralforge",

		"entitlements.fail_open":       true,
		"entitlements.strict_metering": false,
		"entitlements.store_timeout":   "2s",

		"usage.store":     UsageStorePostgres,
		"usage.cache_ttl": "30s",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"SUPABASE_URL":                "supabase.url",
	"SUPABASE_SERVICE_ROLE_KEY":   "supabase.key",
	"SUPABASE_JWT_SECRET":         "jwt.secret",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"PLAN_CATALOG_PATH":           "entitlements.catalog_path",
	"ENTITLEMENTS_FAIL_OPEN":      "entitlements.fail_open",
	"ENTITLEMENTS_STRICT":         "entitlements.strict_metering",
	"ENTITLEMENTS_STORE_TIMEOUT":  "entitlements.store_timeout",
	"USAGE_STORE":                 "usage.store",
	"USAGE_CACHE_TTL":             "usage.cache_ttl",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	switch c.Usage.Store {
	case UsageStorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres usage store")
		}
	case UsageStoreSupabase:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return fmt.Errorf(
				"SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase usage store",
			)
		}
	case UsageStoreMemory:
		if c.App.Environment == "production" {
			return fmt.Errorf("the memory usage store cannot be used in production")
		}
	default:
		return fmt.Errorf("unknown usage store %q", c.Usage.Store)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}

	if c.Entitlements.StoreTimeout <= 0 {
		return fmt.Errorf("entitlements.store_timeout must be positive")
	}

	if c.Usage.CacheTTL < 0 {
		return fmt.Errorf("usage.cache_ttl must not be negative")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// CacheEnabled reports whether usage records are cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c.Redis.URL != "" && c.Usage.CacheTTL > 0
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
