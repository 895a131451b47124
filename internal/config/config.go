package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eventeye/server/internal/validation"
)

// Store backends.
const (
	BackendBadger   = "badger"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Auth         AuthConfig         `yaml:"auth"`
	Certificates CertificatesConfig `yaml:"certificates"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	CORS         CORSConfig         `yaml:"cors"`
	Email        EmailConfig        `yaml:"email"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Logging      LoggingConfig      `yaml:"logging"`
	Environment  string             `yaml:"environment"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type StoreConfig struct {
	Backend        string        `yaml:"backend"`
	DataDir        string        `yaml:"data_dir"`
	RedisURL       string        `yaml:"redis_url"`
	DatabaseURL    string        `yaml:"database_url"`
	MaxConnections int           `yaml:"max_connections"`
	GCInterval     time.Duration `yaml:"gc_interval"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
	Issuer    string        `yaml:"issuer"`
}

type CertificatesConfig struct {
	// VerifyBaseURL prefixes every certificate URL; the code is appended.
	VerifyBaseURL   string `yaml:"verify_base_url"`
	MaxCodeAttempts int    `yaml:"max_code_attempts"`
	Concurrency     int    `yaml:"concurrency"`
	MaxParticipants int    `yaml:"max_participants"`
}

type RateLimitConfig struct {
	PublicPerMinute        int      `yaml:"public_per_minute"`
	AuthenticatedPerMinute int      `yaml:"authenticated_per_minute"`
	LoginPer15Minutes      int      `yaml:"login_per_15_minutes"`
	TrustedProxyCIDRs      []string `yaml:"trusted_proxy_cidrs"`
}

type CORSConfig struct {
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

type EmailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	From         string `yaml:"from"`
	ResendAPIKey string `yaml:"resend_api_key"`
}

type JobsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	RepairInterval time.Duration `yaml:"repair_interval"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Store: StoreConfig{
			Backend:        BackendBadger,
			DataDir:        "data",
			MaxConnections: 10,
			GCInterval:     5 * time.Minute,
		},
		Auth: AuthConfig{
			JWTExpiry: 24 * time.Hour,
			Issuer:    "eventeye",
		},
		Certificates: CertificatesConfig{
			VerifyBaseURL:   "https://eventeye.app/verify",
			MaxCodeAttempts: 5,
			Concurrency:     4,
			MaxParticipants: 500,
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:        60,
			AuthenticatedPerMinute: 300,
			LoginPer15Minutes:      5,
		},
		Jobs: JobsConfig{
			RepairInterval: time.Hour,
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "eventeye",
			SampleRate:  1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Environment: "development",
	}
}

// Load builds the configuration from defaults and environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("SERVER_BASE_URL", cfg.Server.BaseURL)

	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.DataDir = getEnv("STORE_DATA_DIR", cfg.Store.DataDir)
	cfg.Store.RedisURL = getEnv("REDIS_URL", cfg.Store.RedisURL)
	cfg.Store.DatabaseURL = getEnv("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Store.MaxConnections)
	cfg.Store.GCInterval = getEnvDuration("STORE_GC_INTERVAL", cfg.Store.GCInterval)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	if hours := getEnvInt("JWT_EXPIRY_HOURS", 0); hours > 0 {
		cfg.Auth.JWTExpiry = time.Duration(hours) * time.Hour
	}
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", cfg.Auth.Issuer)

	cfg.Certificates.VerifyBaseURL = getEnv("CERTIFICATE_VERIFY_BASE_URL", cfg.Certificates.VerifyBaseURL)
	cfg.Certificates.MaxCodeAttempts = getEnvInt("CERTIFICATE_MAX_CODE_ATTEMPTS", cfg.Certificates.MaxCodeAttempts)
	cfg.Certificates.Concurrency = getEnvInt("ISSUANCE_CONCURRENCY", cfg.Certificates.Concurrency)
	cfg.Certificates.MaxParticipants = getEnvInt("ISSUANCE_MAX_PARTICIPANTS", cfg.Certificates.MaxParticipants)

	cfg.RateLimit.PublicPerMinute = getEnvInt("RATE_LIMIT_PUBLIC", cfg.RateLimit.PublicPerMinute)
	cfg.RateLimit.AuthenticatedPerMinute = getEnvInt("RATE_LIMIT_AUTHENTICATED", cfg.RateLimit.AuthenticatedPerMinute)
	cfg.RateLimit.LoginPer15Minutes = getEnvInt("RATE_LIMIT_LOGIN", cfg.RateLimit.LoginPer15Minutes)
	cfg.RateLimit.TrustedProxyCIDRs = getEnvList("TRUSTED_PROXY_CIDRS", cfg.RateLimit.TrustedProxyCIDRs)

	cfg.Email.Enabled = getEnvBool("EMAIL_ENABLED", cfg.Email.Enabled)
	cfg.Email.From = getEnv("EMAIL_FROM", cfg.Email.From)
	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", cfg.Email.ResendAPIKey)

	cfg.Jobs.Enabled = getEnvBool("JOBS_ENABLED", cfg.Jobs.Enabled)
	cfg.Jobs.RepairInterval = getEnvDuration("JOBS_REPAIR_INTERVAL", cfg.Jobs.RepairInterval)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	// Development and test accept browser calls from anywhere.
	if cfg.Environment == "development" || cfg.Environment == "test" {
		cfg.CORS.AllowAllOrigins = true
	}
	cfg.CORS.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
}

// Validate reports the first configuration problem.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.isLocal() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}

	switch c.Store.Backend {
	case BackendBadger, BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store backend")
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q is not supported (badger, redis, postgres, memory)", c.Store.Backend)
	}

	if c.Certificates.VerifyBaseURL == "" {
		return fmt.Errorf("CERTIFICATE_VERIFY_BASE_URL is required")
	}
	if err := validation.ValidateLinkPrefix(c.Certificates.VerifyBaseURL, "CERTIFICATE_VERIFY_BASE_URL", c.Environment == "production"); err != nil {
		return err
	}
	if c.Certificates.MaxCodeAttempts < 1 {
		return fmt.Errorf("CERTIFICATE_MAX_CODE_ATTEMPTS must be at least 1")
	}
	if c.Certificates.Concurrency < 1 {
		return fmt.Errorf("ISSUANCE_CONCURRENCY must be at least 1")
	}

	if c.Jobs.Enabled && c.Store.Backend != BackendPostgres {
		return fmt.Errorf("JOBS_ENABLED requires the postgres store backend")
	}
	if c.Email.Enabled && (c.Email.From == "" || c.Email.ResendAPIKey == "") {
		return fmt.Errorf("EMAIL_FROM and RESEND_API_KEY are required when EMAIL_ENABLED is set")
	}
	if c.Environment == "production" && !c.CORS.AllowAllOrigins && len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in production")
	}
	return nil
}

func (c Config) isLocal() bool {
	return c.Environment == "development" || c.Environment == "test"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
