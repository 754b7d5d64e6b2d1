package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Installment split policies accepted by BILLING_DEFAULT_POLICY.
const (
	PolicyPercentage = "PERCENTAGE"
	PolicyUniform    = "UNIFORM"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Billing  BillingConfig
	Sweep    SweepConfig
	Summary  SummaryCacheConfig
}

type DatabaseConfig struct {
	Host             string
	Port             int
	User             string
	Password         string
	Name             string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	StatementTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to validate access tokens issued by
// the enrollment application.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BillingConfig tunes installment generation and allocation.
type BillingConfig struct {
	DefaultPolicy         string
	LenientScheduleAnchor bool
	LockTimeout           time.Duration
}

// SweepConfig controls the recurring overdue sweep.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
	Retries  int
}

// SummaryCacheConfig governs Redis caching of account balance summaries.
type SummaryCacheConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:             v.GetString("DB_HOST"),
		Port:             v.GetInt("DB_PORT"),
		User:             v.GetString("DB_USER"),
		Password:         v.GetString("DB_PASSWORD"),
		Name:             v.GetString("DB_NAME"),
		SSLMode:          v.GetString("DB_SSL_MODE"),
		MaxOpenConns:     v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:     v.GetInt("DB_MAX_IDLE_CONNS"),
		StatementTimeout: parseDuration(v.GetString("DB_STATEMENT_TIMEOUT"), 30*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Billing = BillingConfig{
		DefaultPolicy:         normalisePolicy(v.GetString("BILLING_DEFAULT_POLICY")),
		LenientScheduleAnchor: v.GetBool("BILLING_LENIENT_SCHEDULE_ANCHOR"),
		LockTimeout:           parseDuration(v.GetString("BILLING_LOCK_TIMEOUT"), 5*time.Second),
	}

	retries := v.GetInt("BILLING_SWEEP_RETRIES")
	if retries <= 0 {
		retries = 3
	}
	cfg.Sweep = SweepConfig{
		Enabled:  v.GetBool("BILLING_SWEEP_ENABLED"),
		Interval: parseDuration(v.GetString("BILLING_SWEEP_INTERVAL"), 24*time.Hour),
		Retries:  retries,
	}

	cfg.Summary = SummaryCacheConfig{
		Enabled:  v.GetBool("ENABLE_SUMMARY_CACHE"),
		CacheTTL: parseDuration(v.GetString("BILLING_SUMMARY_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_billing")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BILLING_DEFAULT_POLICY", PolicyPercentage)
	v.SetDefault("BILLING_LENIENT_SCHEDULE_ANCHOR", false)
	v.SetDefault("BILLING_LOCK_TIMEOUT", "5s")

	v.SetDefault("BILLING_SWEEP_ENABLED", true)
	v.SetDefault("BILLING_SWEEP_INTERVAL", "24h")
	v.SetDefault("BILLING_SWEEP_RETRIES", 3)

	v.SetDefault("ENABLE_SUMMARY_CACHE", false)
	v.SetDefault("BILLING_SUMMARY_CACHE_TTL", "5m")
}

func normalisePolicy(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case PolicyUniform:
		return PolicyUniform
	default:
		return PolicyPercentage
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
