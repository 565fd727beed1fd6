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

// Realtime drivers understood by RealtimeConfig.Driver.
const (
	RealtimeDriverPostgres = "postgres"
	RealtimeDriverRedis    = "redis"
	RealtimeDriverMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Realtime  RealtimeConfig
	Tutor     TutorConfig
	Bootstrap BootstrapConfig
	Tracing   TracingConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RealtimeConfig selects where change-feed events come from.
type RealtimeConfig struct {
	Driver string
	// Channel must match the trigger argument in migrations/0001_init.sql
	// (table_changes); the database triggers do not read this setting.
	Channel              string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	// Bridge makes this instance republish database notifications onto Redis
	// when Driver is redis.
	Bridge bool
}

// TutorConfig configures the upstream completion provider used by the AI tutoring relay.
type TutorConfig struct {
	APIKey         string
	BaseURL        string
	ChatPath       string
	Model          string
	ConnectTimeout time.Duration
}

// BootstrapConfig gates the one-time admin bootstrap endpoint.
type BootstrapConfig struct {
	Enabled        bool
	ServiceRoleKey string
	DefaultName    string
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	ServiceName string
}

type MetricsConfig struct {
	Enabled bool
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:          strings.TrimSpace(v.GetString("DATABASE_URL")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Realtime = RealtimeConfig{
		Driver:               strings.ToLower(strings.TrimSpace(v.GetString("REALTIME_DRIVER"))),
		Channel:              v.GetString("REALTIME_CHANNEL"),
		MinReconnectInterval: parseDuration(v.GetString("REALTIME_MIN_RECONNECT"), 10*time.Second),
		MaxReconnectInterval: parseDuration(v.GetString("REALTIME_MAX_RECONNECT"), time.Minute),
		Bridge:               v.GetBool("REALTIME_BRIDGE"),
	}

	cfg.Tutor = TutorConfig{
		APIKey:         strings.TrimSpace(v.GetString("AI_API_KEY")),
		BaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString("AI_BASE_URL")), "/"),
		ChatPath:       v.GetString("AI_CHAT_PATH"),
		Model:          v.GetString("AI_MODEL"),
		ConnectTimeout: parseDuration(v.GetString("AI_TIMEOUT"), 30*time.Second),
	}

	cfg.Bootstrap = BootstrapConfig{
		Enabled:        v.GetBool("BOOTSTRAP_ENABLED"),
		ServiceRoleKey: strings.TrimSpace(v.GetString("SERVICE_ROLE_KEY")),
		DefaultName:    v.GetString("BOOTSTRAP_ADMIN_NAME"),
	}

	ratio := v.GetFloat64("OTEL_SAMPLER_RATIO")
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	cfg.Tracing = TracingConfig{
		Enabled:     v.GetBool("OTEL_ENABLED"),
		Endpoint:    strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		SampleRatio: ratio,
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "school-portal-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REALTIME_DRIVER", RealtimeDriverPostgres)
	v.SetDefault("REALTIME_CHANNEL", "table_changes")
	v.SetDefault("REALTIME_MIN_RECONNECT", "10s")
	v.SetDefault("REALTIME_MAX_RECONNECT", "1m")
	v.SetDefault("REALTIME_BRIDGE", false)

	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_BASE_URL", "https://ai.gateway.lovable.dev")
	v.SetDefault("AI_CHAT_PATH", "/v1/chat/completions")
	v.SetDefault("AI_MODEL", "google/gemini-2.5-flash")
	v.SetDefault("AI_TIMEOUT", "30s")

	v.SetDefault("BOOTSTRAP_ENABLED", true)
	v.SetDefault("SERVICE_ROLE_KEY", "")
	v.SetDefault("BOOTSTRAP_ADMIN_NAME", "Administrator")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 0.1)
	v.SetDefault("OTEL_SERVICE_NAME", "school-portal-api")

	v.SetDefault("ENABLE_METRICS", true)
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
