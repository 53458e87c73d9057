package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PlaceholderAIKey is shipped in sample env files; it counts as no key.
const PlaceholderAIKey = "sk-or-v1-placeholder-key"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	AI           AIConfig
	SLA          SLAConfig
	Telemetry    TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	URL                   string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	MigrationsDir   string
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
	ConnectAttempts int
}

// RedisConfig holds Redis connection values. Events are mirrored to
// EventChannel when Enabled.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	EventChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token verification.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// NotificationConfig selects the delivery channels for alerts.
type NotificationConfig struct {
	WebhookURL     string
	WebhookToken   string
	MQTTBroker     string
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTTopicRoot  string
	DeliverTimeout time.Duration
}

// AIConfig configures the chat-completion provider.
type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Timeout     time.Duration
	Referer     string
	Title       string
	PromptsFile string
}

// Configured reports whether a usable API key is present.
func (a AIConfig) Configured() bool {
	key := strings.TrimSpace(a.APIKey)
	return key != "" && key != PlaceholderAIKey
}

// SLAConfig controls how sweeps are triggered.
type SLAConfig struct {
	CronSecret    string
	SweepInterval time.Duration
	SweepTimeout  time.Duration
}

// TelemetryConfig controls trace export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			URL:                   strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Addr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           redisDB,
			EventChannel: getEnv("REDIS_EVENT_CHANNEL", "helpdesk.events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Notification: NotificationConfig{
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookToken:   os.Getenv("NOTIFY_WEBHOOK_TOKEN"),
			MQTTBroker:     getEnv("NOTIFY_MQTT_BROKER", ""),
			MQTTClientID:   getEnv("NOTIFY_MQTT_CLIENT_ID", "helpdesk-service"),
			MQTTUsername:   os.Getenv("NOTIFY_MQTT_USERNAME"),
			MQTTPassword:   os.Getenv("NOTIFY_MQTT_PASSWORD"),
			MQTTTopicRoot:  getEnv("NOTIFY_MQTT_TOPIC_ROOT", "helpdesk/notifications"),
			DeliverTimeout: getEnvAsDuration("NOTIFY_DELIVER_TIMEOUT", 10*time.Second),
		},
		AI: AIConfig{
			APIKey:      os.Getenv("OPENROUTER_API_KEY"),
			BaseURL:     strings.TrimRight(getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"), "/"),
			Model:       getEnv("OPENROUTER_MODEL", "anthropic/claude-3.5-sonnet"),
			Temperature: getEnvAsFloat("AI_TEMPERATURE", 0.7),
			MaxTokens:   getEnvAsInt("AI_MAX_TOKENS", 1000),
			TopP:        getEnvAsFloat("AI_TOP_P", 1),
			Timeout:     getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
			Referer:     getEnv("OPENROUTER_REFERER", ""),
			Title:       getEnv("OPENROUTER_TITLE", "Helpdesk"),
			PromptsFile: os.Getenv("AI_PROMPTS_FILE"),
		},
		SLA: SLAConfig{
			CronSecret:    os.Getenv("CRON_SECRET"),
			SweepInterval: getEnvAsDuration("SLA_SWEEP_INTERVAL", 0),
			SweepTimeout:  getEnvAsDuration("SLA_SWEEP_TIMEOUT", 2*time.Minute),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}
	if cfg.AI.Referer == "" {
		cfg.AI.Referer = cfg.App.URL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("AI_TEMPERATURE must be within [0, 2], got %v", c.AI.Temperature))
	}
	if c.AI.TopP <= 0 || c.AI.TopP > 1 {
		errs = append(errs, fmt.Errorf("AI_TOP_P must be within (0, 1], got %v", c.AI.TopP))
	}
	if c.AI.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("AI_MAX_TOKENS must be positive, got %d", c.AI.MaxTokens))
	}
	if c.SLA.SweepInterval < 0 {
		errs = append(errs, errors.New("SLA_SWEEP_INTERVAL must not be negative"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.Telemetry.SampleRatio))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
