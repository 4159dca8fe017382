package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shenikar/transit_pulse/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL  string `env:"DATABASE_URL"`
	HTTPPort     string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// Redis Config
	RedisAddr string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string        `env:"REDIS_PASSWORD"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Aggregation Config
	LockBackend            string        `env:"LOCK_BACKEND" envDefault:"local"`
	LockTTL                time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	AggregationTimeout     time.Duration `env:"AGGREGATION_TIMEOUT" envDefault:"5s"`
	ConflictRetries        int           `env:"CONFLICT_RETRIES" envDefault:"3"`
	ReportTTL              time.Duration `env:"REPORT_TTL" envDefault:"2h"`
	IncidentFeedWindow     time.Duration `env:"INCIDENT_FEED_WINDOW" envDefault:"2h"`
	AggregationWindowsFile string        `env:"AGGREGATION_WINDOWS_FILE"`
	AggregationWindows     models.AggregationWindows

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`
	WebhookRateLimit  float64       `env:"WEBHOOK_RATE_LIMIT" envDefault:"10"`

	// API Keys операторов
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		StoreBackend:           strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:              os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getEnvAsInt("REDIS_DB", 0),
		CacheTTL:               getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		LockBackend:            strings.ToLower(getEnv("LOCK_BACKEND", LockBackendLocal)),
		LockTTL:                getEnvAsDuration("LOCK_TTL", 10*time.Second),
		AggregationTimeout:     getEnvAsDuration("AGGREGATION_TIMEOUT", 5*time.Second),
		ConflictRetries:        getEnvAsInt("CONFLICT_RETRIES", 3),
		ReportTTL:              getEnvAsDuration("REPORT_TTL", models.DefaultReportTTL),
		IncidentFeedWindow:     getEnvAsDuration("INCIDENT_FEED_WINDOW", 2*time.Hour),
		AggregationWindowsFile: os.Getenv("AGGREGATION_WINDOWS_FILE"),
		AggregationWindows:     models.DefaultAggregationWindows(),
		WebhookURL:             os.Getenv("WEBHOOK_URL"),
		WebhookSecret:          os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:         getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:      getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:       getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		WebhookRateLimit:       getEnvAsFloat("WEBHOOK_RATE_LIMIT", 10),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		for _, key := range strings.Split(apiKeysStr, ",") {
			if key = strings.TrimSpace(key); key != "" {
				cfg.APIKeys = append(cfg.APIKeys, key)
			}
		}
	}

	if cfg.AggregationWindowsFile != "" {
		windows, err := LoadAggregationWindows(cfg.AggregationWindowsFile)
		if err != nil {
			return nil, err
		}
		cfg.AggregationWindows = windows
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.LockBackend != LockBackendLocal && c.LockBackend != LockBackendRedis {
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	if c.ConflictRetries < 1 {
		return fmt.Errorf("CONFLICT_RETRIES must be positive, got %d", c.ConflictRetries)
	}
	if c.AggregationTimeout <= 0 {
		return fmt.Errorf("AGGREGATION_TIMEOUT must be positive")
	}
	// Блокировка в Redis не должна истечь раньше, чем закончится агрегация под ней
	if c.LockBackend == LockBackendRedis && c.LockTTL <= c.AggregationTimeout {
		return fmt.Errorf("LOCK_TTL (%s) must be greater than AGGREGATION_TIMEOUT (%s)", c.LockTTL, c.AggregationTimeout)
	}
	return nil
}

// LoadAggregationWindows читает YAML с окнами агрегации поверх значений по умолчанию
func LoadAggregationWindows(path string) (models.AggregationWindows, error) {
	windows := models.DefaultAggregationWindows()

	data, err := os.ReadFile(path)
	if err != nil {
		return windows, fmt.Errorf("failed to read aggregation windows file: %w", err)
	}

	var override models.AggregationWindows
	if err := yaml.Unmarshal(data, &override); err != nil {
		return windows, fmt.Errorf("failed to parse aggregation windows file: %w", err)
	}

	if override.Default > 0 {
		windows.Default = override.Default
	}
	for t, d := range override.Types {
		if !t.Valid() {
			return windows, fmt.Errorf("aggregation windows file: unknown report type %q", t)
		}
		if d <= 0 {
			return windows, fmt.Errorf("aggregation windows file: window for %s must be positive", t)
		}
		windows.Types[t] = d
	}
	return windows, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
