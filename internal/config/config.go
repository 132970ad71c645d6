package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	PacingConstant       = "constant"
	PacingConstantPacing = "constant-pacing"
)

// LogConfig настройки логирования
type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig подключение к Redis для хранения результатов прогона
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Retention time.Duration
}

// Enabled true, если Redis сконфигурирован
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// LoadgenConfig конфигурация генератора нагрузки
type LoadgenConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
	Class       string
	Users       int
	SpawnRate   float64
	Duration    time.Duration
	Seed        uint64
	PacingMode  string
	ProfileFile string
	MetricsAddr string
	Redis       RedisConfig
	Log         LogConfig
}

// SmokeConfig конфигурация smoke тестов
type SmokeConfig struct {
	BaseURL       string
	HTTPTimeout   time.Duration
	KnownSeries   string
	UnknownSeries string
	Version       string
	Log           LogConfig
}

// ServerConfig конфигурация mock сервиса
type ServerConfig struct {
	ServerPort       string
	KnownSeries      []string
	WindowSize       int
	AnomalyThreshold float64
	Log              LogConfig
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}
}

// LoadLoadgen загружает конфигурацию генератора нагрузки из environment
func LoadLoadgen() LoadgenConfig {
	return LoadgenConfig{
		BaseURL:     getEnv("API_BASE_URL", DefaultBaseURL),
		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		Class:       getEnv("LOADGEN_CLASS", "mixed"),
		Users:       getEnvAsInt("LOADGEN_USERS", 10),
		SpawnRate:   getEnvAsFloat("LOADGEN_SPAWN_RATE", 1),
		Duration:    getEnvAsDuration("LOADGEN_DURATION", time.Minute),
		Seed:        getEnvAsUint64("LOADGEN_SEED", 0),
		PacingMode:  getEnv("LOADGEN_PACING_MODE", PacingConstantPacing),
		ProfileFile: getEnv("LOADGEN_PROFILE_FILE", ""),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Retention: time.Duration(getEnvAsInt("RESULTS_RETENTION_HOURS", 24)) * time.Hour,
		},
		Log: loadLogConfig(),
	}
}

// Validate проверяет конфигурацию генератора нагрузки
func (c LoadgenConfig) Validate() error {
	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.Users <= 0 {
		return fmt.Errorf("users must be positive, got %d", c.Users)
	}
	if c.SpawnRate <= 0 {
		return fmt.Errorf("spawn rate must be positive, got %g", c.SpawnRate)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", c.Duration)
	}
	switch c.PacingMode {
	case PacingConstant, PacingConstantPacing:
	default:
		return fmt.Errorf("unknown pacing mode %q", c.PacingMode)
	}
	return nil
}

// LoadSmoke загружает конфигурацию smoke тестов из environment
func LoadSmoke() SmokeConfig {
	return SmokeConfig{
		BaseURL:       getEnv("API_BASE_URL", DefaultBaseURL),
		HTTPTimeout:   getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		KnownSeries:   getEnv("SMOKE_KNOWN_SERIES", "sensor_001_radial"),
		UnknownSeries: getEnv("SMOKE_UNKNOWN_SERIES", "sensor_999_nonexistent"),
		Version:       getEnv("SMOKE_VERSION", "Staging"),
		Log:           loadLogConfig(),
	}
}

// Validate проверяет конфигурацию smoke тестов
func (c SmokeConfig) Validate() error {
	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.KnownSeries == "" || c.UnknownSeries == "" {
		return fmt.Errorf("known and unknown series ids are required")
	}
	if c.KnownSeries == c.UnknownSeries {
		return fmt.Errorf("known and unknown series ids must differ, both are %q", c.KnownSeries)
	}
	return nil
}

// DefaultKnownSeries модели, зарегистрированные в mock сервисе по умолчанию
func DefaultKnownSeries() []string {
	ids := make([]string, 0, 21)
	for i := 1; i <= 20; i++ {
		ids = append(ids, fmt.Sprintf("sensor_%03d", i))
	}
	return append(ids, "sensor_001_radial")
}

// LoadServer загружает конфигурацию mock сервиса из environment
func LoadServer() ServerConfig {
	return ServerConfig{
		ServerPort:       getEnv("SERVER_PORT", "8000"),
		KnownSeries:      getEnvAsList("KNOWN_SERIES", DefaultKnownSeries()),
		WindowSize:       getEnvAsInt("WINDOW_SIZE", 50),
		AnomalyThreshold: getEnvAsFloat("ANOMALY_THRESHOLD", 3.0),
		Log:              loadLogConfig(),
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q has no host", raw)
	}
	return nil
}
