package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	NumberSourcePostgres = "postgres"
	NumberSourceRedis    = "redis"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	PostgresConn     string `mapstructure:"POSTGRES_CONN"`
	PostgresUser     string `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass     string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`
	PostgresDB       string `mapstructure:"POSTGRES_DATABASE"`
	PostgresMaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MigrationURL     string `mapstructure:"MIGRATION_URL"`
	StorageDriver    string `mapstructure:"STORAGE_DRIVER"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	TenderNumberSource string `mapstructure:"TENDER_NUMBER_SOURCE"`
	ScoringModel       string `mapstructure:"SCORING_MODEL"`
	DefaultCurrency    string `mapstructure:"DEFAULT_CURRENCY"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	TrustedProxies  []string      `mapstructure:"TRUSTED_PROXIES"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":       "0.0.0.0:8080",
	"POSTGRES_CONN":        "",
	"POSTGRES_USERNAME":    "",
	"POSTGRES_PASSWORD":    "",
	"POSTGRES_HOST":        "",
	"POSTGRES_PORT":        "5432",
	"POSTGRES_DATABASE":    "",
	"POSTGRES_MAX_CONNS":   10,
	"MIGRATION_URL":        "file://migrations",
	"STORAGE_DRIVER":       StorageDriverPostgres,
	"REDIS_ADDR":           "",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"TENDER_NUMBER_SOURCE": NumberSourcePostgres,
	"SCORING_MODEL":        "two_factor",
	"DEFAULT_CURRENCY":     "KES",
	"JWT_SECRET":           "",
	"REQUEST_TIMEOUT":      "5s",
	"SHUTDOWN_TIMEOUT":     "10s",
	"RATE_LIMIT_RPS":       20.0,
	"RATE_LIMIT_BURST":     40,
	"TRUSTED_PROXIES":      "",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
}

// LoadConfig загружает конфигурацию из файла app.env и переменных окружения
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err = v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.PostgresConn == "" {
			return errors.New("POSTGRES_CONN is required for the postgres storage driver")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.TenderNumberSource {
	case NumberSourcePostgres:
	case NumberSourceRedis:
		if c.RedisAddr == "" {
			return errors.New("TENDER_NUMBER_SOURCE=redis requires REDIS_ADDR")
		}
	case "":
	default:
		return fmt.Errorf("unknown TENDER_NUMBER_SOURCE %q", c.TenderNumberSource)
	}

	switch c.ScoringModel {
	case "two_factor", "weighted":
	default:
		return fmt.Errorf("unknown SCORING_MODEL %q", c.ScoringModel)
	}

	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
