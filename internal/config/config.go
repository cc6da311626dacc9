// Package config содержит логику чтения конфигурации сервиса pettag.
package config

import (
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// SMTP содержит параметры почтового сервера.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
	// TLS: mandatory, opportunistic, ssl или none.
	TLS string `env:"TLS" envDefault:"mandatory"`
}

// Reminder содержит параметры сканера напоминаний.
type Reminder struct {
	Interval    time.Duration `env:"INTERVAL" envDefault:"15m"`
	WindowDays  int           `env:"WINDOW_DAYS" envDefault:"3"`
	Timezone    string        `env:"TIMEZONE" envDefault:"Asia/Ho_Chi_Minh"`
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"30s"`
	RunOnStart  bool          `env:"RUN_ON_START"`
}

// Config содержит параметры конфигурации сервиса pettag.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	RedisAddr   string `env:"REDIS_ADDR"`

	StoreDriver   string `env:"STORE_DRIVER"`
	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"pettag"`

	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	AuthSecret string `env:"AUTH_SECRET"`
	AdminKey   string `env:"ADMIN_KEY"`

	SMTP             SMTP   `envPrefix:"SMTP_"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`

	Reminder Reminder `envPrefix:"REMINDER_"`
	// RedemptionCodeTTL переопределяет срок действия кода активации.
	// Без него код действует шесть календарных месяцев.
	RedemptionCodeTTL time.Duration `env:"REDEMPTION_CODE_TTL"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddr := cfg.RedisAddr

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddr, "r", "", "redis address for the reminder scan lock")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddr != "" {
		cfg.RedisAddr = envRedisAddr
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.resolveDriver(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if cfg.RedemptionCodeTTL < 0 {
		return nil, fmt.Errorf("REDEMPTION_CODE_TTL must not be negative: %s", cfg.RedemptionCodeTTL)
	}
	if cfg.Reminder.WindowDays < 0 {
		return nil, fmt.Errorf("REMINDER_WINDOW_DAYS must not be negative: %d", cfg.Reminder.WindowDays)
	}

	return cfg, nil
}

// resolveDriver выбирает хранилище, если STORE_DRIVER не задан явно.
func (c *Config) resolveDriver() error {
	if c.StoreDriver == "" {
		switch {
		case c.DatabaseURI != "":
			c.StoreDriver = DriverPostgres
		case c.MongoURI != "":
			c.StoreDriver = DriverMongo
		default:
			c.StoreDriver = DriverMemory
		}
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURI == "" {
			return fmt.Errorf("store driver %q requires DATABASE_URI", c.StoreDriver)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("store driver %q requires MONGODB_URI", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	return nil
}

// Location возвращает часовой пояс клиники.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Reminder.Timezone, err)
	}
	return loc, nil
}
