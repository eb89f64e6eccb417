package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the process configuration read from the environment
type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Auth      AuthConfig      `envPrefix:"JWT_"`
	CORS      CORSConfig      `envPrefix:"CORS_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	LLM       LLMConfig       `envPrefix:"LLM_"`
	Weather   WeatherConfig   `envPrefix:"OPENWEATHER_"`
	SMS       SMSConfig       `envPrefix:"TWILIO_"`
	SMTP      SMTPConfig      `envPrefix:"SMTP_"`
	Scheduler SchedulerConfig `envPrefix:"SCHEDULER_"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8090"`
	Mode            string        `env:"MODE" envDefault:"debug"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// IsRelease reports whether gin runs in release mode
func (c ServerConfig) IsRelease() bool {
	return c.Mode == "release"
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Driver       string        `env:"DRIVER" envDefault:"postgres"`
	URL          string        `env:"URL"`
	Host         string        `env:"HOST" envDefault:"localhost"`
	Port         string        `env:"PORT" envDefault:"5432"`
	User         string        `env:"USER" envDefault:"krishi"`
	Password     string        `env:"PASSWORD"`
	Name         string        `env:"NAME" envDefault:"krishi"`
	SSLMode      string        `env:"SSLMODE" envDefault:"disable"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLife  time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// DSN returns the connection string for the configured driver
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case "sqlite":
		return c.Name
	default:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Host + ":" + c.Port,
			Path:     c.Name,
			RawQuery: "sslmode=" + c.SSLMode,
		}
		return u.String()
	}
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `env:"SECRET"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"24h"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins   []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	AllowCredentials bool     `env:"ALLOW_CREDENTIALS" envDefault:"true"`
}

// RedisConfig holds the cache connection. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// LLMConfig selects and configures the answer generator
type LLMConfig struct {
	Provider string        `env:"PROVIDER" envDefault:"none"`
	APIKey   string        `env:"API_KEY"`
	Model    string        `env:"MODEL"`
	BaseURL  string        `env:"BASE_URL"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// WeatherConfig holds the OpenWeatherMap settings
type WeatherConfig struct {
	APIKey  string        `env:"API_KEY"`
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.openweathermap.org/data/3.0"`
	Units   string        `env:"UNITS" envDefault:"metric"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// SMSConfig holds the Twilio settings
type SMSConfig struct {
	AccountSID string        `env:"ACCOUNT_SID"`
	AuthToken  string        `env:"AUTH_TOKEN"`
	FromNumber string        `env:"FROM_NUMBER"`
	BaseURL    string        `env:"BASE_URL" envDefault:"https://api.twilio.com/2010-04-01"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether SMS credentials are present
func (c SMSConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// SMTPConfig holds the outgoing mail settings
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"alerts@krishi.local"`
}

// Enabled reports whether a mail host is configured
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"false"`
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`
}

// Load reads a .env file when present, then parses the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be one of postgres, mysql, sqlite (got %q)", c.Database.Driver)
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	switch c.LLM.Provider {
	case "none", "":
		c.LLM.Provider = "none"
	case "gemini", "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for provider %s", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of none, gemini, openai (got %q)", c.LLM.Provider)
	}

	if c.Auth.JWTSecret == "" {
		if c.Server.IsRelease() {
			return stderrors.New("JWT_SECRET is required in release mode")
		}
		c.Auth.JWTSecret = GenerateJWTSecret()
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1m (got %s)", c.Scheduler.Interval)
	}
	return nil
}
