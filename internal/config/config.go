package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

type Config struct {
	Port      string `mapstructure:"PORT"`
	GRPCPort  string `mapstructure:"GRPC_PORT"`
	Env       string `mapstructure:"ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	JWTSecret string `mapstructure:"JWT_SECRET"`
	Timezone  string `mapstructure:"TIMEZONE"`

	PlatformURL       string        `mapstructure:"PLATFORM_URL"`
	PlatformTransport string        `mapstructure:"PLATFORM_TRANSPORT"`
	PlatformGRPCAddr  string        `mapstructure:"PLATFORM_GRPC_ADDR"`
	PlatformService   string        `mapstructure:"PLATFORM_SERVICE"`
	MethodPrefix      string        `mapstructure:"PLATFORM_METHOD_PREFIX"`
	PlatformTimeout   time.Duration `mapstructure:"PLATFORM_TIMEOUT"`
	ServiceToken      string        `mapstructure:"PLATFORM_SERVICE_TOKEN"`

	DashboardProfile string `mapstructure:"DASHBOARD_PROFILE"`
	DashboardsFile   string `mapstructure:"DASHBOARDS_FILE"`
	RefreshSchedule  string `mapstructure:"REFRESH_SCHEDULE"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`
}

var keys = []string{
	"PORT", "GRPC_PORT", "ENV", "LOG_LEVEL", "JWT_SECRET", "TIMEZONE",
	"PLATFORM_URL", "PLATFORM_TRANSPORT", "PLATFORM_GRPC_ADDR", "PLATFORM_SERVICE",
	"PLATFORM_METHOD_PREFIX", "PLATFORM_TIMEOUT", "PLATFORM_SERVICE_TOKEN",
	"DASHBOARD_PROFILE", "DASHBOARDS_FILE", "REFRESH_SCHEDULE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SESSION_TTL",
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("PLATFORM_URL", "http://localhost:8000")
	v.SetDefault("PLATFORM_TRANSPORT", TransportHTTP)
	v.SetDefault("PLATFORM_SERVICE", "clinic.v1.Procedures")
	v.SetDefault("PLATFORM_METHOD_PREFIX", "myhealth.myhealth.api")
	v.SetDefault("PLATFORM_TIMEOUT", "10s")
	v.SetDefault("DASHBOARD_PROFILE", "patient")
	v.SetDefault("REFRESH_SCHEDULE", "@every 30s")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("SESSION_TTL", "30m")

	for _, k := range keys {
		v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.PlatformTransport = strings.ToLower(cfg.PlatformTransport)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.PlatformTransport {
	case TransportHTTP:
		if c.PlatformURL == "" {
			return errors.New("PLATFORM_URL is required for the http transport")
		}
	case TransportGRPC:
		if c.PlatformGRPCAddr == "" {
			return errors.New("PLATFORM_GRPC_ADDR is required for the grpc transport")
		}
	default:
		return fmt.Errorf("PLATFORM_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportGRPC, c.PlatformTransport)
	}
	if c.PlatformTimeout <= 0 {
		return errors.New("PLATFORM_TIMEOUT must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}
