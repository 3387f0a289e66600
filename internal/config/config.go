package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix     = "FIELDLOG_"
	configPathEnv = "FIELDLOG_CONFIG_PATH"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ModeHTTP  = "http"
	ModeStdio = "stdio"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	DB        DBConfig        `yaml:"db" envPrefix:"DB_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Transport TransportConfig `yaml:"transport" envPrefix:"TRANSPORT_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Reconcile ReconcileConfig `yaml:"reconcile" envPrefix:"RECONCILE_"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

type DBConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	Path   string `yaml:"path" env:"PATH"`
	URL    string `yaml:"url" env:"URL"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	// Path enables a rotating log file instead of the console.
	Path  string `yaml:"path" env:"PATH"`
}

type AuthConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	AdminSecret  string `yaml:"admin_secret" env:"ADMIN_SECRET"`
	// DefaultActor is the actor used when auth is disabled or in stdio mode.
	DefaultActor string `yaml:"default_actor" env:"DEFAULT_ACTOR"`
}

type TransportConfig struct {
	Mode string `yaml:"mode" env:"MODE"`
}

type RateLimitConfig struct {
	// PerIP is a ulule/limiter rate such as "100-M". Empty disables.
	PerIP string `yaml:"per_ip" env:"PER_IP"`
}

type ReconcileConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	Repair   bool          `yaml:"repair" env:"REPAIR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Driver: DriverSQLite,
			Path:   "fieldlog.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Transport: TransportConfig{
			Mode: ModeHTTP,
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and environment
// variables, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return fmt.Errorf("db.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.URL == "" {
			return fmt.Errorf("db.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db driver %q", c.DB.Driver)
	}
	switch c.Transport.Mode {
	case ModeHTTP, ModeStdio:
	default:
		return fmt.Errorf("unknown transport mode %q", c.Transport.Mode)
	}
	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		return fmt.Errorf("reconcile.interval must be positive")
	}
	if c.Transport.Mode == ModeStdio && c.Auth.DefaultActor == "" {
		return fmt.Errorf("auth.default_actor is required in stdio mode")
	}
	return nil
}

// LogLevel parses the configured log level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
