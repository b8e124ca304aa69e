package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// EnvConfigPath names the config file when no path is passed to Load.
	EnvConfigPath = "CONFIG_PATH"
	envPrefix     = "APP"

	placeholderAccountSID = "ACXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"
	placeholderAuthToken  = "your_auth_token_here"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type ServerConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"min=1,max=65535"`
	GRPCPort               int    `mapstructure:"grpc_port" validate:"min=0,max=65535"`
	Timezone               string `mapstructure:"timezone" validate:"required"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"min=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=sqlite postgres memory"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns" validate:"min=1"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" validate:"required"`
}

type ValidationConfig struct {
	RequireAuth         bool `mapstructure:"require_auth"`
	ValidatePhoneFormat bool `mapstructure:"validate_phone_format"`
	CheckFromNumbers    bool `mapstructure:"check_from_numbers"`
	RequireParameters   bool `mapstructure:"require_parameters"`
}

type CallbackConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	DelaySeconds      int  `mapstructure:"delay_seconds" validate:"min=0"`
	RetryAttempts     int  `mapstructure:"retry_attempts" validate:"min=1"`
	RetryDelaySeconds int  `mapstructure:"retry_delay_seconds" validate:"min=0"`
}

type TwilioConfig struct {
	AccountSID string           `mapstructure:"account_sid"`
	AuthToken  string           `mapstructure:"auth_token"`
	Validation ValidationConfig `mapstructure:"validation"`
	// DefaultBehavior is accepted for compatibility with older config files.
	// Destinations on neither number list are never progressed.
	DefaultBehavior    string         `mapstructure:"default_behavior" validate:"oneof=success failure"`
	RegisteredNumbers  []string       `mapstructure:"registered_numbers"`
	AllowedFromNumbers []string       `mapstructure:"allowed_from_numbers"`
	FailureNumbers     []string       `mapstructure:"failure_numbers"`
	Callbacks          CallbackConfig `mapstructure:"callbacks"`
}

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Provider string         `mapstructure:"provider" validate:"eq=twilio"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
}

// Load reads the YAML file at path (or $CONFIG_PATH, or ./config.yaml) and
// applies APP_* environment overrides, e.g. APP_TWILIO_CALLBACKS_ENABLED.
// An explicitly named file must exist; the implicit ./config.yaml may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Warn("Configuration file not found; using defaults and environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/mock_server.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "mockprovider")

	v.SetDefault("provider", "twilio")

	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.validation.require_auth", true)
	v.SetDefault("twilio.validation.validate_phone_format", true)
	v.SetDefault("twilio.validation.check_from_numbers", true)
	v.SetDefault("twilio.validation.require_parameters", true)
	v.SetDefault("twilio.default_behavior", "success")
	v.SetDefault("twilio.registered_numbers", []string{})
	v.SetDefault("twilio.allowed_from_numbers", []string{})
	v.SetDefault("twilio.failure_numbers", []string{})
	v.SetDefault("twilio.callbacks.enabled", true)
	v.SetDefault("twilio.callbacks.delay_seconds", 2)
	v.SetDefault("twilio.callbacks.retry_attempts", 3)
	v.SetDefault("twilio.callbacks.retry_delay_seconds", 5)
}

// Validate checks field constraints and the rules spanning several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s=%s, got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Twilio.Validation.RequireAuth {
		if c.Twilio.AccountSID == "" || c.Twilio.AccountSID == placeholderAccountSID {
			return fmt.Errorf("%w: twilio.account_sid must be set when require_auth is enabled", ErrInvalidConfig)
		}
		if c.Twilio.AuthToken == "" || c.Twilio.AuthToken == placeholderAuthToken {
			return fmt.Errorf("%w: twilio.auth_token must be set when require_auth is enabled", ErrInvalidConfig)
		}
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for the postgres driver", ErrInvalidConfig)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for the sqlite driver", ErrInvalidConfig)
		}
	}

	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("%w: server.timezone: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c CallbackConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

func (c CallbackConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// Location returns the display timezone, falling back to UTC.
func (s ServerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
