// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config
// files.
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
	defaultServerPort    = 8080
	defaultServerHost    = "0.0.0.0"
	defaultReadTimeout   = 30 * time.Second
	defaultWriteTimeout  = 30 * time.Second
	defaultDatabasePath  = "./data/skyplayer.db"
	defaultLogLevel      = "info"
	defaultLogPretty     = false
	defaultAdvanceMargin = 2 * time.Second
	defaultScheduleTick  = 5 * time.Second
	defaultHistoryLimit  = 200
	defaultSlotDuration  = 2 * time.Hour
	envPrefix            = "SKYPLAYER"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Playback PlaybackConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds snapshot database configuration
type DatabaseConfig struct {
	Path string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds the playback timing knobs. The margin and tick values
// are empirical; they ship as configuration rather than hard constants.
type PlaybackConfig struct {
	// AdvanceMargin is the safety buffer added to the advance timer beyond an
	// item's remaining play time.
	AdvanceMargin time.Duration
	// ScheduleTick is the period of the program reconciliation tick.
	ScheduleTick time.Duration
	// HistoryLimit bounds each channel's played-items history.
	HistoryLimit int
	// DefaultSlotDuration is the scheduled-slot length for items with no
	// intrinsic duration.
	DefaultSlotDuration time.Duration
}

// AuthConfig holds the built-in authorizer's settings. It only matters when
// no external rights backend is plugged in.
type AuthConfig struct {
	// Admins lists viewer identities with elevated privilege.
	Admins []string
}

// Load reads configuration from .env file, config files, environment
// variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set
	// directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/skyplayer")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("playback.advancemargin", defaultAdvanceMargin)
	v.SetDefault("playback.scheduletick", defaultScheduleTick)
	v.SetDefault("playback.historylimit", defaultHistoryLimit)
	v.SetDefault("playback.defaultslotduration", defaultSlotDuration)

	v.SetDefault("auth.admins", []string{})
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Playback.AdvanceMargin < 0 {
		return fmt.Errorf("invalid advance margin: %v (must be >= 0)", c.Playback.AdvanceMargin)
	}
	if c.Playback.ScheduleTick <= 0 {
		return fmt.Errorf("invalid schedule tick: %v (must be > 0)", c.Playback.ScheduleTick)
	}
	if c.Playback.HistoryLimit < 1 {
		return fmt.Errorf("invalid history limit: %d (must be >= 1)", c.Playback.HistoryLimit)
	}
	if c.Playback.DefaultSlotDuration <= 0 {
		return fmt.Errorf("invalid default slot duration: %v (must be > 0)", c.Playback.DefaultSlotDuration)
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
