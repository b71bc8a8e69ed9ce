// Package config loads itemapi settings from flags, environment variables and
// an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys double as flag names. With the key replacer they map to environment
// variables such as DATABASE_URL and PORT.
const (
	KeyConfigFile      = "config"
	KeyDatabaseURL     = "database-url"
	KeyPort            = "port"
	KeyLogFile         = "log-file"
	KeyLogLevel        = "log-level"
	KeyAutoMigrate     = "auto-migrate"
	KeyShutdownTimeout = "shutdown-timeout"
	KeyMaxOpenConns    = "max-open-conns"
)

// Defaults.
const (
	DefaultDatabaseURL     = "items.sqlite3"
	DefaultPort            = 3000
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxOpenConns    = 10
)

// LogLevels lists the accepted log level names.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Config is the resolved runtime configuration.
type Config struct {
	DatabaseURL     string
	Port            int
	LogFile         string
	LogLevel        string
	AutoMigrate     bool
	ShutdownTimeout time.Duration
	MaxOpenConns    int
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyDatabaseURL, DefaultDatabaseURL)
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyAutoMigrate, false)
	v.SetDefault(KeyShutdownTimeout, DefaultShutdownTimeout)
	v.SetDefault(KeyMaxOpenConns, DefaultMaxOpenConns)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// Bind attaches command line flags so that set flags take precedence over
// the environment and the config file.
func Bind(v *viper.Viper, flags *pflag.FlagSet) error {
	return v.BindPFlags(flags)
}

// Load reads the optional config file and returns the validated configuration.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Config{
		DatabaseURL:     strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		Port:            v.GetInt(KeyPort),
		LogFile:         v.GetString(KeyLogFile),
		LogLevel:        strings.ToLower(v.GetString(KeyLogLevel)),
		AutoMigrate:     v.GetBool(KeyAutoMigrate),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		MaxOpenConns:    v.GetInt(KeyMaxOpenConns),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !validLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log level %q (want one of %s)", c.LogLevel, strings.Join(LogLevels, ", ")))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if c.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("max open connections must be at least 1, got %d", c.MaxOpenConns))
	}

	return errors.Join(errs...)
}

func validLevel(level string) bool {
	for _, l := range LogLevels {
		if l == level {
			return true
		}
	}
	return false
}
