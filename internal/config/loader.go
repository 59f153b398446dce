// Package config loads service configuration from file, environment, and
// defaults, in that order of increasing precedence for env overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TriggerConfig configures the schedule trigger loop.
type TriggerConfig struct {
	// Interval is the poll cadence. Recurrence matching is minute-granular;
	// values above one minute will skip firing windows.
	Interval time.Duration `mapstructure:"interval"`

	// GlobalRefreshAt is the HH:MM local time of the daily global-variable
	// refresh.
	GlobalRefreshAt string `mapstructure:"global_refresh_at"`
}

// CloudConfig configures cloud backend access.
type CloudConfig struct {
	// AuthTimeout bounds the connect+list probe against a cloud endpoint.
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
}

// LoggingConfig configures process logging.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// Config is the root configuration.
type Config struct {
	// DataDir holds the job, variable, schedule, and history collections.
	DataDir string `mapstructure:"data_dir"`

	// HistoryCapacity is the live run-history segment size per job.
	HistoryCapacity int `mapstructure:"history_capacity"`

	// HolidayCalendar is an optional YAML holiday calendar path.
	HolidayCalendar string `mapstructure:"holiday_calendar"`

	Server  ServerConfig  `mapstructure:"server"`
	Trigger TriggerConfig `mapstructure:"trigger"`
	Cloud   CloudConfig   `mapstructure:"cloud"`
	Logging LoggingConfig `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("history_capacity", 50)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("trigger.interval", time.Minute)
	v.SetDefault("trigger.global_refresh_at", "00:01")
	v.SetDefault("cloud.auth_timeout", 15*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", false)
}

// Load reads configuration. path is an optional config file; environment
// variables with the LAKEFERRY_ prefix override file values
// (LAKEFERRY_SERVER_PORT=9000 overrides server.port).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LAKEFERRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.HistoryCapacity < 1 {
		return nil, fmt.Errorf("history_capacity must be >= 1, got %d", cfg.HistoryCapacity)
	}
	if cfg.Trigger.Interval < time.Second {
		return nil, fmt.Errorf("trigger.interval must be >= 1s, got %s", cfg.Trigger.Interval)
	}
	return &cfg, nil
}
