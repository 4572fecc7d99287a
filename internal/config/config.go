// Package config provides Viper-based configuration loading for the space server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP/WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP/WebSocket listener.
	Port int `mapstructure:"port"`
	// ShutdownTimeout bounds graceful HTTP shutdown on stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// PresenceConfig holds the proximity-tick and grouping settings.
type PresenceConfig struct {
	// TickInterval is the period of the proximity evaluation tick.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// TileSize is the pixel width of one grid tile.
	TileSize int `mapstructure:"tile_size"`
	// Radius is the Chebyshev tile distance within which sessions group.
	Radius int `mapstructure:"radius"`
	// ExpireTicks is the number of consecutive out-of-group ticks before a
	// contact id is dropped.
	ExpireTicks int `mapstructure:"expire_ticks"`
	// EmptyRoomDebounce delays ephemeral-state teardown after a room empties.
	EmptyRoomDebounce time.Duration `mapstructure:"empty_room_debounce"`
}

// WorldConfig holds room catalog settings.
type WorldConfig struct {
	// RoomsFile is the path to the YAML room catalog.
	RoomsFile string `mapstructure:"rooms_file"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Presence PresenceConfig `mapstructure:"presence"`
	World    WorldConfig    `mapstructure:"world"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validatePresence(c.Presence); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWorld(c.World); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validatePresence(p PresenceConfig) error {
	var errs []string
	if p.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("presence.tick_interval must be > 0, got %s", p.TickInterval))
	}
	if p.TileSize < 1 {
		errs = append(errs, fmt.Sprintf("presence.tile_size must be >= 1, got %d", p.TileSize))
	}
	if p.Radius < 0 {
		errs = append(errs, fmt.Sprintf("presence.radius must be >= 0, got %d", p.Radius))
	}
	if p.ExpireTicks < 1 {
		errs = append(errs, fmt.Sprintf("presence.expire_ticks must be >= 1, got %d", p.ExpireTicks))
	}
	if p.EmptyRoomDebounce < 0 {
		errs = append(errs, "presence.empty_room_debounce must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWorld(w WorldConfig) error {
	if w.RoomsFile == "" {
		return fmt.Errorf("world.rooms_file must not be empty")
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with AGORA_ prefix
	v.SetEnvPrefix("AGORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("presence.tick_interval", "300ms")
	v.SetDefault("presence.tile_size", 32)
	v.SetDefault("presence.radius", 2)
	v.SetDefault("presence.expire_ticks", 3)
	v.SetDefault("presence.empty_room_debounce", "2s")

	v.SetDefault("world.rooms_file", "content/rooms.yaml")
}
