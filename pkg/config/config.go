// Package config loads client configuration from defaults, an optional YAML
// file and TESLABLE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/backkem/teslable/pkg/pairing"
	"github.com/backkem/teslable/pkg/transport"
	"github.com/backkem/teslable/pkg/vehicle"
)

// EnvPrefix prefixes environment overrides, e.g. TESLABLE_VEHICLE_ADDRESS.
const EnvPrefix = "TESLABLE"

// Config is the client configuration.
type Config struct {
	Vehicle   VehicleConfig   `mapstructure:"vehicle"`
	Keys      KeysConfig      `mapstructure:"keys"`
	Pairing   PairingConfig   `mapstructure:"pairing"`
	Transport TransportConfig `mapstructure:"transport"`
	Session   SessionConfig   `mapstructure:"session"`
	LogLevel  string          `mapstructure:"log_level"`
}

// VehicleConfig identifies the vehicle.
type VehicleConfig struct {
	Address string `mapstructure:"address"`
	VIN     string `mapstructure:"vin"`
}

// KeysConfig locates the persisted key pair.
type KeysConfig struct {
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"`
}

// PairingConfig configures pairing.
type PairingConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// TransportConfig configures chunking and notification delivery.
type TransportConfig struct {
	MTU                   int           `mapstructure:"mtu"`
	WriteInterval         time.Duration `mapstructure:"write_interval"`
	NotificationQueueSize int           `mapstructure:"notification_queue_size"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
}

// SessionConfig configures request wrapping.
type SessionConfig struct {
	// ExpiresIn is added to the vehicle clock for expires_at. Zero sends 0.
	ExpiresIn time.Duration `mapstructure:"expires_in"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Keys:    KeysConfig{Path: "teslable_key.json"},
		Pairing: PairingConfig{Timeout: pairing.DefaultTimeout},
		Transport: TransportConfig{
			MTU:                   transport.DefaultMTU,
			WriteInterval:         transport.DefaultWriteInterval,
			NotificationQueueSize: vehicle.DefaultNotificationQueueSize,
			RequestTimeout:        vehicle.DefaultRequestTimeout,
		},
		LogLevel: "info",
	}
}

// SetDefaults registers the defaults with v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("vehicle.address", d.Vehicle.Address)
	v.SetDefault("vehicle.vin", d.Vehicle.VIN)
	v.SetDefault("keys.path", d.Keys.Path)
	v.SetDefault("keys.passphrase", d.Keys.Passphrase)
	v.SetDefault("pairing.timeout", d.Pairing.Timeout)
	v.SetDefault("transport.mtu", d.Transport.MTU)
	v.SetDefault("transport.write_interval", d.Transport.WriteInterval)
	v.SetDefault("transport.notification_queue_size", d.Transport.NotificationQueueSize)
	v.SetDefault("transport.request_timeout", d.Transport.RequestTimeout)
	v.SetDefault("session.expires_in", d.Session.ExpiresIn)
	v.SetDefault("log_level", d.LogLevel)
}

// New returns a viper instance with defaults and environment overrides.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the YAML file at path, if not empty, and returns the merged
// configuration.
func Load(path string) (*Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// ReadFile merges the YAML file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Keys.Path == "" {
		errs = append(errs, errors.New("keys.path is required"))
	}
	if c.Pairing.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("pairing.timeout must be positive, got %s", c.Pairing.Timeout))
	}
	if c.Transport.MTU <= 0 {
		errs = append(errs, fmt.Errorf("transport.mtu must be positive, got %d", c.Transport.MTU))
	}
	if c.Transport.NotificationQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("transport.notification_queue_size must be positive, got %d", c.Transport.NotificationQueueSize))
	}
	if c.Session.ExpiresIn < 0 {
		errs = append(errs, fmt.Errorf("session.expires_in must not be negative, got %s", c.Session.ExpiresIn))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
