package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *c)
	assert.Equal(t, 900*time.Second, c.Pairing.Timeout)
	assert.Equal(t, 20, c.Transport.MTU)
	assert.Equal(t, 50*time.Millisecond, c.Transport.WriteInterval)
	assert.Equal(t, 64, c.Transport.NotificationQueueSize)
	assert.Zero(t, c.Session.ExpiresIn)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teslable.yaml")
	content := `
vehicle:
  address: "AA:BB:CC:DD:EE:FF"
  vin: 5YJ3E1EA7KF000001
keys:
  path: /var/lib/teslable/key.json
pairing:
  timeout: 2m
transport:
  mtu: 182
  write_interval: 10ms
session:
  expires_in: 30s
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", c.Vehicle.Address)
	assert.Equal(t, "5YJ3E1EA7KF000001", c.Vehicle.VIN)
	assert.Equal(t, "/var/lib/teslable/key.json", c.Keys.Path)
	assert.Equal(t, 2*time.Minute, c.Pairing.Timeout)
	assert.Equal(t, 182, c.Transport.MTU)
	assert.Equal(t, 10*time.Millisecond, c.Transport.WriteInterval)
	assert.Equal(t, 64, c.Transport.NotificationQueueSize, "unset keys keep their default")
	assert.Equal(t, 30*time.Second, c.Session.ExpiresIn)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("TESLABLE_VEHICLE_ADDRESS", "11:22:33:44:55:66")
	t.Setenv("TESLABLE_TRANSPORT_MTU", "64")
	t.Setenv("TESLABLE_LOG_LEVEL", "warn")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "11:22:33:44:55:66", c.Vehicle.Address)
	assert.Equal(t, 64, c.Transport.MTU)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no key path", func(c *Config) { c.Keys.Path = "" }},
		{"zero pairing timeout", func(c *Config) { c.Pairing.Timeout = 0 }},
		{"zero mtu", func(c *Config) { c.Transport.MTU = 0 }},
		{"zero queue", func(c *Config) { c.Transport.NotificationQueueSize = 0 }},
		{"negative expiry", func(c *Config) { c.Session.ExpiresIn = -time.Second }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Defaults()
			tc.mutate(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, logging.LogLevelDebug, level)

	_, err = ParseLogLevel("verbose")
	require.Error(t, err)

	c := Defaults()
	c.LogLevel = "trace"
	f, ok := c.LoggerFactory().(*logging.DefaultLoggerFactory)
	require.True(t, ok)
	assert.Equal(t, logging.LogLevelTrace, f.DefaultLogLevel)
}
