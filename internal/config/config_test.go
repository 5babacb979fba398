package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()

	assert.Equal(t, 3, cfg.GetSensitivityLevel())
	assert.Equal(t, 50, cfg.GetWindowSize())
	assert.Equal(t, 25, cfg.GetWindowOverlap())
	assert.Equal(t, 100*time.Millisecond, cfg.GetEvaluateInterval())
	assert.Equal(t, 15, cfg.GetCountdownSeconds())
	assert.Equal(t, 30*time.Second, cfg.GetLocationTimeout())
	assert.Equal(t, 100, cfg.GetPatternCapacity())
	assert.Equal(t, 115200, cfg.GetSerialBaud())
	assert.Equal(t, "falldetect.db", cfg.GetDBPath())
	assert.Equal(t, ":8080", cfg.GetListenAddr())
	assert.Equal(t, "falldetect/alerts", cfg.GetMQTTTopic())
	assert.True(t, cfg.GetAutoCallPrimary())

	// Channels stay off until a gateway is configured.
	assert.False(t, cfg.GetEnablePush())
	assert.False(t, cfg.GetEnableSMS())
	assert.False(t, cfg.GetEnableMQTT())
}

func TestChannelEnableFollowsGateway(t *testing.T) {
	cfg := Empty()
	cfg.PushGatewayURL = ptrString("https://push.example.com")
	cfg.MQTTBroker = ptrString("tcp://localhost:1883")
	assert.True(t, cfg.GetEnablePush())
	assert.True(t, cfg.GetEnableMQTT())

	// An explicit flag wins over the gateway heuristic.
	cfg.EnablePush = ptrBool(false)
	assert.False(t, cfg.GetEnablePush())
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `{
		"sensitivity_level": 4,
		"countdown_seconds": 20,
		"user_name": "Margaret",
		"contacts": [
			{"id": "c1", "name": "Alice", "phone": "+15550001", "primary": true}
		]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.GetSensitivityLevel())
	assert.Equal(t, 20, cfg.GetCountdownSeconds())
	assert.Equal(t, "Margaret", cfg.GetUserName())
	require.Len(t, cfg.Contacts, 1)
	assert.True(t, cfg.Contacts[0].Primary)

	// Everything the file omits keeps its default.
	assert.Equal(t, 50, cfg.GetWindowSize())
	assert.Equal(t, 30*time.Second, cfg.GetLocationTimeout())
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	_, err := Load("config.yaml")
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"sensitivity too high", func(c *Config) { c.SensitivityLevel = ptrInt(6) }},
		{"sensitivity too low", func(c *Config) { c.SensitivityLevel = ptrInt(0) }},
		{"window too small", func(c *Config) { c.WindowSize = ptrInt(1) }},
		{"overlap not below window", func(c *Config) { c.WindowSize = ptrInt(50); c.WindowOverlap = ptrInt(50) }},
		{"bad interval", func(c *Config) { c.EvaluateInterval = ptrString("fast") }},
		{"bad location timeout", func(c *Config) { c.LocationTimeout = ptrString("soon") }},
		{"zero countdown", func(c *Config) { c.CountdownSeconds = ptrInt(0) }},
		{"zero baud", func(c *Config) { c.SerialBaud = ptrInt(0) }},
		{"contact without phone", func(c *Config) { c.Contacts = []Contact{{Name: "Alice"}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Empty()
			tc.mut(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRunsValidation(t *testing.T) {
	path := writeConfig(t, `{"sensitivity_level": 9}`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "sensitivity_level")
}
