// Package config loads the device configuration. Fields are pointers so
// a partial JSON file only overrides what it names; the Get* accessors
// supply the defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Contact is one emergency contact entry in the configuration file.
type Contact struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Phone             string   `json:"phone"`
	Relationship      string   `json:"relationship,omitempty"`
	Primary           bool     `json:"primary,omitempty"`
	PreferredChannels []string `json:"preferred_channels,omitempty"`
}

// Config is the root device configuration. The schema doubles as the
// payload of the /api/config endpoint so the same JSON serves startup
// and runtime inspection.
type Config struct {
	// Detection params
	SensitivityLevel *int    `json:"sensitivity_level,omitempty"` // 1 (least) .. 5 (most sensitive)
	WindowSize       *int    `json:"window_size,omitempty"`
	WindowOverlap    *int    `json:"window_overlap,omitempty"`
	EvaluateInterval *string `json:"evaluate_interval,omitempty"` // duration string like "100ms"
	ModelPath        *string `json:"model_path,omitempty"`
	PatternCapacity  *int    `json:"pattern_capacity,omitempty"`

	// Session params
	CountdownSeconds *int `json:"countdown_seconds,omitempty"`

	// Escalation params
	UserName        *string   `json:"user_name,omitempty"`
	Contacts        []Contact `json:"contacts,omitempty"`
	LocationTimeout *string   `json:"location_timeout,omitempty"` // duration string like "30s"
	AutoCallPrimary *bool     `json:"auto_call_primary,omitempty"`

	// Channel gateways
	EnablePush      *bool   `json:"enable_push,omitempty"`
	PushGatewayURL  *string `json:"push_gateway_url,omitempty"`
	PushToken       *string `json:"push_token,omitempty"`
	EnableSMS       *bool   `json:"enable_sms,omitempty"`
	SMSGatewayURL   *string `json:"sms_gateway_url,omitempty"`
	SMSToken        *string `json:"sms_token,omitempty"`
	SMSFrom         *string `json:"sms_from,omitempty"`
	VoiceGatewayURL *string `json:"voice_gateway_url,omitempty"`
	VoiceToken      *string `json:"voice_token,omitempty"`
	EnableMQTT      *bool   `json:"enable_mqtt,omitempty"`
	MQTTBroker      *string `json:"mqtt_broker,omitempty"`
	MQTTClientID    *string `json:"mqtt_client_id,omitempty"`
	MQTTTopic       *string `json:"mqtt_topic,omitempty"`

	// Sensor input
	SerialPort *string `json:"serial_port,omitempty"`
	SerialBaud *int    `json:"serial_baud,omitempty"`
	ReplayPath *string `json:"replay_path,omitempty"`

	// Storage and API
	DBPath     *string `json:"db_path,omitempty"`
	ListenAddr *string `json:"listen_addr,omitempty"`
}

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. Fields omitted from the file
// keep their defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.SensitivityLevel != nil {
		if *c.SensitivityLevel < 1 || *c.SensitivityLevel > 5 {
			return fmt.Errorf("sensitivity_level must be between 1 and 5, got %d", *c.SensitivityLevel)
		}
	}

	if c.WindowSize != nil && *c.WindowSize < 2 {
		return fmt.Errorf("window_size must be at least 2, got %d", *c.WindowSize)
	}
	if c.WindowOverlap != nil {
		if *c.WindowOverlap < 0 {
			return fmt.Errorf("window_overlap must be non-negative, got %d", *c.WindowOverlap)
		}
		if c.WindowSize != nil && *c.WindowOverlap >= *c.WindowSize {
			return fmt.Errorf("window_overlap %d must be smaller than window_size %d", *c.WindowOverlap, *c.WindowSize)
		}
	}

	if c.EvaluateInterval != nil && *c.EvaluateInterval != "" {
		if _, err := time.ParseDuration(*c.EvaluateInterval); err != nil {
			return fmt.Errorf("invalid evaluate_interval '%s': %w", *c.EvaluateInterval, err)
		}
	}
	if c.LocationTimeout != nil && *c.LocationTimeout != "" {
		if _, err := time.ParseDuration(*c.LocationTimeout); err != nil {
			return fmt.Errorf("invalid location_timeout '%s': %w", *c.LocationTimeout, err)
		}
	}

	if c.CountdownSeconds != nil && *c.CountdownSeconds < 1 {
		return fmt.Errorf("countdown_seconds must be positive, got %d", *c.CountdownSeconds)
	}
	if c.PatternCapacity != nil && *c.PatternCapacity < 1 {
		return fmt.Errorf("pattern_capacity must be positive, got %d", *c.PatternCapacity)
	}
	if c.SerialBaud != nil && *c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", *c.SerialBaud)
	}

	for i, contact := range c.Contacts {
		if contact.Phone == "" {
			return fmt.Errorf("contact %d (%s) has no phone number", i, contact.Name)
		}
	}
	return nil
}

// GetSensitivityLevel returns the sensitivity_level value or the default.
func (c *Config) GetSensitivityLevel() int {
	if c.SensitivityLevel == nil {
		return 3 // neutral
	}
	return *c.SensitivityLevel
}

// GetWindowSize returns the window_size value or the default.
func (c *Config) GetWindowSize() int {
	if c.WindowSize == nil {
		return 50
	}
	return *c.WindowSize
}

// GetWindowOverlap returns the window_overlap value or the default.
func (c *Config) GetWindowOverlap() int {
	if c.WindowOverlap == nil {
		return 25
	}
	return *c.WindowOverlap
}

// GetEvaluateInterval parses and returns the evaluate_interval as a time.Duration.
func (c *Config) GetEvaluateInterval() time.Duration {
	if c.EvaluateInterval == nil || *c.EvaluateInterval == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.EvaluateInterval)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetLocationTimeout parses and returns the location_timeout as a time.Duration.
func (c *Config) GetLocationTimeout() time.Duration {
	if c.LocationTimeout == nil || *c.LocationTimeout == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.LocationTimeout)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// GetModelPath returns the model_path value or the default.
func (c *Config) GetModelPath() string {
	if c.ModelPath == nil {
		return ""
	}
	return *c.ModelPath
}

// GetPatternCapacity returns the pattern_capacity value or the default.
func (c *Config) GetPatternCapacity() int {
	if c.PatternCapacity == nil {
		return 100
	}
	return *c.PatternCapacity
}

// GetCountdownSeconds returns the countdown_seconds value or the default.
func (c *Config) GetCountdownSeconds() int {
	if c.CountdownSeconds == nil {
		return 15
	}
	return *c.CountdownSeconds
}

// GetUserName returns the user_name value or the default.
func (c *Config) GetUserName() string {
	if c.UserName == nil {
		return ""
	}
	return *c.UserName
}

// GetAutoCallPrimary returns the auto_call_primary value or the default.
func (c *Config) GetAutoCallPrimary() bool {
	if c.AutoCallPrimary == nil {
		return true // default: ring the primary contact
	}
	return *c.AutoCallPrimary
}

// GetEnablePush returns the enable_push value or the default.
func (c *Config) GetEnablePush() bool {
	if c.EnablePush == nil {
		return c.PushGatewayURL != nil
	}
	return *c.EnablePush
}

// GetEnableSMS returns the enable_sms value or the default.
func (c *Config) GetEnableSMS() bool {
	if c.EnableSMS == nil {
		return c.SMSGatewayURL != nil
	}
	return *c.EnableSMS
}

// GetEnableMQTT returns the enable_mqtt value or the default.
func (c *Config) GetEnableMQTT() bool {
	if c.EnableMQTT == nil {
		return c.MQTTBroker != nil
	}
	return *c.EnableMQTT
}

// GetPushGatewayURL returns the push_gateway_url value or the default.
func (c *Config) GetPushGatewayURL() string {
	if c.PushGatewayURL == nil {
		return ""
	}
	return *c.PushGatewayURL
}

// GetPushToken returns the push_token value or the default.
func (c *Config) GetPushToken() string {
	if c.PushToken == nil {
		return ""
	}
	return *c.PushToken
}

// GetSMSGatewayURL returns the sms_gateway_url value or the default.
func (c *Config) GetSMSGatewayURL() string {
	if c.SMSGatewayURL == nil {
		return ""
	}
	return *c.SMSGatewayURL
}

// GetSMSToken returns the sms_token value or the default.
func (c *Config) GetSMSToken() string {
	if c.SMSToken == nil {
		return ""
	}
	return *c.SMSToken
}

// GetSMSFrom returns the sms_from value or the default.
func (c *Config) GetSMSFrom() string {
	if c.SMSFrom == nil {
		return "falldetect"
	}
	return *c.SMSFrom
}

// GetVoiceGatewayURL returns the voice_gateway_url value or the default.
func (c *Config) GetVoiceGatewayURL() string {
	if c.VoiceGatewayURL == nil {
		return ""
	}
	return *c.VoiceGatewayURL
}

// GetVoiceToken returns the voice_token value or the default.
func (c *Config) GetVoiceToken() string {
	if c.VoiceToken == nil {
		return ""
	}
	return *c.VoiceToken
}

// GetMQTTBroker returns the mqtt_broker value or the default.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetMQTTClientID returns the mqtt_client_id value or the default.
func (c *Config) GetMQTTClientID() string {
	if c.MQTTClientID == nil {
		return "falldetect"
	}
	return *c.MQTTClientID
}

// GetMQTTTopic returns the mqtt_topic value or the default.
func (c *Config) GetMQTTTopic() string {
	if c.MQTTTopic == nil {
		return "falldetect/alerts"
	}
	return *c.MQTTTopic
}

// GetSerialPort returns the serial_port value or the default.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaud returns the serial_baud value or the default.
func (c *Config) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return 115200
	}
	return *c.SerialBaud
}

// GetReplayPath returns the replay_path value or the default.
func (c *Config) GetReplayPath() string {
	if c.ReplayPath == nil {
		return ""
	}
	return *c.ReplayPath
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "falldetect.db"
	}
	return *c.DBPath
}

// GetListenAddr returns the listen_addr value or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil {
		return ":8080"
	}
	return *c.ListenAddr
}
