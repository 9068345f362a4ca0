package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the host application configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	History  HistoryConfig  `yaml:"history"`
	Recorder RecorderConfig `yaml:"recorder"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Autocal  AutocalConfig  `yaml:"autocal"`
	Mock     MockConfig     `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// HistoryConfig controls how much telemetry the plot keeps.
type HistoryConfig struct {
	WindowSeconds float64 `yaml:"window_seconds"`
	MaxPoints     int     `yaml:"max_points"` // Points drawn per channel after downsampling
}

// RecorderConfig contains the telemetry recorder settings.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"` // Start recording on connect
	Path    string `yaml:"path"`    // SQLite database file
}

// MQTTConfig contains the telemetry bridge settings.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// AutocalConfig contains the calibration suggestion parameters.
type AutocalConfig struct {
	LowQuantile  float64 `yaml:"low_quantile"`
	HighQuantile float64 `yaml:"high_quantile"`
	Margin       float64 `yaml:"margin"` // Fraction of the observed span moved inwards at each end
}

// MockConfig contains mock controller configuration.
type MockConfig struct {
	SampleRate  time.Duration `yaml:"sample_rate"`  // Cycle period
	PressPeriod time.Duration `yaml:"press_period"` // Time for one full press and release
	NoiseLevel  float64       `yaml:"noise_level"`  // Noise amplitude in raw counts
	StoragePath string        `yaml:"storage_path"` // Backing file for the config record; empty keeps it in memory
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		History: HistoryConfig{
			WindowSeconds: 10,
			MaxPoints:     500,
		},
		Recorder: RecorderConfig{
			Enabled: false,
			Path:    "pedaltune.db",
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			Broker:   "tcp://localhost:1883",
			Topic:    "pedals/telemetry",
			ClientID: "pedaltune",
		},
		Autocal: AutocalConfig{
			LowQuantile:  0.02,
			HighQuantile: 0.98,
			Margin:       0.03,
		},
		Mock: MockConfig{
			SampleRate:  time.Millisecond,
			PressPeriod: 4 * time.Second,
			NoiseLevel:  2,
			StoragePath: "",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.History.WindowSeconds == 0 {
		c.History.WindowSeconds = def.History.WindowSeconds
	}
	if c.History.MaxPoints == 0 {
		c.History.MaxPoints = def.History.MaxPoints
	}

	if c.Recorder.Path == "" {
		c.Recorder.Path = def.Recorder.Path
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}

	// Quantiles outside (0,1) or inverted fall back as a pair
	if c.Autocal.LowQuantile <= 0 || c.Autocal.HighQuantile >= 1 || c.Autocal.LowQuantile >= c.Autocal.HighQuantile {
		c.Autocal.LowQuantile = def.Autocal.LowQuantile
		c.Autocal.HighQuantile = def.Autocal.HighQuantile
	}
	if c.Autocal.Margin < 0 {
		c.Autocal.Margin = def.Autocal.Margin
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.PressPeriod == 0 {
		c.Mock.PressPeriod = def.Mock.PressPeriod
	}
}
