// Package config provides configuration management for AnchorCast
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Stage     StageConfig     `mapstructure:"stage"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StageConfig configures the remote rendering stage
type StageConfig struct {
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	CameraZoom     float64       `mapstructure:"camera_zoom"` // multiplier on view distance
}

// TTSConfig configures speech synthesis
type TTSConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api_key"`
	DefaultVoice  string        `mapstructure:"default_voice"`
	DefaultSpeed  float64       `mapstructure:"default_speed"`
	SampleRate    int           `mapstructure:"sample_rate"`
	Timeout       time.Duration `mapstructure:"timeout"`
	EnableLipSync bool          `mapstructure:"enable_lip_sync"` // request word timestamps so the mouth can track speech
}

// BroadcastConfig configures script playback behavior
type BroadcastConfig struct {
	DefaultMood    string        `mapstructure:"default_mood"`
	DefaultView    string        `mapstructure:"default_view"`
	SegmentDelay   time.Duration `mapstructure:"segment_delay"` // pause between segments
	PollInterval   time.Duration `mapstructure:"poll_interval"` // speech completion poll rate
	SpeechMargin   time.Duration `mapstructure:"speech_margin"` // safety margin beyond estimated duration
	BridgeEnabled  bool          `mapstructure:"bridge_enabled"`
	BridgeURL      string        `mapstructure:"bridge_url"`
	SubtitlesShown bool          `mapstructure:"subtitles_shown"`
	AccentColor    string        `mapstructure:"accent_color"`

	// Overlay content shown while a broadcast is on air
	LowerThirdTitle    string   `mapstructure:"lower_third_title"`
	LowerThirdSubtitle string   `mapstructure:"lower_third_subtitle"`
	Ticker             []string `mapstructure:"ticker"`
}

// RecorderConfig configures broadcast recording
type RecorderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output_dir"`
	FPS       int    `mapstructure:"fps"`
}

// LoggingConfig configures log output
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Stage: StageConfig{
			URL:            "ws://localhost:8765/stage",
			Timeout:        30 * time.Second,
			ReconnectDelay: 5 * time.Second,
			MaxReconnects:  10,
			CameraZoom:     1.0,
		},
		TTS: TTSConfig{
			Endpoint:      "ws://localhost:8880/ws/tts",
			DefaultVoice:  "af_bella",
			DefaultSpeed:  1.0,
			SampleRate:    24000,
			Timeout:       30 * time.Second,
			EnableLipSync: true,
		},
		Broadcast: BroadcastConfig{
			DefaultMood:    "neutral",
			DefaultView:    "upper",
			SegmentDelay:   500 * time.Millisecond,
			PollInterval:   100 * time.Millisecond,
			SpeechMargin:   5 * time.Second,
			BridgeEnabled:  false,
			BridgeURL:      "ws://localhost:9090/bridge",
			SubtitlesShown: true,
			AccentColor:    "#e63946",
		},
		Recorder: RecorderConfig{
			Enabled:   false,
			OutputDir: "",
			FPS:       30,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("ANCHORCAST")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("stage", cfg.Stage)
	viper.Set("tts", cfg.TTS)
	viper.Set("broadcast", cfg.Broadcast)
	viper.Set("recorder", cfg.Recorder)
	viper.Set("logging", cfg.Logging)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".anchorcast"), nil
}
