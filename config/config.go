// Package config reads the server's settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lpernett/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	SnapshotSourceClient = "client"
	SnapshotSourceCamera = "camera"

	// MaxHistorySize bounds the live view's recent translations.
	MaxHistorySize = 10
)

type Config struct {
	Port string

	RedisHost     string
	RedisPassword string
	RedisDB       int

	GestureAPIURL     string
	GestureAPITimeout time.Duration

	LiveInterval     time.Duration
	PracticeInterval time.Duration
	HistorySize      int

	SnapshotSource string
	CameraDevice   int
	FrameMaxAge    time.Duration

	DeepgramAPIKey        string
	DeepgramTTSModel      string
	DeepgramTTSModelHindi string

	HeartbeatInterval time.Duration
	LogLevel          zapcore.Level
}

var defaults = map[string]interface{}{
	"port":                      "8080",
	"redis_host":                "localhost:6379",
	"redis_password":            "",
	"redis_db":                  0,
	"gesture_api_url":           "http://localhost:5000",
	"gesture_api_timeout":       "10s",
	"live_capture_interval":     "1.2s",
	"practice_capture_interval": "800ms",
	"history_size":              10,
	"snapshot_source":           SnapshotSourceClient,
	"camera_device":             0,
	"frame_max_age":             "3s",
	"deepgram_api_key":          "",
	"deepgram_tts_model":        "aura-asteria-en",
	"deepgram_tts_model_hi":     "",
	"heartbeat_interval":        "30s",
	"log_level":                 "info",
}

// LoadDotEnv loads path, or ./.env when path is empty. Variables already
// set in the environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		return godotenv.Load()
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the process-wide viper instance, which also carries any bound
// command line flags.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{
		Port:                  strings.TrimPrefix(v.GetString("port"), ":"),
		RedisHost:             v.GetString("redis_host"),
		RedisPassword:         v.GetString("redis_password"),
		GestureAPIURL:         strings.TrimRight(v.GetString("gesture_api_url"), "/"),
		SnapshotSource:        strings.ToLower(v.GetString("snapshot_source")),
		DeepgramAPIKey:        v.GetString("deepgram_api_key"),
		DeepgramTTSModel:      v.GetString("deepgram_tts_model"),
		DeepgramTTSModelHindi: v.GetString("deepgram_tts_model_hi"),
	}

	var err error
	if cfg.RedisDB, err = intKey(v, "redis_db"); err != nil {
		return nil, err
	}
	if cfg.HistorySize, err = intKey(v, "history_size"); err != nil {
		return nil, err
	}
	if cfg.CameraDevice, err = intKey(v, "camera_device"); err != nil {
		return nil, err
	}
	if cfg.GestureAPITimeout, err = durationKey(v, "gesture_api_timeout"); err != nil {
		return nil, err
	}
	if cfg.LiveInterval, err = durationKey(v, "live_capture_interval"); err != nil {
		return nil, err
	}
	if cfg.PracticeInterval, err = durationKey(v, "practice_capture_interval"); err != nil {
		return nil, err
	}
	if cfg.FrameMaxAge, err = durationKey(v, "frame_max_age"); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = durationKey(v, "heartbeat_interval"); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = zapcore.ParseLevel(v.GetString("log_level")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	positive := map[string]time.Duration{
		"GESTURE_API_TIMEOUT":       c.GestureAPITimeout,
		"LIVE_CAPTURE_INTERVAL":     c.LiveInterval,
		"PRACTICE_CAPTURE_INTERVAL": c.PracticeInterval,
		"HEARTBEAT_INTERVAL":        c.HeartbeatInterval,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.FrameMaxAge < 0 {
		return fmt.Errorf("FRAME_MAX_AGE must not be negative")
	}
	if c.HistorySize <= 0 || c.HistorySize > MaxHistorySize {
		return fmt.Errorf("HISTORY_SIZE must be between 1 and %d, got %d", MaxHistorySize, c.HistorySize)
	}
	if c.SnapshotSource != SnapshotSourceClient && c.SnapshotSource != SnapshotSourceCamera {
		return fmt.Errorf("SNAPSHOT_SOURCE must be %q or %q, got %q", SnapshotSourceClient, SnapshotSourceCamera, c.SnapshotSource)
	}
	if c.GestureAPIURL == "" {
		return fmt.Errorf("GESTURE_API_URL is required")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	return nil
}

func durationKey(v *viper.Viper, key string) (time.Duration, error) {
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	return d, nil
}

func intKey(v *viper.Viper, key string) (int, error) {
	n, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	return n, nil
}
