package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jscyril/mileage_mafia/api"
)

// Environment overrides, read after the optional .env file is loaded
const (
	EnvConfigPath     = "MAFIA_AUDIO_CONFIG"
	EnvVolume         = "MAFIA_AUDIO_VOLUME"
	EnvRequireGesture = "MAFIA_AUDIO_REQUIRE_GESTURE"
	EnvAssetsDir      = "MAFIA_AUDIO_ASSETS_DIR"
	EnvSfxMuted       = "MAFIA_AUDIO_SFX_MUTED"
)

// Config holds application configuration
type Config struct {
	AssetsDir      string            `json:"assets_dir"`
	Ambience       api.Track         `json:"ambience"`
	Playlist       []api.Track       `json:"playlist"`
	Effects        map[string]string `json:"effects"`
	DefaultVolume  float64           `json:"default_volume"`
	SampleRate     int               `json:"sample_rate"`
	RequireGesture bool              `json:"require_gesture"`
	SfxMuted       bool              `json:"sfx_muted"`
	KeyBindings    KeyMap            `json:"key_bindings"`
}

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	PlayPause   string `json:"play_pause"`
	Stop        string `json:"stop"`
	Next        string `json:"next"`
	Previous    string `json:"previous"`
	VolumeUp    string `json:"volume_up"`
	VolumeDown  string `json:"volume_down"`
	SeekForward string `json:"seek_forward"`
	SeekBack    string `json:"seek_back"`
	Ambience    string `json:"ambience"`
	Music       string `json:"music"`
	Recover     string `json:"recover"`
	MuteSfx     string `json:"mute_sfx"`
	Quit        string `json:"quit"`
}

// GetDefaultConfig returns default configuration
func GetDefaultConfig() *Config {
	return &Config{
		AssetsDir: "./assets",
		Ambience: api.Track{
			ID:     "ambience",
			Title:  "Back Alley Rain",
			Source: "ambience/back-alley-rain.mp3",
			Loop:   true,
		},
		Playlist: []api.Track{
			{ID: "the-don", Title: "The Don Runs at Dawn", Artist: "Mileage Mafia", Source: "music/the-don.mp3"},
			{ID: "tempo-run", Title: "Tempo Run on Mulberry St", Artist: "Mileage Mafia", Source: "music/tempo-run.mp3"},
			{ID: "long-haul", Title: "The Long Haul", Artist: "Mileage Mafia", Source: "music/long-haul.mp3"},
		},
		Effects: map[string]string{
			"click":      "sfx/click.wav",
			"hover":      "sfx/hover.wav",
			"confirm":    "sfx/confirm.wav",
			"deny":       "sfx/deny.wav",
			"cash":       "sfx/cash.wav",
			"stamp":      "sfx/stamp.wav",
			"typewriter": "sfx/typewriter.wav",
			"gunshot":    "sfx/gunshot.wav",
		},
		DefaultVolume:  0.6,
		SampleRate:     44100,
		RequireGesture: true,
		KeyBindings: KeyMap{
			PlayPause:   " ",
			Stop:        "s",
			Next:        "n",
			Previous:    "p",
			VolumeUp:    "+",
			VolumeDown:  "-",
			SeekForward: "right",
			SeekBack:    "left",
			Ambience:    "a",
			Music:       "m",
			Recover:     "r",
			MuteSfx:     "x",
			Quit:        "q",
		},
	}
}

// LoadConfig reads and unmarshals configuration from file.
// Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// SaveConfig marshals and saves configuration to file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrCreate loads config from path or creates default if not exists
func LoadOrCreate(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveConfig(config, path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	return config, nil
}

// ApplyEnv loads envFile (if present) into the process environment and
// overlays the MAFIA_AUDIO_* variables onto c.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if v := os.Getenv(EnvVolume); v != "" {
		vol, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVolume, err)
		}
		c.DefaultVolume = vol
	}
	if v := os.Getenv(EnvRequireGesture); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequireGesture, err)
		}
		c.RequireGesture = b
	}
	if v := os.Getenv(EnvSfxMuted); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSfxMuted, err)
		}
		c.SfxMuted = b
	}
	if v := os.Getenv(EnvAssetsDir); v != "" {
		c.AssetsDir = v
	}
	return nil
}

// Validate checks ranges and required fields
func (c *Config) Validate() error {
	if c.DefaultVolume < 0 || c.DefaultVolume > 1 {
		return fmt.Errorf("default_volume %v outside [0,1]", c.DefaultVolume)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Ambience.Source == "" {
		return fmt.Errorf("ambience.source is required")
	}
	return nil
}

// ResolveSource makes a relative source path absolute against AssetsDir.
// URLs and absolute paths are returned unchanged.
func (c *Config) ResolveSource(source string) string {
	if source == "" || filepath.IsAbs(source) {
		return source
	}
	if u, err := url.Parse(source); err == nil && len(u.Scheme) > 1 {
		return source
	}
	if strings.HasPrefix(c.AssetsDir, "http://") || strings.HasPrefix(c.AssetsDir, "https://") {
		return strings.TrimSuffix(c.AssetsDir, "/") + "/" + filepath.ToSlash(source)
	}
	return filepath.Join(c.AssetsDir, source)
}

// ResolvedAmbience returns the ambience track with its source resolved
func (c *Config) ResolvedAmbience() api.Track {
	t := c.Ambience
	t.Source = c.ResolveSource(t.Source)
	return t
}

// ResolvedPlaylist returns the playlist with every source resolved
func (c *Config) ResolvedPlaylist() []api.Track {
	out := make([]api.Track, len(c.Playlist))
	for i, t := range c.Playlist {
		t.Source = c.ResolveSource(t.Source)
		out[i] = t
	}
	return out
}

// ResolvedEffects returns the effect clip map with every source resolved
func (c *Config) ResolvedEffects() map[string]string {
	out := make(map[string]string, len(c.Effects))
	for name, source := range c.Effects {
		out[name] = c.ResolveSource(source)
	}
	return out
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mileage-mafia", "audio.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./audio.json"
	}

	return filepath.Join(home, ".config", "mileage-mafia", "audio.json")
}
