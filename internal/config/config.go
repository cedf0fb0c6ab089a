// Package config loads earworm's TOML configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "earworm"

// Catalog sources.
const (
	SourceITunes  = "itunes"
	SourceSpotify = "spotify"
	SourceLibrary = "library"
)

type Config struct {
	Source         string   `koanf:"source"`          // "itunes", "spotify" or "library"
	Difficulty     string   `koanf:"difficulty"`      // "easy", "medium", "hard" or "impossible"
	MatchThreshold float64  `koanf:"match_threshold"` // guess similarity needed (0-1], 1 = exact
	LibrarySources []string `koanf:"library_sources"` // paths to scan for local music

	Playback PlaybackConfig `koanf:"playback"`
	ITunes   ITunesConfig   `koanf:"itunes"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Lastfm   LastfmConfig   `koanf:"lastfm"`
	Bridge   BridgeConfig   `koanf:"bridge"`
	Cache    CacheConfig    `koanf:"cache"`
	Log      LogConfig      `koanf:"log"`
}

// PlaybackConfig holds snippet provider timings.
type PlaybackConfig struct {
	ReadyTimeout         time.Duration `koanf:"ready_timeout"`          // readiness watchdog (default: 5s)
	UnknownLengthCeiling time.Duration `koanf:"unknown_length_ceiling"` // embed preview length (default: 30s)
	InitDelay            time.Duration `koanf:"init_delay"`             // embed handshake delay (default: 1s)
	PlayGrace            time.Duration `koanf:"play_grace"`             // embed pre-play wait (default: 500ms)
	Buffer               time.Duration `koanf:"buffer"`                 // margin before track end (default: 1s)
}

// ITunesConfig holds iTunes Search API settings.
type ITunesConfig struct {
	Country    string `koanf:"country"`     // storefront (default: "us")
	ChartLimit int    `koanf:"chart_limit"` // chart size (1-100, default: 50)
}

// SpotifyConfig holds Spotify Web API credentials.
type SpotifyConfig struct {
	ClientID       string `koanf:"client_id"`
	ClientSecret   string `koanf:"client_secret"`
	ChartPlaylist  string `koanf:"chart_playlist"`   // playlist id used for chart mode
	MainAlbumsOnly *bool  `koanf:"main_albums_only"` // skip singles (default: true)
}

// LastfmConfig holds Last.fm API credentials (chart fallback).
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// BridgeConfig holds the embed bridge server settings.
type BridgeConfig struct {
	Listen string `koanf:"listen"` // default: 127.0.0.1:8765
}

// CacheConfig holds catalog cache settings.
type CacheConfig struct {
	TTLHours int `koanf:"ttl_hours"` // default: 24
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error (default: info)
	File  string `koanf:"file"`  // default: $XDG_STATE_HOME/earworm/earworm.log
}

// Load reads the default config files. See LoadFile.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads the default config files then, when set, the explicit path.
// Later files override earlier ones. The explicit path must exist.
func LoadFile(explicit string) (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}
	if explicit != "" {
		if err := k.Load(file.Provider(expandPath(explicit)), toml.Parser()); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Source:         SourceITunes,
		Difficulty:     "easy",
		MatchThreshold: 1,
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	cfg.Difficulty = strings.ToLower(strings.TrimSpace(cfg.Difficulty))

	// Expand ~ in library_sources
	for i, src := range cfg.LibrarySources {
		cfg.LibrarySources[i] = expandPath(src)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. $XDG_CONFIG_HOME/earworm/config.toml
	paths = append(paths, filepath.Join(xdg.ConfigHome, appName, "config.toml"))

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasSpotifyConfig returns true if Spotify credentials are configured.
func (c *Config) HasSpotifyConfig() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// HasLastfmConfig returns true if the Last.fm chart fallback is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != ""
}

// MainAlbumsOnly reports whether Spotify listing skips singles (default: true).
func (c *Config) MainAlbumsOnly() bool {
	if c.Spotify.MainAlbumsOnly == nil {
		return true
	}
	return *c.Spotify.MainAlbumsOnly
}

// GetPlaybackConfig returns the playback configuration with defaults applied.
func (c *Config) GetPlaybackConfig() PlaybackConfig {
	cfg := c.Playback

	// Apply defaults
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 5 * time.Second
	}
	if cfg.UnknownLengthCeiling <= 0 {
		cfg.UnknownLengthCeiling = 30 * time.Second
	}
	if cfg.InitDelay <= 0 {
		cfg.InitDelay = time.Second
	}
	if cfg.PlayGrace <= 0 {
		cfg.PlayGrace = 500 * time.Millisecond
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = time.Second
	}

	return cfg
}

// GetITunesConfig returns the iTunes configuration with defaults applied.
func (c *Config) GetITunesConfig() ITunesConfig {
	cfg := c.ITunes
	cfg.Country = strings.ToLower(strings.TrimSpace(cfg.Country))
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if cfg.ChartLimit <= 0 || cfg.ChartLimit > 100 {
		cfg.ChartLimit = 50
	}
	return cfg
}

// GetMatchThreshold returns the guess similarity threshold, 1 when unset or
// out of range.
func (c *Config) GetMatchThreshold() float64 {
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return 1
	}
	return c.MatchThreshold
}

// BridgeAddr returns the embed bridge listen address.
func (c *Config) BridgeAddr() string {
	if c.Bridge.Listen == "" {
		return "127.0.0.1:8765"
	}
	return c.Bridge.Listen
}

// CacheTTL returns the catalog cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// LogFile returns the log file path, defaulting under the XDG state directory.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	return xdg.StateFile(filepath.Join(appName, appName+".log"))
}
