//nolint:goconst // test cases intentionally repeat strings for readability
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "tilde expands to home",
			input:    "~/music",
			expected: filepath.Join(home, "music"),
		},
		{
			name:     "tilde with nested path",
			input:    "~/music/library/albums",
			expected: filepath.Join(home, "music", "library", "albums"),
		},
		{
			name:     "absolute path unchanged",
			input:    "/usr/local/music",
			expected: "/usr/local/music",
		},
		{
			name:     "relative path unchanged",
			input:    "music/albums",
			expected: "music/albums",
		},
		{
			name:     "empty string unchanged",
			input:    "",
			expected: "",
		},
		{
			name:     "tilde only",
			input:    "~",
			expected: home,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if result != tt.expected {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetConfigPaths(t *testing.T) {
	paths := getConfigPaths()

	if len(paths) != 2 {
		t.Fatalf("getConfigPaths() returned %d paths, want 2", len(paths))
	}

	expectedFirst := filepath.Join(xdg.ConfigHome, "earworm", "config.toml")
	if paths[0] != expectedFirst {
		t.Errorf("first config path = %q, want %q", paths[0], expectedFirst)
	}

	// Last path should be local config.toml
	if paths[1] != "config.toml" {
		t.Errorf("last config path = %q, want %q", paths[1], "config.toml")
	}
}

func TestLoadFile_Explicit(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "earworm.toml")
	content := `
source = "Spotify"
difficulty = "HARD"
match_threshold = 0.8
library_sources = ["~/Music"]

[playback]
ready_timeout = "3s"
play_grace = "250ms"

[spotify]
client_id = "id"
client_secret = "secret"
main_albums_only = false

[cache]
ttl_hours = 6
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Source != SourceSpotify {
		t.Errorf("Source = %q, want %q", cfg.Source, SourceSpotify)
	}
	if cfg.Difficulty != "hard" {
		t.Errorf("Difficulty = %q, want %q", cfg.Difficulty, "hard")
	}
	if cfg.GetMatchThreshold() != 0.8 {
		t.Errorf("GetMatchThreshold() = %f, want 0.8", cfg.GetMatchThreshold())
	}
	if home, err := os.UserHomeDir(); err == nil {
		if cfg.LibrarySources[0] != filepath.Join(home, "Music") {
			t.Errorf("LibrarySources[0] = %q, want expanded path", cfg.LibrarySources[0])
		}
	}

	pb := cfg.GetPlaybackConfig()
	if pb.ReadyTimeout != 3*time.Second {
		t.Errorf("ReadyTimeout = %v, want 3s", pb.ReadyTimeout)
	}
	if pb.PlayGrace != 250*time.Millisecond {
		t.Errorf("PlayGrace = %v, want 250ms", pb.PlayGrace)
	}
	if pb.InitDelay != time.Second {
		t.Errorf("InitDelay = %v, want default 1s", pb.InitDelay)
	}

	if !cfg.HasSpotifyConfig() {
		t.Error("HasSpotifyConfig() = false, want true")
	}
	if cfg.MainAlbumsOnly() {
		t.Error("MainAlbumsOnly() = true, want false")
	}
	if cfg.CacheTTL() != 6*time.Hour {
		t.Errorf("CacheTTL() = %v, want 6h", cfg.CacheTTL())
	}
}

func TestLoadFile_MissingExplicit(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFile() with missing explicit file should fail")
	}
}

func TestLoadFile_LocalOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`difficulty = "medium"`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Difficulty != "medium" {
		t.Errorf("Difficulty = %q, want %q", cfg.Difficulty, "medium")
	}
}

func TestHasSpotifyConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "both set",
			config:   Config{Spotify: SpotifyConfig{ClientID: "id", ClientSecret: "secret"}},
			expected: true,
		},
		{
			name:     "only client id set",
			config:   Config{Spotify: SpotifyConfig{ClientID: "id"}},
			expected: false,
		},
		{
			name:     "neither set",
			config:   Config{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.HasSpotifyConfig()
			if result != tt.expected {
				t.Errorf("HasSpotifyConfig() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestHasLastfmConfig(t *testing.T) {
	if (&Config{}).HasLastfmConfig() {
		t.Error("HasLastfmConfig() on empty config = true, want false")
	}
	cfg := Config{Lastfm: LastfmConfig{APIKey: "key"}}
	if !cfg.HasLastfmConfig() {
		t.Error("HasLastfmConfig() with api key = false, want true")
	}
}

func TestGetPlaybackConfig_Defaults(t *testing.T) {
	cfg := Config{}
	pb := cfg.GetPlaybackConfig()

	if pb.ReadyTimeout != 5*time.Second {
		t.Errorf("ReadyTimeout = %v, want 5s", pb.ReadyTimeout)
	}
	if pb.UnknownLengthCeiling != 30*time.Second {
		t.Errorf("UnknownLengthCeiling = %v, want 30s", pb.UnknownLengthCeiling)
	}
	if pb.InitDelay != time.Second {
		t.Errorf("InitDelay = %v, want 1s", pb.InitDelay)
	}
	if pb.PlayGrace != 500*time.Millisecond {
		t.Errorf("PlayGrace = %v, want 500ms", pb.PlayGrace)
	}
	if pb.Buffer != time.Second {
		t.Errorf("Buffer = %v, want 1s", pb.Buffer)
	}
}

func TestGetITunesConfig(t *testing.T) {
	tests := []struct {
		name        string
		input       ITunesConfig
		wantCountry string
		wantLimit   int
	}{
		{"defaults", ITunesConfig{}, "us", 50},
		{"custom", ITunesConfig{Country: " FR ", ChartLimit: 25}, "fr", 25},
		{"limit too large", ITunesConfig{ChartLimit: 500}, "us", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&Config{ITunes: tt.input}).GetITunesConfig()
			if got.Country != tt.wantCountry {
				t.Errorf("Country = %q, want %q", got.Country, tt.wantCountry)
			}
			if got.ChartLimit != tt.wantLimit {
				t.Errorf("ChartLimit = %d, want %d", got.ChartLimit, tt.wantLimit)
			}
		})
	}
}

func TestGetMatchThreshold_OutOfRange(t *testing.T) {
	for _, v := range []float64{0, -0.5, 1.5} {
		if got := (&Config{MatchThreshold: v}).GetMatchThreshold(); got != 1 {
			t.Errorf("GetMatchThreshold() with %f = %f, want 1", v, got)
		}
	}
}

func TestBridgeAddr(t *testing.T) {
	if got := (&Config{}).BridgeAddr(); got != "127.0.0.1:8765" {
		t.Errorf("BridgeAddr() = %q, want default", got)
	}
	cfg := Config{Bridge: BridgeConfig{Listen: ":9000"}}
	if got := cfg.BridgeAddr(); got != ":9000" {
		t.Errorf("BridgeAddr() = %q, want %q", got, ":9000")
	}
}

func TestLogFile(t *testing.T) {
	cfg := Config{Log: LogConfig{File: "/tmp/earworm.log"}}
	got, err := cfg.LogFile()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/earworm.log" {
		t.Errorf("LogFile() = %q, want %q", got, "/tmp/earworm.log")
	}
}
