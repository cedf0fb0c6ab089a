package player

import "time"

// Default provider timings.
const (
	DefaultReadyTimeout         = 5 * time.Second
	DefaultInitDelay            = time.Second
	DefaultPlayGrace            = 500 * time.Millisecond
	DefaultUnknownLengthCeiling = 30 * time.Second
)

// Config holds provider timings.
type Config struct {
	// ReadyTimeout forces readiness when the backend stays silent.
	ReadyTimeout time.Duration
	// InitDelay is the wait between the embed "loaded" confirmation and
	// the initialize handshake.
	InitDelay time.Duration
	// PlayGrace is the wait between (re)initialize and play on the embed.
	PlayGrace time.Duration
	// UnknownLengthCeiling is the length assumed for embedded tracks whose
	// duration is never reported.
	UnknownLengthCeiling time.Duration
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		ReadyTimeout:         DefaultReadyTimeout,
		InitDelay:            DefaultInitDelay,
		PlayGrace:            DefaultPlayGrace,
		UnknownLengthCeiling: DefaultUnknownLengthCeiling,
	}
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = d.ReadyTimeout
	}
	if c.InitDelay < 0 {
		c.InitDelay = d.InitDelay
	}
	if c.PlayGrace < 0 {
		c.PlayGrace = d.PlayGrace
	}
	if c.UnknownLengthCeiling <= 0 {
		c.UnknownLengthCeiling = d.UnknownLengthCeiling
	}
	return c
}
