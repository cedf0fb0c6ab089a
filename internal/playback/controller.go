// Package playback drives one snippet session at a time: it draws tracks
// from the rotation pool, binds each to a fresh provider and runs the
// Idle/Loading/Ready/Playing/Ended/Stopped state machine.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/loop"
	"github.com/llehouerou/earworm/internal/player"
	"github.com/llehouerou/earworm/internal/rotation"
)

// DefaultSnippetDuration is the snippet length until SetSnippetDuration.
const DefaultSnippetDuration = 5 * time.Second

var (
	// ErrNotReady is returned by Play when no loaded track is ready.
	ErrNotReady = errors.New("track not ready")
	// ErrPlaying is returned when the snippet duration changes mid-playback.
	ErrPlaying = errors.New("snippet is playing")
	// ErrInvalidDuration is returned for a non-positive snippet duration.
	ErrInvalidDuration = errors.New("invalid snippet duration")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
)

// Controller orchestrates snippet playback. All state lives on a single
// event loop; public methods marshal onto it and wait.
type Controller struct {
	loop    *loop.Loop
	sampler *rotation.Sampler
	factory player.Factory
	logger  *zap.Logger
	rng     *rand.Rand
	buffer  time.Duration

	// Loop-owned state
	state    State
	gen      uint64
	provider player.Provider
	current  *catalog.Track
	snippet  time.Duration
	length   time.Duration
	window   *player.Window
	subs     []*Subscription
	closed   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithRand sets the random source used for snippet offsets.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// WithBuffer sets the margin kept between the snippet end and the track end.
func WithBuffer(d time.Duration) Option {
	return func(c *Controller) { c.buffer = d }
}

// WithSnippetDuration sets the initial snippet length.
func WithSnippetDuration(d time.Duration) Option {
	return func(c *Controller) { c.snippet = d }
}

// New creates a controller drawing from sampler and creating providers with
// factory. The sampler is owned by the controller from now on.
func New(sampler *rotation.Sampler, factory player.Factory, opts ...Option) *Controller {
	c := &Controller{
		loop:    loop.New(),
		sampler: sampler,
		factory: factory,
		logger:  zap.NewNop(),
		buffer:  player.DefaultBuffer,
		snippet: DefaultSnippetDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // snippet offsets
	}
	c.logger = c.logger.With(zap.String("component", "playback"))
	return c
}

// do runs fn on the loop.
func (c *Controller) do(fn func()) error {
	if err := c.loop.Do(context.Background(), fn); err != nil {
		if errors.Is(err, loop.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// SetPool rebuilds the rotation pool for a new context.
func (c *Controller) SetPool(cc catalog.Context, tracks []catalog.Track) error {
	return c.do(func() {
		c.sampler.Reset(cc, tracks)
		c.logger.Info("rotation pool rebuilt",
			zap.String("context", cc.Key()),
			zap.Int("tracks", c.sampler.Len()))
	})
}

// PoolTracks returns a copy of the rotation pool.
func (c *Controller) PoolTracks() []catalog.Track {
	var tracks []catalog.Track
	_ = c.do(func() { tracks = c.sampler.Tracks() })
	return tracks
}

// Loaded identifies one load of a track. Seq increases on every load, so
// events of a reloaded track can be told apart from those of the previous
// load even when the track is the same.
type Loaded struct {
	Track catalog.Track
	Seq   uint64
}

// LoadNext draws the next track from the pool and loads it.
// Returns catalog.ErrNoPlayableTracks when the pool is empty.
func (c *Controller) LoadNext() (Loaded, error) {
	var (
		loaded Loaded
		err    error
	)
	if doErr := c.do(func() {
		if c.closed {
			err = ErrClosed
			return
		}
		var track catalog.Track
		track, err = c.sampler.Draw()
		if err != nil {
			err = fmt.Errorf("%w: %w", catalog.ErrNoPlayableTracks, err)
			return
		}
		loaded = Loaded{Track: track, Seq: c.load(track)}
	}); doErr != nil {
		return Loaded{}, doErr
	}
	return loaded, err
}

// Load loads a specific track, replacing the current one.
func (c *Controller) Load(track catalog.Track) error {
	var err error
	if doErr := c.do(func() {
		if c.closed {
			err = ErrClosed
			return
		}
		c.load(track)
	}); doErr != nil {
		return doErr
	}
	return err
}

// Play plays the snippet window of the loaded track. The window is computed
// once per load and reused on every replay.
func (c *Controller) Play() error {
	var err error
	if doErr := c.do(func() { err = c.play() }); doErr != nil {
		return doErr
	}
	return err
}

// Stop interrupts playback. No-op unless playing.
func (c *Controller) Stop() error {
	return c.do(c.stop)
}

// Toggle plays when stopped and stops when playing.
func (c *Controller) Toggle() error {
	var err error
	if doErr := c.do(func() {
		if c.state == StatePlaying {
			c.stop()
			return
		}
		err = c.play()
	}); doErr != nil {
		return doErr
	}
	return err
}

// State returns the session state.
func (c *Controller) State() State {
	s := StateIdle
	_ = c.do(func() { s = c.state })
	return s
}

// Current returns the loaded track.
func (c *Controller) Current() (catalog.Track, bool) {
	var (
		t  catalog.Track
		ok bool
	)
	_ = c.do(func() {
		if c.current != nil {
			t, ok = *c.current, true
		}
	})
	return t, ok
}

// Window returns the snippet window once it has been computed.
func (c *Controller) Window() (player.Window, bool) {
	var (
		w  player.Window
		ok bool
	)
	_ = c.do(func() {
		if c.window != nil {
			w, ok = *c.window, true
		}
	})
	return w, ok
}

// SnippetDuration returns the snippet length.
func (c *Controller) SnippetDuration() time.Duration {
	var d time.Duration
	_ = c.do(func() { d = c.snippet })
	return d
}

// SetSnippetDuration sets the snippet length. A computed window keeps its
// offset, clamped to the new length. Rejected while playing.
func (c *Controller) SetSnippetDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, d)
	}
	var err error
	if doErr := c.do(func() {
		if c.state == StatePlaying {
			err = ErrPlaying
			return
		}
		if d == c.snippet {
			return
		}
		c.snippet = d
		switch {
		case c.window != nil:
			c.resizeWindow()
		case c.length > 0:
			c.computeWindow(c.length)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// Subscribe returns a subscription for events.
func (c *Controller) Subscribe() *Subscription {
	sub := newSubscription()
	if err := c.do(func() {
		if c.closed {
			sub.close()
			return
		}
		c.subs = append(c.subs, sub)
	}); err != nil {
		sub.close()
	}
	return sub
}

// Close disposes the provider, closes all subscriptions and stops the loop.
func (c *Controller) Close() {
	_ = c.do(func() {
		if c.closed {
			return
		}
		c.closed = true
		c.gen++
		if c.provider != nil {
			c.provider.Dispose()
			c.provider = nil
		}
		for _, sub := range c.subs {
			sub.close()
		}
		c.subs = nil
	})
	c.loop.Close()
}

// load tears down the previous provider and binds track to a new one.
// Returns the generation of the new load.
func (c *Controller) load(track catalog.Track) uint64 {
	if c.provider != nil {
		c.provider.Dispose()
		c.provider = nil
	}

	c.gen++
	gen := c.gen
	prev := c.current
	c.current = &track
	c.window = nil
	c.length = 0

	c.logger.Debug("loading track",
		zap.String("track", track.ID),
		zap.Uint64("generation", gen))

	c.setState(StateLoading)
	for _, sub := range c.subs {
		sub.sendTrack(TrackChange{Previous: prev, Current: track, Load: gen})
	}

	c.provider = c.factory(c.loop, func(e player.Event) {
		c.handleEvent(gen, e)
	})
	c.provider.Load(track)
	return gen
}

func (c *Controller) play() error {
	if c.closed {
		return ErrClosed
	}
	if !c.state.CanPlay() || c.provider == nil {
		return fmt.Errorf("%w: %s", ErrNotReady, c.state)
	}

	if c.window == nil {
		// No metadata yet: the provider decides the assumed length
		c.computeWindow(c.provider.FallbackLength())
	}

	c.logger.Debug("playing snippet",
		zap.Duration("offset", c.window.Offset),
		zap.Duration("duration", c.window.Duration))

	c.setState(StatePlaying)
	c.provider.Play(*c.window)
	return nil
}

func (c *Controller) stop() {
	if c.state != StatePlaying || c.provider == nil {
		return
	}
	c.provider.Stop()
	c.setState(StateStopped)
}

func (c *Controller) computeWindow(length time.Duration) {
	w := player.ComputeWindow(length, c.snippet, c.buffer, c.rng)
	c.window = &w
}

// resizeWindow keeps the current offset for the new snippet length, clamped
// so the snippet still ends a buffer before the track end.
func (c *Controller) resizeWindow() {
	length := c.length
	if length <= 0 && c.provider != nil {
		length = c.provider.FallbackLength()
	}
	maxOffset := max(0, length-c.snippet-c.buffer)
	c.window = &player.Window{Offset: min(c.window.Offset, maxOffset), Duration: c.snippet}
}

// handleEvent applies a provider event. Events from superseded providers
// are ignored.
func (c *Controller) handleEvent(gen uint64, e player.Event) {
	if c.closed || gen != c.gen {
		c.logger.Debug("ignoring stale provider event",
			zap.Uint64("generation", gen),
			zap.String("event", fmt.Sprintf("%T", e)))
		return
	}

	switch ev := e.(type) {
	case player.EventReady:
		if c.state != StateLoading {
			return
		}
		c.logger.Debug("track ready", zap.Stringer("reason", ev.Reason))
		c.setState(StateReady)
		for _, sub := range c.subs {
			sub.sendReady(ReadyEvent{Track: *c.current, Reason: ev.Reason, Load: gen})
		}

	case player.EventMetadata:
		c.length = ev.Length
		if c.window == nil {
			c.computeWindow(ev.Length)
		}

	case player.EventStarted:
		if c.state != StatePlaying {
			return
		}
		for _, sub := range c.subs {
			sub.sendStarted(StartedEvent{Window: *c.window})
		}

	case player.EventEnded:
		if c.state != StatePlaying {
			return
		}
		c.setState(StateEnded)
		for _, sub := range c.subs {
			sub.sendEnded(EndedEvent{Track: *c.current, Load: gen})
		}

	case player.EventFailed:
		op := "load"
		if errors.Is(ev.Err, player.ErrPlaybackStart) || c.state == StatePlaying {
			op = "play"
		}
		c.logger.Warn("provider error", zap.String("operation", op), zap.Error(ev.Err))
		if c.state == StatePlaying &&
			(errors.Is(ev.Err, player.ErrPlaybackStart) || errors.Is(ev.Err, player.ErrProvider)) {
			c.setState(StateReady)
		}
		for _, sub := range c.subs {
			sub.sendError(ErrorEvent{Operation: op, TrackID: c.current.ID, Err: ev.Err})
		}

	case player.EventPaused:
		if c.state != StatePlaying {
			return
		}
		c.logger.Debug("snippet paused by the provider")
		c.setState(StateStopped)

	case player.EventStatus:
		c.logger.Debug("remote status", zap.Bool("playing", ev.Playing), zap.Stringer("state", c.state))
	}
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	prev := c.state
	c.state = s
	for _, sub := range c.subs {
		sub.sendState(StateChange{Previous: prev, Current: s})
	}
}
