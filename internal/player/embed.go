package player

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/loop"
)

// Command types sent to the embedded player host.
const (
	CmdNavigate   = "navigate"
	CmdInitialize = "initialize"
	CmdSeek       = "seek"
	CmdPlay       = "play"
	CmdPause      = "pause"
)

// Message types received from the embedded player host.
const (
	MsgLoaded         = "loaded"
	MsgReady          = "ready"
	MsgPlaybackUpdate = "playback_update"
	MsgError          = "error"
)

// Command is a fire-and-forget instruction for the embedded player.
type Command struct {
	Type       string `json:"type"`
	Nonce      string `json:"nonce,omitempty"`
	URI        string `json:"uri,omitempty"`
	PositionMs int64  `json:"position_ms,omitempty"`
}

// Message is an event from the embedded player. Delivery is unordered and
// may be duplicated.
type Message struct {
	Type  string          `json:"type"`
	Nonce string          `json:"nonce,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PlaybackUpdate is the payload of a playback_update message.
type PlaybackUpdate struct {
	Paused     bool  `json:"paused"`
	PositionMs int64 `json:"position_ms"`
	DurationMs int64 `json:"duration_ms"`
}

// Channel is the asynchronous message channel to the embedded player.
type Channel interface {
	Send(cmd Command) error
	// Subscribe registers fn for incoming messages. fn may be called from
	// any goroutine. The returned func detaches it.
	Subscribe(fn func(Message)) (cancel func())
}

// EmbedProvider drives a player hosted in an isolated frame through a
// Channel. Commands are never acknowledged, so local state is optimistic
// and reconciled from playback_update messages.
type EmbedProvider struct {
	loop   *loop.Loop
	ch     Channel
	emit   func(Event)
	cfg    Config
	logger *zap.Logger

	nonce       string
	unsubscribe func()

	ready         bool
	handshake     bool
	initScheduled bool
	playing       bool
	confirmed     bool // remote reported playing since the last Play
	remotePlaying bool
	lengthSent    bool
	disposed      bool
	window        Window
	started       time.Time

	watchdog *loop.Timer
	initT    *loop.Timer
	grace    *loop.Timer
	stopper  *loop.Timer
}

// NewEmbedProvider creates a provider speaking over ch.
func NewEmbedProvider(l *loop.Loop, ch Channel, emit func(Event), cfg Config, logger *zap.Logger) *EmbedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &EmbedProvider{
		loop:  l,
		ch:    ch,
		emit:  emit,
		cfg:   cfg.withDefaults(),
		nonce: uuid.NewString(),
	}
	p.logger = logger.With(zap.String("component", "embed-provider"), zap.String("nonce", p.nonce))
	p.unsubscribe = ch.Subscribe(func(m Message) {
		l.Post(func() { p.handleMessage(m) })
	})
	return p
}

// Nonce returns the per-instance tag carried by commands and messages.
func (p *EmbedProvider) Nonce() string { return p.nonce }

// Load navigates the host frame to the track's embed reference.
func (p *EmbedProvider) Load(track catalog.Track) {
	if p.disposed {
		return
	}
	p.watchdog = p.loop.AfterFunc(p.cfg.ReadyTimeout, func() {
		if p.disposed {
			return
		}
		p.logger.Debug("readiness watchdog fired")
		p.markReady(ReadyWatchdog)
	})

	if !track.HasPreview() {
		p.logger.Warn("track has no embed reference", zap.String("track", track.ID))
		p.emit(EventFailed{Err: fmt.Errorf("%w: track %s has no embed reference", ErrLoadFailure, track.ID)})
		p.markReady(ReadyLoadError)
		return
	}

	p.send(Command{Type: CmdNavigate, URI: track.PreviewURL})
}

// Play re-initializes when needed, waits the grace interval, then seeks,
// plays and arms the auto-stop timer.
func (p *EmbedProvider) Play(w Window) {
	if p.disposed {
		return
	}
	p.grace.Stop()
	p.stopper.Stop()
	p.window = w

	if !p.handshake {
		p.send(Command{Type: CmdInitialize})
	}

	p.grace = p.loop.AfterFunc(p.cfg.PlayGrace, func() {
		if p.disposed {
			return
		}
		if w.Offset > 0 {
			p.send(Command{Type: CmdSeek, PositionMs: w.Offset.Milliseconds()})
		}
		p.send(Command{Type: CmdPlay})
		p.playing = true
		p.confirmed = false
		p.started = time.Now()
		p.emit(EventStarted{})

		p.stopper = p.loop.AfterFunc(w.Duration, func() {
			if p.disposed || !p.playing {
				return
			}
			p.send(Command{Type: CmdPause})
			p.playing = false
			p.emit(EventEnded{})
		})
	})
}

// Stop pauses and rewinds to the window start when stopped early.
func (p *EmbedProvider) Stop() {
	if p.disposed {
		return
	}
	pending := p.grace.Stop()
	if !pending && !p.playing {
		return
	}
	p.stopper.Stop()
	p.send(Command{Type: CmdPause})
	wasPlaying := p.playing
	p.playing = false

	if wasPlaying && time.Since(p.started) < p.window.Duration {
		p.send(Command{Type: CmdSeek, PositionMs: p.window.Offset.Milliseconds()})
	}
}

// Dispose detaches the listener and cancels every timer. No final remote
// command is sent.
func (p *EmbedProvider) Dispose() {
	if p.disposed {
		return
	}
	p.disposed = true
	p.watchdog.Stop()
	p.initT.Stop()
	p.grace.Stop()
	p.stopper.Stop()
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

// FallbackLength is the conservative ceiling used when the embed never
// reports a duration.
func (p *EmbedProvider) FallbackLength() time.Duration {
	return p.cfg.UnknownLengthCeiling
}

func (p *EmbedProvider) handleMessage(m Message) {
	if p.disposed {
		return
	}
	if m.Nonce != "" && m.Nonce != p.nonce {
		p.logger.Debug("dropping message for another instance",
			zap.String("type", m.Type), zap.String("for", m.Nonce))
		return
	}

	switch m.Type {
	case MsgLoaded:
		if p.initScheduled {
			return
		}
		p.initScheduled = true
		p.initT = p.loop.AfterFunc(p.cfg.InitDelay, func() {
			if p.disposed {
				return
			}
			p.send(Command{Type: CmdInitialize})
		})
	case MsgReady:
		p.handshake = true
		p.markReady(ReadyNative)
	case MsgPlaybackUpdate:
		var u PlaybackUpdate
		if err := json.Unmarshal(m.Data, &u); err != nil {
			p.malformed(m, err)
			return
		}
		p.markReady(ReadyInferred)
		p.reconcile(u)
	case MsgError:
		var detail struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(m.Data, &detail)
		if !p.ready {
			p.logger.Warn("embed load failed", zap.String("detail", detail.Message))
			p.emit(EventFailed{Err: fmt.Errorf("%w: %s", ErrLoadFailure, detail.Message)})
			p.markReady(ReadyLoadError)
			return
		}
		p.logger.Warn("embed player error", zap.String("detail", detail.Message))
		p.emit(EventFailed{Err: fmt.Errorf("%w: %s", ErrProvider, detail.Message)})
	default:
		p.malformed(m, fmt.Errorf("unknown message type %q", m.Type))
	}
}

func (p *EmbedProvider) reconcile(u PlaybackUpdate) {
	if u.DurationMs > 0 && !p.lengthSent {
		p.lengthSent = true
		p.emit(EventMetadata{Length: time.Duration(u.DurationMs) * time.Millisecond})
	}
	remote := !u.Paused
	if p.playing {
		switch {
		case remote:
			p.confirmed = true
		case p.confirmed:
			p.pausedRemotely()
		default:
			// Paused before the remote picked up the play command: stale
		}
	}
	if remote == p.remotePlaying {
		return
	}
	p.remotePlaying = remote
	p.emit(EventStatus{Playing: remote})
}

// pausedRemotely drops a snippet the remote player paused by itself and
// rewinds so the next Play replays the same window.
func (p *EmbedProvider) pausedRemotely() {
	p.stopper.Stop()
	p.playing = false
	p.confirmed = false
	p.send(Command{Type: CmdSeek, PositionMs: p.window.Offset.Milliseconds()})
	p.logger.Debug("remote player paused the snippet")
	p.emit(EventPaused{})
}

func (p *EmbedProvider) malformed(m Message, err error) {
	p.logger.Warn("ignoring channel message",
		zap.String("type", m.Type),
		zap.Error(fmt.Errorf("%w: %w", ErrMessageChannel, err)))
}

func (p *EmbedProvider) markReady(reason ReadyReason) {
	if p.ready {
		return
	}
	p.ready = true
	p.watchdog.Stop()
	p.emit(EventReady{Reason: reason})
}

func (p *EmbedProvider) send(cmd Command) {
	cmd.Nonce = p.nonce
	if err := p.ch.Send(cmd); err != nil {
		p.logger.Warn("send command", zap.String("type", cmd.Type), zap.Error(err))
	}
}

// Verify EmbedProvider implements Provider at compile time.
var _ Provider = (*EmbedProvider)(nil)
