package player

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/loop"
)

// ElementEventKind identifies an audio element event.
type ElementEventKind int

const (
	// ElementBuffered means enough data is buffered to start playing.
	ElementBuffered ElementEventKind = iota
	// ElementMetadata carries the true asset length.
	ElementMetadata
	// ElementEnded means the asset played to its end.
	ElementEnded
	// ElementError reports a fetch or decode error.
	ElementError
)

// ElementEvent is emitted by an Element, possibly from another goroutine.
type ElementEvent struct {
	Kind   ElementEventKind
	Length time.Duration // ElementMetadata
	Err    error         // ElementError
}

// Element is a directly addressable audio asset player.
type Element interface {
	// SetSource assigns the source URL and starts buffering in the
	// background. Progress is reported through the event handler.
	SetSource(src string) error
	Seek(pos time.Duration) error
	Play() error
	Pause()
	// OnEvent sets the event handler. It may be called from any goroutine.
	OnEvent(fn func(ElementEvent))
	Close() error
}

// DirectProvider plays a fetchable audio asset through an Element.
type DirectProvider struct {
	loop   *loop.Loop
	el     Element
	emit   func(Event)
	cfg    Config
	logger *zap.Logger

	src      string
	ready    bool
	playing  bool
	disposed bool
	window   Window
	started  time.Time

	watchdog *loop.Timer
	stopper  *loop.Timer
}

// NewDirectProvider creates a provider driving el.
func NewDirectProvider(l *loop.Loop, el Element, emit func(Event), cfg Config, logger *zap.Logger) *DirectProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &DirectProvider{
		loop:   l,
		el:     el,
		emit:   emit,
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("component", "direct-provider")),
	}
	el.OnEvent(func(e ElementEvent) {
		l.Post(func() { p.handleElement(e) })
	})
	return p
}

// Load assigns the cache-busted source and arms the readiness watchdog.
func (p *DirectProvider) Load(track catalog.Track) {
	if p.disposed {
		return
	}
	p.watchdog = p.loop.AfterFunc(p.cfg.ReadyTimeout, func() {
		if p.disposed {
			return
		}
		p.logger.Debug("readiness watchdog fired", zap.String("src", p.src))
		p.markReady(ReadyWatchdog)
	})

	if !track.HasPreview() {
		p.loadFailed(fmt.Errorf("track %s has no preview", track.ID))
		return
	}

	p.src = CacheBust(track.PreviewURL)
	if err := p.el.SetSource(p.src); err != nil {
		p.loadFailed(err)
	}
}

// Play seeks to the window start, plays and arms the auto-stop timer.
func (p *DirectProvider) Play(w Window) {
	if p.disposed {
		return
	}
	p.stopper.Stop()
	p.window = w

	if err := p.el.Seek(w.Offset); err != nil {
		p.startFailed(err)
		return
	}
	if err := p.el.Play(); err != nil {
		p.startFailed(err)
		return
	}

	p.playing = true
	p.started = time.Now()
	p.emit(EventStarted{})

	p.stopper = p.loop.AfterFunc(w.Duration, func() {
		if p.disposed || !p.playing {
			return
		}
		p.el.Pause()
		p.playing = false
		p.emit(EventEnded{})
	})
}

// Stop pauses and rewinds to the window start when stopped early.
func (p *DirectProvider) Stop() {
	if p.disposed || !p.playing {
		return
	}
	p.stopper.Stop()
	p.el.Pause()
	p.playing = false

	if time.Since(p.started) < p.window.Duration {
		if err := p.el.Seek(p.window.Offset); err != nil {
			p.logger.Warn("rewind failed", zap.Error(err))
		}
	}
}

// Dispose cancels timers and releases the element.
func (p *DirectProvider) Dispose() {
	if p.disposed {
		return
	}
	p.disposed = true
	p.watchdog.Stop()
	p.stopper.Stop()
	p.el.OnEvent(nil)
	if p.playing {
		p.el.Pause()
		p.playing = false
	}
	if err := p.el.Close(); err != nil {
		p.logger.Debug("close element", zap.Error(err))
	}
}

// FallbackLength is 0: without metadata the snippet starts at the beginning.
func (p *DirectProvider) FallbackLength() time.Duration { return 0 }

func (p *DirectProvider) handleElement(e ElementEvent) {
	if p.disposed {
		return
	}
	switch e.Kind {
	case ElementBuffered:
		p.markReady(ReadyNative)
	case ElementMetadata:
		if e.Length > 0 {
			p.emit(EventMetadata{Length: e.Length})
		}
	case ElementEnded:
		// Asset ran out before the snippet timer
		if p.playing {
			p.stopper.Stop()
			p.playing = false
			p.emit(EventEnded{})
		}
	case ElementError:
		if !p.ready {
			p.loadFailed(e.Err)
			return
		}
		p.logger.Warn("element error", zap.String("src", p.src), zap.Error(e.Err))
		if p.playing {
			p.stopper.Stop()
			p.playing = false
		}
		p.emit(EventFailed{Err: fmt.Errorf("%w: %w", ErrProvider, e.Err)})
	}
}

func (p *DirectProvider) markReady(reason ReadyReason) {
	if p.ready {
		return
	}
	p.ready = true
	p.watchdog.Stop()
	p.emit(EventReady{Reason: reason})
}

func (p *DirectProvider) loadFailed(err error) {
	p.logger.Warn("load failed", zap.String("src", p.src), zap.Error(err))
	p.emit(EventFailed{Err: fmt.Errorf("%w: %w", ErrLoadFailure, err)})
	p.markReady(ReadyLoadError)
}

func (p *DirectProvider) startFailed(err error) {
	p.logger.Warn("playback start failed", zap.String("src", p.src), zap.Error(err))
	p.playing = false
	p.emit(EventFailed{Err: fmt.Errorf("%w: %w", ErrPlaybackStart, err)})
}

// CacheBust appends a unique query parameter so remote assets are never
// served from a stale cache. Local file URLs are returned unchanged.
func CacheBust(src string) string {
	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || strings.EqualFold(u.Scheme, "file") {
		return src
	}
	q := u.Query()
	q.Set("_", uuid.NewString())
	u.RawQuery = q.Encode()
	return u.String()
}

// Verify DirectProvider implements Provider at compile time.
var _ Provider = (*DirectProvider)(nil)
