// Package audio plays preview assets through the system speaker.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"go.uber.org/zap"

	"github.com/llehouerou/earworm/internal/player"
)

// ErrNotLoaded is returned by Seek and Play before the source is decoded.
var ErrNotLoaded = errors.New("audio source not loaded")

const (
	// maxAssetSize caps remote downloads. Previews are well under 2 MB.
	maxAssetSize = 64 << 20

	speakerRate = beep.SampleRate(44100)
)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// initSpeaker initializes the shared speaker once. Streams with a different
// sample rate are resampled.
func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return speakerErr
}

// Element plays one audio asset at a time. It implements player.Element.
type Element struct {
	client *http.Client
	logger *zap.Logger
	level  float64

	mu       sync.Mutex
	handler  func(player.ElementEvent)
	cancel   context.CancelFunc
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	queued   bool
	gen      int
}

// Option configures an Element.
type Option func(*Element)

// WithHTTPClient sets the client used for remote assets.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Element) { e.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Element) { e.logger = l }
}

// WithVolume sets the output level (0.0 to 1.0).
func WithVolume(level float64) Option {
	return func(e *Element) { e.level = level }
}

// NewElement creates an idle element.
func NewElement(opts ...Option) *Element {
	e := &Element{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: zap.NewNop(),
		level:  1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "audio"))
	return e
}

// OnEvent sets the event handler.
func (e *Element) OnEvent(fn func(player.ElementEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = fn
}

// SetSource releases the current asset and starts fetching and decoding src
// in the background. Metadata and Buffered (or Error) follow.
func (e *Element) SetSource(src string) error {
	e.release()

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	go e.load(ctx, gen, src)
	return nil
}

func (e *Element) load(ctx context.Context, gen int, src string) {
	rc, contentType, err := e.open(ctx, src)
	if err != nil {
		e.fire(gen, player.ElementEvent{Kind: player.ElementError, Err: err})
		return
	}

	f, err := DetectFormat(src, contentType)
	if err != nil {
		rc.Close()
		e.fire(gen, player.ElementEvent{Kind: player.ElementError, Err: err})
		return
	}

	streamer, format, err := decode(rc, f)
	if err != nil {
		rc.Close()
		e.fire(gen, player.ElementEvent{Kind: player.ElementError, Err: fmt.Errorf("decode %s: %w", f, err)})
		return
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		streamer.Close()
		return
	}
	e.streamer = streamer
	e.format = format
	e.mu.Unlock()

	e.logger.Debug("asset decoded",
		zap.String("format", string(f)),
		zap.Int("sample_rate", int(format.SampleRate)))

	if n := streamer.Len(); n > 0 {
		e.fire(gen, player.ElementEvent{Kind: player.ElementMetadata, Length: format.SampleRate.D(n)})
	}
	e.fire(gen, player.ElementEvent{Kind: player.ElementBuffered})
}

// open returns a seekable reader for src. Remote assets are buffered in
// memory.
func (e *Element) open(ctx context.Context, src string) (io.ReadSeekCloser, string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, "", err
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, "", err
		}
		return f, "", nil
	case "http", "https":
	default:
		return nil, "", fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", u.Host, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		return nil, "", err
	}
	return nopCloser{bytes.NewReader(data)}, resp.Header.Get("Content-Type"), nil
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

// Seek moves the play position.
func (e *Element) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamer == nil {
		return ErrNotLoaded
	}

	n := e.format.SampleRate.N(pos)
	if l := e.streamer.Len(); l > 0 && n > l {
		n = l
	}
	speaker.Lock()
	defer speaker.Unlock()
	return e.streamer.Seek(n)
}

// Play starts or resumes output.
func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamer == nil {
		return ErrNotLoaded
	}
	if err := initSpeaker(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	if e.queued {
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
		return nil
	}

	var s beep.Streamer = e.streamer
	if e.format.SampleRate != speakerRate {
		s = beep.Resample(4, e.format.SampleRate, speakerRate, e.streamer)
	}
	e.ctrl = &beep.Ctrl{Streamer: s}
	e.volume = &effects.Volume{Streamer: e.ctrl, Base: 2, Volume: levelToVolume(e.level)}
	e.queued = true

	gen := e.gen
	speaker.Play(beep.Seq(e.volume, beep.Callback(func() {
		// Runs on the speaker goroutine with the speaker lock held
		go e.ended(gen)
	})))
	return nil
}

func (e *Element) ended(gen int) {
	e.mu.Lock()
	if gen == e.gen {
		e.queued = false
	}
	e.mu.Unlock()
	e.fire(gen, player.ElementEvent{Kind: player.ElementEnded})
}

// Pause suspends output.
func (e *Element) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl == nil {
		return
	}
	speaker.Lock()
	e.ctrl.Paused = true
	speaker.Unlock()
}

// Close releases the current asset.
func (e *Element) Close() error {
	return e.release()
}

func (e *Element) release() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.queued {
		speaker.Clear()
		e.queued = false
	}
	e.ctrl = nil
	e.volume = nil
	if e.streamer == nil {
		return nil
	}
	err := e.streamer.Close()
	e.streamer = nil
	return err
}

func (e *Element) fire(gen int, ev player.ElementEvent) {
	e.mu.Lock()
	fn := e.handler
	current := gen == e.gen
	e.mu.Unlock()
	if !current || fn == nil {
		return
	}
	fn(ev)
}

// Verify Element implements player.Element at compile time.
var _ player.Element = (*Element)(nil)
