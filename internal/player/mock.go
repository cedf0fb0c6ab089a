// internal/player/mock.go
package player

import (
	"sync"
	"time"

	"github.com/llehouerou/earworm/internal/catalog"
	"github.com/llehouerou/earworm/internal/loop"
)

// MockProvider is a test double for Provider. It records calls and lets
// tests emit events through the emit function it was created with.
type MockProvider struct {
	Fallback time.Duration

	emit      func(Event)
	loads     []catalog.Track
	plays     []Window
	stopCalls int
	disposed  bool
}

func (m *MockProvider) Load(track catalog.Track) { m.loads = append(m.loads, track) }

func (m *MockProvider) Play(w Window) { m.plays = append(m.plays, w) }

func (m *MockProvider) Stop() { m.stopCalls++ }

func (m *MockProvider) Dispose() { m.disposed = true }

func (m *MockProvider) FallbackLength() time.Duration { return m.Fallback }

// Emit sends an event as the provider. Must be called on the loop.
// Emitting after Dispose is allowed so tests can simulate late events.
func (m *MockProvider) Emit(e Event) { m.emit(e) }

// Loads returns the loaded tracks.
func (m *MockProvider) Loads() []catalog.Track { return m.loads }

// Plays returns the windows passed to Play.
func (m *MockProvider) Plays() []Window { return m.plays }

// StopCalls returns how many times Stop was called.
func (m *MockProvider) StopCalls() int { return m.stopCalls }

// Disposed reports whether Dispose was called.
func (m *MockProvider) Disposed() bool { return m.disposed }

// MockFactory creates MockProviders and keeps them for inspection.
type MockFactory struct {
	Fallback  time.Duration
	providers []*MockProvider
}

// Factory returns the Factory func.
func (f *MockFactory) Factory() Factory {
	return func(_ *loop.Loop, emit func(Event)) Provider {
		p := &MockProvider{Fallback: f.Fallback, emit: emit}
		f.providers = append(f.providers, p)
		return p
	}
}

// Providers returns every provider created so far.
func (f *MockFactory) Providers() []*MockProvider { return f.providers }

// Last returns the most recent provider, or nil.
func (f *MockFactory) Last() *MockProvider {
	if len(f.providers) == 0 {
		return nil
	}
	return f.providers[len(f.providers)-1]
}

// MockElement is a test double for Element.
type MockElement struct {
	mu       sync.Mutex
	handler  func(ElementEvent)
	sources  []string
	seeks    []time.Duration
	plays    int
	pauses   int
	closed   bool
	PlayErr  error
	SetErr   error
	SeekErr  error
	CloseErr error
}

// NewMockElement creates a mock element.
func NewMockElement() *MockElement { return &MockElement{} }

func (m *MockElement) SetSource(src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, src)
	return m.SetErr
}

func (m *MockElement) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, pos)
	return m.SeekErr
}

func (m *MockElement) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.plays++
	return nil
}

func (m *MockElement) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
}

func (m *MockElement) OnEvent(fn func(ElementEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

func (m *MockElement) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseErr
}

// Fire delivers an element event to the registered handler.
func (m *MockElement) Fire(e ElementEvent) {
	m.mu.Lock()
	fn := m.handler
	m.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Sources returns the assigned sources.
func (m *MockElement) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}

// Seeks returns the seek positions.
func (m *MockElement) Seeks() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seeks...)
}

// PlayCount returns how many times Play succeeded.
func (m *MockElement) PlayCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays
}

// PauseCount returns how many times Pause was called.
func (m *MockElement) PauseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauses
}

// Closed reports whether Close was called.
func (m *MockElement) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	mu      sync.Mutex
	sent    []Command
	subs    map[int]func(Message)
	nextID  int
	SendErr error
}

// NewMockChannel creates a mock channel.
func NewMockChannel() *MockChannel {
	return &MockChannel{subs: make(map[int]func(Message))}
}

func (m *MockChannel) Send(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, cmd)
	return m.SendErr
}

func (m *MockChannel) Subscribe(fn func(Message)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Deliver sends a message to every subscriber.
func (m *MockChannel) Deliver(msg Message) {
	m.mu.Lock()
	subs := make([]func(Message), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}

// Sent returns the sent commands.
func (m *MockChannel) Sent() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.sent...)
}

// SentTypes returns the types of the sent commands, in order.
func (m *MockChannel) SentTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.sent))
	for i, c := range m.sent {
		types[i] = c.Type
	}
	return types
}

// Subscribers returns the number of attached listeners.
func (m *MockChannel) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Verify mocks implement their interfaces at compile time.
var (
	_ Provider = (*MockProvider)(nil)
	_ Element  = (*MockElement)(nil)
	_ Channel  = (*MockChannel)(nil)
)
