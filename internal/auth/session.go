// Package auth provides the Spotify client-credentials session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrUnauthenticated is returned when no valid bearer token can be obtained
// or the API rejects the token.
var ErrUnauthenticated = errors.New("unauthenticated")

// Session holds an app-level bearer token with its expiry. Tokens are
// fetched lazily and refreshed when they expire. Safe for concurrent use.
type Session struct {
	cfg  clientcredentials.Config
	ctx  context.Context
	now  func() time.Time
	mu   sync.Mutex
	src  oauth2.TokenSource
	last *oauth2.Token
}

// Option configures a Session.
type Option func(*Session)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(url string) Option {
	return func(s *Session) { s.cfg.TokenURL = url }
}

// WithHTTPClient sets the client used to fetch tokens.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.ctx = context.WithValue(s.ctx, oauth2.HTTPClient, c) }
}

// NewSession creates a session for the given application credentials.
func NewSession(clientID, clientSecret string, opts ...Option) *Session {
	s := &Session{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyauth.TokenURL,
		},
		ctx: context.Background(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.src = s.cfg.TokenSource(s.ctx)
	return s
}

// Token returns a valid bearer token, fetching a new one when needed.
// Failures wrap ErrUnauthenticated.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client credentials", ErrUnauthenticated)
	}
	tok, err := s.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	s.last = tok
	return tok, nil
}

// Expiry returns the expiry of the last token, zero before the first fetch.
func (s *Session) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return time.Time{}
	}
	return s.last.Expiry
}

// Valid reports whether the last token is still usable.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last != nil && s.last.AccessToken != "" &&
		(s.last.Expiry.IsZero() || s.now().Before(s.last.Expiry))
}

// Invalidate drops the cached token so the next request fetches a new one.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
	s.src = s.cfg.TokenSource(s.ctx)
}

// Client returns an HTTP client that authorizes requests with the session.
func (s *Session) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, s)
}

// Verify Session implements oauth2.TokenSource at compile time.
var _ oauth2.TokenSource = (*Session)(nil)
