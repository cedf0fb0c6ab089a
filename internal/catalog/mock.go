package catalog

import (
	"context"
	"strings"
)

// Mock is an in-memory catalog for tests and offline play.
type Mock struct {
	Pools   map[string][]Track // context key -> tracks
	Artists []Artist
	Err     error

	listCalls []Context
}

// NewMock creates an empty mock catalog.
func NewMock() *Mock {
	return &Mock{Pools: make(map[string][]Track)}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) ListCandidateTracks(_ context.Context, c Context) ([]Track, error) {
	m.listCalls = append(m.listCalls, c)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Pools[c.Key()], nil
}

func (m *Mock) SearchTracks(_ context.Context, query string) ([]Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	q := strings.ToLower(query)
	var result []Track
	for _, pool := range m.Pools {
		for _, t := range pool {
			if strings.Contains(strings.ToLower(t.Title), q) {
				result = append(result, t)
			}
		}
	}
	return result, nil
}

func (m *Mock) SearchArtists(_ context.Context, query string) ([]Artist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	q := strings.ToLower(query)
	var result []Artist
	for _, a := range m.Artists {
		if strings.Contains(strings.ToLower(a.Name), q) {
			result = append(result, a)
		}
	}
	return result, nil
}

// ListCalls returns the contexts ListCandidateTracks was called with.
func (m *Mock) ListCalls() []Context { return m.listCalls }

// Verify Mock implements Catalog at compile time.
var _ Catalog = (*Mock)(nil)
