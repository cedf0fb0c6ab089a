// Package rotation draws tracks from a candidate pool without repeating any
// track until every track of the pool has been served.
package rotation

import (
	"errors"
	"math/rand/v2"

	"github.com/llehouerou/earworm/internal/catalog"
)

// ErrEmptyPool is returned by Draw when the pool has no tracks.
var ErrEmptyPool = errors.New("rotation pool is empty")

// Sampler holds the rotation pool of one catalog context and the set of
// tracks already served from it.
// Sampler is not safe for concurrent use.
type Sampler struct {
	ctx    catalog.Context
	tracks []catalog.Track
	played map[string]bool
	rng    *rand.Rand
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithRand sets the random source. Tests use a seeded source.
func WithRand(r *rand.Rand) Option {
	return func(s *Sampler) {
		s.rng = r
	}
}

// New creates an empty sampler.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		played: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // game shuffle
	}
	return s
}

// Reset rebuilds the pool for a context and clears the played set.
// Duplicate ids collapse to their first occurrence.
func (s *Sampler) Reset(ctx catalog.Context, tracks []catalog.Track) {
	s.ctx = ctx
	s.tracks = make([]catalog.Track, 0, len(tracks))
	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		s.tracks = append(s.tracks, t)
	}
	clear(s.played)
}

// Draw returns a random track not yet served since the last reset.
// Once every track has been served the played set is cleared and the draw
// picks from the full pool, so the result may repeat the previous track.
func (s *Sampler) Draw() (catalog.Track, error) {
	if len(s.tracks) == 0 {
		return catalog.Track{}, ErrEmptyPool
	}

	unplayed := make([]int, 0, len(s.tracks)-len(s.played))
	for i, t := range s.tracks {
		if !s.played[t.ID] {
			unplayed = append(unplayed, i)
		}
	}

	var picked catalog.Track
	if len(unplayed) == 0 {
		clear(s.played)
		picked = s.tracks[s.rng.IntN(len(s.tracks))]
	} else {
		picked = s.tracks[unplayed[s.rng.IntN(len(unplayed))]]
	}

	s.played[picked.ID] = true
	return picked, nil
}

// Len returns the pool size.
func (s *Sampler) Len() int { return len(s.tracks) }

// PlayedCount returns how many tracks were served since the last reset.
func (s *Sampler) PlayedCount() int { return len(s.played) }

// Tracks returns a copy of the pool.
func (s *Sampler) Tracks() []catalog.Track {
	result := make([]catalog.Track, len(s.tracks))
	copy(result, s.tracks)
	return result
}

// Context returns the context the pool was built for.
func (s *Sampler) Context() catalog.Context { return s.ctx }
