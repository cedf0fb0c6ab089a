package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownDifficulty is returned by ParseDifficulty for unknown names.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Difficulty sets the snippet length and the points for a correct guess.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
	Impossible
)

// Difficulties lists every difficulty, easiest first.
var Difficulties = []Difficulty{Easy, Medium, Hard, Impossible}

// ParseDifficulty parses a difficulty name. Empty means Easy.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	case "impossible":
		return Impossible, nil
	default:
		return Easy, fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
	}
}

// String returns the difficulty name.
func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	case Impossible:
		return "impossible"
	default:
		return "unknown"
	}
}

// SnippetDuration returns how much of the track is played.
func (d Difficulty) SnippetDuration() time.Duration {
	switch d {
	case Medium:
		return 3 * time.Second
	case Hard:
		return time.Second
	case Impossible:
		return 500 * time.Millisecond
	default:
		return 5 * time.Second
	}
}

// Points returns the score for a correct guess.
func (d Difficulty) Points() int {
	switch d {
	case Medium:
		return 200
	case Hard:
		return 300
	case Impossible:
		return 500
	default:
		return 100
	}
}

// Next returns the following difficulty, wrapping around.
func (d Difficulty) Next() Difficulty {
	return Difficulties[(int(d)+1)%len(Difficulties)]
}
