package audio

import (
	"math"

	"github.com/gopxl/beep/v2/speaker"
)

// SetVolume sets the output level (0.0 to 1.0).
func (e *Element) SetVolume(level float64) {
	level = max(0, min(level, 1))

	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = level
	if e.volume != nil {
		speaker.Lock()
		e.volume.Volume = levelToVolume(level)
		speaker.Unlock()
	}
}

// Volume returns the output level.
func (e *Element) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// levelToVolume maps a 0.0-1.0 level to beep's base-2 volume:
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> -10 (silent).
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
