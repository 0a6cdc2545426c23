// Package audio plays asset audio files through a pluggable engine.
package audio

import (
	"errors"
	"math"
)

var (
	ErrUnavailable       = errors.New("audio: no audio device support in this build")
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
	ErrEmptyURL          = errors.New("audio: empty source URL")
)

// Options configure a new handle. Callbacks report what the engine actually
// did and may run on any goroutine.
type Options struct {
	Volume  float64
	OnPlay  func()
	OnPause func()
	OnStop  func()
	OnEnd   func()
}

// Engine opens playback handles for remote audio files.
type Engine interface {
	Open(url string, opts Options) (Handle, error)
}

// Handle controls one loaded sound. Loading may finish after Open returns; a
// Play before that is deferred until the sound is ready.
type Handle interface {
	Play()
	Pause()
	Stop()
	Playing() bool
	SetVolume(v float64)
	Volume() float64
	Unload() error
}

// ClampVolume limits v to [0,1]. NaN reads as 0.
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}
