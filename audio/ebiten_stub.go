//go:build !cgo

package audio

import (
	"net/http"

	"holodeck/logging"
)

// EbitenEngine is unavailable without cgo; Open always fails.
type EbitenEngine struct{}

func NewEbitenEngine(_ *http.Client, _ *logging.Logger) *EbitenEngine {
	return &EbitenEngine{}
}

func (e *EbitenEngine) Open(string, Options) (Handle, error) {
	return nil, ErrUnavailable
}
