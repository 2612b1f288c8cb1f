// Package audioio implements AudioSource and its four required variants:
// live microphone capture, WAV replay, a deterministic mock tone, and a
// physics-simulated photoacoustic Helmholtz-cell source.
package audioio

import (
	"context"
	"errors"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/audioframe"
)

// ErrEndOfStream is terminal: the source will never produce another frame.
var ErrEndOfStream = errors.New("audioio: end of stream")

// TransientError wraps a retryable read failure. It must never leak a
// device handle -- callers retry by calling ReadFrame again, not by
// reopening the source.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "audioio: transient error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Metadata describes a source's fixed characteristics.
type Metadata struct {
	Name       string
	SampleRate uint32
	Channels   int
	IsRealtime bool
}

// Source is the AudioSource contract (spec.md 4.1). ReadFrame returns
// ErrEndOfStream when the source is exhausted, or a *TransientError for a
// retryable failure; any other error is treated as fatal.
type Source interface {
	Metadata() Metadata
	ReadFrame(ctx context.Context) (*audioframe.Frame, error)
	Close() error
}
