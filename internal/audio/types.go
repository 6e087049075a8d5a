// Package audio provides the sample sources feeding the capture
// pipeline and the PCM conversion helpers shared by them.
package audio

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("audio source closed")
	// ErrNotStarted is returned by Read before Start.
	ErrNotStarted = errors.New("audio source not started")
)

// Source delivers synchronized dual-channel PCM. Implementations wrap
// a microphone pair, a recorded file, or a synthetic generator.
//
// Read returns at most maxSamples per channel, with both channels
// always the same length. Empty slices with a nil error mean no data
// was available this cycle; io.EOF means the stream is finished; any
// other error is a source failure. Incomplete trailing frames are
// dropped, never delivered.
//
// Sources have a single reader: Read must not be called concurrently.
// Close may be called from another goroutine.
type Source interface {
	Start() error
	Read(ctx context.Context, maxSamples int) (left, right []int16, err error)
	Close() error
}
