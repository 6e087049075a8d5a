package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// SampleFormat identifies the on-disk PCM encoding of a FileSource.
type SampleFormat int

const (
	// FormatS16LE is interleaved stereo signed 16-bit little-endian.
	FormatS16LE SampleFormat = iota
	// FormatS32LE is interleaved stereo signed 32-bit little-endian,
	// narrowed to 16-bit on read.
	FormatS32LE
)

// ParseSampleFormat parses a format name as used in configuration.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s16le":
		return FormatS16LE, nil
	case "s32le":
		return FormatS32LE, nil
	}
	return FormatS16LE, fmt.Errorf("unknown sample format %q", s)
}

func (f SampleFormat) String() string {
	if f == FormatS32LE {
		return "s32le"
	}
	return "s16le"
}

func (f SampleFormat) bytesPerSample() int {
	if f == FormatS32LE {
		return 4
	}
	return 2
}

// FileSource reads interleaved stereo PCM from a file, or from stdin
// when the path is "-". It never paces; reads return as fast as the
// data allows, which makes offline runs and tests deterministic.
type FileSource struct {
	path   string
	format SampleFormat

	f      *os.File
	r      *bufio.Reader
	closed bool
}

var _ Source = (*FileSource)(nil)

// NewFileSource returns a source reading from path in the given format.
func NewFileSource(path string, format SampleFormat) *FileSource {
	return &FileSource{path: path, format: format}
}

// Start opens the underlying file.
func (s *FileSource) Start() error {
	if s.path == "-" {
		s.f = os.Stdin
	} else {
		f, err := os.Open(s.path)
		if err != nil {
			return fmt.Errorf("failed to open audio file: %w", err)
		}
		s.f = f
	}
	s.r = bufio.NewReader(s.f)
	return nil
}

// Read delivers the next block, deinterleaved and narrowed to 16-bit.
func (s *FileSource) Read(ctx context.Context, maxSamples int) ([]int16, []int16, error) {
	if s.closed {
		return nil, nil, ErrClosed
	}
	if s.r == nil {
		return nil, nil, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if maxSamples <= 0 {
		return nil, nil, nil
	}

	frameBytes := 2 * s.format.bytesPerSample()
	buf := make([]byte, maxSamples*frameBytes)

	n, err := io.ReadFull(s.r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, nil, io.EOF
		}
		return nil, nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	if dropped := n % frameBytes; dropped != 0 {
		log.Warn().Int("bytes", dropped).Str("path", s.path).
			Msg("Dropping incomplete trailing frame")
		n -= dropped
	}
	if n == 0 {
		return nil, nil, io.EOF
	}

	var frames []int16
	switch s.format {
	case FormatS32LE:
		frames = Convert32To16(BytesToSamples32(buf[:n]))
	default:
		frames = BytesToSamples16(buf[:n])
	}

	left, right := Deinterleave(frames)
	return left, right, nil
}

// Close closes the underlying file. Stdin is left open.
func (s *FileSource) Close() error {
	s.closed = true
	if s.f != nil && s.f != os.Stdin {
		return s.f.Close()
	}
	return nil
}
