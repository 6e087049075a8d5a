// Package record owns the bounded recording buffer and its lifecycle:
// a recording starts when detection fires, grows block by block, and
// completes on the duration cap or after the post-roll of silence. The
// completed samples leave as a WAV artifact.
package record

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/user/chirp-station/internal/dsp"
)

// ErrNoArtifact is returned by Take when there is no completed
// recording to hand over.
var ErrNoArtifact = errors.New("no completed recording to take")

// Requested max durations outside these bounds are clamped, not
// rejected; the device keeps running on a sane buffer.
const (
	minRecordingDuration = 1 * time.Second
	maxRecordingDuration = 60 * time.Second
)

// State is the recorder's lifecycle position.
type State int

const (
	// StateReady means the buffer is idle and can accept Start.
	StateReady State = iota
	// StateRecording means blocks are being appended.
	StateRecording
	// StateComplete means the recording finished and awaits Take.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateComplete:
		return "complete"
	default:
		return "ready"
	}
}

// Info describes a completed recording.
type Info struct {
	// Samples actually written to the buffer.
	Samples int
	// Duration of the written audio at the configured rate.
	Duration time.Duration
	// Peak absolute sample value observed.
	Peak int
	// StartedAt is the stream time the recording began.
	StartedAt time.Time
}

// Recorder accumulates mono samples into a pre-allocated buffer. The
// buffer never grows: once full, appends are dropped until the
// duration cap completes the recording.
//
// Recorder is not safe for concurrent use.
type Recorder struct {
	rate      int
	maxDur    time.Duration
	postRoll  time.Duration
	threshold float64

	buf       []int16
	cursor    int
	state     State
	startedAt time.Time
	lastSound time.Time
	peak      int
	taken     bool
}

// NewRecorder returns a recorder for mono audio at sampleRate with the
// given duration cap and post-roll.
func NewRecorder(maxDuration, postRoll time.Duration, sampleRate int) *Recorder {
	clamped := maxDuration
	if clamped < minRecordingDuration {
		clamped = minRecordingDuration
	} else if clamped > maxRecordingDuration {
		clamped = maxRecordingDuration
	}
	if clamped != maxDuration {
		log.Warn().
			Dur("requested", maxDuration).
			Dur("using", clamped).
			Msg("Clamping recording duration")
	}

	capacity := int(clamped.Seconds() * float64(sampleRate))
	return &Recorder{
		rate:     sampleRate,
		maxDur:   clamped,
		postRoll: postRoll,
		buf:      make([]int16, capacity),
	}
}

// SetThreshold sets the RMS level that counts as ongoing sound, from
// calibration.
func (r *Recorder) SetThreshold(threshold float64) {
	r.threshold = threshold
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	return r.state
}

// Start begins a new recording at stream time now. The recorder must
// be Ready.
func (r *Recorder) Start(now time.Time) error {
	if r.state != StateReady {
		return fmt.Errorf("recorder not ready, state is %s", r.state)
	}
	r.state = StateRecording
	r.cursor = 0
	r.peak = 0
	r.taken = false
	r.startedAt = now
	r.lastSound = now
	return nil
}

// Append adds a block to the recording. Samples past the buffer
// capacity are dropped. A block whose RMS exceeds the threshold counts
// as ongoing sound and pushes the post-roll window forward.
func (r *Recorder) Append(block []int16, now time.Time) {
	if r.state != StateRecording {
		return
	}

	n := copy(r.buf[r.cursor:], block)
	for _, s := range block[:n] {
		a := int(s)
		if a < 0 {
			a = -a
		}
		if a > r.peak {
			r.peak = a
		}
	}
	r.cursor += n

	if dsp.RMS(block) > r.threshold {
		r.lastSound = now
	}
}

// Poll applies the completion rules at stream time now and returns the
// resulting state: the duration cap is a hard stop, and silence longer
// than the post-roll ends the recording early.
func (r *Recorder) Poll(now time.Time) State {
	if r.state != StateRecording {
		return r.state
	}
	if now.Sub(r.startedAt) >= r.maxDur {
		r.complete("duration cap")
	} else if now.Sub(r.lastSound) > r.postRoll {
		r.complete("post-roll silence")
	}
	return r.state
}

// Finish forces a recording in progress to complete. Used when the
// stream ends before the normal completion rules fire.
func (r *Recorder) Finish() {
	if r.state == StateRecording {
		r.complete("end of stream")
	}
}

func (r *Recorder) complete(reason string) {
	r.state = StateComplete
	log.Debug().
		Str("reason", reason).
		Int("samples", r.cursor).
		Int("peak", r.peak).
		Msg("Recording complete")
}

// Take hands over the completed recording. The returned slice aliases
// the internal buffer and is valid until the next Start. Take succeeds
// once per recording; it fails with ErrNoArtifact until another
// recording completes.
func (r *Recorder) Take() ([]int16, Info, error) {
	if r.state != StateComplete || r.taken {
		return nil, Info{}, ErrNoArtifact
	}
	r.taken = true
	info := Info{
		Samples:   r.cursor,
		Duration:  time.Duration(r.cursor) * time.Second / time.Duration(r.rate),
		Peak:      r.peak,
		StartedAt: r.startedAt,
	}
	return r.buf[:r.cursor], info, nil
}

// Reset returns the recorder to Ready for the next event.
func (r *Recorder) Reset() {
	r.state = StateReady
	r.cursor = 0
	r.peak = 0
	r.taken = false
}
