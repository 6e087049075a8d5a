package detect

import "time"

// State is the detector's position in the sound-event hysteresis.
type State int

const (
	// StateIdle means no candidate sound is being tracked.
	StateIdle State = iota
	// StateCandidate means qualifying sound has been seen but has not
	// yet sustained long enough to count as an event.
	StateCandidate
	// StateActive means a sustained sound event is in progress.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateCandidate:
		return "candidate"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

// DetectorConfig sets the qualification rules and hysteresis timing.
type DetectorConfig struct {
	// Threshold is the minimum block RMS, from calibration.
	Threshold float64
	// MinFreq and MaxFreq bound the qualifying dominant frequency.
	MinFreq float64
	MaxFreq float64
	// MinSustain is how long qualifying sound must persist before an
	// event starts.
	MinSustain time.Duration
	// MaxGap is the longest silence tolerated inside a candidate or
	// active event.
	MaxGap time.Duration
}

// Detector is the per-block hysteresis over VAD measurements. A block
// qualifies when its RMS reaches the threshold and its dominant
// frequency falls inside the band; qualification must sustain for
// MinSustain before the detector turns Active, and an event survives
// interruptions no longer than MaxGap.
//
// Detector is not safe for concurrent use.
type Detector struct {
	cfg DetectorConfig

	state          State
	eventStart     time.Time
	lastQualifying time.Time
}

// NewDetector returns an idle detector.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// SetThreshold replaces the RMS threshold, as after a recalibration.
func (d *Detector) SetThreshold(threshold float64) {
	d.cfg.Threshold = threshold
}

// State returns the current hysteresis state.
func (d *Detector) State() State {
	return d.state
}

// Process advances the state machine with one block's measurements and
// returns the resulting state. now is stream time, monotonically
// non-decreasing across calls.
func (d *Detector) Process(rms, dominantFreq float64, now time.Time) State {
	qualifies := rms >= d.cfg.Threshold &&
		dominantFreq >= d.cfg.MinFreq && dominantFreq <= d.cfg.MaxFreq

	switch d.state {
	case StateIdle:
		if qualifies {
			d.state = StateCandidate
			d.eventStart = now
			d.lastQualifying = now
			d.promoteIfSustained(now)
		}

	case StateCandidate:
		gapExpired := now.Sub(d.lastQualifying) > d.cfg.MaxGap
		switch {
		case qualifies && gapExpired:
			// Too late to extend the old candidate; this block opens a
			// fresh one.
			d.eventStart = now
			d.lastQualifying = now
			d.promoteIfSustained(now)
		case qualifies:
			d.lastQualifying = now
			d.promoteIfSustained(now)
		case gapExpired:
			d.state = StateIdle
		}

	case StateActive:
		if qualifies {
			d.lastQualifying = now
		} else if now.Sub(d.lastQualifying) > d.cfg.MaxGap {
			d.state = StateIdle
		}
	}

	return d.state
}

func (d *Detector) promoteIfSustained(now time.Time) {
	if now.Sub(d.eventStart) >= d.cfg.MinSustain {
		d.state = StateActive
	}
}

// Reset returns the detector to Idle, dropping any event in progress.
func (d *Detector) Reset() {
	d.state = StateIdle
	d.eventStart = time.Time{}
	d.lastQualifying = time.Time{}
}
