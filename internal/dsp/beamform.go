package dsp

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects how the two microphone channels are combined into the
// mono analysis stream.
type Mode int

const (
	// ModeOff uses the left channel as-is.
	ModeOff Mode = iota
	// ModeSimple averages both channels sample by sample.
	ModeSimple
	// ModeDelaySum time-aligns the channels toward a target azimuth
	// before averaging.
	ModeDelaySum
)

// ParseMode parses a beamforming mode name as used in configuration.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return ModeOff, nil
	case "simple":
		return ModeSimple, nil
	case "delay_sum":
		return ModeDelaySum, nil
	}
	return ModeOff, fmt.Errorf("unknown beamforming mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModeSimple:
		return "simple"
	case ModeDelaySum:
		return "delay_sum"
	default:
		return "off"
	}
}

// confNeighborhood is the delay range, in samples either side of the
// best delay, used to normalize correlation strength into a confidence.
const confNeighborhood = 5

// DirectionEstimate is the result of one direction-of-arrival pass over
// a stereo block.
type DirectionEstimate struct {
	// AzimuthDeg is the angle of arrival relative to broadside:
	// 0 is straight ahead, positive toward the left microphone.
	AzimuthDeg float64
	// Confidence is the correlation-peak sharpness in [0, 1].
	Confidence float64
	// Sector is the compass octant label for the azimuth.
	Sector string
	// TDOASamples is the inter-channel delay at the correlation peak.
	TDOASamples int
}

// Beamformer estimates direction of arrival from a two-microphone
// array and combines the channels into a single steered stream. The
// geometry is fixed at construction.
type Beamformer struct {
	spacing  float64 // meters
	rate     int
	speed    float64 // meters per second
	maxDelay int
}

// NewBeamformer returns a beamformer for microphones spacingMM apart,
// sampling at sampleRate, with the given speed of sound in m/s.
func NewBeamformer(spacingMM float64, sampleRate int, speedOfSound float64) (*Beamformer, error) {
	if spacingMM <= 0 {
		return nil, fmt.Errorf("mic spacing must be positive, got %.2f mm", spacingMM)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if speedOfSound <= 0 {
		return nil, fmt.Errorf("speed of sound must be positive, got %.2f", speedOfSound)
	}

	spacing := spacingMM / 1000.0
	return &Beamformer{
		spacing:  spacing,
		rate:     sampleRate,
		speed:    speedOfSound,
		maxDelay: int(spacing / speedOfSound * float64(sampleRate)),
	}, nil
}

// MaxDelay returns the largest inter-channel delay, in samples, the
// array geometry can produce. Sound arriving along the mic axis hits
// this bound.
func (b *Beamformer) MaxDelay() int {
	return b.maxDelay
}

// EstimateDirection cross-correlates the channels over the physically
// possible delay range and converts the peak delay to an azimuth. Both
// channels must be the same length. A silent or incoherent block comes
// back with confidence 0.
func (b *Beamformer) EstimateDirection(left, right []int16) DirectionEstimate {
	best := 0
	maxCorr := math.Inf(-1)
	for d := -b.maxDelay; d <= b.maxDelay; d++ {
		corr := crossCorrelate(left, right, d)
		if corr > maxCorr {
			maxCorr = corr
			best = d
		}
	}

	var avg float64
	var n int
	for d := -confNeighborhood; d <= confNeighborhood; d++ {
		if d == best {
			continue
		}
		avg += math.Abs(crossCorrelate(left, right, d))
		n++
	}
	avg /= float64(n)

	confidence := 0.0
	if avg > 0 {
		confidence = maxCorr / avg
		if confidence < 0 {
			confidence = 0
		} else if confidence > 1 {
			confidence = 1
		}
	}

	azimuth := b.azimuthForDelay(best)
	return DirectionEstimate{
		AzimuthDeg:  azimuth,
		Confidence:  confidence,
		Sector:      SectorForAzimuth(azimuth),
		TDOASamples: best,
	}
}

// Combine merges the stereo block into mono according to the mode. For
// ModeDelaySum the lagging channel is shifted toward azimuthDeg before
// averaging, with a single-channel fallback past the shifted edge.
func (b *Beamformer) Combine(left, right []int16, mode Mode, azimuthDeg float64) []int16 {
	if mode == ModeOff {
		out := make([]int16, len(left))
		copy(out, left)
		return out
	}

	n := len(left)
	if len(right) < n {
		n = len(right)
	}

	if mode == ModeSimple {
		return averageChannels(left, right, n)
	}

	angleRad := azimuthDeg * math.Pi / 180.0
	tdoa := b.spacing * math.Sin(angleRad) / b.speed
	delay := int(math.Round(tdoa * float64(b.rate)))

	out := make([]int16, n)
	switch {
	case delay > 0:
		for i := 0; i < n; i++ {
			if ri := i + delay; ri < n {
				out[i] = int16((int32(left[i]) + int32(right[ri])) / 2)
			} else {
				out[i] = left[i]
			}
		}
	case delay < 0:
		delay = -delay
		for i := 0; i < n; i++ {
			if li := i + delay; li < n {
				out[i] = int16((int32(left[li]) + int32(right[i])) / 2)
			} else {
				out[i] = right[i]
			}
		}
	default:
		return averageChannels(left, right, n)
	}
	return out
}

func (b *Beamformer) azimuthForDelay(delay int) float64 {
	sinAngle := float64(delay) / float64(b.rate) * b.speed / b.spacing
	if sinAngle > 1 {
		sinAngle = 1
	} else if sinAngle < -1 {
		sinAngle = -1
	}
	return math.Asin(sinAngle) * 180.0 / math.Pi
}

func averageChannels(left, right []int16, n int) []int16 {
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16((int32(left[i]) + int32(right[i])) / 2)
	}
	return out
}

// crossCorrelate returns the mean product of left against right shifted
// by delay samples, over the overlapping region.
func crossCorrelate(left, right []int16, delay int) float64 {
	var sum float64
	var valid int
	for i := range left {
		ri := i + delay
		if ri >= 0 && ri < len(right) {
			sum += float64(left[i]) * float64(right[ri])
			valid++
		}
	}
	if valid == 0 {
		return 0
	}
	return sum / float64(valid)
}

var sectorLabels = [8]string{"E", "NE", "N", "NW", "W", "SW", "S", "SE"}

// SectorForAzimuth maps an azimuth to one of eight compass octants,
// treating 0 degrees (broadside) as north: 0 -> "N", +90 -> "E",
// -90 -> "W".
func SectorForAzimuth(azimuthDeg float64) string {
	compass := 90.0 - azimuthDeg
	for compass < 0 {
		compass += 360
	}
	for compass >= 360 {
		compass -= 360
	}
	return sectorLabels[int((compass+22.5)/45.0)%8]
}
