// Package dsp implements the sample-domain math used by the capture
// pipeline: block energy measurement, high-pass filtering, windowed
// spectral analysis and dual-microphone beamforming. Everything here is
// pure computation over in-memory sample slices with no hardware or
// clock dependencies.
package dsp

import "math"

// fullScale is the largest magnitude a 16-bit sample can represent,
// used for level normalization.
const fullScale = 32768.0

// RMS returns the root-mean-square amplitude of a block of samples.
// An empty block has an RMS of 0.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value in the block.
func Peak(samples []int16) int {
	peak := 0
	for _, s := range samples {
		a := int(s)
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	return peak
}

// Mix averages the two channels into a mono block, truncating to the
// shorter channel.
func Mix(left, right []int16) []int16 {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	return averageChannels(left, right, n)
}

// LevelPercent converts an RMS amplitude to a 0-100 level readout.
func LevelPercent(rms float64) float64 {
	level := rms / fullScale * 100.0
	if level > 100.0 {
		level = 100.0
	}
	return level
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
