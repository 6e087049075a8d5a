package dsp

import "math"

// HighPassFilter is a first-order high-pass filter that removes DC
// offset and low-frequency rumble (wind, handling noise) ahead of the
// detection path. Filter state carries across blocks so a stream can be
// processed incrementally without edge artifacts at block boundaries.
type HighPassFilter struct {
	alpha      float64
	prevInput  float64
	prevOutput float64
}

// NewHighPassFilter returns a filter with the given cutoff frequency
// for samples at the given rate.
func NewHighPassFilter(cutoffHz float64, sampleRate int) *HighPassFilter {
	rc := 1.0 / (2.0 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	return &HighPassFilter{alpha: rc / (rc + dt)}
}

// Apply filters a block in place and returns it. Successive calls
// continue from the previous block's state.
func (f *HighPassFilter) Apply(samples []int16) []int16 {
	for i, s := range samples {
		in := float64(s)
		out := f.alpha * (f.prevOutput + in - f.prevInput)
		f.prevInput = in
		f.prevOutput = out
		samples[i] = clampInt16(out)
	}
	return samples
}

// Reset clears the filter state, as after a calibration restart.
func (f *HighPassFilter) Reset() {
	f.prevInput = 0
	f.prevOutput = 0
}
