package dsp

import (
	"fmt"
	"math"
)

// SpectralAnalyzer computes the magnitude spectrum of sample blocks and
// reports the dominant frequency inside a configured band. Blocks
// shorter than the transform size are zero-padded; longer blocks are
// truncated. A Hamming window is applied over the actual sample count
// before the transform.
//
// The analyzer reuses internal buffers and is not safe for concurrent
// use.
type SpectralAnalyzer struct {
	size   int
	rate   int
	minBin int
	maxBin int

	input []float64
	mags  []float64
	cos   []float64
	sin   []float64
}

// NewSpectralAnalyzer returns an analyzer for blocks at the given
// sample rate with the given transform size. Dominant-frequency
// detection only considers bins between minHz and maxHz.
func NewSpectralAnalyzer(size, rate int, minHz, maxHz float64) (*SpectralAnalyzer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("transform size must be positive, got %d", size)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", rate)
	}
	if minHz < 0 || maxHz <= minHz {
		return nil, fmt.Errorf("invalid frequency band %.0f-%.0f Hz", minHz, maxHz)
	}

	a := &SpectralAnalyzer{
		size:   size,
		rate:   rate,
		minBin: int(minHz * float64(size) / float64(rate)),
		maxBin: int(maxHz * float64(size) / float64(rate)),
		input:  make([]float64, size),
		mags:   make([]float64, size/2),
		cos:    make([]float64, size),
		sin:    make([]float64, size),
	}

	// The DFT angle 2*pi*k*n/size only depends on k*n mod size, so a
	// single table per function covers every (k, n) pair.
	for i := 0; i < size; i++ {
		angle := 2.0 * math.Pi * float64(i) / float64(size)
		a.cos[i] = math.Cos(angle)
		a.sin[i] = math.Sin(angle)
	}

	return a, nil
}

// Analyze computes the magnitude spectrum of the block and returns the
// dominant frequency in Hz within the configured band. A silent block
// yields 0.
func (a *SpectralAnalyzer) Analyze(samples []int16) float64 {
	n := len(samples)
	if n > a.size {
		n = a.size
	}

	for i := 0; i < n; i++ {
		window := 1.0
		if n > 1 {
			window = 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(n-1))
		}
		a.input[i] = float64(samples[i]) * window
	}
	for i := n; i < a.size; i++ {
		a.input[i] = 0
	}

	for k := 0; k < a.size/2; k++ {
		var re, im float64
		for i := 0; i < a.size; i++ {
			idx := (k * i) % a.size
			re += a.input[i] * a.cos[idx]
			im += a.input[i] * a.sin[idx]
		}
		a.mags[k] = math.Sqrt(re*re + im*im)
	}

	var maxMag float64
	maxIdx := 0
	for i := a.minBin; i < a.maxBin && i < a.size/2; i++ {
		if a.mags[i] > maxMag {
			maxMag = a.mags[i]
			maxIdx = i
		}
	}

	return float64(maxIdx) * float64(a.rate) / float64(a.size)
}

// Magnitudes returns the spectrum computed by the last Analyze call.
// The slice is reused across calls and must not be retained.
func (a *SpectralAnalyzer) Magnitudes() []float64 {
	return a.mags
}

// BinWidth returns the frequency resolution of one spectrum bin in Hz.
func (a *SpectralAnalyzer) BinWidth() float64 {
	return float64(a.rate) / float64(a.size)
}
