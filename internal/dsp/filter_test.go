package dsp

import (
	"math"
	"testing"
)

func constantBlock(n int, value int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = value
	}
	return s
}

func TestHighPassFilter_RemovesDC(t *testing.T) {
	f := NewHighPassFilter(200, 16000)

	out := f.Apply(constantBlock(512, 1000))

	// The step edge passes through, then the DC level decays away.
	if out[0] < 900 {
		t.Errorf("Expected step edge to pass, got first sample %d", out[0])
	}
	if out[511] > 1 || out[511] < -1 {
		t.Errorf("Expected DC to decay to ~0, got last sample %d", out[511])
	}
}

func TestHighPassFilter_StateCarriesAcrossBlocks(t *testing.T) {
	f := NewHighPassFilter(200, 16000)

	f.Apply(constantBlock(256, 1000))
	second := f.Apply(constantBlock(256, 1000))

	// A second identical block is a continuation, not a new step: the
	// filter must stay settled instead of passing another edge.
	if second[0] > 10 || second[0] < -10 {
		t.Errorf("Expected settled output at block boundary, got %d", second[0])
	}
}

func TestHighPassFilter_Reset(t *testing.T) {
	f := NewHighPassFilter(200, 16000)

	f.Apply(constantBlock(256, 1000))
	f.Reset()
	out := f.Apply(constantBlock(256, 1000))

	if out[0] < 900 {
		t.Errorf("Expected step edge after reset, got first sample %d", out[0])
	}
}

func TestHighPassFilter_PassesBandFrequencies(t *testing.T) {
	f := NewHighPassFilter(200, 16000)

	// 2 kHz is a decade above the cutoff and should pass nearly
	// unattenuated.
	out := f.Apply(makeSine(1024, 8, 10000))

	settled := RMS(out[256:])
	want := 10000.0 / math.Sqrt2
	if settled < want*0.92 {
		t.Errorf("Expected 2 kHz tone to pass (RMS near %f), got %f", want, settled)
	}
}
