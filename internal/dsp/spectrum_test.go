package dsp

import (
	"math"
	"testing"
)

func newTestAnalyzer(t *testing.T) *SpectralAnalyzer {
	t.Helper()
	a, err := NewSpectralAnalyzer(512, 16000, 1000, 8000)
	if err != nil {
		t.Fatalf("NewSpectralAnalyzer failed: %v", err)
	}
	return a
}

func TestSpectralAnalyzer_DominantFrequency(t *testing.T) {
	a := newTestAnalyzer(t)

	// Period 8 at 16 kHz is a 2 kHz tone, exactly bin 64 of a
	// 512-point transform.
	got := a.Analyze(makeSine(512, 8, 10000))

	if math.Abs(got-2000) > a.BinWidth()/2 {
		t.Errorf("Expected dominant frequency 2000 Hz, got %f", got)
	}
}

func TestSpectralAnalyzer_Silence(t *testing.T) {
	a := newTestAnalyzer(t)

	if got := a.Analyze(make([]int16, 512)); got != 0 {
		t.Errorf("Expected 0 Hz for silence, got %f", got)
	}
}

func TestSpectralAnalyzer_EmptyBlock(t *testing.T) {
	a := newTestAnalyzer(t)

	if got := a.Analyze(nil); got != 0 {
		t.Errorf("Expected 0 Hz for empty block, got %f", got)
	}
}

func TestSpectralAnalyzer_OutOfBandIgnored(t *testing.T) {
	a := newTestAnalyzer(t)

	// A loud 250 Hz tone sits below the 1 kHz band edge; the reported
	// dominant frequency must never be pulled below the band.
	got := a.Analyze(makeSine(512, 64, 20000))

	if got != 0 && got < 1000 {
		t.Errorf("Expected dominant frequency inside band or 0, got %f", got)
	}
	if math.Abs(got-250) < a.BinWidth() {
		t.Errorf("Out-of-band tone reported as dominant: %f", got)
	}
}

func TestSpectralAnalyzer_ShortBlockZeroPadded(t *testing.T) {
	a := newTestAnalyzer(t)

	got := a.Analyze(makeSine(256, 8, 10000))

	if math.Abs(got-2000) > a.BinWidth() {
		t.Errorf("Expected dominant frequency near 2000 Hz for short block, got %f", got)
	}
}

func TestSpectralAnalyzer_BinWidth(t *testing.T) {
	a := newTestAnalyzer(t)
	if got := a.BinWidth(); got != 31.25 {
		t.Errorf("Expected bin width 31.25 Hz, got %f", got)
	}
}

func TestNewSpectralAnalyzer_Validation(t *testing.T) {
	if _, err := NewSpectralAnalyzer(0, 16000, 1000, 8000); err == nil {
		t.Error("Expected error for zero transform size")
	}
	if _, err := NewSpectralAnalyzer(512, 0, 1000, 8000); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := NewSpectralAnalyzer(512, 16000, 8000, 1000); err == nil {
		t.Error("Expected error for inverted band")
	}
}

func BenchmarkSpectralAnalyzer_Analyze(b *testing.B) {
	a, err := NewSpectralAnalyzer(512, 44100, 1000, 8000)
	if err != nil {
		b.Fatal(err)
	}
	block := makeSine(512, 32, 16000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Analyze(block)
	}
}
