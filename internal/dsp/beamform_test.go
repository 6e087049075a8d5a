package dsp

import (
	"math"
	"testing"
)

func newTestBeamformer(t *testing.T) *Beamformer {
	t.Helper()
	b, err := NewBeamformer(65, 44100, 343)
	if err != nil {
		t.Fatalf("NewBeamformer failed: %v", err)
	}
	return b
}

// delayedCopy returns src shifted right by delay samples, zero-filled
// at the front.
func delayedCopy(src []int16, delay int) []int16 {
	out := make([]int16, len(src))
	for i := delay; i < len(src); i++ {
		out[i] = src[i-delay]
	}
	return out
}

func TestBeamformer_MaxDelay(t *testing.T) {
	b := newTestBeamformer(t)

	// 65 mm at 44.1 kHz: 0.065/343*44100 = 8.36 samples.
	if got := b.MaxDelay(); got != 8 {
		t.Errorf("Expected max delay 8 samples, got %d", got)
	}
}

func TestBeamformer_EstimateDirection_DelayedChannel(t *testing.T) {
	b := newTestBeamformer(t)

	left := makeSine(512, 32, 16000)
	right := delayedCopy(left, 5)

	est := b.EstimateDirection(left, right)

	if est.TDOASamples < 4 || est.TDOASamples > 6 {
		t.Errorf("Expected TDOA near 5 samples, got %d", est.TDOASamples)
	}
	if est.AzimuthDeg < 25 || est.AzimuthDeg > 50 {
		t.Errorf("Expected azimuth near 37 degrees, got %f", est.AzimuthDeg)
	}
	if est.Sector != "NE" {
		t.Errorf("Expected sector NE, got %s", est.Sector)
	}
}

func TestBeamformer_EstimateDirection_IdenticalChannels(t *testing.T) {
	b := newTestBeamformer(t)

	left := makeSine(512, 32, 16000)
	right := make([]int16, len(left))
	copy(right, left)

	est := b.EstimateDirection(left, right)

	if est.TDOASamples != 0 {
		t.Errorf("Expected TDOA 0 for identical channels, got %d", est.TDOASamples)
	}
	if math.Abs(est.AzimuthDeg) > 1e-9 {
		t.Errorf("Expected azimuth 0, got %f", est.AzimuthDeg)
	}
	if est.Confidence < 0.9 {
		t.Errorf("Expected high confidence for identical channels, got %f", est.Confidence)
	}
	if est.Sector != "N" {
		t.Errorf("Expected sector N, got %s", est.Sector)
	}
}

func TestBeamformer_EstimateDirection_Silence(t *testing.T) {
	b := newTestBeamformer(t)

	est := b.EstimateDirection(make([]int16, 512), make([]int16, 512))

	if est.Confidence != 0 {
		t.Errorf("Expected confidence 0 for silence, got %f", est.Confidence)
	}
}

func TestBeamformer_Combine_Off(t *testing.T) {
	b := newTestBeamformer(t)

	left := []int16{100, -200, 300}
	right := []int16{900, 900, 900}

	out := b.Combine(left, right, ModeOff, 0)

	for i := range left {
		if out[i] != left[i] {
			t.Errorf("Expected left channel passthrough at %d, got %d", i, out[i])
		}
	}

	// The output must be a copy, not an alias.
	out[0] = 0
	if left[0] != 100 {
		t.Error("Combine aliased the input slice")
	}
}

func TestBeamformer_Combine_Simple(t *testing.T) {
	b := newTestBeamformer(t)

	left := []int16{100, 1, -1, -32768}
	right := []int16{200, 2, -2, -32768}

	out := b.Combine(left, right, ModeSimple, 0)

	want := []int16{150, 1, -1, -32768}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestBeamformer_Combine_DelaySum_ZeroAzimuth(t *testing.T) {
	b := newTestBeamformer(t)

	left := []int16{100, 200, 300}
	right := []int16{300, 400, 500}

	out := b.Combine(left, right, ModeDelaySum, 0)

	want := []int16{200, 300, 400}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestBeamformer_Combine_DelaySum_SteeredRealigns(t *testing.T) {
	b := newTestBeamformer(t)

	// A source at ~37 degrees reaches the right mic 5 samples late.
	// Steering at that azimuth must realign the channels, so the sum
	// reconstructs the left channel exactly.
	left := makeSine(512, 32, 16000)
	right := delayedCopy(left, 5)
	azimuth := b.EstimateDirection(left, right).AzimuthDeg

	out := b.Combine(left, right, ModeDelaySum, azimuth)

	if len(out) != len(left) {
		t.Fatalf("Expected %d samples, got %d", len(left), len(out))
	}
	for i := range out {
		if out[i] != left[i] {
			t.Fatalf("Sample %d: expected %d, got %d", i, left[i], out[i])
		}
	}
}

func TestSectorForAzimuth(t *testing.T) {
	cases := []struct {
		azimuth float64
		want    string
	}{
		{0, "N"},
		{45, "NE"},
		{90, "E"},
		{-45, "NW"},
		{-90, "W"},
		{135, "SE"},
		{180, "S"},
		{-135, "SW"},
	}

	for _, c := range cases {
		if got := SectorForAzimuth(c.azimuth); got != c.want {
			t.Errorf("Azimuth %f: expected %s, got %s", c.azimuth, c.want, got)
		}
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"off", ModeOff},
		{"simple", ModeSimple},
		{"delay_sum", ModeDelaySum},
		{"DELAY_SUM", ModeDelaySum},
		{" simple ", ModeSimple},
	}
	for _, c := range cases {
		got, err := ParseMode(c.in)
		if err != nil {
			t.Errorf("ParseMode(%q) failed: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseMode(%q): expected %v, got %v", c.in, c.want, got)
		}
	}

	if _, err := ParseMode("adaptive"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func BenchmarkBeamformer_EstimateDirection(b *testing.B) {
	bf, err := NewBeamformer(65, 44100, 343)
	if err != nil {
		b.Fatal(err)
	}
	left := makeSine(512, 32, 16000)
	right := delayedCopy(left, 5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf.EstimateDirection(left, right)
	}
}
