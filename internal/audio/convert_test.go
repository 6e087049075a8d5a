package audio

import "testing"

func TestConvert32To16(t *testing.T) {
	cases := []struct {
		in   int32
		want int16
	}{
		{0, 0},
		{0x12345678, 0x1234},
		{-65536, -1},
		{0x7FFFFFFF, 0x7FFF},
		{-2147483648, -32768},
		{65535, 0},
	}

	for _, c := range cases {
		got := Convert32To16([]int32{c.in})
		if got[0] != c.want {
			t.Errorf("Convert32To16(%d): expected %d, got %d", c.in, c.want, got[0])
		}
	}
}

func TestDeinterleave(t *testing.T) {
	left, right := Deinterleave([]int16{1, 10, 2, 20, 3, 30})

	wantLeft := []int16{1, 2, 3}
	wantRight := []int16{10, 20, 30}
	for i := range wantLeft {
		if left[i] != wantLeft[i] {
			t.Errorf("Left sample %d: expected %d, got %d", i, wantLeft[i], left[i])
		}
		if right[i] != wantRight[i] {
			t.Errorf("Right sample %d: expected %d, got %d", i, wantRight[i], right[i])
		}
	}
}

func TestDeinterleave_DropsHalfFrame(t *testing.T) {
	left, right := Deinterleave([]int16{1, 10, 2})

	if len(left) != 1 || len(right) != 1 {
		t.Errorf("Expected 1 frame, got %d/%d", len(left), len(right))
	}
}

func TestBytesToSamples16(t *testing.T) {
	samples := BytesToSamples16([]byte{0x34, 0x12, 0xFF, 0xFF, 0xAA})

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	if samples[0] != 0x1234 {
		t.Errorf("Expected 0x1234, got %d", samples[0])
	}
	if samples[1] != -1 {
		t.Errorf("Expected -1, got %d", samples[1])
	}
}

func TestBytesToSamples32(t *testing.T) {
	samples := BytesToSamples32([]byte{0x78, 0x56, 0x34, 0x12, 0x00, 0x00, 0xFF, 0xFF})

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	if samples[0] != 0x12345678 {
		t.Errorf("Expected 0x12345678, got %d", samples[0])
	}
	if samples[1] != -65536 {
		t.Errorf("Expected -65536, got %d", samples[1])
	}
}
