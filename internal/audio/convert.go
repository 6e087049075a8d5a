package audio

import "encoding/binary"

// Convert32To16 narrows 32-bit samples to 16-bit by taking the top
// half of each word. The arithmetic shift keeps the sign, so negative
// samples survive the narrowing.
func Convert32To16(src []int32) []int16 {
	dst := make([]int16, len(src))
	for i, s := range src {
		dst[i] = int16(s >> 16)
	}
	return dst
}

// Deinterleave splits LRLR frames into planar channels. A trailing
// half frame is dropped.
func Deinterleave(frames []int16) (left, right []int16) {
	n := len(frames) / 2
	left = make([]int16, n)
	right = make([]int16, n)
	for i := 0; i < n; i++ {
		left[i] = frames[2*i]
		right[i] = frames[2*i+1]
	}
	return left, right
}

// BytesToSamples16 decodes little-endian 16-bit PCM. A trailing odd
// byte is ignored.
func BytesToSamples16(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// BytesToSamples32 decodes little-endian 32-bit PCM. Trailing bytes
// short of a full sample are ignored.
func BytesToSamples32(data []byte) []int32 {
	n := len(data) / 4
	samples := make([]int32, n)
	for i := 0; i < n; i++ {
		samples[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
