package audio

import (
	"context"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockSource generates synthetic dual-channel audio for tests and for
// running the pipeline without hardware. The signal is a sine tone over
// a uniform noise floor; options control amplitude, an inter-channel
// delay to simulate an off-axis source, and a burst cadence that gates
// the tone on and off so detection cycles end-to-end.
type MockSource struct {
	mu sync.Mutex

	rate       int
	toneFreq   float64
	toneAmp    float64
	noiseAmp   float64
	rightDelay int
	burstOn    int // samples; 0 means the tone is always on
	burstOff   int
	quietLead  int
	limit      int // total samples to produce; 0 means unlimited
	pace       bool

	rng     *rand.Rand
	pos     int
	started bool
	closed  bool
}

var _ Source = (*MockSource)(nil)

// MockOption configures a MockSource.
type MockOption func(*MockSource)

// WithTone adds a sine tone at the given frequency and peak amplitude.
func WithTone(freqHz float64, amplitude int) MockOption {
	return func(m *MockSource) {
		m.toneFreq = freqHz
		m.toneAmp = float64(amplitude)
	}
}

// WithNoise adds uniform noise with the given peak amplitude to both
// channels. Noise is present even while a burst gates the tone off,
// which is what calibration measures.
func WithNoise(amplitude int) MockOption {
	return func(m *MockSource) { m.noiseAmp = float64(amplitude) }
}

// WithRightDelay lags the right channel by the given number of samples,
// simulating a source closer to the left microphone.
func WithRightDelay(samples int) MockOption {
	return func(m *MockSource) { m.rightDelay = samples }
}

// WithBurst gates the tone on for onSamples and off for offSamples,
// repeating.
func WithBurst(onSamples, offSamples int) MockOption {
	return func(m *MockSource) {
		m.burstOn = onSamples
		m.burstOff = offSamples
	}
}

// WithQuietLead keeps the tone off for the first samples of the
// stream, leaving noise only, so calibration sees a clean floor before
// the first burst.
func WithQuietLead(samples int) MockOption {
	return func(m *MockSource) { m.quietLead = samples }
}

// WithLimit ends the stream with io.EOF after total samples per
// channel.
func WithLimit(total int) MockOption {
	return func(m *MockSource) { m.limit = total }
}

// WithRealtimePacing makes Read block for the block's wall-clock
// duration, mimicking a live capture device.
func WithRealtimePacing() MockOption {
	return func(m *MockSource) { m.pace = true }
}

// WithSeed fixes the noise generator seed. The default seed is 1, so
// runs are deterministic unless reseeded.
func WithSeed(seed int64) MockOption {
	return func(m *MockSource) { m.rng = rand.New(rand.NewSource(seed)) }
}

// NewMockSource returns a mock source producing samples at sampleRate.
func NewMockSource(sampleRate int, opts ...MockOption) *MockSource {
	m := &MockSource{
		rate: sampleRate,
		rng:  rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start marks the source ready.
func (m *MockSource) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.started = true
	return nil
}

// Read produces the next block of samples.
func (m *MockSource) Read(ctx context.Context, maxSamples int) ([]int16, []int16, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if !m.started {
		m.mu.Unlock()
		return nil, nil, ErrNotStarted
	}
	m.mu.Unlock()

	if maxSamples <= 0 {
		return nil, nil, nil
	}

	n := maxSamples
	if m.limit > 0 {
		remaining := m.limit - m.pos
		if remaining <= 0 {
			return nil, nil, io.EOF
		}
		if remaining < n {
			n = remaining
		}
	}

	if m.pace {
		blockDur := time.Duration(float64(n) / float64(m.rate) * float64(time.Second))
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(blockDur):
		}
	} else if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	left := make([]int16, n)
	right := make([]int16, n)
	for i := 0; i < n; i++ {
		pos := m.pos + i
		left[i] = m.sampleAt(pos)
		right[i] = m.sampleAt(pos - m.rightDelay)
	}
	m.pos += n

	return left, right, nil
}

func (m *MockSource) sampleAt(pos int) int16 {
	var v float64
	if pos >= 0 && m.toneAmp > 0 && m.toneOn(pos) {
		t := float64(pos) / float64(m.rate)
		v = m.toneAmp * math.Sin(2.0*math.Pi*m.toneFreq*t)
	}
	if m.noiseAmp > 0 {
		v += (m.rng.Float64()*2.0 - 1.0) * m.noiseAmp
	}
	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	return int16(v)
}

func (m *MockSource) toneOn(pos int) bool {
	if pos < m.quietLead {
		return false
	}
	if m.burstOn <= 0 {
		return true
	}
	return (pos-m.quietLead)%(m.burstOn+m.burstOff) < m.burstOn
}

// Close stops the source. Further reads return ErrClosed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
