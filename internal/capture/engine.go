// Package capture runs the station pipeline: calibrate the noise
// floor, then walk audio blocks through detection, direction finding
// and the recording lifecycle, handing finished clips to the sink.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/chirp-station/internal/audio"
	"github.com/user/chirp-station/internal/detect"
	"github.com/user/chirp-station/internal/dsp"
	"github.com/user/chirp-station/internal/observability"
	"github.com/user/chirp-station/internal/record"
	"github.com/user/chirp-station/internal/telemetry"
	"github.com/user/chirp-station/internal/upload"
)

// State is the engine lifecycle phase. The numeric values match the
// pipeline state gauge.
type State int

const (
	StateCalibrating State = iota
	StateListening
	StateRecording
	StateError
)

func (s State) String() string {
	switch s {
	case StateCalibrating:
		return "calibrating"
	case StateListening:
		return "listening"
	case StateRecording:
		return "recording"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config sets the pipeline parameters. All values are required; the
// DSP constructors reject the impossible ones.
type Config struct {
	SampleRate int
	BlockSize  int

	CalibrationBlocks int
	ThresholdFactor   float64
	HighPassCutoffHz  float64
	MinFreqHz         float64
	MaxFreqHz         float64
	MinSustain        time.Duration
	MaxGap            time.Duration

	MicSpacingMM float64
	SpeedOfSound float64
	Mode         dsp.Mode

	MaxRecording time.Duration
	PostRoll     time.Duration
}

// Status is a point-in-time snapshot of the pipeline, served by the
// diagnostics endpoint and attached to heartbeats.
type Status struct {
	State          string  `json:"state"`
	NoiseFloor     float64 `json:"noise_floor"`
	Threshold      float64 `json:"threshold"`
	LevelPercent   float64 `json:"level_percent"`
	DominantHz     float64 `json:"dominant_hz"`
	AzimuthDeg     float64 `json:"azimuth_deg"`
	Confidence     float64 `json:"confidence"`
	Sector         string  `json:"sector"`
	Blocks         int64   `json:"blocks"`
	EmptyReads     int64   `json:"empty_reads"`
	Detections     int64   `json:"detections"`
	Clips          int64   `json:"clips"`
	SubmitFailures int64   `json:"submit_failures"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Engine owns the capture loop. A single goroutine runs the loop;
// Status and Recalibrate are safe to call from others.
type Engine struct {
	cfg  Config
	src  audio.Source
	sink upload.Sink
	tel  *telemetry.Publisher

	filter   *dsp.HighPassFilter
	analyzer *dsp.SpectralAnalyzer
	beam     *dsp.Beamformer
	detector *detect.Detector
	recorder *record.Recorder

	// Stream clock: base advanced by delivered samples at the
	// configured rate. Empty reads do not advance it.
	base      time.Time
	delivered int64

	// Steering is fixed at the detection direction for the life of a
	// clip.
	steer dsp.DirectionEstimate

	state       State
	startedAt   time.Time
	recalibrate atomic.Bool

	mu     sync.RWMutex
	status Status
}

// NewEngine builds the pipeline around the given source and sink. The
// telemetry publisher may be nil.
func NewEngine(cfg Config, src audio.Source, sink upload.Sink, tel *telemetry.Publisher) (*Engine, error) {
	analyzer, err := dsp.NewSpectralAnalyzer(cfg.BlockSize, cfg.SampleRate, cfg.MinFreqHz, cfg.MaxFreqHz)
	if err != nil {
		return nil, fmt.Errorf("failed to build spectral analyzer: %w", err)
	}
	beam, err := dsp.NewBeamformer(cfg.MicSpacingMM, cfg.SampleRate, cfg.SpeedOfSound)
	if err != nil {
		return nil, fmt.Errorf("failed to build beamformer: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		src:      src,
		sink:     sink,
		tel:      tel,
		filter:   dsp.NewHighPassFilter(cfg.HighPassCutoffHz, cfg.SampleRate),
		analyzer: analyzer,
		beam:     beam,
		detector: detect.NewDetector(detect.DetectorConfig{
			MinFreq:    cfg.MinFreqHz,
			MaxFreq:    cfg.MaxFreqHz,
			MinSustain: cfg.MinSustain,
			MaxGap:     cfg.MaxGap,
		}),
		recorder:  record.NewRecorder(cfg.MaxRecording, cfg.PostRoll, cfg.SampleRate),
		state:     StateCalibrating,
		startedAt: time.Now(),
	}
	e.status.State = StateCalibrating.String()
	return e, nil
}

// Run executes the pipeline until the stream ends, the context is
// cancelled, or the source fails. A clean end of stream returns nil.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.src.Start(); err != nil {
		e.setState(StateError)
		return fmt.Errorf("failed to start audio source: %w", err)
	}
	defer e.src.Close()

	if err := e.calibrate(ctx); err != nil {
		e.setState(StateError)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Capture engine stopping")
			return nil
		default:
		}

		if e.state == StateListening && e.recalibrate.CompareAndSwap(true, false) {
			if err := e.calibrate(ctx); err != nil {
				e.setState(StateError)
				return err
			}
		}

		left, right, err := e.src.Read(ctx, e.cfg.BlockSize)
		if errors.Is(err, io.EOF) {
			log.Info().Msg("Audio stream ended")
			e.finishStream(ctx)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Capture engine stopping")
				return nil
			}
			e.setState(StateError)
			return fmt.Errorf("audio source failed: %w", err)
		}
		if len(left) == 0 {
			observability.RecordEmptyRead()
			e.mu.Lock()
			e.status.EmptyReads++
			e.mu.Unlock()
			continue
		}

		e.processBlock(ctx, left, right)
	}
}

// Status returns a snapshot of the pipeline.
func (e *Engine) Status() Status {
	e.mu.RLock()
	s := e.status
	e.mu.RUnlock()
	s.UptimeSeconds = time.Since(e.startedAt).Seconds()
	return s
}

// Recalibrate asks the engine to redo noise calibration. It takes
// effect between blocks, after any recording in progress completes.
func (e *Engine) Recalibrate() {
	e.recalibrate.Store(true)
	log.Info().Msg("Recalibration requested")
}

// calibrate measures the noise floor and re-bases the stream clock.
// Detector and recorder state refer to the clock, so both reset.
func (e *Engine) calibrate(ctx context.Context) error {
	e.setState(StateCalibrating)

	cal := detect.NewCalibrator(e.cfg.CalibrationBlocks, e.cfg.ThresholdFactor, e.cfg.BlockSize)
	profile, err := cal.Run(ctx, e.src)
	if err != nil {
		return fmt.Errorf("noise calibration failed: %w", err)
	}

	e.detector.SetThreshold(profile.Threshold)
	e.detector.Reset()
	e.recorder.SetThreshold(profile.Threshold)
	e.recorder.Reset()
	e.base = time.Now()
	e.delivered = 0

	observability.SetNoiseProfile(profile.NoiseFloor, profile.Threshold)
	e.mu.Lock()
	e.status.NoiseFloor = profile.NoiseFloor
	e.status.Threshold = profile.Threshold
	e.mu.Unlock()

	e.setState(StateListening)
	return nil
}

func (e *Engine) processBlock(ctx context.Context, left, right []int16) {
	e.delivered += int64(len(left))
	now := e.now()

	observability.RecordBlock()

	// Direction on the raw channels every block, recording or not.
	dir := e.beam.EstimateDirection(left, right)
	observability.SetDirection(dir.AzimuthDeg, dir.Confidence)

	e.mu.Lock()
	e.status.Blocks++
	e.status.AzimuthDeg = dir.AzimuthDeg
	e.status.Confidence = dir.Confidence
	e.status.Sector = dir.Sector
	e.mu.Unlock()

	switch e.state {
	case StateListening:
		e.listen(left, right, dir, now)
	case StateRecording:
		e.appendBlock(ctx, left, right, now)
	}
}

// listen runs the analysis path on one block and starts a recording on
// the detector's rising edge. The triggering block itself is not
// recorded; capture begins with the next block.
func (e *Engine) listen(left, right []int16, dir dsp.DirectionEstimate, now time.Time) {
	mixed := dsp.Mix(left, right)
	filtered := e.filter.Apply(mixed)
	rms := dsp.RMS(filtered)
	freq := e.analyzer.Analyze(filtered)
	level := dsp.LevelPercent(rms)

	observability.SetAudioLevel(level)
	observability.SetDominantFrequency(freq)

	e.mu.Lock()
	e.status.LevelPercent = level
	e.status.DominantHz = freq
	e.mu.Unlock()

	if e.detector.Process(rms, freq, now) != detect.StateActive {
		return
	}

	log.Info().
		Float64("rms", rms).
		Float64("freq", freq).
		Float64("azimuth", dir.AzimuthDeg).
		Str("sector", dir.Sector).
		Msg("Bird sound detected")

	if err := e.recorder.Start(now); err != nil {
		log.Error().Err(err).Msg("Failed to start recording")
		e.detector.Reset()
		return
	}
	e.steer = dir
	e.setState(StateRecording)

	observability.RecordDetection()
	observability.RecordRecordingStart()
	e.mu.Lock()
	e.status.Detections++
	e.mu.Unlock()

	e.tel.OfferDetection(telemetry.DetectionEvent{
		Timestamp:  now,
		RMS:        rms,
		DominantHz: freq,
		AzimuthDeg: dir.AzimuthDeg,
		Confidence: dir.Confidence,
		Sector:     dir.Sector,
	})
}

// appendBlock feeds one block into the active recording and completes
// it when the lifecycle rules say so.
func (e *Engine) appendBlock(ctx context.Context, left, right []int16, now time.Time) {
	steered := e.beam.Combine(left, right, e.cfg.Mode, e.steer.AzimuthDeg)
	e.recorder.Append(steered, now)

	if e.recorder.Poll(now) == record.StateComplete {
		e.completeRecording(ctx, now)
	}
}

// finishStream closes out a recording cut short by the end of the
// stream so the partial clip is not lost.
func (e *Engine) finishStream(ctx context.Context) {
	if e.state != StateRecording {
		return
	}
	e.recorder.Finish()
	e.completeRecording(ctx, e.now())
}

func (e *Engine) completeRecording(ctx context.Context, now time.Time) {
	samples, info, err := e.recorder.Take()
	if err != nil {
		log.Error().Err(err).Msg("Recording completed without an artifact")
		e.resetToListening()
		return
	}

	clip := upload.Clip{
		ID:              uuid.New(),
		Filename:        fmt.Sprintf("chirp_%d.wav", info.StartedAt.UnixMilli()),
		WAV:             record.EncodeWAV(samples, e.cfg.SampleRate, 1),
		RecordedAt:      info.StartedAt,
		DurationSeconds: info.Duration.Seconds(),
		Peak:            info.Peak,
		Azimuth:         e.steer.AzimuthDeg,
		Confidence:      e.steer.Confidence,
		Sector:          e.steer.Sector,
	}

	observability.RecordRecordingComplete(clip.DurationSeconds)
	log.Info().
		Str("clip", clip.Filename).
		Float64("seconds", clip.DurationSeconds).
		Int("peak", clip.Peak).
		Str("sector", clip.Sector).
		Msg("Recording complete")

	outcome := "submitted"
	if err := e.sink.Submit(ctx, clip); err != nil {
		outcome = "failed"
		log.Error().Err(err).Str("clip", clip.Filename).Msg("Clip submission failed")
		e.mu.Lock()
		e.status.SubmitFailures++
		e.mu.Unlock()
	} else {
		e.mu.Lock()
		e.status.Clips++
		e.mu.Unlock()
	}

	e.tel.OfferClip(telemetry.ClipEvent{
		Timestamp:       now,
		Filename:        clip.Filename,
		DurationSeconds: clip.DurationSeconds,
		Peak:            clip.Peak,
		AzimuthDeg:      clip.Azimuth,
		Sector:          clip.Sector,
		Outcome:         outcome,
	})

	e.resetToListening()
}

// resetToListening clears the per-event state. The high-pass filter
// keeps its state; it runs over the stream, not per event.
func (e *Engine) resetToListening() {
	e.recorder.Reset()
	e.detector.Reset()
	e.setState(StateListening)
}

func (e *Engine) setState(s State) {
	e.state = s
	observability.SetPipelineState(float64(s))
	e.mu.Lock()
	e.status.State = s.String()
	e.mu.Unlock()
}

// now returns the stream time. Seconds and remainder are split so the
// math stays in range over long uptimes.
func (e *Engine) now() time.Time {
	rate := int64(e.cfg.SampleRate)
	secs := e.delivered / rate
	rem := e.delivered % rate
	return e.base.Add(time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(rate))
}
