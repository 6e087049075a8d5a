// Package observability exposes the station's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_station_blocks_total",
		Help: "Total audio blocks processed",
	})

	emptyReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_station_empty_reads_total",
		Help: "Total read cycles that returned no data",
	})

	pipelineState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_station_pipeline_state",
		Help: "Pipeline state (0=calibrating, 1=listening, 2=recording, 3=error)",
	})

	// Detection metrics
	detectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_station_detections_total",
		Help: "Total sound events that triggered a recording",
	})

	noiseFloor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_station_noise_floor_rms",
		Help: "Calibrated ambient noise floor (RMS)",
	})

	vadThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_station_vad_threshold_rms",
		Help: "Detection threshold derived from the noise floor (RMS)",
	})

	audioLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_station_audio_level_percent",
		Help: "Current audio level as a percentage of full scale",
	})

	dominantFrequency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_station_dominant_frequency_hz",
		Help: "Dominant frequency of the last analyzed block",
	})

	// Direction metrics
	azimuth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_station_azimuth_degrees",
		Help: "Last estimated direction of arrival",
	})

	directionConfidence = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_station_direction_confidence",
		Help: "Confidence of the last direction estimate (0-1)",
	})

	// Recording and handoff metrics
	recordingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_station_recordings_total",
		Help: "Total recordings started",
	})

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chirp_station_recording_duration_seconds",
		Help:    "Duration of completed recordings in seconds",
		Buckets: []float64{0.5, 1, 2, 3, 4, 5, 10},
	})

	clipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_station_clips_total",
		Help: "Total clips handed off, by outcome",
	}, []string{"outcome"}) // outcome: "uploaded", "cached", "archived" or "lost"

	cachePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chirp_station_cache_pending_files",
		Help: "Clips waiting in the local cache",
	})
)

// RecordBlock counts one processed audio block.
func RecordBlock() {
	blocksTotal.Inc()
}

// RecordEmptyRead counts a read cycle that delivered no samples.
func RecordEmptyRead() {
	emptyReadsTotal.Inc()
}

// SetPipelineState publishes the engine state using the documented
// numeric mapping.
func SetPipelineState(state float64) {
	pipelineState.Set(state)
}

// RecordDetection counts a detection event.
func RecordDetection() {
	detectionsTotal.Inc()
}

// SetNoiseProfile publishes the calibration result.
func SetNoiseProfile(floor, threshold float64) {
	noiseFloor.Set(floor)
	vadThreshold.Set(threshold)
}

// SetAudioLevel publishes the current level percentage.
func SetAudioLevel(percent float64) {
	audioLevel.Set(percent)
}

// SetDominantFrequency publishes the last analyzed dominant frequency.
func SetDominantFrequency(hz float64) {
	dominantFrequency.Set(hz)
}

// SetDirection publishes the last direction estimate.
func SetDirection(azimuthDeg, confidence float64) {
	azimuth.Set(azimuthDeg)
	directionConfidence.Set(confidence)
}

// RecordRecordingStart counts a recording start.
func RecordRecordingStart() {
	recordingsTotal.Inc()
}

// RecordRecordingComplete observes a completed recording's duration.
func RecordRecordingComplete(seconds float64) {
	recordingDuration.Observe(seconds)
}

// RecordClip counts a clip handoff outcome.
func RecordClip(outcome string) {
	clipsTotal.WithLabelValues(outcome).Inc()
}

// SetCachePending publishes the cache backlog size.
func SetCachePending(n int) {
	cachePending.Set(float64(n))
}
