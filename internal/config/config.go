// Package config loads station settings from the environment.
package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds all settings for the station process. Durations are plain
// ints in the unit named by the field; callers convert at the wiring site.
type Config struct {
	// Audio source
	SourceKind   string `envconfig:"CHIRP_SOURCE" default:"mock"`         // mock | file
	SourcePath   string `envconfig:"CHIRP_SOURCE_PATH" default:"-"`       // file path, or - for stdin
	SourceFormat string `envconfig:"CHIRP_SOURCE_FORMAT" default:"s16le"` // s16le | s32le
	SampleRate   int    `envconfig:"CHIRP_SAMPLE_RATE" default:"44100"`
	BlockSize    int    `envconfig:"CHIRP_BLOCK_SIZE" default:"512"`

	// Detection
	CalibrationBlocks int     `envconfig:"CHIRP_CALIBRATION_BLOCKS" default:"100"`
	ThresholdFactor   float64 `envconfig:"CHIRP_THRESHOLD_FACTOR" default:"2.5"`
	HighPassCutoffHz  float64 `envconfig:"CHIRP_HIGHPASS_CUTOFF_HZ" default:"200"`
	BirdFreqMinHz     float64 `envconfig:"CHIRP_BIRD_FREQ_MIN_HZ" default:"1000"`
	BirdFreqMaxHz     float64 `envconfig:"CHIRP_BIRD_FREQ_MAX_HZ" default:"8000"`
	MinSustainMS      int     `envconfig:"CHIRP_MIN_SUSTAIN_MS" default:"300"`
	MaxGapMS          int     `envconfig:"CHIRP_MAX_GAP_MS" default:"500"`

	// Beamforming
	MicSpacingMM float64 `envconfig:"CHIRP_MIC_SPACING_MM" default:"65"`
	SpeedOfSound float64 `envconfig:"CHIRP_SPEED_OF_SOUND" default:"343"`
	BeamformMode string  `envconfig:"CHIRP_BEAMFORM_MODE" default:"delay_sum"` // off | simple | delay_sum

	// Recording
	MaxRecordSeconds int `envconfig:"CHIRP_MAX_RECORD_SECONDS" default:"5"`
	PostRollMS       int `envconfig:"CHIRP_POST_ROLL_MS" default:"1000"`

	// Backend. An empty server URL puts the station in archive-only mode.
	ServerURL      string `envconfig:"CHIRP_SERVER_URL" default:""`
	DeviceID       string `envconfig:"CHIRP_DEVICE_ID" default:""`
	UploadTimeout  int    `envconfig:"CHIRP_UPLOAD_TIMEOUT" default:"30"` // seconds
	UploadRetries  int    `envconfig:"CHIRP_UPLOAD_RETRIES" default:"3"`
	RetryDelayMS   int    `envconfig:"CHIRP_RETRY_DELAY_MS" default:"2000"`
	CacheDir       string `envconfig:"CHIRP_CACHE_DIR" default:"cache"`
	CacheLimit     int    `envconfig:"CHIRP_CACHE_LIMIT" default:"10"`
	FlushIntervalS int    `envconfig:"CHIRP_FLUSH_INTERVAL" default:"60"` // seconds

	// Telemetry (optional, enabled when a broker is configured)
	MQTTBroker   string `envconfig:"CHIRP_MQTT_BROKER" default:""`
	MQTTUsername string `envconfig:"CHIRP_MQTT_USERNAME" default:""`
	MQTTPassword string `envconfig:"CHIRP_MQTT_PASSWORD" default:""`
	TopicPrefix  string `envconfig:"CHIRP_TOPIC_PREFIX" default:"chirp"`

	// Diagnostics
	DiagAddr string `envconfig:"CHIRP_DIAG_ADDR" default:":9090"`

	// Logging
	LogLevel  string `envconfig:"CHIRP_LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"CHIRP_LOG_PRETTY" default:"true"`
}

// Load reads configuration from a .env file (if present) and the
// environment, resolves the device identity, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file found, using environment variables only")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = deriveDeviceID()
	}

	return &cfg, cfg.Validate()
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.SourceKind != "mock" && c.SourceKind != "file" {
		return fmt.Errorf("CHIRP_SOURCE must be 'mock' or 'file'")
	}
	if c.SourceKind == "file" && c.SourcePath == "" {
		return fmt.Errorf("CHIRP_SOURCE_PATH is required when using the file source")
	}
	if c.SourceFormat != "s16le" && c.SourceFormat != "s32le" {
		return fmt.Errorf("CHIRP_SOURCE_FORMAT must be 's16le' or 's32le'")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("CHIRP_SAMPLE_RATE must be positive")
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("CHIRP_BLOCK_SIZE must be positive")
	}
	if c.CalibrationBlocks <= 0 {
		return fmt.Errorf("CHIRP_CALIBRATION_BLOCKS must be positive")
	}
	if c.ThresholdFactor < 1 {
		return fmt.Errorf("CHIRP_THRESHOLD_FACTOR must be at least 1")
	}
	if c.BirdFreqMinHz <= 0 || c.BirdFreqMaxHz <= c.BirdFreqMinHz {
		return fmt.Errorf("bird band must satisfy 0 < CHIRP_BIRD_FREQ_MIN_HZ < CHIRP_BIRD_FREQ_MAX_HZ")
	}
	if c.BeamformMode != "off" && c.BeamformMode != "simple" && c.BeamformMode != "delay_sum" {
		return fmt.Errorf("CHIRP_BEAMFORM_MODE must be 'off', 'simple' or 'delay_sum'")
	}
	if c.MicSpacingMM <= 0 {
		return fmt.Errorf("CHIRP_MIC_SPACING_MM must be positive")
	}
	if c.SpeedOfSound <= 0 {
		return fmt.Errorf("CHIRP_SPEED_OF_SOUND must be positive")
	}
	if c.UploadRetries < 1 {
		return fmt.Errorf("CHIRP_UPLOAD_RETRIES must be at least 1")
	}
	if c.CacheLimit < 1 {
		return fmt.Errorf("CHIRP_CACHE_LIMIT must be at least 1")
	}
	return nil
}

// deriveDeviceID builds a stable identity from the first non-loopback
// interface MAC, falling back to a random suffix on headless test rigs.
func deriveDeviceID() string {
	if ifaces, err := net.Interfaces(); err == nil {
		for _, ifi := range ifaces {
			if ifi.Flags&net.FlagLoopback != 0 || len(ifi.HardwareAddr) == 0 {
				continue
			}
			mac := strings.ToUpper(strings.ReplaceAll(ifi.HardwareAddr.String(), ":", ""))
			return "CHIRP-" + mac
		}
	}
	return "CHIRP-" + strings.ToUpper(uuid.NewString()[:8])
}
