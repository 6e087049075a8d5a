package config

import (
	"os"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.SourceKind != "mock" {
		t.Errorf("Expected default SourceKind 'mock', got '%s'", cfg.SourceKind)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("Expected default SampleRate 44100, got %d", cfg.SampleRate)
	}
	if cfg.BlockSize != 512 {
		t.Errorf("Expected default BlockSize 512, got %d", cfg.BlockSize)
	}
	if cfg.ThresholdFactor != 2.5 {
		t.Errorf("Expected default ThresholdFactor 2.5, got %f", cfg.ThresholdFactor)
	}
	if cfg.BirdFreqMinHz != 1000 || cfg.BirdFreqMaxHz != 8000 {
		t.Errorf("Expected default bird band 1000-8000, got %f-%f", cfg.BirdFreqMinHz, cfg.BirdFreqMaxHz)
	}
	if cfg.MinSustainMS != 300 {
		t.Errorf("Expected default MinSustainMS 300, got %d", cfg.MinSustainMS)
	}
	if cfg.MaxGapMS != 500 {
		t.Errorf("Expected default MaxGapMS 500, got %d", cfg.MaxGapMS)
	}
	if cfg.MicSpacingMM != 65 {
		t.Errorf("Expected default MicSpacingMM 65, got %f", cfg.MicSpacingMM)
	}
	if cfg.BeamformMode != "delay_sum" {
		t.Errorf("Expected default BeamformMode 'delay_sum', got '%s'", cfg.BeamformMode)
	}
	if cfg.MaxRecordSeconds != 5 {
		t.Errorf("Expected default MaxRecordSeconds 5, got %d", cfg.MaxRecordSeconds)
	}
	if cfg.CacheLimit != 10 {
		t.Errorf("Expected default CacheLimit 10, got %d", cfg.CacheLimit)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	os.Setenv("CHIRP_SAMPLE_RATE", "16000")
	os.Setenv("CHIRP_BEAMFORM_MODE", "off")
	os.Setenv("CHIRP_SERVER_URL", "http://backend.local:8000")
	defer os.Unsetenv("CHIRP_SAMPLE_RATE")
	defer os.Unsetenv("CHIRP_BEAMFORM_MODE")
	defer os.Unsetenv("CHIRP_SERVER_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.SampleRate != 16000 {
		t.Errorf("Expected SampleRate 16000, got %d", cfg.SampleRate)
	}
	if cfg.BeamformMode != "off" {
		t.Errorf("Expected BeamformMode 'off', got '%s'", cfg.BeamformMode)
	}
	if cfg.ServerURL != "http://backend.local:8000" {
		t.Errorf("Expected ServerURL 'http://backend.local:8000', got '%s'", cfg.ServerURL)
	}
}

func TestLoad_RejectsUnknownSource(t *testing.T) {
	os.Setenv("CHIRP_SOURCE", "alsa")
	defer os.Unsetenv("CHIRP_SOURCE")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown source kind")
	}
}

func TestLoad_RejectsInvertedBand(t *testing.T) {
	os.Setenv("CHIRP_BIRD_FREQ_MAX_HZ", "500")
	defer os.Unsetenv("CHIRP_BIRD_FREQ_MAX_HZ")

	if _, err := Load(); err == nil {
		t.Error("Expected error when the band maximum is below the minimum")
	}
}

func TestLoad_RejectsBadBeamformMode(t *testing.T) {
	os.Setenv("CHIRP_BEAMFORM_MODE", "adaptive")
	defer os.Unsetenv("CHIRP_BEAMFORM_MODE")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown beamform mode")
	}
}

func TestLoad_DeviceIDOverride(t *testing.T) {
	os.Setenv("CHIRP_DEVICE_ID", "CHIRP-TEST01")
	defer os.Unsetenv("CHIRP_DEVICE_ID")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeviceID != "CHIRP-TEST01" {
		t.Errorf("Expected DeviceID 'CHIRP-TEST01', got '%s'", cfg.DeviceID)
	}
}

func TestLoad_DeviceIDDerived(t *testing.T) {
	os.Unsetenv("CHIRP_DEVICE_ID")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !strings.HasPrefix(cfg.DeviceID, "CHIRP-") {
		t.Errorf("Expected derived DeviceID with CHIRP- prefix, got '%s'", cfg.DeviceID)
	}
	if len(cfg.DeviceID) <= len("CHIRP-") {
		t.Errorf("Expected a non-empty identity suffix, got '%s'", cfg.DeviceID)
	}
}
