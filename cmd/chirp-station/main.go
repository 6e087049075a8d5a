package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/user/chirp-station/internal/audio"
	"github.com/user/chirp-station/internal/capture"
	"github.com/user/chirp-station/internal/config"
	"github.com/user/chirp-station/internal/dsp"
	"github.com/user/chirp-station/internal/telemetry"
	"github.com/user/chirp-station/internal/upload"
)

// Device metadata reported to the backend at registration.
const (
	version = "1.0.0"
	model   = "ReSpeaker-Lite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logging
	setupLogging(cfg.LogLevel, cfg.LogPretty)

	log.Info().
		Str("device_id", cfg.DeviceID).
		Int("sample_rate", cfg.SampleRate).
		Str("source", cfg.SourceKind).
		Str("beamform_mode", cfg.BeamformMode).
		Msg("Starting chirp station")

	mode, err := dsp.ParseMode(cfg.BeamformMode)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid beamform mode")
	}

	src, err := buildSource(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build audio source")
	}

	// Backend client is optional; without one every clip goes to the cache.
	var client *upload.Client
	if cfg.ServerURL != "" {
		client = upload.NewClient(upload.ClientConfig{
			BaseURL:     cfg.ServerURL,
			DeviceID:    cfg.DeviceID,
			Timeout:     time.Duration(cfg.UploadTimeout) * time.Second,
			MaxAttempts: cfg.UploadRetries,
			RetryDelay:  time.Duration(cfg.RetryDelayMS) * time.Millisecond,
			Version:     version,
			Model:       model,
			SampleRate:  cfg.SampleRate,
			Beamforming: mode != dsp.ModeOff,
		})
	} else {
		log.Warn().Msg("No server URL configured, running in archive-only mode")
	}

	cache, err := upload.NewCache(cfg.CacheDir, cfg.CacheLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open clip cache")
	}
	sink := upload.NewUploadSink(client, cache)

	// Telemetry is optional too, and never fatal: a station in the field
	// keeps recording even when the broker is down.
	var publisher *telemetry.Publisher
	if cfg.MQTTBroker != "" {
		publisher, err = telemetry.NewPublisher(telemetry.PublisherConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.DeviceID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.TopicPrefix,
			DeviceID:    cfg.DeviceID,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Telemetry disabled")
			publisher = nil
		}
	}

	engine, err := capture.NewEngine(capture.Config{
		SampleRate:        cfg.SampleRate,
		BlockSize:         cfg.BlockSize,
		CalibrationBlocks: cfg.CalibrationBlocks,
		ThresholdFactor:   cfg.ThresholdFactor,
		HighPassCutoffHz:  cfg.HighPassCutoffHz,
		MinFreqHz:         cfg.BirdFreqMinHz,
		MaxFreqHz:         cfg.BirdFreqMaxHz,
		MinSustain:        time.Duration(cfg.MinSustainMS) * time.Millisecond,
		MaxGap:            time.Duration(cfg.MaxGapMS) * time.Millisecond,
		MicSpacingMM:      cfg.MicSpacingMM,
		SpeedOfSound:      cfg.SpeedOfSound,
		Mode:              mode,
		MaxRecording:      time.Duration(cfg.MaxRecordSeconds) * time.Second,
		PostRoll:          time.Duration(cfg.PostRollMS) * time.Millisecond,
	}, src, sink, publisher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build capture engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register once up front so the first clip can upload immediately.
	// Failure is fine; the flush loop retries.
	if client != nil {
		regCtx, regCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := client.Register(regCtx); err != nil {
			log.Warn().Err(err).Msg("Device registration failed, will retry in background")
		}
		regCancel()
	}

	diag := startDiagServer(cfg.DiagAddr, engine)

	go publisher.Start(ctx)
	go sink.FlushLoop(ctx, time.Duration(cfg.FlushIntervalS)*time.Second, func() any {
		return engine.Status()
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- engine.Run(ctx)
	}()

	// Wait for shutdown signal or pipeline exit
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-c:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		select {
		case err := <-runErr:
			if err != nil {
				log.Error().Err(err).Msg("Capture engine failed during shutdown")
				exitCode = 1
			} else {
				log.Info().Msg("Capture engine stopped gracefully")
			}
		case <-time.After(10 * time.Second):
			log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
			exitCode = 1
		}
	case err := <-runErr:
		if err != nil {
			log.Error().Err(err).Msg("Capture engine failed")
			exitCode = 1
		} else {
			log.Info().Msg("Audio stream finished")
		}
		cancel()
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := diag.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("Diagnostics server shutdown failed")
	}
	shutCancel()

	publisher.Close()
	os.Exit(exitCode)
}

// buildSource picks the capture source. The mock simulates an
// intermittent singer for demo runs: silent through calibration plus a
// second, then half-second bursts every few seconds, arriving slightly
// earlier at the left mic so direction finding has something to find.
func buildSource(cfg *config.Config) (audio.Source, error) {
	if cfg.SourceKind == "file" {
		format, err := audio.ParseSampleFormat(cfg.SourceFormat)
		if err != nil {
			return nil, err
		}
		return audio.NewFileSource(cfg.SourcePath, format), nil
	}

	return audio.NewMockSource(cfg.SampleRate,
		audio.WithTone(3200, 9000),
		audio.WithNoise(120),
		audio.WithRightDelay(3),
		audio.WithQuietLead(cfg.CalibrationBlocks*cfg.BlockSize+cfg.SampleRate),
		audio.WithBurst(cfg.SampleRate/2, cfg.SampleRate*3),
		audio.WithRealtimePacing(),
	), nil
}

// startDiagServer serves Prometheus metrics, a health probe, the
// pipeline status snapshot and a recalibration trigger.
func startDiagServer(addr string, engine *capture.Engine) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(engine.Status()); err != nil {
			log.Error().Err(err).Msg("Failed to encode status")
		}
	})
	mux.HandleFunc("/recalibrate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		engine.Recalibrate()
		w.WriteHeader(http.StatusAccepted)
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Diagnostics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Diagnostics server failed")
		}
	}()

	return server
}

func setupLogging(level string, pretty bool) {
	// Setup zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	// Set log level
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("level", level).Msg("Logging configured")
}
