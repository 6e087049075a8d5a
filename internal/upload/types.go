// Package upload hands completed clips to the backend: direct HTTP
// upload when a backend is configured, with a local spool cache that
// holds clips through offline periods and drains on a timer.
package upload

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Clip is a finished recording ready to leave the device.
type Clip struct {
	ID         uuid.UUID
	Filename   string
	WAV        []byte
	RecordedAt time.Time

	// Detection context, carried for telemetry and logs.
	DurationSeconds float64
	Peak            int
	Azimuth         float64
	Confidence      float64
	Sector          string
}

// Sink receives each completed clip exactly once. The capture engine
// never retries a Submit; whatever durability the clip needs happens
// behind this interface.
type Sink interface {
	Submit(ctx context.Context, clip Clip) error
}
