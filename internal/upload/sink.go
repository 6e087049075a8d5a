package upload

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/user/chirp-station/internal/observability"
)

// UploadSink is the production Sink: upload when a backend is
// configured, spool to the cache when the upload fails, archive-only
// when no backend exists at all.
type UploadSink struct {
	client *Client // nil means archive-only
	cache  *Cache
}

var _ Sink = (*UploadSink)(nil)

// NewUploadSink combines a client and a cache. client may be nil, in
// which case every clip is archived locally.
func NewUploadSink(client *Client, cache *Cache) *UploadSink {
	return &UploadSink{client: client, cache: cache}
}

// Submit delivers one clip. The clip always lands somewhere: the
// backend, or the cache when the backend is absent or failing. The
// returned error reports upload failure even when the clip was safely
// cached, so callers can count delivery problems.
func (s *UploadSink) Submit(ctx context.Context, clip Clip) error {
	if s.client == nil {
		if _, err := s.cache.Save(clip); err != nil {
			observability.RecordClip("lost")
			return err
		}
		observability.RecordClip("archived")
		return nil
	}

	if err := s.client.Upload(ctx, clip); err != nil {
		if _, cacheErr := s.cache.Save(clip); cacheErr != nil {
			observability.RecordClip("lost")
			log.Error().Err(cacheErr).Str("filename", clip.Filename).
				Msg("Clip lost: upload and cache both failed")
			return cacheErr
		}
		observability.RecordClip("cached")
		return err
	}

	observability.RecordClip("uploaded")
	return nil
}

// FlushLoop drains the cache and sends heartbeats on a fixed interval
// until the context ends. statusFn supplies the heartbeat payload; nil
// disables heartbeats. No-op in archive-only mode.
func (s *UploadSink) FlushLoop(ctx context.Context, interval time.Duration, statusFn func() any) {
	if s.client == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.client.Registered() {
			if err := s.client.Register(ctx); err != nil {
				log.Warn().Err(err).Msg("Registration retry failed")
			}
		}

		n, err := s.cache.Flush(ctx, s.client)
		if n > 0 {
			log.Info().Int("uploaded", n).Msg("Flushed cached clips")
		}
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Cache flush stopped")
		}

		if statusFn != nil && s.client.Registered() {
			if err := s.client.Heartbeat(ctx, statusFn()); err != nil {
				log.Warn().Err(err).Msg("Heartbeat failed")
			}
		}
	}
}
