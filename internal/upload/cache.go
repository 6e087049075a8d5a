package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/chirp-station/internal/observability"
)

// Cache spools clips on disk while the backend is unreachable. The
// file count is bounded: saving past the limit evicts the oldest clip,
// trading old audio for new.
type Cache struct {
	mu    sync.Mutex
	dir   string
	limit int
}

// NewCache returns a cache rooted at dir, creating it if needed.
func NewCache(dir string, limit int) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c := &Cache{dir: dir, limit: limit}

	pending, err := c.Pending()
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		log.Info().Int("files", len(pending)).Str("dir", dir).
			Msg("Cache holds clips from a previous run")
	}
	observability.SetCachePending(len(pending))

	return c, nil
}

// Save writes the clip's WAV into the cache and returns its path.
func (c *Cache) Save(clip Clip) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, clip.Filename)
	if err := os.WriteFile(path, clip.WAV, 0644); err != nil {
		return "", fmt.Errorf("failed to write cached clip: %w", err)
	}

	if err := c.evictOldest(); err != nil {
		return "", err
	}

	files, err := c.pendingLocked()
	if err == nil {
		observability.SetCachePending(len(files))
	}

	log.Info().
		Str("file", path).
		Int("size", len(clip.WAV)).
		Msg("Clip cached")

	return path, nil
}

// evictOldest removes files beyond the limit, oldest name first.
// Filenames embed a millisecond timestamp, so lexicographic order is
// chronological.
func (c *Cache) evictOldest() error {
	files, err := c.pendingLocked()
	if err != nil {
		return err
	}
	for len(files) > c.limit {
		victim := files[0]
		if err := os.Remove(victim); err != nil {
			return fmt.Errorf("failed to evict cached clip: %w", err)
		}
		log.Warn().Str("file", victim).Msg("Cache full, evicted oldest clip")
		files = files[1:]
	}
	return nil
}

// Pending returns the cached clip paths, oldest first.
func (c *Cache) Pending() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *Cache) pendingLocked() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.wav"))
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Flush uploads cached clips through the client, removing each on
// success. It stops at the first failure so the backlog drains in
// order once the backend returns. Returns how many clips left the
// cache.
func (c *Cache) Flush(ctx context.Context, client *Client) (int, error) {
	files, err := c.Pending()
	if err != nil {
		return 0, err
	}

	uploaded := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		wav, err := os.ReadFile(path)
		if err != nil {
			return uploaded, fmt.Errorf("failed to read cached clip: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return uploaded, fmt.Errorf("failed to stat cached clip: %w", err)
		}

		clip := Clip{
			ID:         uuid.New(),
			Filename:   filepath.Base(path),
			WAV:        wav,
			RecordedAt: info.ModTime(),
		}
		if err := client.Upload(ctx, clip); err != nil {
			return uploaded, err
		}

		if err := os.Remove(path); err != nil {
			return uploaded, fmt.Errorf("failed to remove flushed clip: %w", err)
		}
		uploaded++
	}

	if pending, err := c.Pending(); err == nil {
		observability.SetCachePending(len(pending))
	}
	return uploaded, nil
}
