package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// ClientConfig configures the backend API client.
type ClientConfig struct {
	// BaseURL is the backend root, without a trailing slash.
	BaseURL  string
	DeviceID string

	// Timeout bounds each HTTP request. Zero means 30s.
	Timeout time.Duration
	// MaxAttempts bounds the upload retry loop. Zero means 3.
	MaxAttempts int
	// RetryDelay is the pause between upload attempts. Zero means 2s.
	RetryDelay time.Duration

	// Device metadata sent at registration.
	Version     string
	Model       string
	SampleRate  int
	Beamforming bool
}

// Client talks to the backend's device API: clip upload, registration
// and heartbeats. Methods are safe for concurrent use.
type Client struct {
	cfg        ClientConfig
	http       *http.Client
	registered atomic.Bool
}

// NewClient returns a client with defaults applied.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Registered reports whether a registration attempt has succeeded.
func (c *Client) Registered() bool {
	return c.registered.Load()
}

// Upload sends the clip as multipart form data, retrying a bounded
// number of times. The form carries device_id, timestamp and the WAV
// under "file", which is the contract the backend ingests.
func (c *Client) Upload(ctx context.Context, clip Clip) error {
	body, contentType, err := buildUploadForm(c.cfg.DeviceID, clip)
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		lastErr = c.postUpload(ctx, body, contentType)
		if lastErr == nil {
			log.Info().
				Str("filename", clip.Filename).
				Int("size", len(clip.WAV)).
				Int("attempt", attempt).
				Msg("Clip uploaded")
			return nil
		}

		log.Warn().
			Err(lastErr).
			Str("filename", clip.Filename).
			Int("attempt", attempt).
			Int("max_attempts", c.cfg.MaxAttempts).
			Msg("Upload attempt failed")

		if attempt < c.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}

	return fmt.Errorf("upload failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Client) postUpload(ctx context.Context, body []byte, contentType string) error {
	url := c.cfg.BaseURL + "/api/v1/audio/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend rejected upload: status %d: %s", resp.StatusCode, msg)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func buildUploadForm(deviceID string, clip Clip) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	if err := w.WriteField("device_id", deviceID); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("timestamp", clip.RecordedAt.UTC().Format(time.RFC3339)); err != nil {
		return nil, "", err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, clip.Filename))
	header.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(clip.WAV); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Register announces the device to the backend. Best-effort: callers
// log a failure and carry on, and a later Register may succeed.
func (c *Client) Register(ctx context.Context) error {
	payload := map[string]any{
		"device_id":        c.cfg.DeviceID,
		"firmware_version": c.cfg.Version,
		"model":            c.cfg.Model,
		"capabilities": map[string]any{
			"dual_mic":    true,
			"beamforming": c.cfg.Beamforming,
			"sample_rate": c.cfg.SampleRate,
		},
	}

	if err := c.postJSON(ctx, "/api/v1/devices/register", payload); err != nil {
		c.registered.Store(false)
		return fmt.Errorf("registration failed: %w", err)
	}

	c.registered.Store(true)
	log.Info().Str("device_id", c.cfg.DeviceID).Msg("Device registered")
	return nil
}

// Heartbeat posts the device status snapshot to the backend.
func (c *Client) Heartbeat(ctx context.Context, status any) error {
	payload := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    status,
	}

	path := "/api/v1/devices/" + c.cfg.DeviceID + "/heartbeat"
	if err := c.postJSON(ctx, path, payload); err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
