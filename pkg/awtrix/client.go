package awtrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 500 * time.Millisecond
)

var (
	ErrBadStatus      = errors.New("awtrix: unexpected HTTP status")
	ErrInvalidPayload = errors.New("awtrix: response body is not a JSON array")
)

// Frame is a screen snapshot, one color value per pixel.
type Frame []int

// ScreenReader reads the current screen contents of an AWTRIX device.
type ScreenReader interface {
	// GetScreen fetches the current frame, retrying transient failures
	// with exponential backoff.
	GetScreen(ctx context.Context) (Frame, error)
	// Probe issues a single liveness check without retries.
	Probe(ctx context.Context) error
}

type HTTPScreenReader struct {
	url          string
	client       *http.Client
	maxAttempts  uint
	retryBackoff time.Duration
	logger       *zap.Logger
}

func CreateHTTPScreenReader(url string, timeout time.Duration, maxAttempts uint,
	retryBackoff time.Duration, logger *zap.Logger) (*HTTPScreenReader, error) {
	if url == "" {
		return nil, errors.New("awtrix: url cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	if retryBackoff <= 0 {
		retryBackoff = DefaultRetryBackoff
	}
	return &HTTPScreenReader{
		url:          url,
		client:       &http.Client{Timeout: timeout},
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		logger:       logger,
	}, nil
}

func (r *HTTPScreenReader) GetScreen(ctx context.Context) (Frame, error) {
	var lastErr error
	delay := r.retryBackoff
	for attempt := uint(1); attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		frame, err := r.fetch(ctx)
		if err == nil {
			return frame, nil
		}
		lastErr = err
		r.logger.Warn("awtrix: screen fetch failed",
			zap.Uint("attempt", attempt), zap.Error(err))
	}
	return nil, lastErr
}

func (r *HTTPScreenReader) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	// only check the payload shape, the poller fetches the full frame
	tok, err := json.NewDecoder(resp.Body).Token()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return ErrInvalidPayload
	}
	return nil
}

func (r *HTTPScreenReader) fetch(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	var frame Frame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}
	if frame == nil {
		// "null" decodes without error but is not a pixel array
		return nil, ErrInvalidPayload
	}
	return frame, nil
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, body)
}
