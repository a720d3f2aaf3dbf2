// Package client provides HTTP clients for the external collaborators of the
// meeting pipeline: the transcription, diarization, synthesis, and embedding
// services. Each client maps transport failures onto the typed errors in
// pkg/errors so callers can apply retry and fallback policy uniformly.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
)

// Config holds shared HTTP client settings.
type Config struct {
	// Timeout bounds each request end to end.
	Timeout time.Duration

	// APIKey is sent as a bearer token when set.
	APIKey string
}

// Client is the shared HTTP transport for service clients.
type Client struct {
	httpClient *http.Client
	apiKey     string
	logger     logging.Logger
}

// New creates a Client with the given configuration.
func New(cfg Config, logger logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.MustGlobal()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		logger:     logger.With(logging.F("component", "service_client")),
	}
}

// do executes the request, classifies the outcome, and returns the response
// body for 200s. The caller owns closing the body.
func (c *Client) do(req *http.Request, service string) (*http.Response, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%s: %w", service, renaerrors.ErrTimeout)
		}
		return nil, fmt.Errorf("%s: %w: %v", service, renaerrors.ErrServiceUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		drain(resp)
		return nil, fmt.Errorf("%s: %w", service, renaerrors.ErrQuotaExceeded)
	case resp.StatusCode >= 500:
		body := drain(resp)
		return nil, fmt.Errorf("%s: %w: %s: %s", service, renaerrors.ErrServiceUnavailable, resp.Status, body)
	default:
		body := drain(resp)
		return nil, fmt.Errorf("%s: unexpected status %s: %s", service, resp.Status, body)
	}
}

// drain reads and closes a response body for error reporting.
func drain(resp *http.Response) string {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(body)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
