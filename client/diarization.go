package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/renalabs/rena/pkg/meeting"
)

// DiarizationClient calls the local speaker-diarization service.
type DiarizationClient struct {
	*Client
	baseURL string
}

// NewDiarizationClient creates a diarization client for the given endpoint.
func NewDiarizationClient(base *Client, baseURL string) *DiarizationClient {
	return &DiarizationClient{Client: base, baseURL: baseURL}
}

type diarizeResponse struct {
	Spans []meeting.DiarizationSpan `json:"spans"`
}

// Diarize uploads the audio artifact and returns speaker-attributed time spans.
func (c *DiarizationClient) Diarize(ctx context.Context, audioPath string) ([]meeting.DiarizationSpan, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio artifact: %w", err)
	}
	defer fd.Close()
	if _, err := io.Copy(fw, fd); err != nil {
		return nil, fmt.Errorf("failed to read audio artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/diarize", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.do(req, "diarization")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out diarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("diarization: failed to decode response: %w", err)
	}
	return out.Spans, nil
}
