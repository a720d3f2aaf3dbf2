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

	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
)

// TranscriptionClient calls the hosted transcription service. The service
// accepts a multipart audio upload plus a model hint and returns timestamped
// segments.
type TranscriptionClient struct {
	*Client
	baseURL string
}

// NewTranscriptionClient creates a transcription client for the given endpoint.
func NewTranscriptionClient(base *Client, baseURL string) *TranscriptionClient {
	return &TranscriptionClient{Client: base, baseURL: baseURL}
}

type transcribeResponse struct {
	Segments []meeting.TranscriptSegment `json:"segments"`
	Language string                      `json:"language"`
}

// Transcribe uploads the audio artifact and returns transcript segments in
// chronological order. The modelHint selects the model the service runs.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audioPath, modelHint string) ([]meeting.TranscriptSegment, error) {
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
	if err := w.WriteField("model", modelHint); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.logger.Debug("Uploading audio for transcription",
		logging.F("audio_path", audioPath),
		logging.F("model", modelHint))

	resp, err := c.do(req, "transcription")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("transcription: failed to decode response: %w", err)
	}
	return out.Segments, nil
}
