package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SynthesisClient calls the structured-report synthesis service, a JSON-mode
// language model endpoint.
type SynthesisClient struct {
	*Client
	baseURL string
}

// NewSynthesisClient creates a synthesis client for the given endpoint.
func NewSynthesisClient(base *Client, baseURL string) *SynthesisClient {
	return &SynthesisClient{Client: base, baseURL: baseURL}
}

type synthesizeRequest struct {
	Model      string `json:"model"`
	Transcript string `json:"transcript"`
}

// Synthesize sends the full speaker-attributed transcript and returns the raw
// JSON document the model produced. Schema validation is the orchestrator's
// job, not the transport's.
func (c *SynthesisClient) Synthesize(ctx context.Context, transcript, model string) (json.RawMessage, error) {
	body, err := json.Marshal(synthesizeRequest{Model: model, Transcript: transcript})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "synthesis")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("synthesis: failed to decode response: %w", err)
	}
	return out, nil
}

type answerRequest struct {
	Model    string   `json:"model"`
	Question string   `json:"question"`
	Contexts []string `json:"contexts"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// Answer asks the model a question grounded in the given context passages.
// Used by the knowledge base, never for report synthesis.
func (c *SynthesisClient) Answer(ctx context.Context, question string, contexts []string, model string) (string, error) {
	body, err := json.Marshal(answerRequest{Model: model, Question: question, Contexts: contexts})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/answer", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "synthesis")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("synthesis: failed to decode answer: %w", err)
	}
	return out.Answer, nil
}
