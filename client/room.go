package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/renalabs/rena/pkg/bot"
)

// RoomDriverClient drives the headless browser service that actually sits in
// the meeting. One driver session exists per client; the driver multiplexes
// by session token internally.
type RoomDriverClient struct {
	*Client
	baseURL string
	botName string
}

// NewRoomDriverClient creates a room driver client for the given endpoint.
func NewRoomDriverClient(base *Client, baseURL, botName string) *RoomDriverClient {
	return &RoomDriverClient{Client: base, baseURL: baseURL, botName: botName}
}

type joinRequest struct {
	URL     string `json:"url"`
	BotName string `json:"bot_name"`
}

type joinResponse struct {
	Status string `json:"status"`
}

type observeResponse struct {
	Admitted     bool `json:"admitted"`
	Participants int  `json:"participants"`
	Ended        bool `json:"ended"`
}

// Join navigates the driver into the meeting and reports how far it got.
func (c *RoomDriverClient) Join(ctx context.Context, url string) (bot.JoinResult, error) {
	body, err := json.Marshal(joinRequest{URL: url, BotName: c.botName})
	if err != nil {
		return bot.JoinResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/join", bytes.NewReader(body))
	if err != nil {
		return bot.JoinResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "room_driver")
	if err != nil {
		return bot.JoinResult{}, err
	}
	defer resp.Body.Close()

	var out joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return bot.JoinResult{}, fmt.Errorf("room_driver: failed to decode join response: %w", err)
	}

	switch out.Status {
	case string(bot.JoinAdmitted), string(bot.JoinWaiting), string(bot.JoinRejected):
		return bot.JoinResult{Status: bot.JoinStatus(out.Status)}, nil
	default:
		return bot.JoinResult{}, fmt.Errorf("room_driver: unknown join status %q", out.Status)
	}
}

// ObserveAdmitted reports whether the driver has been let in from the
// waiting room.
func (c *RoomDriverClient) ObserveAdmitted(ctx context.Context) (bool, error) {
	obs, err := c.observe(ctx)
	if err != nil {
		return false, err
	}
	return obs.Admitted, nil
}

// ObserveParticipantCount returns the number of participants other than the
// bot itself.
func (c *RoomDriverClient) ObserveParticipantCount(ctx context.Context) (int, error) {
	obs, err := c.observe(ctx)
	if err != nil {
		return 0, err
	}
	return obs.Participants, nil
}

// ObserveCallEnded reports whether the meeting has ended under the bot.
func (c *RoomDriverClient) ObserveCallEnded(ctx context.Context) (bool, error) {
	obs, err := c.observe(ctx)
	if err != nil {
		return false, err
	}
	return obs.Ended, nil
}

// Leave departs the meeting and tears down the driver session.
func (c *RoomDriverClient) Leave(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/leave", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, "room_driver")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *RoomDriverClient) observe(ctx context.Context) (*observeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/observe", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "room_driver")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out observeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("room_driver: failed to decode observation: %w", err)
	}
	return &out, nil
}
