package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/renalabs/rena/pkg/scheduler"
)

// CalendarClient reads upcoming events from the calendar bridge service.
type CalendarClient struct {
	*Client
	baseURL string
	userID  string
}

// NewCalendarClient creates a calendar client scoped to one user.
func NewCalendarClient(base *Client, baseURL, userID string) *CalendarClient {
	return &CalendarClient{Client: base, baseURL: baseURL, userID: userID}
}

type calendarEvent struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	MeetingURL string    `json:"meeting_url"`
	Start      time.Time `json:"start"`
	AutoJoin   bool      `json:"auto_join"`
}

type eventsResponse struct {
	Events []calendarEvent `json:"events"`
}

// UpcomingEvents returns the user's events around the current time.
func (c *CalendarClient) UpcomingEvents(ctx context.Context) ([]scheduler.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/events?user="+url.QueryEscape(c.userID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "calendar")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("calendar: failed to decode events: %w", err)
	}

	events := make([]scheduler.Event, 0, len(out.Events))
	for _, ev := range out.Events {
		events = append(events, scheduler.Event{
			ID:         ev.ID,
			UserID:     c.userID,
			Title:      ev.Title,
			MeetingURL: ev.MeetingURL,
			Start:      ev.Start,
			AutoJoin:   ev.AutoJoin,
		})
	}
	return events, nil
}
