// Package gcal submits meeting events to Google Calendar.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bassamadnan/mailsched/meeting"
)

const DefaultCalendarID = "primary"

// Scopes are the Calendar OAuth scopes the client needs.
var Scopes = []string{calendar.CalendarScope}

type Client struct {
	srv        *calendar.Service
	calendarID string
}

// NewClient creates a Calendar client writing to calendarID ("primary" when empty).
func NewClient(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Client, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	return &Client{srv: srv, calendarID: calendarID}, nil
}

// CreateEvent inserts ev and returns the event's HTML link.
func (c *Client) CreateEvent(ctx context.Context, ev *meeting.Event) (string, error) {
	created, err := c.srv.Events.Insert(c.calendarID, toAPIEvent(ev)).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return "", meeting.ErrEventExists
		}
		return "", fmt.Errorf("creating calendar event: %w", err)
	}
	log.Info().Str("link", created.HtmlLink).Msg("Calendar: event created")
	return created.HtmlLink, nil
}

func toAPIEvent(ev *meeting.Event) *calendar.Event {
	out := &calendar.Event{
		Id:      ev.ID,
		Summary: ev.Summary,
		Start:   &calendar.EventDateTime{DateTime: ev.Start.String(), TimeZone: ev.Start.TimeZone},
		End:     &calendar.EventDateTime{DateTime: ev.End.String(), TimeZone: ev.End.TimeZone},
	}
	if ev.Description != nil {
		out.Description = *ev.Description
	}
	if ev.Location != nil {
		out.Location = *ev.Location
	}
	for _, email := range ev.Attendees {
		out.Attendees = append(out.Attendees, &calendar.EventAttendee{Email: email})
	}
	return out
}
