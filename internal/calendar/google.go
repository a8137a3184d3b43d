package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// maxSourceEvents caps a single source read.
const maxSourceEvents = 250

// GoogleClient is a read-only wrapper around the Google Calendar API service.
type GoogleClient struct {
	service *calendar.Service
}

// NewGoogleClient creates a new Google Calendar API client using the provided
// authenticated HTTP client. Extra options are mainly useful for tests.
func NewGoogleClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*GoogleClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &GoogleClient{service: service}, nil
}

// Events retrieves the events of a calendar whose start time falls within
// [timeMin, timeMax], ordered by start time ascending and capped at
// maxSourceEvents. Recurring events are expanded to single occurrences.
func (c *GoogleClient) Events(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	eventsList, err := c.service.Events.List(calendarID).
		Context(ctx).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(maxSourceEvents).
		SingleEvents(true). // Expand recurring events
		OrderBy("startTime").
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &RemoteError{Op: "google: list events", StatusCode: apiErr.Code, Err: err}
		}
		return nil, &RemoteError{Op: "google: list events", Err: err}
	}

	return eventsList.Items, nil
}
