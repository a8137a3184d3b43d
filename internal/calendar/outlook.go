package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/beekhof/o365sync/internal/auth"
)

const (
	graphBaseURL    = "https://graph.microsoft.com/v1.0"
	graphTimeFormat = "2006-01-02T15:04:05"

	// graphPageSize is the $top value for list requests. Graph pages
	// /me/events at 10 items by default, far below a month of events.
	graphPageSize = 250

	// GoogleEventIDProperty is the Graph single-value extended property that
	// carries the originating Google event id on every synced event. It is
	// what lets repeat runs find their own events in the destination
	// calendar.
	GoogleEventIDProperty = "String {66f5a359-4659-4830-9070-f50a0a1d5e3f} Name GoogleEventID"
)

// DateTimeZone is the Graph representation of an event boundary.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// ItemBody is the Graph representation of an event description.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Location is the Graph representation of an event location.
type Location struct {
	DisplayName string `json:"displayName"`
}

// ExtendedProperty is a Graph single-value extended property.
type ExtendedProperty struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// OutlookEvent is the subset of a Microsoft Graph event used for
// reconciliation.
type OutlookEvent struct {
	ID                            string             `json:"id"`
	Subject                       string             `json:"subject"`
	Start                         DateTimeZone       `json:"start"`
	End                           DateTimeZone       `json:"end"`
	Body                          *ItemBody          `json:"body,omitempty"`
	Location                      *Location          `json:"location,omitempty"`
	SingleValueExtendedProperties []ExtendedProperty `json:"singleValueExtendedProperties,omitempty"`
}

// GoogleEventID returns the originating Google event id stored on this event,
// or "" if the event was not created by this tool.
func (e *OutlookEvent) GoogleEventID() string {
	for _, prop := range e.SingleValueExtendedProperties {
		if prop.ID == GoogleEventIDProperty {
			return prop.Value
		}
	}
	return ""
}

// EventPayload is the outbound body for create and update calls.
type EventPayload struct {
	Subject                       string             `json:"subject"`
	Start                         DateTimeZone       `json:"start"`
	End                           DateTimeZone       `json:"end"`
	Body                          *ItemBody          `json:"body,omitempty"`
	Location                      *Location          `json:"location,omitempty"`
	SingleValueExtendedProperties []ExtendedProperty `json:"singleValueExtendedProperties,omitempty"`
}

// OutlookClient talks to the Microsoft Graph events API on behalf of a
// signed-in Microsoft 365 user.
type OutlookClient struct {
	httpClient *http.Client
	baseURL    string
	session    *auth.Session
}

// NewOutlookClient creates a Graph client using the stored browser session:
// the bearer token authorizes requests arriving with the session cookies.
func NewOutlookClient(session *auth.Session) (*OutlookClient, error) {
	return newOutlookClient(session, graphBaseURL)
}

func newOutlookClient(session *auth.Session, baseURL string) (*OutlookClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Graph base URL: %w", err)
	}

	httpCookies := make([]*http.Cookie, 0, len(session.Cookies))
	for _, c := range session.Cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:  c.Name,
			Value: c.Value,
			Path:  c.Path,
		})
	}
	jar.SetCookies(base, httpCookies)

	return &OutlookClient{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		session: session,
	}, nil
}

// do issues a Graph request with the session's bearer token and checks the
// response status against want.
func (c *OutlookClient) do(ctx context.Context, op, method, endpoint string, body []byte, want int) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.session.BearerToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}

	if resp.StatusCode != want {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(string(snippet)),
		}
	}

	return resp, nil
}

// ListEvents retrieves all existing events whose start time falls within
// [timeMin, timeMax], using server-side filtering so only in-window events
// are transferred, and following @odata.nextLink until the listing is
// exhausted. Start and end times come back in UTC.
func (c *OutlookClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]OutlookEvent, error) {
	params := url.Values{}
	params.Set("$select", "id,subject,start,end,body,location")
	params.Set("$filter", fmt.Sprintf("start/dateTime ge '%s' and start/dateTime le '%s'",
		timeMin.UTC().Format(graphTimeFormat), timeMax.UTC().Format(graphTimeFormat)))
	params.Set("$expand", fmt.Sprintf("singleValueExtendedProperties($filter=id eq '%s')", GoogleEventIDProperty))
	params.Set("$top", fmt.Sprintf("%d", graphPageSize))

	var events []OutlookEvent
	endpoint := c.baseURL + "/me/events?" + params.Encode()
	for endpoint != "" {
		page, next, err := c.listEventsPage(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		events = append(events, page...)
		endpoint = next
	}

	return events, nil
}

func (c *OutlookClient) listEventsPage(ctx context.Context, endpoint string) ([]OutlookEvent, string, error) {
	resp, err := c.do(ctx, "outlook: list events", http.MethodGet, endpoint, nil, http.StatusOK)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var result struct {
		Value    []OutlookEvent `json:"value"`
		NextLink string         `json:"@odata.nextLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", &RemoteError{Op: "outlook: list events", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return result.Value, result.NextLink, nil
}

// CreateEvent creates a new event in the user's default calendar.
func (c *OutlookClient) CreateEvent(ctx context.Context, payload *EventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	resp, err := c.do(ctx, "outlook: create event", http.MethodPost, c.baseURL+"/me/events", body, http.StatusCreated)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UpdateEvent patches the event with the given id.
func (c *OutlookClient) UpdateEvent(ctx context.Context, eventID string, payload *EventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	resp, err := c.do(ctx, "outlook: update event", http.MethodPatch, c.baseURL+"/me/events/"+eventID, body, http.StatusOK)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
