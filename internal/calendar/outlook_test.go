package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/beekhof/o365sync/internal/auth"
)

func testSession() *auth.Session {
	return &auth.Session{
		Email:       "me@example.com",
		BearerToken: "test-bearer-token",
		ObtainedAt:  time.Now(),
	}
}

func TestOutlookClient_ListEvents(t *testing.T) {
	var gotRequest *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": [
			{"id": "o1", "subject": "Standup",
			 "start": {"dateTime": "2024-01-10T09:00:00.0000000", "timeZone": "UTC"},
			 "end": {"dateTime": "2024-01-10T09:30:00.0000000", "timeZone": "UTC"},
			 "singleValueExtendedProperties": [
				{"id": "` + GoogleEventIDProperty + `", "value": "g1"}
			 ]}
		]}`))
	}))
	defer server.Close()

	client, err := newOutlookClient(testSession(), server.URL)
	if err != nil {
		t.Fatalf("newOutlookClient() returned an error: %v", err)
	}

	timeMin := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	timeMax := timeMin.AddDate(0, 0, 30)

	events, err := client.ListEvents(context.Background(), timeMin, timeMax)
	if err != nil {
		t.Fatalf("ListEvents() returned an error: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Subject != "Standup" {
		t.Errorf("Expected subject 'Standup', got '%s'", events[0].Subject)
	}
	if events[0].GoogleEventID() != "g1" {
		t.Errorf("Expected Google event id 'g1', got '%s'", events[0].GoogleEventID())
	}

	// Verify the server-side filtering parameters.
	query := gotRequest.URL.Query()
	if query.Get("$select") != "id,subject,start,end,body,location" {
		t.Errorf("Unexpected $select: %s", query.Get("$select"))
	}
	filter := query.Get("$filter")
	if !strings.Contains(filter, "start/dateTime ge '2024-01-10T00:00:00'") {
		t.Errorf("Expected $filter lower bound on start time, got: %s", filter)
	}
	if !strings.Contains(filter, "start/dateTime le '2024-02-09T00:00:00'") {
		t.Errorf("Expected $filter upper bound on start time, got: %s", filter)
	}
	if !strings.Contains(query.Get("$expand"), "singleValueExtendedProperties") {
		t.Errorf("Expected $expand of the correlation property, got: %s", query.Get("$expand"))
	}
	if query.Get("$top") != "250" {
		t.Errorf("Expected $top=250, got: %s", query.Get("$top"))
	}
	if gotRequest.Header.Get("Authorization") != "Bearer test-bearer-token" {
		t.Errorf("Expected bearer token header, got: %s", gotRequest.Header.Get("Authorization"))
	}
}

func TestOutlookClient_ListEventsFollowsNextLink(t *testing.T) {
	var requests []string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/me/events", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("$skip") == "" {
			_, _ = w.Write([]byte(`{
				"value": [
					{"id": "o1", "subject": "Page one",
					 "start": {"dateTime": "2024-01-10T09:00:00.0000000", "timeZone": "UTC"},
					 "end": {"dateTime": "2024-01-10T09:30:00.0000000", "timeZone": "UTC"}}
				],
				"@odata.nextLink": "` + server.URL + `/me/events?$skip=1"
			}`))
			return
		}
		_, _ = w.Write([]byte(`{"value": [
			{"id": "o2", "subject": "Page two",
			 "start": {"dateTime": "2024-01-11T09:00:00.0000000", "timeZone": "UTC"},
			 "end": {"dateTime": "2024-01-11T09:30:00.0000000", "timeZone": "UTC"}}
		]}`))
	})

	client, err := newOutlookClient(testSession(), server.URL)
	if err != nil {
		t.Fatalf("newOutlookClient() returned an error: %v", err)
	}

	timeMin := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	events, err := client.ListEvents(context.Background(), timeMin, timeMin.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("ListEvents() returned an error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("Expected 2 events across both pages, got %d", len(events))
	}
	if events[0].ID != "o1" || events[1].ID != "o2" {
		t.Errorf("Expected events from both pages in order, got %s and %s", events[0].ID, events[1].ID)
	}
	if len(requests) != 2 {
		t.Errorf("Expected 2 requests, got %d: %v", len(requests), requests)
	}
}

func TestOutlookClient_ListEventsRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := newOutlookClient(testSession(), server.URL)
	if err != nil {
		t.Fatalf("newOutlookClient() returned an error: %v", err)
	}

	_, err = client.ListEvents(context.Background(), time.Now(), time.Now().AddDate(0, 0, 30))
	if err == nil {
		t.Fatal("Expected an error for a 429 response")
	}

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected a *RemoteError, got: %v", err)
	}
	if remoteErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", remoteErr.StatusCode)
	}
	if remoteErr.IsAuth() {
		t.Error("A 429 must not be classified as an auth failure")
	}
}

func TestOutlookClient_UnauthorizedIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := newOutlookClient(testSession(), server.URL)
	if err != nil {
		t.Fatalf("newOutlookClient() returned an error: %v", err)
	}

	_, err = client.ListEvents(context.Background(), time.Now(), time.Now().AddDate(0, 0, 30))

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected a *RemoteError, got: %v", err)
	}
	if !remoteErr.IsAuth() {
		t.Error("A 401 should be classified as an auth failure")
	}
}

func TestOutlookClient_CreateEvent(t *testing.T) {
	var gotMethod, gotPath string
	var gotPayload EventPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := newOutlookClient(testSession(), server.URL)
	if err != nil {
		t.Fatalf("newOutlookClient() returned an error: %v", err)
	}

	payload := &EventPayload{
		Subject: "Standup",
		Start:   DateTimeZone{DateTime: "2024-01-10T09:00:00Z", TimeZone: "UTC"},
		End:     DateTimeZone{DateTime: "2024-01-10T09:30:00Z", TimeZone: "UTC"},
		Body:    &ItemBody{ContentType: "text", Content: "Daily standup"},
		SingleValueExtendedProperties: []ExtendedProperty{
			{ID: GoogleEventIDProperty, Value: "g1"},
		},
	}

	if err := client.CreateEvent(context.Background(), payload); err != nil {
		t.Fatalf("CreateEvent() returned an error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("Expected POST, got %s", gotMethod)
	}
	if gotPath != "/me/events" {
		t.Errorf("Expected path /me/events, got %s", gotPath)
	}
	if gotPayload.Subject != "Standup" {
		t.Errorf("Expected subject 'Standup', got '%s'", gotPayload.Subject)
	}
	if len(gotPayload.SingleValueExtendedProperties) != 1 || gotPayload.SingleValueExtendedProperties[0].Value != "g1" {
		t.Errorf("Expected the correlation property to be sent, got: %+v", gotPayload.SingleValueExtendedProperties)
	}
}

func TestOutlookClient_UpdateEvent(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := newOutlookClient(testSession(), server.URL)
	if err != nil {
		t.Fatalf("newOutlookClient() returned an error: %v", err)
	}

	payload := &EventPayload{
		Subject: "Standup (remote)",
		Start:   DateTimeZone{DateTime: "2024-01-10T09:00:00Z", TimeZone: "UTC"},
		End:     DateTimeZone{DateTime: "2024-01-10T09:30:00Z", TimeZone: "UTC"},
	}

	if err := client.UpdateEvent(context.Background(), "o1", payload); err != nil {
		t.Fatalf("UpdateEvent() returned an error: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("Expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/me/events/o1" {
		t.Errorf("Expected path /me/events/o1, got %s", gotPath)
	}
}
