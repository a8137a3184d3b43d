package auth

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestGetAuthenticatedClient_TokenExists(t *testing.T) {
	ctx := context.Background()

	// A valid, non-expired token is already stored: no interactive flow.
	store := &mockTokenStore{
		token: &oauth2.Token{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			Expiry:       time.Now().Add(1 * time.Hour),
			TokenType:    "Bearer",
		},
	}

	oauthConfig := &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.readonly"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	client, err := GetAuthenticatedClient(ctx, oauthConfig, store)
	if err != nil {
		t.Fatalf("GetAuthenticatedClient() returned an error: %v", err)
	}
	if client == nil {
		t.Fatal("GetAuthenticatedClient() returned nil client")
	}
}

func TestStartLocalServer_DeliversCode(t *testing.T) {
	redirectURL, codeChan, errorChan, err := startLocalServer()
	if err != nil {
		t.Fatalf("startLocalServer() returned an error: %v", err)
	}

	resp, err := http.Get(redirectURL + "/?code=test-auth-code")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	resp.Body.Close()

	select {
	case code := <-codeChan:
		if code != "test-auth-code" {
			t.Errorf("Expected code 'test-auth-code', got '%s'", code)
		}
	case err := <-errorChan:
		t.Fatalf("Unexpected error from callback: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the authorization code")
	}
}

func TestStartLocalServer_DeliversError(t *testing.T) {
	redirectURL, codeChan, errorChan, err := startLocalServer()
	if err != nil {
		t.Fatalf("startLocalServer() returned an error: %v", err)
	}

	resp, err := http.Get(redirectURL + "/?error=access_denied")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	resp.Body.Close()

	select {
	case code := <-codeChan:
		t.Fatalf("Expected an error, got code '%s'", code)
	case err := <-errorChan:
		if !strings.Contains(err.Error(), "access_denied") {
			t.Errorf("Expected the denial reason in the error, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the authorization error")
	}
}
