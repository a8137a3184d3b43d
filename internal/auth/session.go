package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// ErrNoSession indicates that no Microsoft 365 session has been stored yet.
// The user has to run the interactive login first.
var ErrNoSession = errors.New("no stored Microsoft 365 session, run 'o365sync login' first")

// Cookie is a browser cookie captured during the interactive login.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
}

// Session is the destination-calendar credential: the bearer token used for
// Microsoft Graph calls plus the session cookies captured from the signed-in
// browser. It is read-only after acquisition within a single run.
type Session struct {
	Email       string    `json:"email"`
	BearerToken string    `json:"bearer_token"`
	Cookies     []Cookie  `json:"cookies"`
	ObtainedAt  time.Time `json:"obtained_at"`
}

// SessionStore persists a Session as a JSON file under the credentials
// directory.
type SessionStore struct {
	Path string
}

// NewSessionStore creates a SessionStore backed by the given path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{Path: path}
}

// Save writes the session to disk with owner-only permissions.
func (store *SessionStore) Save(session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(store.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load reads the stored session. Returns ErrNoSession if none exists.
func (store *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(store.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}
