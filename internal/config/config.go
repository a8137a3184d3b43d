package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrConfigFile indicates that the config file was present but could not be
// read or parsed. Callers treat this as non-fatal: the returned Config still
// carries usable defaults.
var ErrConfigFile = errors.New("config file unreadable")

// Config holds the settings for the o365sync tool.
type Config struct {
	GmailEmail            string `json:"gmail_email,omitempty"`
	O365Email             string `json:"o365_email,omitempty"`
	CredentialsDir        string `json:"credentials_dir,omitempty"`
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty"`
	SyncWindowDays        int    `json:"sync_window_days,omitempty"`
	LogPath               string `json:"log_path,omitempty"`
	LoginTimeoutSeconds   int    `json:"login_timeout_seconds,omitempty"`
}

// Overrides carries command-line flag values. Empty/zero fields mean
// "not set on the command line".
type Overrides struct {
	GmailEmail            string
	O365Email             string
	CredentialsDir        string
	GoogleCredentialsPath string
	SyncWindowDays        int
}

// GmailTokenPath returns the location of the stored Google OAuth token.
func (c *Config) GmailTokenPath() string {
	return filepath.Join(c.CredentialsDir, "gmail_token.json")
}

// O365SessionPath returns the location of the stored Microsoft 365 session.
func (c *Config) O365SessionPath() string {
	return filepath.Join(c.CredentialsDir, "o365_session.json")
}

// EnsureCredentialsDir creates the credentials directory if it is missing.
func (c *Config) EnsureCredentialsDir() error {
	if err := os.MkdirAll(c.CredentialsDir, 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	return nil
}

// loadConfigFile reads configuration from a JSON file.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
//
// A missing config file is not an error. An unreadable or corrupt config file
// is reported via an error wrapping ErrConfigFile, but the returned Config is
// still valid: the run proceeds on defaults while the caller logs the problem.
func LoadConfig(configFile string, overrides Overrides) (*Config, error) {
	var config Config
	var loadErr error

	// Step 1: Load from config file if present
	if configFile != "" {
		fileConfig, err := loadConfigFile(configFile)
		switch {
		case err == nil:
			config = *fileConfig
		case os.IsNotExist(err):
			// First run, no config file yet
		default:
			loadErr = fmt.Errorf("%w: %v", ErrConfigFile, err)
		}
	}

	// Step 2: Override with environment variables
	if gmailEmail := os.Getenv("GMAIL_EMAIL"); gmailEmail != "" {
		config.GmailEmail = gmailEmail
	}
	if o365Email := os.Getenv("O365_EMAIL"); o365Email != "" {
		config.O365Email = o365Email
	}
	if credentialsDir := os.Getenv("CREDENTIALS_DIR"); credentialsDir != "" {
		config.CredentialsDir = credentialsDir
	}
	if googleCredentialsPath := os.Getenv("GOOGLE_CREDENTIALS_PATH"); googleCredentialsPath != "" {
		config.GoogleCredentialsPath = googleCredentialsPath
	}
	if windowDays := os.Getenv("SYNC_WINDOW_DAYS"); windowDays != "" {
		if n, err := strconv.Atoi(windowDays); err == nil && n > 0 {
			config.SyncWindowDays = n
		}
	}
	if logPath := os.Getenv("LOG_PATH"); logPath != "" {
		config.LogPath = logPath
	}

	// Step 3: Override with command-line flags (highest priority)
	if overrides.GmailEmail != "" {
		config.GmailEmail = overrides.GmailEmail
	}
	if overrides.O365Email != "" {
		config.O365Email = overrides.O365Email
	}
	if overrides.CredentialsDir != "" {
		config.CredentialsDir = overrides.CredentialsDir
	}
	if overrides.GoogleCredentialsPath != "" {
		config.GoogleCredentialsPath = overrides.GoogleCredentialsPath
	}
	if overrides.SyncWindowDays > 0 {
		config.SyncWindowDays = overrides.SyncWindowDays
	}

	// Step 4: Apply defaults
	if config.CredentialsDir == "" {
		config.CredentialsDir = "credentials"
	}
	if config.GoogleCredentialsPath == "" {
		config.GoogleCredentialsPath = filepath.Join(config.CredentialsDir, "client_secrets.json")
	}
	if config.SyncWindowDays == 0 {
		config.SyncWindowDays = 30
	}
	if config.LogPath == "" {
		config.LogPath = "o365sync.log"
	}
	if config.LoginTimeoutSeconds == 0 {
		config.LoginTimeoutSeconds = 120
	}

	return &config, loadErr
}

// GoogleCredentials represents the structure of a Google OAuth client
// secrets JSON file as downloaded from Google Cloud Console.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads the Google OAuth client id and secret from a
// JSON client secrets file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read client secrets file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse client secrets file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in client secrets file (expected 'installed' or 'web' section)")
}
