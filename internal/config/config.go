// Package config loads the suite configuration from environment variables.
//
// With PLEXTERA_STUDIO_URL unset the suite is hermetic: the browser tests
// start the local studio double and point every URL at it. Setting the
// variable targets a real deployment (staging), which then also requires
// the mail API key.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultCookieName    = "access-token-plextera"
	DefaultMailAPIURL    = "https://api.mailslurp.com"
	DefaultDataDir       = "data"
	DefaultLedgerPath    = "plextera-ledger.db"
	DefaultActionTimeout = 10 * time.Second
	DefaultInboxTimeout  = 8 * time.Second
)

// Config holds the suite configuration.
type Config struct {
	// Application under test. Empty StudioURL means hermetic mode.
	StudioURL       string
	AccountAPIURL   string // auth, users, organizations
	DocumentsAPIURL string // hubs, web automations

	// Transient inbox API (MailSlurp compatible)
	MailAPIURL string
	MailAPIKey string

	CookieName string
	DataDir    string
	LedgerPath string

	ActionTimeout time.Duration // response and locator waits
	InboxTimeout  time.Duration // server-side wait for the latest email
	Headless      bool

	// Client-side pacing of direct API calls
	APIRPS   float64
	APIBurst int

	Artifacts ArtifactsConfig
}

// ArtifactsConfig selects the S3-compatible bucket for failure screenshots.
// An empty Bucket disables uploads.
type ArtifactsConfig struct {
	Bucket          string // ARTIFACTS_BUCKET
	Endpoint        string // AWS_ENDPOINT_URL_S3
	Region          string // AWS_REGION
	AccessKeyID     string // AWS_ACCESS_KEY_ID
	SecretAccessKey string // AWS_SECRET_ACCESS_KEY
	UsePathStyle    bool   // ARTIFACTS_PATH_STYLE
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StudioURL = trimURL(os.Getenv("PLEXTERA_STUDIO_URL"))
	cfg.AccountAPIURL = trimURL(os.Getenv("PLEXTERA_ACCOUNT_API_URL"))
	if cfg.AccountAPIURL == "" {
		cfg.AccountAPIURL = cfg.StudioURL
	}
	cfg.DocumentsAPIURL = trimURL(os.Getenv("PLEXTERA_DOCUMENTS_API_URL"))
	if cfg.DocumentsAPIURL == "" {
		cfg.DocumentsAPIURL = cfg.AccountAPIURL
	}

	cfg.MailAPIURL = trimURL(getEnvOrDefault("MAIL_API_URL", DefaultMailAPIURL))
	cfg.MailAPIKey = strings.TrimSpace(os.Getenv("MAIL_API_KEY"))

	cfg.CookieName = getEnvOrDefault("PLEXTERA_COOKIE_NAME", DefaultCookieName)
	cfg.DataDir = getEnvOrDefault("PLEXTERA_DATA_DIR", DefaultDataDir)
	cfg.LedgerPath = getEnvOrDefault("PLEXTERA_LEDGER_PATH", DefaultLedgerPath)

	cfg.ActionTimeout = parseDurationOrDefault("PLEXTERA_ACTION_TIMEOUT", DefaultActionTimeout)
	cfg.InboxTimeout = parseDurationOrDefault("PLEXTERA_INBOX_TIMEOUT", DefaultInboxTimeout)
	cfg.Headless = os.Getenv("HEADLESS") != "false"

	cfg.APIRPS = parseFloat64OrDefault("PLEXTERA_API_RPS", 5)
	cfg.APIBurst = parseIntOrDefault("PLEXTERA_API_BURST", 10)

	cfg.Artifacts = ArtifactsConfig{
		Bucket:          strings.TrimSpace(os.Getenv("ARTIFACTS_BUCKET")),
		Endpoint:        strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3")),
		Region:          getEnvOrDefault("AWS_REGION", "us-east-1"),
		AccessKeyID:     strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")),
		UsePathStyle:    os.Getenv("ARTIFACTS_PATH_STYLE") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Hermetic reports whether the suite should run against the local double.
func (c *Config) Hermetic() bool {
	return c.StudioURL == ""
}

// WithStudio returns a copy whose studio, API and mail URLs all point at
// baseURL. Used to aim a hermetic run at the local double.
func (c *Config) WithStudio(baseURL, mailAPIKey string) *Config {
	clone := *c
	baseURL = trimURL(baseURL)
	clone.StudioURL = baseURL
	clone.AccountAPIURL = baseURL
	clone.DocumentsAPIURL = baseURL
	clone.MailAPIURL = baseURL
	clone.MailAPIKey = mailAPIKey
	return &clone
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if !c.Hermetic() {
		for _, field := range []struct{ name, value string }{
			{"PLEXTERA_STUDIO_URL", c.StudioURL},
			{"PLEXTERA_ACCOUNT_API_URL", c.AccountAPIURL},
			{"PLEXTERA_DOCUMENTS_API_URL", c.DocumentsAPIURL},
			{"MAIL_API_URL", c.MailAPIURL},
		} {
			if msg := checkURL(field.name, field.value); msg != "" {
				errs = append(errs, msg)
			}
		}
		if c.MailAPIKey == "" {
			errs = append(errs, "MAIL_API_KEY is required when PLEXTERA_STUDIO_URL is set")
		}
	}

	if c.CookieName == "" {
		errs = append(errs, "PLEXTERA_COOKIE_NAME must not be empty")
	}
	if c.ActionTimeout <= 0 {
		errs = append(errs, "PLEXTERA_ACTION_TIMEOUT must be positive")
	}
	if c.InboxTimeout <= 0 {
		errs = append(errs, "PLEXTERA_INBOX_TIMEOUT must be positive")
	}
	if c.APIRPS <= 0 {
		errs = append(errs, "PLEXTERA_API_RPS must be positive")
	}
	if c.APIBurst <= 0 {
		errs = append(errs, "PLEXTERA_API_BURST must be positive")
	}
	if c.Artifacts.Bucket != "" && c.Artifacts.Region == "" {
		errs = append(errs, "AWS_REGION is required when ARTIFACTS_BUCKET is set")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// CookieDomain returns the host the session cookie is scoped to.
func (c *Config) CookieDomain() string {
	u, err := url.Parse(c.StudioURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// SecureCookies reports whether the studio is served over https.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.StudioURL, "https://")
}

// ActionTimeoutMS is ActionTimeout in the float milliseconds playwright-go expects.
func (c *Config) ActionTimeoutMS() float64 {
	return float64(c.ActionTimeout.Milliseconds())
}

func checkURL(name, value string) string {
	if value == "" {
		return name + " is required"
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return name + " must be an absolute http(s) URL"
	}
	return ""
}

func trimURL(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
