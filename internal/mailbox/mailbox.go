// Package mailbox is a client for the transient-inbox API (MailSlurp
// compatible) used to receive invitation and password-reset emails.
package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/logutil"
	"github.com/kuitang/plextera-e2e/internal/obs"
)

// APIKeyHeader authenticates every call.
const APIKeyHeader = "x-api-key"

const (
	maxLoggedBody = 2048
	previewChars  = 160
)

// ErrNoEmail is wrapped by the timeout error of WaitForLatestEmail.
var ErrNoEmail = errors.New("no email arrived before the timeout")

// Inbox is a disposable inbox.
type Inbox struct {
	ID           string `json:"id"`
	EmailAddress string `json:"emailAddress"`
}

// Email is a received message.
type Email struct {
	ID        string    `json:"id"`
	InboxID   string    `json:"inboxId"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	To        []string  `json:"to"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client talks to the inbox API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	preview    *bluemonday.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the API at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		preview:    bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateInbox creates a new inbox with default settings.
func (c *Client) CreateInbox(ctx context.Context) (Inbox, error) {
	var inbox Inbox
	if err := c.do(ctx, http.MethodPost, "/inboxes/withDefaults", nil, &inbox); err != nil {
		return Inbox{}, err
	}
	if inbox.ID == "" || inbox.EmailAddress == "" {
		return Inbox{}, errs.New(errs.Internal, "mailbox: create inbox returned no id or address")
	}
	obs.From(ctx).Info("inbox_created", "inbox_id", inbox.ID, "address", inbox.EmailAddress)
	return inbox, nil
}

// WaitForLatestEmail blocks until an unread email is in the inbox or the
// timeout elapses. A timeout is returned as an errs.Timeout error wrapping
// ErrNoEmail, so callers can tell it apart from transport failures.
func (c *Client) WaitForLatestEmail(ctx context.Context, inboxID string, timeout time.Duration) (*Email, error) {
	if inboxID == "" {
		return nil, errs.New(errs.InvalidArgument, "mailbox: inbox id is required")
	}
	query := url.Values{}
	query.Set("inboxId", inboxID)
	query.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	query.Set("unreadOnly", "true")

	// The server enforces the wait; the local deadline only guards a hung connection.
	waitCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var email Email
	err := c.do(waitCtx, http.MethodGet, "/waitForLatestEmail?"+query.Encode(), nil, &email)
	switch {
	case err == nil:
	case errs.Is(err, errs.Timeout), errors.Is(err, context.DeadlineExceeded):
		return nil, errs.Wrap(errs.Timeout, fmt.Sprintf("mailbox: inbox %s after %s", inboxID, timeout), ErrNoEmail)
	default:
		return nil, err
	}

	obs.From(ctx).Info("email_received",
		"inbox_id", inboxID,
		"email_id", email.ID,
		"subject", email.Subject,
		"preview", c.Preview(email.Body),
	)
	return &email, nil
}

// EmptyInbox deletes every email in the inbox.
func (c *Client) EmptyInbox(ctx context.Context, inboxID string) error {
	query := url.Values{}
	query.Set("inboxId", inboxID)
	return c.do(ctx, http.MethodDelete, "/emptyInbox?"+query.Encode(), nil, nil)
}

// DeleteInbox deletes the inbox and its emails.
func (c *Client) DeleteInbox(ctx context.Context, inboxID string) error {
	return c.do(ctx, http.MethodDelete, "/inboxes/"+url.PathEscape(inboxID), nil, nil)
}

// Drain reads and discards any unread email, then empties the inbox, so a
// later wait only sees mail sent after this call.
func (c *Client) Drain(ctx context.Context, inboxID string) error {
	if _, err := c.WaitForLatestEmail(ctx, inboxID, time.Second); err != nil && !errors.Is(err, ErrNoEmail) {
		return err
	}
	return c.EmptyInbox(ctx, inboxID)
}

// Preview returns a short plain-text rendering of an HTML body for logs.
func (c *Client) Preview(body string) string {
	return logutil.TruncateForLog(c.preview.Sanitize(body), previewChars)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, "mailbox: encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "mailbox: build request", err)
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(obs.RunIDHeader, obs.RunID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := obs.From(ctx).With("pkg", "mailbox")
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.Wrap(errs.Timeout, fmt.Sprintf("mailbox: %s %s", method, path), err)
		}
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("mailbox: %s %s", method, path), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "mailbox: read response", err)
	}
	log.Debug("mail_api_call",
		"method", method,
		"url", logutil.RedactURL(req.URL),
		"status", resp.StatusCode,
		"dur_ms", time.Since(start).Milliseconds(),
		"req_headers", logutil.FormatHeadersForLog(req.Header),
		"req_body", logutil.FormatBodyForLog("application/json", payload, maxLoggedBody),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.FromStatus(resp.StatusCode, fmt.Sprintf("mailbox: %s %s returned %d: %s",
			method, path, resp.StatusCode, logutil.TruncateForLog(string(respBody), 200)))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Wrap(errs.Internal, fmt.Sprintf("mailbox: decode %s response", path), err)
	}
	return nil
}
