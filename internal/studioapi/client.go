// Package studioapi is a small client for the Plextera backend endpoints the
// suite calls outside the browser: token exchange, fixture setup and
// resource cleanup.
package studioapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/logutil"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/ratelimit"
)

const maxLoggedBody = 2048

// Endpoint paths.
const (
	LoginPath             = "/api/auth/login"
	MePath                = "/api/account-service/users/me"
	CreateInviteOwnerPath = "/api/account-service/auth-user/create-invite-owner"
	OrganizationsPath     = "/api/account-service/admin-console/organizations"
	CreateHubPath         = "/api/hubs/create"
	HubsPath              = "/api/hubs"
	WebAutomationPath     = "/api/sbb/automation"
)

// Client calls the account and documents APIs.
type Client struct {
	accountURL   string
	documentsURL string
	httpClient   *http.Client
	limiter      *ratelimit.Limiter
}

// Options configures a Client.
type Options struct {
	AccountURL   string
	DocumentsURL string // defaults to AccountURL
	RPS          float64
	Burst        int
	Timeout      time.Duration
	Base         http.RoundTripper
}

// New creates a client. Calls to each host are paced by a token bucket.
func New(opts Options) *Client {
	cfg := ratelimit.DefaultConfig
	if opts.RPS > 0 {
		cfg.RPS = opts.RPS
	}
	if opts.Burst > 0 {
		cfg.Burst = opts.Burst
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	documentsURL := opts.DocumentsURL
	if documentsURL == "" {
		documentsURL = opts.AccountURL
	}
	limiter := ratelimit.New(cfg)
	return &Client{
		accountURL:   strings.TrimRight(opts.AccountURL, "/"),
		documentsURL: strings.TrimRight(documentsURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &ratelimit.Transport{Base: opts.Base, Limiter: limiter},
		},
		limiter: limiter,
	}
}

// Close stops the pacing limiter.
func (c *Client) Close() {
	c.limiter.Stop()
}

// User is the profile returned by the users/me endpoint.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId"`
}

// Organization is one company in the admin console.
type Organization struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"ownerEmail,omitempty"`
}

// Hub is a document hub as returned by the create endpoint.
type Hub struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

type page[T any] struct {
	Content []T `json:"content"`
}

// Login exchanges an authentication payload for an access token.
func (c *Client) Login(ctx context.Context, payload map[string]any) (string, error) {
	var out loginResponse
	if err := c.do(ctx, c.accountURL, http.MethodPost, LoginPath, "", payload, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errs.New(errs.FailedPrecondition, "studioapi: login returned an empty access token")
	}
	if exp, err := TokenExpiry(out.AccessToken); err == nil {
		obs.From(ctx).Debug("token_issued", "expires_at", exp)
	}
	return out.AccessToken, nil
}

// Me returns the profile of the token's user.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.do(ctx, c.accountURL, http.MethodGet, MePath, token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateInviteOwner sends a company-owner invitation.
func (c *Client) CreateInviteOwner(ctx context.Context, token string, payload map[string]any) error {
	return c.do(ctx, c.accountURL, http.MethodPost, CreateInviteOwnerPath, token, payload, nil)
}

// ListOrganizations returns the first page (100) of organizations.
func (c *Client) ListOrganizations(ctx context.Context, token string) ([]Organization, error) {
	var out page[Organization]
	if err := c.do(ctx, c.accountURL, http.MethodGet, OrganizationsPath+"?page=0&size=100", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Content, nil
}

// FindOrganization returns the organization with the given name.
func (c *Client) FindOrganization(ctx context.Context, token, name string) (*Organization, error) {
	orgs, err := c.ListOrganizations(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range orgs {
		if orgs[i].Name == name {
			return &orgs[i], nil
		}
	}
	return nil, errs.New(errs.NotFound, fmt.Sprintf("studioapi: organization %q", name))
}

// DeleteOrganization deletes a company.
func (c *Client) DeleteOrganization(ctx context.Context, token, id string) error {
	return c.do(ctx, c.accountURL, http.MethodDelete, OrganizationsPath+"/"+url.PathEscape(id), token, nil, nil)
}

// CreateHub creates a hub from a hub_payload template.
func (c *Client) CreateHub(ctx context.Context, token string, payload map[string]any) (*Hub, error) {
	var hub Hub
	if err := c.do(ctx, c.documentsURL, http.MethodPost, CreateHubPath, token, payload, &hub); err != nil {
		return nil, err
	}
	if hub.ID == "" {
		return nil, errs.New(errs.Internal, "studioapi: create hub returned no id")
	}
	return &hub, nil
}

// DeleteHub deletes a hub.
func (c *Client) DeleteHub(ctx context.Context, token, id string) error {
	return c.do(ctx, c.documentsURL, http.MethodDelete, HubsPath+"/"+url.PathEscape(id), token, nil, nil)
}

// DeleteWebAutomation deletes a web automation.
func (c *Client) DeleteWebAutomation(ctx context.Context, token, id string) error {
	return c.do(ctx, c.documentsURL, http.MethodDelete, WebAutomationPath+"/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) do(ctx context.Context, base, method, path, token string, body, out any) error {
	var payload []byte
	var reader io.Reader
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, "studioapi: encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "studioapi: build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(obs.RunIDHeader, obs.RunID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errs.Wrap(errs.Timeout, fmt.Sprintf("studioapi: %s %s", method, path), err)
		}
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("studioapi: %s %s", method, path), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "studioapi: read response", err)
	}
	obs.From(ctx).Debug("studio_api_call",
		"pkg", "studioapi",
		"method", method,
		"url", logutil.RedactURL(req.URL),
		"status", resp.StatusCode,
		"dur_ms", time.Since(start).Milliseconds(),
		"req_headers", logutil.FormatHeadersForLog(req.Header),
		"req_body", logutil.FormatBodyForLog("application/json", payload, maxLoggedBody),
		"resp_body", logutil.FormatBodyForLog(resp.Header.Get("Content-Type"), respBody, maxLoggedBody),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.FromStatus(resp.StatusCode, fmt.Sprintf("studioapi: %s %s returned %d: %s",
			method, path, resp.StatusCode, logutil.TruncateForLog(logutil.RedactJSON(respBody), 200)))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Wrap(errs.Internal, fmt.Sprintf("studioapi: decode %s response", path), err)
	}
	return nil
}
