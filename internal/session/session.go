// Package session turns a fixture role into an authenticated studio session:
// a bearer token for API calls and the access-token cookie for the browser.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/plextera-e2e/internal/config"
	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/fixtures"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/studioapi"
)

// CookieSetter is the part of playwright.BrowserContext used to inject the
// session cookie.
type CookieSetter interface {
	AddCookies(cookies []playwright.OptionalCookie) error
}

// Manager logs roles in.
type Manager struct {
	cfg  *config.Config
	data *fixtures.Loader
	api  *studioapi.Client
	now  func() time.Time
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, data *fixtures.Loader, api *studioapi.Client) *Manager {
	return &Manager{cfg: cfg, data: data, api: api, now: time.Now}
}

// Token logs role in through the API and returns its access token.
func (m *Manager) Token(ctx context.Context, role string) (string, error) {
	ctx = obs.WithRole(ctx, role)
	payload, err := m.data.AuthPayload(role)
	if err != nil {
		return "", err
	}
	token, err := m.api.Login(ctx, payload)
	if err != nil {
		return "", errs.Wrap(errs.CodeOf(err), fmt.Sprintf("session: log in as %s", role), err)
	}
	if studioapi.TokenExpired(token, m.now()) {
		return "", errs.New(errs.FailedPrecondition, fmt.Sprintf("session: token for %s is already expired", role))
	}
	obs.From(ctx).Info("session_token_acquired")
	return token, nil
}

// Authenticate logs role in and injects the access-token cookie into the
// browser context, so pages open already signed in.
func (m *Manager) Authenticate(ctx context.Context, cs CookieSetter, role string) (string, error) {
	token, err := m.Token(ctx, role)
	if err != nil {
		return "", err
	}
	if err := cs.AddCookies([]playwright.OptionalCookie{m.Cookie(token)}); err != nil {
		return "", errs.Wrap(errs.Internal, "session: add cookie", err)
	}
	return token, nil
}

// Cookie builds the access-token cookie for the configured studio host.
func (m *Manager) Cookie(token string) playwright.OptionalCookie {
	return playwright.OptionalCookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Domain:   playwright.String(m.cfg.CookieDomain()),
		Path:     playwright.String("/"),
		HttpOnly: playwright.Bool(false),
		Secure:   playwright.Bool(m.cfg.SecureCookies()),
		SameSite: playwright.SameSiteAttributeLax,
	}
}
