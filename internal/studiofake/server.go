// Package studiofake is an in-process double of Plextera Studio: the web
// screens the page objects drive, the account and documents APIs behind
// them, and a MailSlurp-compatible inbox API that receives the studio's
// invitation and password reset emails.
//
// The browser suite runs against it when no deployment is configured, so
// every scenario can run hermetically.
package studiofake

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kuitang/plextera-e2e/internal/config"
	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/fixtures"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/ratelimit"
)

// DefaultMailAPIKey is accepted by the inbox API when no key is configured.
const DefaultMailAPIKey = "local-mail-key"

// DefaultCompany is the company the seeded company roles belong to.
const DefaultCompany = "Acme"

// DefaultMaxMailWait caps the server-side wait of waitForLatestEmail.
const DefaultMaxMailWait = 60 * time.Second

// Options configures a Server.
type Options struct {
	CookieName  string        // access-token cookie, config.DefaultCookieName when empty
	MailAPIKey  string        // x-api-key of the inbox API
	TokenTTL    time.Duration // access token lifetime
	MaxMailWait time.Duration
	OutboxDir   string           // optional JSON copy of every sent email
	RateLimit   ratelimit.Config // per access token; zero RPS disables limiting
}

// Server is the studio double.
type Server struct {
	opts    Options
	store   *Store
	mail    *Mailer
	tokens  *issuer
	pages   *renderer
	limiter *ratelimit.Limiter
	handler http.Handler
}

// New creates an empty server. Use Seed to load the fixture accounts.
func New(opts Options) (*Server, error) {
	if opts.CookieName == "" {
		opts.CookieName = config.DefaultCookieName
	}
	if opts.MailAPIKey == "" {
		opts.MailAPIKey = DefaultMailAPIKey
	}
	if opts.MaxMailWait <= 0 {
		opts.MaxMailWait = DefaultMaxMailWait
	}
	tokens, err := newIssuer(opts.TokenTTL)
	if err != nil {
		return nil, err
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	s := &Server{
		opts:   opts,
		store:  NewStore(),
		mail:   NewMailer(opts.OutboxDir),
		tokens: tokens,
		pages:  pages,
	}
	if opts.RateLimit.RPS > 0 {
		s.limiter = ratelimit.New(opts.RateLimit)
	}
	s.handler = s.routes()
	return s, nil
}

// Close stops background work.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// Store exposes the server state to tests.
func (s *Server) Store() *Store { return s.store }

// Mail exposes the inboxes and captured emails to tests.
func (s *Server) Mail() *Mailer { return s.mail }

// MailAPIKey is the key the inbox API accepts.
func (s *Server) MailAPIKey() string { return s.opts.MailAPIKey }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// seedRoles maps fixture roles to studio roles. Company roles join
// DefaultCompany.
var seedRoles = []struct {
	fixture string
	role    string
	company bool
}{
	{fixtures.RoleSupport, RoleSupport, false},
	{fixtures.RoleCompanyOwner, RoleCompanyOwner, true},
	{fixtures.RoleCompanyAdministrator, RoleCompanyAdministrator, true},
	{fixtures.RoleCompanyUser, RoleCompanyUser, true},
	{fixtures.RoleTempEmail, RoleCompanyUser, true},
}

// Seed creates the accounts of the fixture roles and the inbox of the
// temp_email role. Roles missing from the fixtures are skipped.
func (s *Server) Seed(data *fixtures.Loader) error {
	log := obs.Pkg("studiofake")
	var org *Organization
	for _, sr := range seedRoles {
		cred, err := data.Credential(sr.fixture)
		if errors.Is(err, fixtures.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		account := Account{
			Email:     cred.Email,
			FirstName: cred.DisplayName(),
			LastName:  cred.LastName,
			Role:      sr.role,
		}
		if sr.company {
			if org == nil {
				if org, err = s.store.CreateOrganization(DefaultCompany, cred.Email); err != nil {
					return err
				}
			}
			account.OrganizationID = org.ID
		}
		if _, err := s.store.CreateAccount(account, cred.Password); err != nil {
			return fmt.Errorf("seed %s: %w", sr.fixture, err)
		}
		if cred.InboxID != "" {
			if _, err := s.mail.CreateInbox(cred.InboxID, cred.Email); err != nil {
				return fmt.Errorf("seed inbox of %s: %w", sr.fixture, err)
			}
		}
		log.Debug("account_seeded", "role", sr.fixture, "email", cred.Email)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Screens
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("GET /forgot-password", s.handleForgotPasswordPage)
	mux.HandleFunc("GET /create-password", s.handleCreatePasswordPage)
	mux.HandleFunc("GET /register-invite", s.handleRegisterPage)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("GET /{$}", s.appPage("home", "Home"))
	mux.HandleFunc("GET /workflows", s.appPage("workflows", "Workflows"))
	mux.HandleFunc("GET /sbb/automation/list", s.appPage("automations", "Web Automations"))
	mux.HandleFunc("GET /sbb/automation/{id}", s.handleAutomationPage)
	mux.HandleFunc("GET /document-insights/documents", s.appPage("documents", "Document Insights"))
	mux.HandleFunc("GET /document-insights/hubs", s.appPage("hubs", "Hubs"))
	mux.HandleFunc("GET /document-insights/hubs/{id}", s.handleHubPage)
	mux.HandleFunc("GET /datastores", s.appPage("datastores", "Datastores"))
	mux.HandleFunc("GET /forms", s.appPage("forms", "Forms"))
	mux.HandleFunc("GET /alerts", s.appPage("alerts", "Alerts"))
	mux.HandleFunc("GET /sides", s.appPage("sides", "SIDES"))
	mux.HandleFunc("GET /settings", s.appPage("settings", "Settings"))
	mux.HandleFunc("GET /admin-console", s.handleAdminConsolePage)
	mux.HandleFunc("GET /admin-console/companies/{id}", s.handleCompanyPage)
	mux.Handle("GET /static/", staticHandler())

	// Account API
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleAPILogout)
	mux.HandleFunc("GET /api/account-service/users/me", s.authed(s.handleMe))
	mux.HandleFunc("POST /api/account-service/auth-user/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /api/account-service/auth-user/create-password", s.handleCreatePassword)
	mux.HandleFunc("POST /api/account-service/auth-user/create-invite-owner", s.support(s.handleInviteOwner))
	mux.HandleFunc("POST /api/account-service/auth-user/create-invite-user", s.support(s.handleInviteUser))
	mux.HandleFunc("POST /api/account-service/auth-user/register-invite", s.handleRegister)
	mux.HandleFunc("GET /api/account-service/admin-console/organizations", s.support(s.handleListOrganizations))
	mux.HandleFunc("GET /api/account-service/admin-console/organizations/{id}", s.support(s.handleGetOrganization))
	mux.HandleFunc("DELETE /api/account-service/admin-console/organizations/{id}", s.support(s.handleDeleteOrganization))
	mux.HandleFunc("POST /api/account-service/admin-console/organizations/{id}/add-ons", s.support(s.handleSetAddOns))

	// Documents API
	mux.HandleFunc("GET /api/ocr/history", s.authed(s.handleDocumentHistory))
	mux.HandleFunc("GET /api/hubs/list", s.authed(s.handleListHubs))
	mux.HandleFunc("POST /api/hubs/create", s.authed(s.handleCreateHub))
	mux.HandleFunc("GET /api/hubs/{id}", s.authed(s.handleGetHub))
	mux.HandleFunc("PATCH /api/hubs/{id}", s.authed(s.handleRenameHub))
	mux.HandleFunc("DELETE /api/hubs/{id}", s.authed(s.handleDeleteHub))
	mux.HandleFunc("PUT /api/hubs/{id}/tags", s.authed(s.handleSetTags))
	mux.HandleFunc("POST /api/hubs/{id}/abstract-fields", s.authed(s.handleAddField))
	mux.HandleFunc("POST /api/hubs/{id}/abstract-fields/import", s.authed(s.handleImportFields))
	mux.HandleFunc("PATCH /api/hubs/{id}/abstract-fields/{fid}", s.authed(s.handleUpdateField))
	mux.HandleFunc("DELETE /api/hubs/{id}/abstract-fields/{fid}", s.authed(s.handleDeleteField))
	mux.HandleFunc("POST /api/hubs/{id}/abstract-fields/{fid}/add-sub-field", s.authed(s.handleAddSubField))
	mux.HandleFunc("POST /api/hubs/smart/{id}/add-outline", s.authed(s.handleAddOutline))
	mux.HandleFunc("POST /api/outlines", s.authed(s.handleUploadOutline))
	mux.HandleFunc("PATCH /api/outlines/{id}", s.authed(s.handleUpdateOutline))
	mux.HandleFunc("DELETE /api/outlines/{id}", s.authed(s.handleDeleteOutline))
	mux.HandleFunc("GET /api/sbb/automation/list", s.authed(s.handleListAutomations))
	mux.HandleFunc("POST /api/sbb/automation", s.authed(s.handleCreateAutomation))
	mux.HandleFunc("POST /api/sbb/automation/import", s.authed(s.handleImportAutomation))
	mux.HandleFunc("GET /api/sbb/automation/{id}", s.authed(s.handleGetAutomation))
	mux.HandleFunc("PUT /api/sbb/automation/{id}", s.authed(s.handleUpdateAutomation))
	mux.HandleFunc("DELETE /api/sbb/automation/{id}", s.authed(s.handleDeleteAutomation))

	// Inbox API
	mux.HandleFunc("POST /inboxes/withDefaults", s.mailKey(s.handleCreateInbox))
	mux.HandleFunc("POST /inboxes", s.mailKey(s.handleCreateInbox))
	mux.HandleFunc("GET /inboxes", s.mailKey(s.handleListInboxes))
	mux.HandleFunc("GET /inboxes/{id}/emails", s.mailKey(s.handleInboxEmails))
	mux.HandleFunc("DELETE /inboxes/{id}", s.mailKey(s.handleDeleteInbox))
	mux.HandleFunc("GET /waitForLatestEmail", s.mailKey(s.handleWaitForLatestEmail))
	mux.HandleFunc("DELETE /emptyInbox", s.mailKey(s.handleEmptyInbox))

	var h http.Handler = mux
	if s.limiter != nil {
		h = ratelimit.Middleware(s.limiter, s.rateKey)(h)
	}
	h = obs.AccessLogMiddleware("studiofake", h)
	return obs.RequestContextMiddleware(h)
}

// rateKey limits API calls per access token. Screens, static files and
// anonymous calls are not limited.
func (s *Server) rateKey(r *http.Request) string {
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return ""
	}
	return s.tokenFrom(r)
}

// tokenFrom reads the bearer token, falling back to the access-token cookie.
func (s *Server) tokenFrom(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// currentAccount resolves the caller's account from its access token.
func (s *Server) currentAccount(r *http.Request) (*Account, error) {
	token := s.tokenFrom(r)
	if token == "" {
		return nil, errs.New(errs.PermissionDenied, "Unauthorized")
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	a, err := s.store.Account(id)
	if err != nil {
		return nil, errs.Wrap(errs.PermissionDenied, "Unauthorized", err)
	}
	return a, nil
}

type accountHandler func(w http.ResponseWriter, r *http.Request, a *Account)

func (s *Server) authed(next accountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := s.currentAccount(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, a)
	}
}

func (s *Server) support(next accountHandler) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, a *Account) {
		if !a.IsSupport() {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r, a)
	})
}

func (s *Server) mailKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != s.opts.MailAPIKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r)
	}
}

// baseURL is the scheme and host the caller reached the server on. Email
// links point there.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    s.opts.CookieName,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}
