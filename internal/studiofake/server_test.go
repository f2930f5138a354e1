package studiofake

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/plextera-e2e/internal/config"
	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/fixtures"
	"github.com/kuitang/plextera-e2e/internal/mailbox"
	"github.com/kuitang/plextera-e2e/internal/studioapi"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

func repoDataDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(filename), "..", "..", "data")
}

type testEnv struct {
	fake   *Server
	srv    *httptest.Server
	data   *fixtures.Loader
	studio *studioapi.Client
	mail   *mailbox.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake, err := New(Options{MaxMailWait: 5 * time.Second})
	require.NoError(t, err)
	data := fixtures.NewLoader(repoDataDir(t))
	require.NoError(t, fake.Seed(data))

	srv := httptest.NewServer(fake.Handler())
	studio := studioapi.New(studioapi.Options{AccountURL: srv.URL, RPS: 1000, Burst: 1000})
	t.Cleanup(func() {
		studio.Close()
		srv.Close()
		fake.Close()
	})
	return &testEnv{
		fake:   fake,
		srv:    srv,
		data:   data,
		studio: studio,
		mail:   mailbox.New(srv.URL, fake.MailAPIKey()),
	}
}

func (e *testEnv) login(t *testing.T, role string) string {
	t.Helper()
	payload, err := e.data.AuthPayload(role)
	require.NoError(t, err)
	token, err := e.studio.Login(context.Background(), payload)
	require.NoError(t, err)
	return token
}

// call sends a JSON request with an optional bearer token and returns the
// status and body.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestSeed_CreatesFixtureAccounts(t *testing.T) {
	env := newTestEnv(t)

	for _, role := range []string{fixtures.RoleSupport, fixtures.RoleCompanyOwner, fixtures.RoleCompanyAdministrator, fixtures.RoleCompanyUser} {
		token := env.login(t, role)
		me, err := env.studio.Me(context.Background(), token)
		require.NoError(t, err, role)
		cred, err := env.data.Credential(role)
		require.NoError(t, err)
		assert.Equal(t, cred.Email, me.Email, role)
	}

	owner, err := env.data.Credential(fixtures.RoleCompanyOwner)
	require.NoError(t, err)
	orgs := env.fake.Store().Organizations(DefaultCompany)
	require.Len(t, orgs, 1)
	assert.Equal(t, owner.Email, orgs[0].OwnerEmail)

	temp, err := env.data.Credential(fixtures.RoleTempEmail)
	require.NoError(t, err)
	inboxes := env.fake.Mail().Inboxes()
	require.Len(t, inboxes, 1)
	assert.Equal(t, temp.InboxID, inboxes[0].ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	cred, err := env.data.Credential(fixtures.RoleCompanyUser)
	require.NoError(t, err)

	status, body := env.call(t, http.MethodPost, studioapi.LoginPath, "", map[string]any{"email": cred.Email, "password": "Wrong#Pass1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), uitext.ErrorInvalidCredentials)

	_, err = env.studio.Login(context.Background(), map[string]any{"email": cred.Email, "password": "Wrong#Pass1"})
	assert.Equal(t, errs.PermissionDenied, errs.CodeOf(err))
}

func TestLogin_TokenExpiryIsReadable(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, fixtures.RoleCompanyUser)
	exp, err := studioapi.TokenExpiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), exp, time.Minute)
	assert.False(t, studioapi.TokenExpired(token, time.Now()))
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, fixtures.RoleCompanyUser)

	status, _ := env.call(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = env.call(t, http.MethodGet, studioapi.MePath, token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminAPI_RequiresSupport(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.login(t, fixtures.RoleCompanyUser)

	status, _ := env.call(t, http.MethodGet, studioapi.OrganizationsPath, userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.call(t, http.MethodGet, studioapi.OrganizationsPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestInviteOwner_RegisterAndDeleteCompany(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supportToken := env.login(t, fixtures.RoleSupport)

	inbox, err := env.mail.CreateInbox(ctx)
	require.NoError(t, err)
	require.NoError(t, env.studio.CreateInviteOwner(ctx, supportToken, map[string]any{"email": inbox.EmailAddress}))

	email, err := env.mail.WaitForLatestEmail(ctx, inbox.ID, 2*time.Second)
	require.NoError(t, err)
	link, err := mailbox.RegisterInviteLink(email.Body)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, env.srv.URL+uitext.RegisterInviteURL), link)

	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)

	// The registration screen asks the owner for a company name.
	resp, err := http.Get(link)
	require.NoError(t, err)
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), `name="companyName"`)

	status, body := env.call(t, http.MethodPost, "/api/account-service/auth-user/register-invite", "", Registration{
		Token: token, FirstName: "Nora", LastName: "Owens", Password: "Nora#2024ab", CompanyName: "Northwind",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	ownerToken, err := env.studio.Login(ctx, map[string]any{"email": inbox.EmailAddress, "password": "Nora#2024ab"})
	require.NoError(t, err)
	me, err := env.studio.Me(ctx, ownerToken)
	require.NoError(t, err)
	assert.Equal(t, RoleCompanyOwner, me.Role)

	org, err := env.studio.FindOrganization(ctx, supportToken, "Northwind")
	require.NoError(t, err)
	require.NoError(t, env.studio.DeleteOrganization(ctx, supportToken, org.ID))
	_, err = env.studio.FindOrganization(ctx, supportToken, "Northwind")
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))

	require.NoError(t, env.mail.DeleteInbox(ctx, inbox.ID))
}

func TestForgotPassword_EmailsAResetLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	temp, err := env.data.Credential(fixtures.RoleTempEmail)
	require.NoError(t, err)
	require.NoError(t, env.mail.Drain(ctx, temp.InboxID))

	status, body := env.call(t, http.MethodPost, "/api/account-service/auth-user/forgot-password", "", map[string]string{"email": temp.Email})
	require.Equal(t, http.StatusOK, status, string(body))

	email, err := env.mail.WaitForLatestEmail(ctx, temp.InboxID, 2*time.Second)
	require.NoError(t, err)
	link, err := mailbox.CreatePasswordLink(email.Body)
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)

	status, body = env.call(t, http.MethodPost, "/api/account-service/auth-user/create-password", "",
		map[string]string{"token": u.Query().Get("token"), "password": temp.Password})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), uitext.ErrorPasswordSameWithCurrent)

	status, _ = env.call(t, http.MethodPost, "/api/account-service/auth-user/create-password", "",
		map[string]string{"token": u.Query().Get("token"), "password": "Rotated#2025x"})
	require.Equal(t, http.StatusOK, status)
	_, err = env.studio.Login(ctx, map[string]any{"email": temp.Email, "password": "Rotated#2025x"})
	require.NoError(t, err)
}

func TestForgotPassword_EmptyEmail(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.call(t, http.MethodPost, "/api/account-service/auth-user/forgot-password", "", map[string]string{"email": " "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), uitext.ForgotPasswordErrorEmptyEmail)

	status, _ = env.call(t, http.MethodPost, "/api/account-service/auth-user/forgot-password", "", map[string]string{"email": "ghost@example.test"})
	assert.Equal(t, http.StatusOK, status)
}

func TestInboxAPI_RequiresKey(t *testing.T) {
	env := newTestEnv(t)
	_, err := mailbox.New(env.srv.URL, "wrong-key").CreateInbox(context.Background())
	assert.Equal(t, errs.PermissionDenied, errs.CodeOf(err))
}

func TestInboxAPI_WaitTimesOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox, err := env.mail.CreateInbox(ctx)
	require.NoError(t, err)

	start := time.Now()
	_, err = env.mail.WaitForLatestEmail(ctx, inbox.ID, 100*time.Millisecond)
	assert.ErrorIs(t, err, mailbox.ErrNoEmail)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestHubsAPI_CreateListDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := env.login(t, fixtures.RoleCompanyOwner)
	payload, err := env.data.Payload("hub_payload")
	require.NoError(t, err)

	hub, err := env.studio.CreateHub(ctx, token, payload)
	require.NoError(t, err)
	assert.Equal(t, HubTypeValue, hub.Type)

	// Colleagues in the same company see the hub.
	userToken := env.login(t, fixtures.RoleCompanyUser)
	status, body := env.call(t, http.MethodGet, "/api/hubs/list", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	var hubs page[Hub]
	require.NoError(t, json.Unmarshal(body, &hubs))
	require.Len(t, hubs.Content, 1)
	assert.Equal(t, hub.ID, hubs.Content[0].ID)

	status, body = env.call(t, http.MethodPost, "/api/hubs/"+hub.ID+"/abstract-fields", token, FieldInput{Name: "Amount"})
	require.Equal(t, http.StatusCreated, status, string(body))

	require.NoError(t, env.studio.DeleteHub(ctx, token, hub.ID))
	err = env.studio.DeleteHub(ctx, token, hub.ID)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestOutlineUpload_AttachesToHub(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, fixtures.RoleCompanyOwner)

	status, body := env.call(t, http.MethodPost, "/api/hubs/create", token, map[string]string{"name": "Forms", "type": HubTypeOutline})
	require.Equal(t, http.StatusCreated, status, string(body))
	var hub Hub
	require.NoError(t, json.Unmarshal(body, &hub))

	status, body = env.call(t, http.MethodPost, "/api/outlines", token, map[string]string{"fileName": "outline_document.pdf"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var outline Outline
	require.NoError(t, json.Unmarshal(body, &outline))

	status, body = env.call(t, http.MethodPost, "/api/hubs/smart/"+hub.ID+"/add-outline", token, map[string]string{"outlineId": outline.ID})
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &hub))
	require.Len(t, hub.Outlines, 1)
	assert.Equal(t, uitext.HubOutlineTemplateName, hub.Outlines[0].Name)
}

func TestAutomationImport_SuffixesDuplicateNames(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, fixtures.RoleCompanyOwner)
	raw, err := env.data.Raw(fixtures.AutomationFile)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	var names []string
	for range 2 {
		status, body := env.call(t, http.MethodPost, "/api/sbb/automation/import", token, doc)
		require.Equal(t, http.StatusCreated, status, string(body))
		var a Automation
		require.NoError(t, json.Unmarshal(body, &a))
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"imported_web_automation", "imported_web_automation (2)"}, names)
}

func TestPages_RedirectAnonymousVisitors(t *testing.T) {
	env := newTestEnv(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	for _, path := range []string{"/", uitext.HubsURL, uitext.WebAutomationsURL, uitext.AdminConsoleURL} {
		resp, err := client.Get(env.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, uitext.LoginURL, resp.Header.Get("Location"), path)
	}
}

func TestPages_RenderForSignedInUser(t *testing.T) {
	env := newTestEnv(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	cred, err := env.data.Credential(fixtures.RoleCompanyUser)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]string{"email": cred.Email, "password": cred.Password})
	require.NoError(t, err)
	resp, err := client.Post(env.srv.URL+studioapi.LoginPath, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	u, err := url.Parse(env.srv.URL)
	require.NoError(t, err)
	var names []string
	for _, c := range jar.Cookies(u) {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, config.DefaultCookieName)

	get := func(path string) (int, string) {
		resp, err := client.Get(env.srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := get("/")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Welcome back, "+cred.DisplayName()+"!")
	assert.Contains(t, body, `id="ui-text"`)

	status, body = get(uitext.HubsURL)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-page="hubs"`)

	// Company users are sent home from the admin console.
	status, body = get(uitext.AdminConsoleURL)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-page="home"`)

	status, _ = get("/document-insights/hubs/missing")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get("/static/app.js")
	assert.Equal(t, http.StatusOK, status)
}

func TestRegisterPage_InvalidInvitation(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + uitext.RegisterInviteURL + "?token=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "The invitation is invalid or has expired")
	assert.NotContains(t, string(body), `class="register__form"`)
}

func TestInviteUser_RegistersWithInvitedRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supportToken := env.login(t, fixtures.RoleSupport)
	org, err := env.fake.store.CreateOrganization("Initech", "owner@initech.test")
	require.NoError(t, err)

	inbox, err := env.mail.CreateInbox(ctx)
	require.NoError(t, err)
	status, body := env.call(t, http.MethodPost, "/api/account-service/auth-user/create-invite-user", supportToken, map[string]any{
		"email": inbox.EmailAddress, "organizationId": org.ID, "role": RoleCompanyAdministrator,
	})
	require.Equal(t, http.StatusOK, status, string(body))

	email, err := env.mail.WaitForLatestEmail(ctx, inbox.ID, 2*time.Second)
	require.NoError(t, err)
	assert.Contains(t, email.Body, "Initech")
	link, err := mailbox.RegisterInviteLink(email.Body)
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)

	status, body = env.call(t, http.MethodPost, "/api/account-service/auth-user/register-invite", "", Registration{
		Token: u.Query().Get("token"), FirstName: "Ada", LastName: "Admin", Password: "Ada#2024abc",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	token, err := env.studio.Login(ctx, map[string]any{"email": inbox.EmailAddress, "password": "Ada#2024abc"})
	require.NoError(t, err)
	me, err := env.studio.Me(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, RoleCompanyAdministrator, me.Role)

	status, _ = env.call(t, http.MethodPost, "/api/account-service/auth-user/create-invite-user", supportToken, map[string]any{
		"email": "x@initech.test", "organizationId": org.ID, "role": RoleCompanyOwner,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}
