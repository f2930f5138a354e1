package studiofake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Message string `json:"message"`
}

type page[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
}

func newPage[T any](items []T) page[T] {
	if items == nil {
		items = []T{}
	}
	return page[T]{Content: items, TotalElements: len(items)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// writeErr maps a coded error to its status. Permission errors from the
// store are authentication failures.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(errs.CodeOf(err))
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("request_failed", "pkg", "studiofake", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, errs.MessageOf(err))
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "read body", err)
	}
	if len(body) == 0 {
		return errs.New(errs.InvalidArgument, "request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errs.Wrap(errs.InvalidArgument, "malformed JSON body", err)
	}
	return nil
}

// ---- auth ----

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type loginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	a, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		obs.From(r.Context()).Info("login_rejected", "pkg", "studiofake", "email", req.Email)
		writeError(w, http.StatusUnauthorized, uitext.ErrorInvalidCredentials)
		return
	}
	token, exp, err := s.tokens.Issue(a)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.setSessionCookie(w, r, token, exp)
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, ExpiresAt: exp})
}

func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if token := s.tokenFrom(r); token != "" {
		s.tokens.Revoke(token)
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, a *Account) {
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, uitext.ForgotPasswordErrorEmptyEmail)
		return
	}
	token, a, err := s.store.StartReset(req.Email)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if a != nil {
		link := baseURL(r) + uitext.CreatePasswordURL + "?token=" + url.QueryEscape(token)
		if err := s.mail.Send(r.Context(), a.Email, TemplatePasswordReset, PasswordResetData{
			Name:      a.FirstName,
			Link:      link,
			ExpiresIn: "1 hour",
		}); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	// Unknown emails get the same answer.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreatePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.store.CompleteReset(req.Token, req.Password); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type inviteResponse struct {
	Email string `json:"email"`
}

func (s *Server) handleInviteOwner(w http.ResponseWriter, r *http.Request, _ *Account) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	token, err := s.store.CreateInvite(req.Email, InviteOwner, "", "")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	link := baseURL(r) + uitext.RegisterInviteURL + "?token=" + url.QueryEscape(token)
	if err := s.mail.Send(r.Context(), req.Email, TemplateInviteOwner, InviteData{Link: link}); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inviteResponse{Email: normalizeEmail(req.Email)})
}

func (s *Server) handleInviteUser(w http.ResponseWriter, r *http.Request, _ *Account) {
	var req struct {
		Email          string `json:"email"`
		OrganizationID string `json:"organizationId"`
		Role           string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	org, err := s.store.Organization(req.OrganizationID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	token, err := s.store.CreateInvite(req.Email, InviteUser, org.ID, req.Role)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	link := baseURL(r) + uitext.RegisterInviteURL + "?token=" + url.QueryEscape(token)
	if err := s.mail.Send(r.Context(), req.Email, TemplateInviteUser, InviteData{Company: org.Name, Link: link}); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inviteResponse{Email: normalizeEmail(req.Email)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req Registration
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	a, err := s.store.Register(req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	obs.From(r.Context()).Info("account_registered", "pkg", "studiofake", "email", a.Email, "role", a.Role)
	writeJSON(w, http.StatusOK, a)
}

// ---- admin console ----

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request, _ *Account) {
	q := r.URL.Query()
	orgs := s.store.Organizations(q.Get("name"))
	size, _ := strconv.Atoi(q.Get("size"))
	pageNum, _ := strconv.Atoi(q.Get("page"))
	total := len(orgs)
	if size > 0 {
		start := min(pageNum*size, total)
		orgs = orgs[start:min(start+size, total)]
	}
	p := newPage(orgs)
	p.TotalElements = total
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request, _ *Account) {
	org, err := s.store.Organization(r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleDeleteOrganization(w http.ResponseWriter, r *http.Request, _ *Account) {
	if err := s.store.DeleteOrganization(r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetAddOns(w http.ResponseWriter, r *http.Request, _ *Account) {
	var req struct {
		AddOns []string `json:"addOns"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := s.store.SetAddOns(id, req.AddOns); err != nil {
		writeErr(w, r, err)
		return
	}
	org, err := s.store.Organization(id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// ---- documents and hubs ----

type documentSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// handleDocumentHistory serves the processed-documents list. The double
// never processes documents, so every tab is empty.
func (s *Server) handleDocumentHistory(w http.ResponseWriter, r *http.Request, _ *Account) {
	if r.URL.Query().Get("status") == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	writeJSON(w, http.StatusOK, newPage[documentSummary](nil))
}

func (s *Server) handleListHubs(w http.ResponseWriter, _ *http.Request, a *Account) {
	writeJSON(w, http.StatusOK, newPage(s.store.Hubs(a)))
}

func (s *Server) handleCreateHub(w http.ResponseWriter, r *http.Request, a *Account) {
	var req struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	hub, err := s.store.CreateHub(a, req.Name, req.Type, req.Description)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, hub)
}

// handleGetHub serves the hub detail. The include parameter is accepted
// and ignored: the double always returns fields and outlines.
func (s *Server) handleGetHub(w http.ResponseWriter, r *http.Request, a *Account) {
	hub, err := s.store.Hub(a, r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (s *Server) handleRenameHub(w http.ResponseWriter, r *http.Request, a *Account) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	hub, err := s.store.RenameHub(a, r.PathValue("id"), req.Name)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (s *Server) handleDeleteHub(w http.ResponseWriter, r *http.Request, a *Account) {
	if err := s.store.DeleteHub(a, r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetTags(w http.ResponseWriter, r *http.Request, a *Account) {
	var req struct {
		Tags map[string]string `json:"tags"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	hub, err := s.store.SetTags(a, r.PathValue("id"), req.Tags)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (s *Server) handleAddField(w http.ResponseWriter, r *http.Request, a *Account) {
	var in FieldInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	f, err := s.store.AddField(a, r.PathValue("id"), in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// handleImportFields adds the top-level fields of an exported field list.
func (s *Server) handleImportFields(w http.ResponseWriter, r *http.Request, a *Account) {
	var req struct {
		Fields []FieldInput `json:"fields"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "the file lists no data points")
		return
	}
	hubID := r.PathValue("id")
	for _, in := range req.Fields {
		if _, err := s.store.AddField(a, hubID, in); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	hub, err := s.store.Hub(a, hubID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request, a *Account) {
	var in FieldInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	f, err := s.store.UpdateField(a, r.PathValue("id"), r.PathValue("fid"), in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request, a *Account) {
	if err := s.store.DeleteField(a, r.PathValue("id"), r.PathValue("fid")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSubField(w http.ResponseWriter, r *http.Request, a *Account) {
	var in FieldInput
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	f, err := s.store.AddSubField(a, r.PathValue("id"), r.PathValue("fid"), in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUploadOutline(w http.ResponseWriter, r *http.Request, _ *Account) {
	var req struct {
		FileName string `json:"fileName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	o, err := s.store.UploadOutline(req.FileName)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleAddOutline(w http.ResponseWriter, r *http.Request, a *Account) {
	var req struct {
		OutlineID string `json:"outlineId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	hub, err := s.store.AttachOutline(a, r.PathValue("id"), req.OutlineID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (s *Server) handleUpdateOutline(w http.ResponseWriter, r *http.Request, a *Account) {
	var req struct {
		Name    *string `json:"name"`
		Enabled *bool   `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	o, err := s.store.UpdateOutline(a, r.PathValue("id"), req.Name, req.Enabled)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDeleteOutline(w http.ResponseWriter, r *http.Request, a *Account) {
	if err := s.store.DeleteOutline(a, r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- web automations ----

func (s *Server) handleListAutomations(w http.ResponseWriter, _ *http.Request, a *Account) {
	writeJSON(w, http.StatusOK, newPage(s.store.Automations(a)))
}

func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request, a *Account) {
	var req Automation
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	created, err := s.store.CreateAutomation(a, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleImportAutomation creates an automation from an export file. A name
// that is already taken gets a numeric suffix.
func (s *Server) handleImportAutomation(w http.ResponseWriter, r *http.Request, a *Account) {
	var req Automation
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	req.Name = uniqueName(req.Name, s.store.Automations(a))
	created, err := s.store.CreateAutomation(a, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func uniqueName(name string, existing []Automation) string {
	name = strings.TrimSpace(name)
	taken := make(map[string]bool, len(existing))
	for _, a := range existing {
		taken[a.Name] = true
	}
	if name == "" || !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request, a *Account) {
	auto, err := s.store.Automation(a, r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auto)
}

func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request, a *Account) {
	var req Automation
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	updated, err := s.store.UpdateAutomation(a, r.PathValue("id"), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request, a *Account) {
	if err := s.store.DeleteAutomation(a, r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- inbox API ----

func (s *Server) handleCreateInbox(w http.ResponseWriter, r *http.Request) {
	inbox, err := s.mail.CreateInbox("", "")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inbox)
}

func (s *Server) handleListInboxes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mail.Inboxes())
}

func (s *Server) handleInboxEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := s.mail.InboxEmails(r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emails)
}

func (s *Server) handleDeleteInbox(w http.ResponseWriter, r *http.Request) {
	if err := s.mail.DeleteInbox(r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEmptyInbox(w http.ResponseWriter, r *http.Request) {
	if err := s.mail.EmptyInbox(r.URL.Query().Get("inboxId")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWaitForLatestEmail holds the request until an email arrives. The
// timeout parameter is in milliseconds and capped by MaxMailWait; running
// out answers 408.
func (s *Server) handleWaitForLatestEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	inboxID := q.Get("inboxId")
	if inboxID == "" {
		writeError(w, http.StatusBadRequest, "inboxId is required")
		return
	}
	timeout := s.opts.MaxMailWait
	if raw := q.Get("timeout"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			writeError(w, http.StatusBadRequest, "timeout must be a number of milliseconds")
			return
		}
		timeout = min(time.Duration(ms)*time.Millisecond, s.opts.MaxMailWait)
	}
	unreadOnly := q.Get("unreadOnly") == "true"

	email, err := s.mail.WaitForLatestEmail(r.Context(), inboxID, timeout, unreadOnly)
	if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, email)
}
