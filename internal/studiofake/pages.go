package studiofake

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

//go:embed templates static
var assets embed.FS

// uiStrings are the texts the screens render, by name. Templates read them
// with the text function and the scripts read them from the ui-text block.
var uiStrings = map[string]string{
	"LoginPageTitle":                   uitext.LoginPageTitle,
	"HomePageUserTitle":                uitext.HomePageUserTitle,
	"HomePageDescription":              uitext.HomePageDescription,
	"ErrorInvalidCredentials":          uitext.ErrorInvalidCredentials,
	"ForgotPasswordPageTitle":          uitext.ForgotPasswordPageTitle,
	"ForgotPasswordErrorEmptyEmail":    uitext.ForgotPasswordErrorEmptyEmail,
	"ForgotPasswordErrorInvalidFormat": uitext.ForgotPasswordErrorInvalidFormat,
	"ForgotPasswordSuccess":            uitext.ForgotPasswordSuccess,
	"ForgotPasswordDescriptionPartOne": uitext.ForgotPasswordDescriptionPartOne,
	"UpdatePasswordPageTitle":          uitext.UpdatePasswordPageTitle,
	"ErrorPasswordLengthMin":           uitext.ErrorPasswordLengthMin,
	"ErrorPasswordUppercase":           uitext.ErrorPasswordUppercase,
	"ErrorPasswordLowercase":           uitext.ErrorPasswordLowercase,
	"ErrorPasswordNumber":              uitext.ErrorPasswordNumber,
	"ErrorPasswordSpecial":             uitext.ErrorPasswordSpecial,
	"ErrorPasswordDiffers":             uitext.ErrorPasswordDiffers,
	"SuccessPopupTitle":                uitext.SuccessPopupTitle,
	"RegisterSuccessDescription":       uitext.RegisterSuccessDescription,
	"InviteSuccessDescription":         uitext.InviteSuccessDescription,
	"DocumentsInsightsTitle":           uitext.DocumentsInsightsTitle,
	"HubsPageTitle":                    uitext.HubsPageTitle,
	"HubsPageDescription":              uitext.HubsPageDescription,
	"HubsCreatePopupTitle":             uitext.HubsCreatePopupTitle,
	"HubsOutlineBasedTitle":            uitext.HubsOutlineBasedTitle,
	"HubsValueBasedTitle":              uitext.HubsValueBasedTitle,
	"HubsDeletePopupPartOne":           uitext.HubsDeletePopupPartOne,
	"HubsDeletePopupPartTwo":           uitext.HubsDeletePopupPartTwo,
	"HubsRenamePopupTitle":             uitext.HubsRenamePopupTitle,
	"HubsTagsPopupTitle":               uitext.HubsTagsPopupTitle,
	"HubOutlineNoFieldsText":           uitext.HubOutlineNoFieldsText,
	"HubOutlineFieldsTitle":            uitext.HubOutlineFieldsTitle,
	"HubValueNoFieldsTitle":            uitext.HubValueNoFieldsTitle,
	"HubValueFieldsTitle":              uitext.HubValueFieldsTitle,
	"WorkflowsTitle":                   uitext.WorkflowsTitle,
	"WebAutomationsTitle":              uitext.WebAutomationsTitle,
	"DatastoresPageTitle":              uitext.DatastoresPageTitle,
	"FormsPageTitle":                   uitext.FormsPageTitle,
	"AlertsPageTitle":                  uitext.AlertsPageTitle,
	"SidesPageTitle":                   uitext.SidesPageTitle,
	"SettingsPageTitle":                uitext.SettingsPageTitle,
	"AdminConsoleTitle":                uitext.AdminConsoleTitle,
	"NoDataAvailableText":              uitext.NoDataAvailableText,
}

func text(name string) (string, error) {
	s, ok := uiStrings[name]
	if !ok {
		return "", fmt.Errorf("unknown ui text %q", name)
	}
	return s, nil
}

func uiTextJSON() (template.JS, error) {
	b, err := json.Marshal(uiStrings)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

// renderer holds one template set per screen: the screen's file parsed on
// top of its layout.
type renderer struct {
	templates map[string]*template.Template
}

const (
	layoutApp    = "base"
	layoutPublic = "base_public"
)

func newRenderer() (*renderer, error) {
	r := &renderer{templates: make(map[string]*template.Template)}
	funcs := template.FuncMap{"text": text, "uiText": uiTextJSON}
	for dir, layout := range map[string]string{"app": layoutApp, "public": layoutPublic} {
		pages, err := fs.Glob(assets, "templates/"+dir+"/*.html")
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			tmpl, err := template.New(layout).Funcs(funcs).ParseFS(assets, "templates/"+layout+".html", p)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", p, err)
			}
			name := dir + "/" + strings.TrimSuffix(path.Base(p), ".html")
			r.templates[name] = tmpl
		}
	}
	if len(r.templates) == 0 {
		return nil, fmt.Errorf("no templates embedded")
	}
	return r, nil
}

// render executes a screen into a buffer first so a template error never
// leaves a half-written page.
func (r *renderer) render(w http.ResponseWriter, req *http.Request, status int, name string, data pageData) {
	tmpl, ok := r.templates[name]
	if !ok {
		http.Error(w, "unknown page "+name, http.StatusInternalServerError)
		return
	}
	layout := layoutApp
	if strings.HasPrefix(name, "public/") {
		layout = layoutPublic
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layout, data); err != nil {
		obs.From(req.Context()).Error("render_failed", "pkg", "studiofake", "page", name, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type addOnState struct {
	Name    string
	Enabled bool
}

// pageData is what every screen template receives.
type pageData struct {
	Title        string
	Page         string
	Account      *Account
	Organization *Organization
	ID           string
	Name         string
	Kind         string
	Token        string
	Message      string
	Users        []Account
	AddOns       []addOnState
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

// page renders an app screen for the signed-in account, sending anonymous
// visitors to the login screen.
func (s *Server) page(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	a, err := s.currentAccount(r)
	if err != nil {
		http.Redirect(w, r, uitext.LoginURL, http.StatusFound)
		return
	}
	data.Account = a
	data.Page = name
	if a.OrganizationID != "" && data.Organization == nil {
		data.Organization, _ = s.store.Organization(a.OrganizationID)
	}
	s.pages.render(w, r, http.StatusOK, "app/"+name, data)
}

func (s *Server) appPage(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.page(w, r, name, pageData{Title: title})
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request, what string) {
	s.pages.render(w, r, http.StatusNotFound, "public/notfound", pageData{Title: "Not found", Message: what + " not found"})
}

func (s *Server) handleHubPage(w http.ResponseWriter, r *http.Request) {
	a, err := s.currentAccount(r)
	if err != nil {
		http.Redirect(w, r, uitext.LoginURL, http.StatusFound)
		return
	}
	hub, err := s.store.Hub(a, r.PathValue("id"))
	if err != nil {
		s.notFound(w, r, "Hub")
		return
	}
	s.page(w, r, "hub", pageData{Title: hub.Name, ID: hub.ID, Name: hub.Name, Kind: hub.Type})
}

func (s *Server) handleAutomationPage(w http.ResponseWriter, r *http.Request) {
	a, err := s.currentAccount(r)
	if err != nil {
		http.Redirect(w, r, uitext.LoginURL, http.StatusFound)
		return
	}
	auto, err := s.store.Automation(a, r.PathValue("id"))
	if err != nil {
		s.notFound(w, r, "Automation")
		return
	}
	s.page(w, r, "automation", pageData{Title: auto.Name, ID: auto.ID, Name: auto.Name})
}

func (s *Server) handleAdminConsolePage(w http.ResponseWriter, r *http.Request) {
	a, err := s.currentAccount(r)
	if err != nil {
		http.Redirect(w, r, uitext.LoginURL, http.StatusFound)
		return
	}
	if !a.IsSupport() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.page(w, r, "admin", pageData{Title: uitext.AdminConsoleTitle, Users: s.store.SupportAccounts()})
}

func (s *Server) handleCompanyPage(w http.ResponseWriter, r *http.Request) {
	a, err := s.currentAccount(r)
	if err != nil {
		http.Redirect(w, r, uitext.LoginURL, http.StatusFound)
		return
	}
	if !a.IsSupport() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	org, err := s.store.Organization(r.PathValue("id"))
	if err != nil {
		s.notFound(w, r, "Company")
		return
	}
	enabled := make(map[string]bool, len(org.AddOns))
	for _, name := range org.AddOns {
		enabled[name] = true
	}
	addOns := make([]addOnState, 0, len(AddOnNames))
	for _, name := range AddOnNames {
		addOns = append(addOns, addOnState{Name: name, Enabled: enabled[name]})
	}
	// The sidebar keeps showing the support account's own organization.
	s.page(w, r, "company", pageData{
		Title:  org.Name,
		ID:     org.ID,
		Name:   org.Name,
		Users:  s.store.AccountsIn(org.ID),
		AddOns: addOns,
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, r, http.StatusOK, "public/login", pageData{Title: "Log in", Page: "login"})
}

func (s *Server) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, r, http.StatusOK, "public/forgot", pageData{Title: uitext.ForgotPasswordPageTitle, Page: "forgot"})
}

func (s *Server) handleCreatePasswordPage(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, r, http.StatusOK, "public/create_password", pageData{
		Title: uitext.UpdatePasswordPageTitle,
		Page:  "create-password",
		Token: r.URL.Query().Get("token"),
	})
}

// handleRegisterPage shows the registration form of an invitation. The
// company name is only asked from invited owners.
func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	data := pageData{Title: "Register", Page: "register", Token: token}
	inv, err := s.store.Invite(token)
	if err != nil {
		data.Message = errs.MessageOf(err)
	} else {
		data.Kind = inv.Kind
		data.Name = inv.Email
	}
	s.pages.render(w, r, http.StatusOK, "public/register", data)
}

// handleLogout ends the session server side as well: a cookie injected by
// the test harness cannot always be cleared by the browser.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := s.tokenFrom(r); token != "" {
		s.tokens.Revoke(token)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, uitext.LoginURL, http.StatusFound)
}
