package browser

import (
	"context"
	"testing"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/fixtures"
	"github.com/kuitang/plextera-e2e/internal/mailbox"
	"github.com/kuitang/plextera-e2e/internal/pages"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

func openCompanies(t *testing.T, env *BrowserTestEnv) (*pages.AdminConsolePage, *pages.CompaniesTab) {
	t.Helper()
	home := openHome(t, env, fixtures.RoleSupport)
	admin, err := home.ToAdminConsole()
	if err != nil {
		t.Fatalf("Failed to open admin console: %v", err)
	}
	expectText(t, env, admin.Title, uitext.AdminConsoleTitle)
	companies, err := admin.OpenCompanies()
	if err != nil {
		t.Fatalf("Failed to open companies: %v", err)
	}
	return admin, companies
}

// deleteCompanyOnCleanup removes a company created through registration. Its
// id is only known once the owner has registered, so it is looked up by
// name at teardown.
func deleteCompanyOnCleanup(t *testing.T, env *BrowserTestEnv, name string) {
	env.Tracker(t).Defer("delete company "+name, func(ctx context.Context) error {
		token, err := env.Sessions.Token(ctx, fixtures.RoleSupport)
		if err != nil {
			return err
		}
		org, err := env.API.FindOrganization(ctx, token, name)
		if errs.Is(err, errs.NotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return env.API.DeleteOrganization(ctx, token, org.ID)
	})
}

// registerCompany creates a company through an API owner invitation and a
// browser registration, and returns its name. The company is deleted at
// teardown.
func registerCompany(t *testing.T, env *BrowserTestEnv) string {
	t.Helper()
	owner := env.Credential(t, fixtures.RoleRegistrationOwner)
	companyName := UniqueName(owner.CompanyName)
	deleteCompanyOnCleanup(t, env, companyName)

	ctx := env.Context(t)
	inbox := env.CreateInbox(t)
	token, err := env.Sessions.Token(ctx, fixtures.RoleSupport)
	if err != nil {
		t.Fatalf("Failed to log in as support: %v", err)
	}
	invite, err := env.Data.Payload("invite_owner_payload")
	if err != nil {
		t.Fatalf("Failed to load invite payload: %v", err)
	}
	invite["email"] = inbox.EmailAddress
	if err := env.API.CreateInviteOwner(ctx, token, invite); err != nil {
		t.Fatalf("Failed to invite owner: %v", err)
	}
	link, err := mailbox.RegisterInviteLink(env.WaitForEmail(t, inbox.ID).Body)
	if err != nil {
		t.Fatalf("Invitation email has no registration link: %v", err)
	}
	s := env.Studio(t, "")
	if err := s.OpenLink(link); err != nil {
		t.Fatalf("Failed to open registration link: %v", err)
	}
	if _, err := pages.NewRegisterCompanyOwnerPage(s).Register(pages.OwnerRegistration{
		FirstName:   owner.FirstName,
		LastName:    owner.LastName,
		Password:    owner.Password,
		CompanyName: companyName,
	}); err != nil {
		t.Fatalf("Failed to register owner: %v", err)
	}
	return companyName
}

// inviteAndRegisterUser invites a fresh inbox into a new company with role
// from the company page, registers it as fixtureRole and checks that the
// new account logs in with that role.
func inviteAndRegisterUser(t *testing.T, env *BrowserTestEnv, fixtureRole, role string) {
	t.Helper()
	user := env.Credential(t, fixtureRole)
	companyName := registerCompany(t, env)

	_, companies := openCompanies(t, env)
	if err := companies.FilterBy(companyName); err != nil {
		t.Fatalf("Failed to filter companies: %v", err)
	}
	company, err := companies.ToCompany(companyName)
	if err != nil {
		t.Fatalf("Failed to open company: %v", err)
	}
	inbox := env.CreateInbox(t)
	if err := company.InviteUser(inbox.EmailAddress, role); err != nil {
		t.Fatalf("Failed to invite %s: %v", role, err)
	}
	expectText(t, env, company.Title, uitext.SuccessPopupTitle)

	link, err := mailbox.RegisterInviteLink(env.WaitForEmail(t, inbox.ID).Body)
	if err != nil {
		t.Fatalf("Invitation email has no registration link: %v", err)
	}
	s := env.Studio(t, "")
	if err := s.OpenLink(link); err != nil {
		t.Fatalf("Failed to open registration link: %v", err)
	}
	success, err := pages.NewRegisterCompanyUserPage(s).Register(pages.UserRegistration{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Password:  user.Password,
	})
	if err != nil {
		t.Fatalf("Failed to register %s: %v", role, err)
	}
	expectText(t, env, success.Title, uitext.SuccessPopupTitle)

	login, err := success.ToLogin()
	if err != nil {
		t.Fatalf("Failed to go to login: %v", err)
	}
	home, err := login.LogIn(inbox.EmailAddress, user.Password)
	if err != nil {
		t.Fatalf("New %s cannot log in: %v", role, err)
	}
	expectText(t, env, home.UserGreeting, uitext.HomePageUserTitle+user.FirstName+"!")

	ctx := env.Context(t)
	token, err := env.API.Login(ctx, map[string]any{"email": inbox.EmailAddress, "password": user.Password})
	if err != nil {
		t.Fatalf("API login failed: %v", err)
	}
	me, err := env.API.Me(ctx, token)
	if err != nil {
		t.Fatalf("Failed to read account: %v", err)
	}
	if me.Role != role {
		t.Fatalf("Registered role = %q, want %q", me.Role, role)
	}
}

// =============================================================================
// Admin console
// =============================================================================

func TestBrowser_AdminConsole_InviteAndRegisterOwner(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	owner := env.Credential(t, fixtures.RoleRegistrationOwner)
	companyName := UniqueName(owner.CompanyName)
	deleteCompanyOnCleanup(t, env, companyName)

	_, companies := openCompanies(t, env)
	inbox := env.CreateInbox(t)
	if err := companies.InviteOwner(inbox.EmailAddress); err != nil {
		t.Fatalf("Failed to invite owner: %v", err)
	}
	expectText(t, env, companies.Title, uitext.SuccessPopupTitle)

	email := env.WaitForEmail(t, inbox.ID)
	link, err := mailbox.RegisterInviteLink(email.Body)
	if err != nil {
		t.Fatalf("Invitation email has no registration link: %v", err)
	}

	s := env.Studio(t, "")
	if err := s.OpenLink(link); err != nil {
		t.Fatalf("Failed to open registration link: %v", err)
	}
	success, err := pages.NewRegisterCompanyOwnerPage(s).Register(pages.OwnerRegistration{
		FirstName:   owner.FirstName,
		LastName:    owner.LastName,
		Password:    owner.Password,
		CompanyName: companyName,
	})
	if err != nil {
		t.Fatalf("Failed to register owner: %v", err)
	}
	expectText(t, env, success.Title, uitext.SuccessPopupTitle)
	expectText(t, env, success.Description, uitext.RegisterSuccessDescription)

	login, err := success.ToLogin()
	if err != nil {
		t.Fatalf("Failed to go to login: %v", err)
	}
	home, err := login.LogIn(inbox.EmailAddress, owner.Password)
	if err != nil {
		t.Fatalf("New owner cannot log in: %v", err)
	}
	expectText(t, env, home.UserGreeting, uitext.HomePageUserTitle+owner.FirstName+"!")
	expectText(t, env, home.CompanySelector, companyName)

	if err := companies.FilterBy(companyName); err != nil {
		t.Fatalf("Failed to filter companies: %v", err)
	}
	expectVisible(t, env, companies.Row(companyName), "company row")
}

func TestBrowser_AdminConsole_ToggleAddOns(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	companyName := registerCompany(t, env)

	_, companies := openCompanies(t, env)
	if err := companies.FilterBy(companyName); err != nil {
		t.Fatalf("Failed to filter companies: %v", err)
	}
	company, err := companies.ToCompany(companyName)
	if err != nil {
		t.Fatalf("Failed to open company: %v", err)
	}
	expectText(t, env, company.Name, companyName)

	if err := company.ToggleAddOns(company.AddOns.Forms); err != nil {
		t.Fatalf("Failed to save add-ons: %v", err)
	}
	if _, err := company.Page.Reload(); err != nil {
		t.Fatalf("Failed to reload company: %v", err)
	}
	if err := company.AddOnsTab.Click(); err != nil {
		t.Fatalf("Failed to open add-ons: %v", err)
	}
	forms := company.Page.Locator(`.add-ons input[value="Forms"]`)
	if err := company.Assert().Locator(forms).Not().ToBeChecked(); err != nil {
		t.Fatalf("Forms add-on is still enabled: %v", err)
	}
}

func TestBrowser_AdminConsole_InviteAndRegisterCompanyAdministrator(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	inviteAndRegisterUser(t, env, fixtures.RoleRegistrationAdmin, pages.InviteRoleCompanyAdministrator)
}

func TestBrowser_AdminConsole_InviteAndRegisterCompanyUser(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	inviteAndRegisterUser(t, env, fixtures.RoleRegistrationUser, pages.InviteRoleCompanyUser)
}

func TestBrowser_AdminConsole_InviteAndRegisterSupportUser(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	inviteAndRegisterUser(t, env, fixtures.RoleRegistrationSupport, pages.InviteRoleSupport)
}

func TestBrowser_AdminConsole_NotForCompanyUsers(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	home := openHome(t, env, fixtures.RoleCompanyUser)

	expectHidden(t, env, home.AdminConsolePoint, "Admin Console menu point")
	if err := home.Goto(uitext.AdminConsoleURL); err != nil {
		t.Fatalf("Failed to open admin console: %v", err)
	}
	expectURL(t, env, home.Page, "/")
}
