package pages

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

const (
	createInviteOwnerPattern = "**/api/account-service/auth-user/create-invite-owner"
	createInviteUserPattern  = "**/api/account-service/auth-user/create-invite-user"
	addOnsPattern            = "**/api/account-service/admin-console/organizations/*/add-ons"
)

// AdminConsolePage is the support-only console of users and companies.
type AdminConsolePage struct {
	*Studio
	Sidebar
	Popups

	Title            playwright.Locator
	InternalUsersTab playwright.Locator
	CompaniesTab     playwright.Locator
}

// NewAdminConsolePage binds the admin console locators.
func NewAdminConsolePage(s *Studio) *AdminConsolePage {
	tab := func(text string) playwright.Locator {
		return s.Page.Locator("div.tab__left").Filter(playwright.LocatorFilterOptions{HasText: text})
	}
	return &AdminConsolePage{
		Studio:           s,
		Sidebar:          newSidebar(s),
		Popups:           newPopups(s),
		Title:            s.Page.Locator(".page-content .header h1"),
		InternalUsersTab: tab("Internal Users"),
		CompaniesTab:     tab("Companies"),
	}
}

// OpenCompanies switches to the Companies tab and waits for the
// organization list.
func (p *AdminConsolePage) OpenCompanies() (*CompaniesTab, error) {
	if _, err := p.Expect(click(p.CompaniesTab), organizationsPattern); err != nil {
		return nil, err
	}
	return newCompaniesTab(p.Studio), nil
}

// CompaniesTab lists organizations and invites company owners.
type CompaniesTab struct {
	*Studio
	Popups

	FilterButton      playwright.Locator
	InviteOwnerButton playwright.Locator
	Rows              playwright.Locator
	Filter            FilterTab
}

// FilterTab narrows the company list.
type FilterTab struct {
	CompanyInput playwright.Locator
	ApplyButton  playwright.Locator
}

func newCompaniesTab(s *Studio) *CompaniesTab {
	return &CompaniesTab{
		Studio:            s,
		Popups:            newPopups(s),
		FilterButton:      s.Button("Filter"),
		InviteOwnerButton: s.Button("Invite new owner"),
		Rows:              s.Page.Locator("tbody tr"),
		Filter: FilterTab{
			CompanyInput: s.Page.Locator(`input[name="organizationName"]`),
			ApplyButton:  s.Button("Apply"),
		},
	}
}

// Row returns the row of the company with the given name.
func (t *CompaniesTab) Row(name string) playwright.Locator {
	return t.Rows.Filter(playwright.LocatorFilterOptions{
		Has: t.Page.Locator(fmt.Sprintf(`td div:text-is(%q)`, name)),
	})
}

// FilterBy applies the company name filter and waits for the filtered list.
func (t *CompaniesTab) FilterBy(name string) error {
	if err := t.FilterButton.Click(); err != nil {
		return wrapAction("open filter", err)
	}
	if err := t.Filter.CompanyInput.Fill(name); err != nil {
		return wrapAction("fill company name", err)
	}
	_, err := t.Expect(click(t.Filter.ApplyButton), organizationsPattern)
	return err
}

// InviteOwner sends a company-owner invitation to email. The success popup
// stays open; its title is Popups.Title.
func (t *CompaniesTab) InviteOwner(email string) error {
	if err := t.InviteOwnerButton.Click(); err != nil {
		return wrapAction("open invite owner", err)
	}
	if err := t.InviteEmailInput.Fill(email); err != nil {
		return wrapAction("fill invite email", err)
	}
	_, err := t.Expect(click(t.InviteButton), createInviteOwnerPattern)
	return err
}

// ToCompany opens the company page of the named company.
func (t *CompaniesTab) ToCompany(name string) (*CompanyPage, error) {
	if err := t.Row(name).Click(); err != nil {
		return nil, wrapAction("open company", err)
	}
	return NewCompanyPage(t.Studio), nil
}

// CompanyPage shows one organization: its users and add-ons.
type CompanyPage struct {
	*Studio
	Popups

	Name             playwright.Locator
	UsersTab         playwright.Locator
	AddOnsTab        playwright.Locator
	InviteUserButton playwright.Locator
	AddOns           AddOns
}

// AddOns is the add-on switchboard of a company.
type AddOns struct {
	WebAutomations    playwright.Locator
	DocumentsInsights playwright.Locator
	Sides             playwright.Locator
	Datastores        playwright.Locator
	Forms             playwright.Locator
	SaveButton        playwright.Locator
	ConfirmSave       playwright.Locator
}

// NewCompanyPage binds the company page locators.
func NewCompanyPage(s *Studio) *CompanyPage {
	tab := func(text string) playwright.Locator {
		return s.Page.Locator("div.tab__left").Filter(playwright.LocatorFilterOptions{HasText: text})
	}
	addOn := func(text string) playwright.Locator {
		return s.Page.Locator("label span").Filter(playwright.LocatorFilterOptions{HasText: text})
	}
	return &CompanyPage{
		Studio:           s,
		Popups:           newPopups(s),
		Name:             s.Page.Locator(".page-content .header h1"),
		UsersTab:         tab("Users"),
		AddOnsTab:        tab("Add-ons"),
		InviteUserButton: s.Button("Invite user"),
		AddOns: AddOns{
			WebAutomations:    addOn("Web Automations"),
			DocumentsInsights: addOn("Document Insights"),
			Sides:             addOn("SIDES"),
			Datastores:        addOn("Datastores"),
			Forms:             addOn("Forms"),
			SaveButton:        s.Page.Locator(".add-ons").GetByRole(*playwright.AriaRoleButton, playwright.LocatorGetByRoleOptions{Name: "Save", Exact: playwright.Bool(true)}),
			ConfirmSave:       s.Page.Locator(`div[width="720"][tabindex="-1"] button`).Filter(playwright.LocatorFilterOptions{HasText: "Save"}),
		},
	}
}

// Roles offered by the invite user popup, as option values.
const (
	InviteRoleCompanyAdministrator = "COMPANY_ADMINISTRATOR"
	InviteRoleCompanyUser          = "COMPANY_USER"
	InviteRoleSupport              = "SUPPORT"
)

// InviteUser invites email to the company with role. The success popup
// stays open.
func (p *CompanyPage) InviteUser(email, role string) error {
	if err := p.InviteUserButton.Click(); err != nil {
		return wrapAction("open invite user", err)
	}
	if err := p.InviteEmailInput.Fill(email); err != nil {
		return wrapAction("fill invite email", err)
	}
	if _, err := p.InviteRoleSelector.SelectOption(playwright.SelectOptionValues{Values: &[]string{role}}); err != nil {
		return wrapAction("select invite role", err)
	}
	_, err := p.Expect(click(p.InviteButton), createInviteUserPattern)
	return err
}

// ToggleAddOns flips the given add-on checkboxes and saves after the
// confirmation popup.
func (p *CompanyPage) ToggleAddOns(addOns ...playwright.Locator) error {
	if err := p.AddOnsTab.Click(); err != nil {
		return wrapAction("open add-ons", err)
	}
	for _, a := range addOns {
		if err := a.Click(); err != nil {
			return wrapAction("toggle add-on", err)
		}
	}
	if err := p.AddOns.SaveButton.Click(); err != nil {
		return wrapAction("save add-ons", err)
	}
	_, err := p.Expect(click(p.AddOns.ConfirmSave), addOnsPattern)
	return err
}
