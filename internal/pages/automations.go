package pages

import (
	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

const (
	automationPattern       = "**/api/sbb/automation"
	automationImportPattern = "**/api/sbb/automation/import"
)

// WebAutomationsPage lists web automations, fragments and credentials.
type WebAutomationsPage struct {
	*Studio
	Sidebar
	Popups

	CreateButton   playwright.Locator
	ImportButton   playwright.Locator
	FileInput      playwright.Locator
	Table          playwright.Locator
	AutomationsTab playwright.Locator
	FragmentsTab   playwright.Locator
	CredentialsTab playwright.Locator
	NoDataRow      playwright.Locator
}

// NewWebAutomationsPage binds the Web Automations locators.
func NewWebAutomationsPage(s *Studio) *WebAutomationsPage {
	tab := func(text string) playwright.Locator {
		return s.Page.Locator(".nav-item a").Filter(playwright.LocatorFilterOptions{HasText: text})
	}
	return &WebAutomationsPage{
		Studio:         s,
		Sidebar:        newSidebar(s),
		Popups:         newPopups(s),
		CreateButton:   s.Button("Create"),
		ImportButton:   s.Page.Locator(".page-content").GetByRole(*playwright.AriaRoleButton, playwright.LocatorGetByRoleOptions{Name: "Import", Exact: playwright.Bool(true)}),
		FileInput:      s.Page.Locator(`div[tabindex="-1"] input[type="file"]`),
		Table:          s.Page.Locator(`[tablename="automations"]`),
		AutomationsTab: tab("Automations"),
		FragmentsTab:   tab("Fragments"),
		CredentialsTab: tab("Credentials"),
		NoDataRow:      s.Page.Locator(".mat-cell"),
	}
}

// Row returns the table row of the automation with the given name.
func (p *WebAutomationsPage) Row(name string) playwright.Locator {
	return p.Table.Locator("tr").Filter(playwright.LocatorFilterOptions{HasText: name})
}

// Create names a new automation in the create popup and returns its editor
// together with the id from the create response.
func (p *WebAutomationsPage) Create(name string) (*WebAutomationPage, string, error) {
	if err := p.CreateButton.Click(); err != nil {
		return nil, "", wrapAction("open create automation", err)
	}
	if err := p.AutomationNameInput.Fill(name); err != nil {
		return nil, "", wrapAction("fill automation name", err)
	}
	resp, err := ExpectOne(p.Page, click(p.SaveButton), automationPattern)
	if err != nil {
		return nil, "", err
	}
	id, err := ResourceID(resp)
	if err != nil {
		return nil, "", err
	}
	return NewWebAutomationPage(p.Studio, id), id, nil
}

// ImportResult is what an import reports: the new automation id and the
// automation list the page reloaded afterwards.
type ImportResult struct {
	ID   string
	List []AutomationSummary
}

// AutomationSummary is one entry of the automation list response.
type AutomationSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Import uploads an automation export file and waits for both the import
// and the list reload.
func (p *WebAutomationsPage) Import(path string) (*ImportResult, error) {
	if err := p.ImportButton.Click(); err != nil {
		return nil, wrapAction("open import", err)
	}
	if err := p.FileInput.SetInputFiles(path); err != nil {
		return nil, wrapAction("choose file", err)
	}
	if err := p.RemoveFileButton.WaitFor(); err != nil {
		return nil, wrapAction("wait for upload", err)
	}
	responses, err := p.Expect(click(p.Popups.ImportButton), automationImportPattern, automationListPattern)
	if err != nil {
		return nil, err
	}
	id, err := ResourceID(responses[0])
	if err != nil {
		return nil, err
	}
	var list struct {
		Content []AutomationSummary `json:"content"`
	}
	if err := DecodeJSON(responses[1], &list); err != nil {
		return nil, err
	}
	return &ImportResult{ID: id, List: list.Content}, nil
}

// Contains reports whether the list holds the automation id.
func (r *ImportResult) Contains(id string) bool {
	for _, a := range r.List {
		if a.ID == id {
			return true
		}
	}
	return false
}

// WebAutomationPage is the editor of one automation.
type WebAutomationPage struct {
	*Studio

	ID         string
	Title      playwright.Locator
	SaveButton playwright.Locator
}

// NewWebAutomationPage binds the editor of automation id.
func NewWebAutomationPage(s *Studio, id string) *WebAutomationPage {
	return &WebAutomationPage{
		Studio:     s,
		ID:         id,
		Title:      s.Page.Locator(".editor .editor__name"),
		SaveButton: s.Button("Save"),
	}
}

// Save stores the automation and waits for the update request.
func (p *WebAutomationPage) Save() error {
	if p.ID == "" {
		return errs.New(errs.InvalidArgument, "pages: automation id is required")
	}
	_, err := p.Expect(click(p.SaveButton), automationPattern+"/"+p.ID)
	return err
}

// ToList reopens the automation list and waits for it to load.
func (p *WebAutomationPage) ToList() (*WebAutomationsPage, error) {
	open := func() error { return p.Goto(uitext.WebAutomationsURL) }
	if _, err := p.Expect(open, automationListPattern); err != nil {
		return nil, err
	}
	return NewWebAutomationsPage(p.Studio), nil
}
