package pages

import (
	"github.com/playwright-community/playwright-go"
)

// Response patterns of the screens' defining data loads.
const (
	documentsHistoryPattern = "**/api/ocr/history?status=done&size=10&searchBy=NAME"
	automationListPattern   = "**/api/sbb/automation/list"
	hubListPattern          = "**/api/hubs/list"
	organizationsPattern    = "**/api/account-service/admin-console/organizations?**"
)

// Sidebar is the navigation panel shown on every signed-in screen.
type Sidebar struct {
	*Studio

	CompanySelector   playwright.Locator
	HomePoint         playwright.Locator
	WorkflowsPoint    playwright.Locator
	WebAutomations    playwright.Locator
	DocumentInsights  playwright.Locator
	SidesPoint        playwright.Locator
	DatastoresPoint   playwright.Locator
	FormsPoint        playwright.Locator
	BottomSection     playwright.Locator
	CabinetMenu       playwright.Locator
	SettingsPoint     playwright.Locator
	AdminConsolePoint playwright.Locator
	LogOutPoint       playwright.Locator
	ToggleButton      playwright.Locator
	Logo              playwright.Locator
}

func newSidebar(s *Studio) Sidebar {
	point := func(text string) playwright.Locator {
		return s.Page.Locator("li span").Filter(playwright.LocatorFilterOptions{HasText: text})
	}
	menu := func(text string) playwright.Locator {
		return s.Page.Locator("span").Filter(playwright.LocatorFilterOptions{HasText: text})
	}
	return Sidebar{
		Studio:            s,
		CompanySelector:   s.Page.Locator(".organization"),
		HomePoint:         point("Home"),
		WorkflowsPoint:    point("Workflows"),
		WebAutomations:    point("Web Automations"),
		DocumentInsights:  point("Document Insights"),
		SidesPoint:        point("SIDES"),
		DatastoresPoint:   point("Datastores"),
		FormsPoint:        point("Forms"),
		BottomSection:     s.Page.Locator(".bottom-section"),
		CabinetMenu:       s.Page.Locator(".bottom-section .name"),
		SettingsPoint:     menu("Settings"),
		AdminConsolePoint: menu("Admin Console"),
		LogOutPoint:       menu("Log out"),
		ToggleButton:      s.Page.Locator(`button[aria-label="toggle"]`),
		Logo:              s.Page.Locator(".logo"),
	}
}

// expand hovers the bottom section and opens the collapsed sidebar.
func (sb Sidebar) expand() error {
	if err := sb.BottomSection.Hover(); err != nil {
		return wrapAction("hover sidebar", err)
	}
	return wrapAction("expand sidebar", sb.ToggleButton.Click())
}

func (sb Sidebar) openCabinetMenu() error {
	if err := sb.expand(); err != nil {
		return err
	}
	return wrapAction("open personal cabinet menu", sb.CabinetMenu.Click())
}

// LogOut signs the user out from the personal cabinet menu.
func (sb Sidebar) LogOut() (*LoginPage, error) {
	if err := sb.BottomSection.Hover(); err != nil {
		return nil, wrapAction("hover sidebar", err)
	}
	if err := sb.CabinetMenu.Click(); err != nil {
		return nil, wrapAction("open personal cabinet menu", err)
	}
	if err := sb.LogOutPoint.Click(); err != nil {
		return nil, wrapAction("log out", err)
	}
	return NewLoginPage(sb.Studio), nil
}

// ToHome opens the home screen.
func (sb Sidebar) ToHome() (*HomePage, error) {
	if err := sb.HomePoint.Click(); err != nil {
		return nil, wrapAction("open home", err)
	}
	return NewHomePage(sb.Studio), nil
}

// ToDocumentsInsights opens Document Insights and waits for the processed
// documents list to load.
func (sb Sidebar) ToDocumentsInsights() (*DocumentsInsightsPage, error) {
	if err := sb.expand(); err != nil {
		return nil, err
	}
	if _, err := sb.Expect(click(sb.DocumentInsights), documentsHistoryPattern); err != nil {
		return nil, err
	}
	return NewDocumentsInsightsPage(sb.Studio), nil
}

// ToWebAutomations opens Web Automations and waits for the list to load.
func (sb Sidebar) ToWebAutomations() (*WebAutomationsPage, error) {
	if err := sb.expand(); err != nil {
		return nil, err
	}
	if _, err := sb.Expect(click(sb.WebAutomations), automationListPattern); err != nil {
		return nil, err
	}
	return NewWebAutomationsPage(sb.Studio), nil
}

// ToWorkflows opens Workflows.
func (sb Sidebar) ToWorkflows() (*WorkflowsPage, error) {
	if err := sb.WorkflowsPoint.Click(); err != nil {
		return nil, wrapAction("open workflows", err)
	}
	return NewWorkflowsPage(sb.Studio), nil
}

// ToSides opens SIDES.
func (sb Sidebar) ToSides() (*SidesPage, error) {
	if err := sb.SidesPoint.Click(); err != nil {
		return nil, wrapAction("open sides", err)
	}
	return NewSidesPage(sb.Studio), nil
}

// ToDatastores opens Datastores.
func (sb Sidebar) ToDatastores() (*DatastoresPage, error) {
	if err := sb.DatastoresPoint.Click(); err != nil {
		return nil, wrapAction("open datastores", err)
	}
	return NewDatastoresPage(sb.Studio), nil
}

// ToForms opens Forms.
func (sb Sidebar) ToForms() (*FormsPage, error) {
	if err := sb.FormsPoint.Click(); err != nil {
		return nil, wrapAction("open forms", err)
	}
	return NewFormsPage(sb.Studio), nil
}

// ToSettings opens account settings from the personal cabinet menu.
func (sb Sidebar) ToSettings() (*SettingsPage, error) {
	if err := sb.openCabinetMenu(); err != nil {
		return nil, err
	}
	if err := sb.SettingsPoint.Click(); err != nil {
		return nil, wrapAction("open settings", err)
	}
	return NewSettingsPage(sb.Studio), nil
}

// ToAdminConsole opens the admin console (support users only).
func (sb Sidebar) ToAdminConsole() (*AdminConsolePage, error) {
	if err := sb.openCabinetMenu(); err != nil {
		return nil, err
	}
	if err := sb.AdminConsolePoint.Click(); err != nil {
		return nil, wrapAction("open admin console", err)
	}
	return NewAdminConsolePage(sb.Studio), nil
}

// Popups are the dialogs shared by several screens.
type Popups struct {
	CancelButton     playwright.Locator
	DeleteButton     playwright.Locator
	DisableButton    playwright.Locator
	SaveButton       playwright.Locator
	NextButton       playwright.Locator
	AddTagButton     playwright.Locator
	ImportButton     playwright.Locator
	RemoveFileButton playwright.Locator
	InviteButton     playwright.Locator

	RenameInput            playwright.Locator
	TagKeyInput            playwright.Locator
	TagValueInput          playwright.Locator
	HubDescriptionInput    playwright.Locator
	AutomationNameInput    playwright.Locator
	InviteEmailInput       playwright.Locator
	InviteRoleSelector     playwright.Locator
	AdditionalOptionsCheck playwright.Locator
	KeyValueExtractorRadio playwright.Locator
	LabelExtractorRadio    playwright.Locator
	OutlineTypeCard        playwright.Locator
	ValueTypeCard          playwright.Locator

	Body        playwright.Locator
	Title       playwright.Locator
	Description playwright.Locator
	ViewDetails playwright.Locator
}

func newPopups(s *Studio) Popups {
	radio := func(text string) playwright.Locator {
		return s.Page.Locator("//label[contains(@class, 'radio-button-label')]").
			Filter(playwright.LocatorFilterOptions{HasText: text})
	}
	return Popups{
		CancelButton:     s.Button("Cancel"),
		DeleteButton:     s.Button("Delete"),
		DisableButton:    s.Button("Disable"),
		SaveButton:       s.Button("Save"),
		NextButton:       s.Button("Next"),
		AddTagButton:     s.Button("+ Add another tag"),
		ImportButton:     s.Page.Locator(`div[tabindex="-1"]`).GetByRole(*playwright.AriaRoleButton, playwright.LocatorGetByRoleOptions{Name: "Import", Exact: playwright.Bool(true)}),
		RemoveFileButton: s.Button("Remove file"),
		InviteButton:     s.Button("Invite"),

		RenameInput:            s.Page.Locator(`input[placeholder="Hub name"]`),
		TagKeyInput:            s.Page.Locator(".key"),
		TagValueInput:          s.Page.Locator(".value"),
		HubDescriptionInput:    s.Page.GetByRole(*playwright.AriaRoleTextbox, playwright.PageGetByRoleOptions{Name: "Enter description"}),
		AutomationNameInput:    s.Page.Locator("//input[contains(@class, 'this-input')]"),
		InviteEmailInput:       s.Page.Locator(`div[tabindex="-1"] [name="email"]`),
		InviteRoleSelector:     s.Page.Locator(`select[name="role"]`),
		AdditionalOptionsCheck: s.Page.Locator(`div[tabindex="-1"] input[type="checkbox"]`),
		KeyValueExtractorRadio: radio("Key-value Extractor"),
		LabelExtractorRadio:    radio("Label-based Extractor"),
		OutlineTypeCard:        s.Page.Locator(`div[class="menu"] div[class="menu-item"]:nth-child(1)`),
		ValueTypeCard:          s.Page.Locator(`div[class="menu"] div[class="menu-item"]:nth-child(2)`),

		Body:        s.Page.Locator(`div[tabindex="-1"]`),
		Title:       s.Page.Locator(`div[tabindex="-1"] h2`),
		Description: s.Page.Locator(`div[tabindex="-1"] p`),
		ViewDetails: s.Page.Locator("#view-details"),
	}
}
