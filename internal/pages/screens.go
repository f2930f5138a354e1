package pages

import (
	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/plextera-e2e/internal/uitext"
)

// WorkflowsPage lists workflows and their runs.
type WorkflowsPage struct {
	*Studio
	Sidebar

	WorkflowsTab   playwright.Locator
	RunsTab        playwright.Locator
	Title          playwright.Locator
	Description    playwright.Locator
	AddNewWorkflow playwright.Locator
}

func NewWorkflowsPage(s *Studio) *WorkflowsPage {
	return &WorkflowsPage{
		Studio:         s,
		Sidebar:        newSidebar(s),
		WorkflowsTab:   s.Button("Workflows"),
		RunsTab:        s.Button("Runs"),
		Title:          s.Page.Locator(".content h1"),
		Description:    s.Page.Locator(".content p"),
		AddNewWorkflow: s.Button("Add new workflow"),
	}
}

// DatastoresPage lists datastores.
type DatastoresPage struct {
	*Studio
	Sidebar

	Title           playwright.Locator
	AddNewButton    playwright.Locator
	Table           playwright.Locator
	NoDataAvailable playwright.Locator
}

func NewDatastoresPage(s *Studio) *DatastoresPage {
	return &DatastoresPage{
		Studio:          s,
		Sidebar:         newSidebar(s),
		Title:           s.Page.Locator(".page-content .header"),
		AddNewButton:    s.Button("Add New"),
		Table:           s.Page.Locator(".table-wrapper table"),
		NoDataAvailable: s.Page.Locator(".table-wrapper .content"),
	}
}

// FormsPage lists forms.
type FormsPage struct {
	*Studio
	Sidebar

	Title            playwright.Locator
	CreateFormButton playwright.Locator
	Table            playwright.Locator
	NoDataAvailable  playwright.Locator
}

func NewFormsPage(s *Studio) *FormsPage {
	return &FormsPage{
		Studio:           s,
		Sidebar:          newSidebar(s),
		Title:            s.Page.Locator(".page-content .header h1"),
		CreateFormButton: s.Button("Create Form"),
		Table:            s.Page.Locator(".page-content table"),
		NoDataAvailable:  s.Page.Locator(".content p"),
	}
}

// AlertsPage lists alerts. It has no sidebar entry and is opened by URL.
type AlertsPage struct {
	*Studio
	Sidebar

	Title              playwright.Locator
	FilterButton       playwright.Locator
	ResetFiltersButton playwright.Locator
	Table              playwright.Locator
	NoDataAvailable    playwright.Locator
}

func NewAlertsPage(s *Studio) *AlertsPage {
	return &AlertsPage{
		Studio:             s,
		Sidebar:            newSidebar(s),
		Title:              s.Page.Locator(".page-content .header"),
		FilterButton:       s.Button("Filter"),
		ResetFiltersButton: s.Button("Reset Filters"),
		Table:              s.Page.Locator(".page-content table"),
		NoDataAvailable:    s.Page.Locator(".content p"),
	}
}

// SidesPage shows state exchanges and their history.
type SidesPage struct {
	*Studio
	Sidebar

	StatesAndExchangesTab playwright.Locator
	HistoryTab            playwright.Locator
	PullScheduleButton    playwright.Locator
	TestButton            playwright.Locator
	PullButton            playwright.Locator
	Table                 playwright.Locator
}

func NewSidesPage(s *Studio) *SidesPage {
	return &SidesPage{
		Studio:                s,
		Sidebar:               newSidebar(s),
		StatesAndExchangesTab: s.Page.Locator("#simple-tab-0"),
		HistoryTab:            s.Page.Locator("#simple-tab-1"),
		PullScheduleButton:    s.Button("Pull schedule"),
		TestButton:            s.Button("Test"),
		PullButton:            s.Button("Pull"),
		Table:                 s.Page.Locator(".MuiTable-root"),
	}
}

// SettingsPage is the account settings screen.
type SettingsPage struct {
	*Studio
	Sidebar

	Title      playwright.Locator
	AccountTab playwright.Locator
	EmailField playwright.Locator
}

func NewSettingsPage(s *Studio) *SettingsPage {
	return &SettingsPage{
		Studio:     s,
		Sidebar:    newSidebar(s),
		Title:      s.Page.Locator(".page-content .header h1"),
		AccountTab: s.Page.Locator("div.tab__left").Filter(playwright.LocatorFilterOptions{HasText: "Account"}),
		EmailField: s.Page.Locator(`.settings input[name="email"]`),
	}
}

// OpenAlerts opens the alerts screen by URL.
func (s *Studio) OpenAlerts() (*AlertsPage, error) {
	if err := s.Goto(uitext.AlertsURL); err != nil {
		return nil, err
	}
	return NewAlertsPage(s), nil
}
