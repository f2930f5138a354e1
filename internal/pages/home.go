package pages

import (
	"github.com/playwright-community/playwright-go"
)

// HomePage is the landing screen of a signed-in user.
type HomePage struct {
	*Studio
	Sidebar
	Popups

	UserGreeting playwright.Locator
	MainGreeting playwright.Locator
	Description  playwright.Locator
}

// NewHomePage binds the home screen locators.
func NewHomePage(s *Studio) *HomePage {
	return &HomePage{
		Studio:       s,
		Sidebar:      newSidebar(s),
		Popups:       newPopups(s),
		UserGreeting: s.Page.Locator(".page-content .greeting").First(),
		MainGreeting: s.Page.Locator(".content .greeting"),
		Description:  s.Page.Locator(".content .info"),
	}
}
