// Package pages models Plextera Studio screens as page objects.
//
// Each screen type exposes its locators and the actions a user can take on
// it. Actions that talk to the backend follow one protocol: register a wait
// for the API response, perform the click, then require a 2xx status (see
// Expect). Navigation methods return the page object of the screen they
// land on, bound to the same browser page.
package pages

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

// Studio is the browser page plus the deployment it is pointed at. Every
// page object embeds it.
type Studio struct {
	Page    playwright.Page
	BaseURL string
	Timeout time.Duration
}

// NewStudio binds a browser page to a studio deployment and applies the
// action timeout to every locator and response wait on it.
func NewStudio(page playwright.Page, baseURL string, timeout time.Duration) *Studio {
	ms := float64(timeout.Milliseconds())
	page.SetDefaultTimeout(ms)
	page.SetDefaultNavigationTimeout(ms)
	return &Studio{Page: page, BaseURL: strings.TrimRight(baseURL, "/"), Timeout: timeout}
}

// Goto opens a path (or absolute URL) and waits for DOMContentLoaded.
func (s *Studio) Goto(path string) error {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = s.BaseURL + path
	}
	if _, err := s.Page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return errs.Wrap(errs.Unavailable, fmt.Sprintf("pages: open %s", target), err)
	}
	return nil
}

// Expect runs the Page-Action-Wait protocol on this page.
func (s *Studio) Expect(trigger func() error, patterns ...string) ([]playwright.Response, error) {
	return Expect(s.Page, trigger, patterns...)
}

// Assert returns web-first assertions using the action timeout.
func (s *Studio) Assert() playwright.PlaywrightAssertions {
	return playwright.NewPlaywrightAssertions(float64(s.Timeout.Milliseconds()))
}

// Button returns the button with the given accessible name.
func (s *Studio) Button(name string) playwright.Locator {
	return s.Page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
		Name:  name,
		Exact: playwright.Bool(true),
	})
}

// OpenLogin opens the login screen.
func (s *Studio) OpenLogin() (*LoginPage, error) {
	if err := s.Goto(uitext.LoginURL); err != nil {
		return nil, err
	}
	return NewLoginPage(s), nil
}

// OpenHome opens the studio root, which an authenticated session lands on.
func (s *Studio) OpenHome() (*HomePage, error) {
	if err := s.Goto("/"); err != nil {
		return nil, err
	}
	return NewHomePage(s), nil
}

// OpenLink opens a link taken from an email, such as a registration or
// password reset link.
func (s *Studio) OpenLink(link string) error {
	return s.Goto(link)
}

func click(l playwright.Locator) func() error {
	return func() error { return l.Click() }
}

func wrapAction(action string, err error) error {
	if err == nil {
		return nil
	}
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	return errs.Wrap(errs.Internal, "pages: "+action, err)
}
