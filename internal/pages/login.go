package pages

import (
	"github.com/playwright-community/playwright-go"
)

const (
	loginPattern          = "**/api/auth/login"
	forgotPasswordPattern = "**/api/account-service/auth-user/forgot-password"
	createPasswordPattern = "**/api/account-service/auth-user/create-password"
)

// LoginPage is the sign-in screen.
type LoginPage struct {
	*Studio

	EmailInput     playwright.Locator
	PasswordInput  playwright.Locator
	LoginButton    playwright.Locator
	Title          playwright.Locator
	ForgotPassword playwright.Locator
	ErrorMessage   playwright.Locator
}

// NewLoginPage binds the login screen locators.
func NewLoginPage(s *Studio) *LoginPage {
	return &LoginPage{
		Studio:         s,
		EmailInput:     s.Page.Locator("#email"),
		PasswordInput:  s.Page.Locator("#password"),
		LoginButton:    s.Button("Log in"),
		Title:          s.Page.Locator(".MuiContainer-root h1"),
		ForgotPassword: s.Page.Locator(`div[class="login__forgot"]`),
		ErrorMessage:   s.Page.Locator(".MuiAlert-message"),
	}
}

func (p *LoginPage) fill(email, password string) error {
	if err := p.EmailInput.Fill(email); err != nil {
		return wrapAction("fill email", err)
	}
	return wrapAction("fill password", p.PasswordInput.Fill(password))
}

// LogIn submits valid credentials and returns the home screen.
func (p *LoginPage) LogIn(email, password string) (*HomePage, error) {
	if err := p.fill(email, password); err != nil {
		return nil, err
	}
	if _, err := p.Expect(click(p.LoginButton), loginPattern); err != nil {
		return nil, err
	}
	home := NewHomePage(p.Studio)
	if err := home.UserGreeting.WaitFor(); err != nil {
		return nil, wrapAction("wait for home", err)
	}
	return home, nil
}

// TryLogIn submits credentials that may be rejected and returns the status
// of the login response. The screen stays on the login page on failure.
func (p *LoginPage) TryLogIn(email, password string) (int, error) {
	if err := p.fill(email, password); err != nil {
		return 0, err
	}
	responses, err := ExpectAny(p.Page, click(p.LoginButton), loginPattern)
	if err != nil {
		return 0, err
	}
	return responses[0].Status(), nil
}

// ToForgotPassword follows the "Forgot password" link.
func (p *LoginPage) ToForgotPassword() (*ForgotPasswordPage, error) {
	if err := p.ForgotPassword.Click(); err != nil {
		return nil, wrapAction("open forgot password", err)
	}
	return NewForgotPasswordPage(p.Studio), nil
}

// ForgotPasswordPage requests a password reset email.
type ForgotPasswordPage struct {
	*Studio

	EmailInput   playwright.Locator
	SendButton   playwright.Locator
	BackToLogin  playwright.Locator
	Title        playwright.Locator
	Description  playwright.Locator
	ResendText   playwright.Locator
	ErrorMessage playwright.Locator
}

// NewForgotPasswordPage binds the forgot-password screen locators.
func NewForgotPasswordPage(s *Studio) *ForgotPasswordPage {
	return &ForgotPasswordPage{
		Studio:       s,
		EmailInput:   s.Page.Locator(`div[class="forgot"] input[name="email"]`),
		SendButton:   s.Button("Send"),
		BackToLogin:  s.Button("Back to log in"),
		Title:        s.Page.Locator("div.forgot__head h1"),
		Description:  s.Page.Locator("div.forgot__head p.forgot__text"),
		ResendText:   s.Page.Locator("div.forgot p.forgot__resend"),
		ErrorMessage: s.Page.Locator(`[type="ERROR"]`),
	}
}

// Send submits the form for email and waits for the reset request.
func (p *ForgotPasswordPage) Send(email string) error {
	if err := p.EmailInput.Fill(email); err != nil {
		return wrapAction("fill email", err)
	}
	_, err := p.Expect(click(p.SendButton), forgotPasswordPattern)
	return err
}

// SendInvalid submits a value that client-side validation rejects; no
// request is expected.
func (p *ForgotPasswordPage) SendInvalid(email string) error {
	if err := p.EmailInput.Fill(email); err != nil {
		return wrapAction("fill email", err)
	}
	return wrapAction("send", p.SendButton.Click())
}

// ToLogin goes back to the login screen.
func (p *ForgotPasswordPage) ToLogin() (*LoginPage, error) {
	if err := p.BackToLogin.Click(); err != nil {
		return nil, wrapAction("back to log in", err)
	}
	return NewLoginPage(p.Studio), nil
}

// UpdatePasswordPage is opened from the create-password email link.
type UpdatePasswordPage struct {
	*Studio

	Title                playwright.Locator
	Description          playwright.Locator
	NewPasswordInput     playwright.Locator
	ConfirmPasswordInput playwright.Locator
	UpdateButton         playwright.Locator
	BackToLogin          playwright.Locator
	ErrorMessage         playwright.Locator
}

// NewUpdatePasswordPage binds the update-password screen locators.
func NewUpdatePasswordPage(s *Studio) *UpdatePasswordPage {
	return &UpdatePasswordPage{
		Studio:               s,
		Title:                s.Page.Locator(`div[class="update"] h1`),
		Description:          s.Page.Locator(`div[class="update"] p[class="update__text"]`),
		NewPasswordInput:     s.Page.Locator("#password"),
		ConfirmPasswordInput: s.Page.Locator("#passwordConfirmation"),
		UpdateButton:         s.Button("Update"),
		BackToLogin:          s.Button("Back to log in"),
		ErrorMessage:         s.Page.Locator(`div[class="update"] [type="ERROR"]`),
	}
}

// Fill types the new password into both fields.
func (p *UpdatePasswordPage) Fill(password, confirmation string) error {
	if err := p.NewPasswordInput.Fill(password); err != nil {
		return wrapAction("fill new password", err)
	}
	return wrapAction("fill confirmation", p.ConfirmPasswordInput.Fill(confirmation))
}

// Update sets a new password and waits for the backend to accept it.
func (p *UpdatePasswordPage) Update(password string) error {
	if err := p.Fill(password, password); err != nil {
		return err
	}
	_, err := p.Expect(click(p.UpdateButton), createPasswordPattern)
	return err
}

// TryUpdate submits a password the backend may reject and returns the
// response status.
func (p *UpdatePasswordPage) TryUpdate(password string) (int, error) {
	if err := p.Fill(password, password); err != nil {
		return 0, err
	}
	responses, err := ExpectAny(p.Page, click(p.UpdateButton), createPasswordPattern)
	if err != nil {
		return 0, err
	}
	return responses[0].Status(), nil
}

// ToLogin goes back to the login screen.
func (p *UpdatePasswordPage) ToLogin() (*LoginPage, error) {
	if err := p.BackToLogin.Click(); err != nil {
		return nil, wrapAction("back to log in", err)
	}
	return NewLoginPage(p.Studio), nil
}
