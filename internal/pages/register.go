package pages

import (
	"github.com/playwright-community/playwright-go"
)

const registerInvitePattern = "**/api/account-service/auth-user/register-invite"

// OwnerRegistration is the data of the company-owner registration form.
type OwnerRegistration struct {
	FirstName   string
	LastName    string
	Password    string
	CompanyName string
}

// UserRegistration is the data of the company-user registration form.
type UserRegistration struct {
	FirstName string
	LastName  string
	Password  string
}

type registerForm struct {
	*Studio

	FirstNameInput       playwright.Locator
	LastNameInput        playwright.Locator
	PasswordInput        playwright.Locator
	ConfirmPasswordInput playwright.Locator
	PrivacyCheckbox      playwright.Locator
	TermsCheckbox        playwright.Locator
	RegisterButton       playwright.Locator
}

func newRegisterForm(s *Studio) registerForm {
	input := func(name string) playwright.Locator {
		return s.Page.Locator(`div[class="register"] input[name="` + name + `"]`)
	}
	return registerForm{
		Studio:               s,
		FirstNameInput:       input("firstName"),
		LastNameInput:        input("lastName"),
		PasswordInput:        input("password"),
		ConfirmPasswordInput: input("passwordConfirmation"),
		PrivacyCheckbox:      input("privacy"),
		TermsCheckbox:        input("terms"),
		RegisterButton:       s.Button("Register"),
	}
}

func (f registerForm) fill(firstName, lastName, password string) error {
	steps := []struct {
		what string
		loc  playwright.Locator
		val  string
	}{
		{"first name", f.FirstNameInput, firstName},
		{"last name", f.LastNameInput, lastName},
		{"password", f.PasswordInput, password},
		{"password confirmation", f.ConfirmPasswordInput, password},
	}
	for _, step := range steps {
		if err := step.loc.Fill(step.val); err != nil {
			return wrapAction("fill "+step.what, err)
		}
	}
	return nil
}

func (f registerForm) accept() error {
	if err := f.PrivacyCheckbox.Check(); err != nil {
		return wrapAction("accept privacy policy", err)
	}
	return wrapAction("accept terms of use", f.TermsCheckbox.Check())
}

func (f registerForm) submit() (*RegisterSuccess, error) {
	if _, err := f.Expect(click(f.RegisterButton), registerInvitePattern); err != nil {
		return nil, err
	}
	return newRegisterSuccess(f.Studio), nil
}

// RegisterCompanyOwnerPage is opened from a company-owner invitation link.
type RegisterCompanyOwnerPage struct {
	registerForm

	CompanyInput playwright.Locator
}

// NewRegisterCompanyOwnerPage binds the owner registration form.
func NewRegisterCompanyOwnerPage(s *Studio) *RegisterCompanyOwnerPage {
	return &RegisterCompanyOwnerPage{
		registerForm: newRegisterForm(s),
		CompanyInput: s.Page.Locator(`div[class="register"] input[name="companyName"]`),
	}
}

// Fill completes every field and both consent checkboxes.
func (p *RegisterCompanyOwnerPage) Fill(r OwnerRegistration) error {
	if err := p.fill(r.FirstName, r.LastName, r.Password); err != nil {
		return err
	}
	if err := p.CompanyInput.Fill(r.CompanyName); err != nil {
		return wrapAction("fill company name", err)
	}
	return p.accept()
}

// Register fills and submits the form.
func (p *RegisterCompanyOwnerPage) Register(r OwnerRegistration) (*RegisterSuccess, error) {
	if err := p.Fill(r); err != nil {
		return nil, err
	}
	return p.submit()
}

// RegisterCompanyUserPage is opened from a company-user invitation link.
type RegisterCompanyUserPage struct {
	registerForm
}

// NewRegisterCompanyUserPage binds the user registration form.
func NewRegisterCompanyUserPage(s *Studio) *RegisterCompanyUserPage {
	return &RegisterCompanyUserPage{registerForm: newRegisterForm(s)}
}

// Register fills and submits the form.
func (p *RegisterCompanyUserPage) Register(r UserRegistration) (*RegisterSuccess, error) {
	if err := p.fill(r.FirstName, r.LastName, r.Password); err != nil {
		return nil, err
	}
	if err := p.accept(); err != nil {
		return nil, err
	}
	return p.submit()
}

// RegisterSuccess is the confirmation shown after registration.
type RegisterSuccess struct {
	*Studio

	Title       playwright.Locator
	Description playwright.Locator
	GoToLogin   playwright.Locator
}

func newRegisterSuccess(s *Studio) *RegisterSuccess {
	return &RegisterSuccess{
		Studio:      s,
		Title:       s.Page.Locator(`div[class="register"] h1`),
		Description: s.Page.Locator(`div[class="register"] div[class="register__text"] p`),
		GoToLogin:   s.Button("Go to log in"),
	}
}

// ToLogin follows "Go to log in".
func (p *RegisterSuccess) ToLogin() (*LoginPage, error) {
	if err := p.GoToLogin.Click(); err != nil {
		return nil, wrapAction("go to log in", err)
	}
	return NewLoginPage(p.Studio), nil
}
