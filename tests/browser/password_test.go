package browser

import (
	"net/http"
	"testing"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/plextera-e2e/internal/fixtures"
	"github.com/kuitang/plextera-e2e/internal/mailbox"
	"github.com/kuitang/plextera-e2e/internal/pages"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

func openForgotPassword(t *testing.T, env *BrowserTestEnv, s *pages.Studio) *pages.ForgotPasswordPage {
	t.Helper()
	login, err := s.OpenLogin()
	if err != nil {
		t.Fatalf("Failed to open login: %v", err)
	}
	forgot, err := login.ToForgotPassword()
	if err != nil {
		t.Fatalf("Failed to open forgot password: %v", err)
	}
	expectText(t, env, forgot.Title, uitext.ForgotPasswordPageTitle)
	return forgot
}

// requestReset sends a reset email to the temp_email role and returns the
// create-password link it contains.
func requestReset(t *testing.T, env *BrowserTestEnv, s *pages.Studio) string {
	t.Helper()
	cred := env.Credential(t, fixtures.RoleTempEmail)
	if err := env.Mail.Drain(env.Context(t), cred.InboxID); err != nil {
		t.Fatalf("Failed to drain inbox: %v", err)
	}

	forgot := openForgotPassword(t, env, s)
	if err := forgot.Send(cred.Email); err != nil {
		t.Fatalf("Failed to request password reset: %v", err)
	}
	expectText(t, env, forgot.Title, uitext.ForgotPasswordSuccess)

	email := env.WaitForEmail(t, cred.InboxID)
	link, err := mailbox.CreatePasswordLink(email.Body)
	if err != nil {
		t.Fatalf("Reset email has no create-password link: %v", err)
	}
	return link
}

// =============================================================================
// Forgot password
// =============================================================================

func TestBrowser_ForgotPassword_EmptyEmail(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	s := env.Studio(t, "")

	forgot := openForgotPassword(t, env, s)
	if err := forgot.SendInvalid(""); err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}
	expectText(t, env, forgot.ErrorMessage, uitext.ForgotPasswordErrorEmptyEmail)
	expectText(t, env, forgot.Title, uitext.ForgotPasswordPageTitle)
}

func TestBrowser_ForgotPassword_InvalidEmailFormats(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	s := env.Studio(t, "")

	forgot := openForgotPassword(t, env, s)
	for _, invalid := range env.InvalidValues(t, "invalid_emails") {
		t.Run(invalid.Value, func(t *testing.T) {
			if err := forgot.SendInvalid(invalid.Value); err != nil {
				t.Fatalf("Failed to submit: %v", err)
			}
			expectText(t, env, forgot.ErrorMessage, uitext.ForgotPasswordErrorInvalidFormat)
		})
	}
}

func TestBrowser_ForgotPassword_SuccessSendsLink(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	s := env.Studio(t, "")

	link := requestReset(t, env, s)

	forgot := pages.NewForgotPasswordPage(s)
	expectText(t, env, forgot.Description, uitext.ForgotPasswordDescriptionPartOne)
	expectText(t, env, forgot.ResendText, uitext.ForgotPasswordDescriptionPartTwo)
	expectContainsText(t, env, forgot.Page.Locator("body"), uitext.ForgotPasswordSuccess)
	if link == "" {
		t.Fatal("Empty create-password link")
	}
}

func TestBrowser_ForgotPassword_BackToLogin(t *testing.T) {
	env := SetupBrowserTestEnv(t)

	t.Run("form", func(t *testing.T) {
		s := env.Studio(t, "")
		forgot := openForgotPassword(t, env, s)
		login, err := forgot.ToLogin()
		if err != nil {
			t.Fatalf("Failed to go back: %v", err)
		}
		expectText(t, env, login.Title, uitext.LoginPageTitle)
	})

	t.Run("sent", func(t *testing.T) {
		s := env.Studio(t, "")
		requestReset(t, env, s)
		login, err := pages.NewForgotPasswordPage(s).ToLogin()
		if err != nil {
			t.Fatalf("Failed to go back: %v", err)
		}
		expectText(t, env, login.Title, uitext.LoginPageTitle)
	})
}

// =============================================================================
// Update password
// =============================================================================

func TestBrowser_UpdatePassword_Rotation(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	s := env.Studio(t, "")
	cred := env.Credential(t, fixtures.RoleTempEmail)

	link := requestReset(t, env, s)
	if err := s.OpenLink(link); err != nil {
		t.Fatalf("Failed to open reset link: %v", err)
	}
	update := pages.NewUpdatePasswordPage(s)
	expectText(t, env, update.Title, uitext.UpdatePasswordPageTitle)

	newPassword, err := fixtures.NewPassword()
	if err != nil {
		t.Fatalf("Failed to generate password: %v", err)
	}
	if err := update.Update(newPassword); err != nil {
		t.Fatalf("Failed to update password: %v", err)
	}
	env.State.RotatePassword(fixtures.RoleTempEmail, newPassword)

	login, err := update.ToLogin()
	if err != nil {
		t.Fatalf("Failed to go back to login: %v", err)
	}
	home, err := login.LogIn(cred.Email, newPassword)
	if err != nil {
		t.Fatalf("Login with the new password failed: %v", err)
	}
	expectText(t, env, home.UserGreeting, uitext.HomePageUserTitle+cred.DisplayName()+"!")
}

func TestBrowser_UpdatePassword_InvalidPasswords(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	s := env.Studio(t, "")

	link := requestReset(t, env, s)
	if err := s.OpenLink(link); err != nil {
		t.Fatalf("Failed to open reset link: %v", err)
	}
	update := pages.NewUpdatePasswordPage(s)
	assert := playwright.NewPlaywrightAssertions(env.Config.ActionTimeoutMS())

	for _, invalid := range env.InvalidValues(t, "invalid_passwords") {
		t.Run(invalid.Value, func(t *testing.T) {
			if err := update.Fill(invalid.Value, invalid.Value); err != nil {
				t.Fatalf("Failed to fill: %v", err)
			}
			expectText(t, env, update.ErrorMessage, invalid.ErrorMsg)
			if err := assert.Locator(update.UpdateButton).ToBeDisabled(); err != nil {
				t.Fatalf("Update is enabled for %q: %v", invalid.Value, err)
			}
		})
	}
}

func TestBrowser_UpdatePassword_MismatchDisablesUpdate(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	s := env.Studio(t, "")

	link := requestReset(t, env, s)
	if err := s.OpenLink(link); err != nil {
		t.Fatalf("Failed to open reset link: %v", err)
	}
	update := pages.NewUpdatePasswordPage(s)

	if err := update.Fill("Valid#Pass1", "Valid#Pass2"); err != nil {
		t.Fatalf("Failed to fill: %v", err)
	}
	expectText(t, env, update.ErrorMessage, uitext.ErrorPasswordDiffers)
	if err := s.Assert().Locator(update.UpdateButton).ToBeDisabled(); err != nil {
		t.Fatalf("Update is enabled for mismatched passwords: %v", err)
	}
}

func TestBrowser_UpdatePassword_CurrentPasswordRejected(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	s := env.Studio(t, "")
	cred := env.Credential(t, fixtures.RoleTempEmail)

	link := requestReset(t, env, s)
	if err := s.OpenLink(link); err != nil {
		t.Fatalf("Failed to open reset link: %v", err)
	}
	update := pages.NewUpdatePasswordPage(s)

	status, err := update.TryUpdate(cred.Password)
	if err != nil {
		t.Fatalf("Failed to submit the current password: %v", err)
	}
	if status != http.StatusBadRequest {
		t.Fatalf("Reusing the current password returned %d, want %d", status, http.StatusBadRequest)
	}
	expectText(t, env, update.ErrorMessage, uitext.ErrorPasswordSameWithCurrent)
}
