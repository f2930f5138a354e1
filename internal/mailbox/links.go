package mailbox

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

// ErrLinkNotFound is wrapped when an email body has no matching link.
var ErrLinkNotFound = errors.New("link not found in email body")

// ExtractLink returns the first href in body whose value contains fragment.
// The href is returned exactly as it appears in the body.
func ExtractLink(body, fragment string) (string, error) {
	if fragment == "" {
		return "", errs.New(errs.InvalidArgument, "mailbox: link fragment is required")
	}
	re := regexp.MustCompile(`href="([^"]*` + regexp.QuoteMeta(fragment) + `[^"]*)"`)
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", errs.Wrap(errs.NotFound, fmt.Sprintf("mailbox: %q link", fragment), ErrLinkNotFound)
	}
	return m[1], nil
}

// RegisterInviteLink extracts the invitation registration link.
func RegisterInviteLink(body string) (string, error) {
	return ExtractLink(body, uitext.RegisterInviteLinkFragment)
}

// CreatePasswordLink extracts the password reset link.
func CreatePasswordLink(body string) (string, error) {
	return ExtractLink(body, uitext.CreatePasswordLinkFragment)
}
