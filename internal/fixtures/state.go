package fixtures

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/sethvargo/go-password/password"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/obs"
)

// Symbols accepted by the studio's password policy.
const passwordSymbols = "!@#$%^&*"

// State holds the credential changes made during one suite run.
type State struct {
	dir string

	mu        sync.Mutex
	passwords map[string]string
}

// NewState returns an empty run state for fixtures under dir.
func NewState(dir string) *State {
	return &State{dir: dir, passwords: make(map[string]string)}
}

// RotatePassword records a new password for role. Credential lookups
// through a loader bound to this state return it for the rest of the run.
func (s *State) RotatePassword(role, newPassword string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[role] = newPassword
	obs.Pkg("fixtures").Info("password_rotated", "role", role)
}

// Password returns the rotated password of role, if any.
func (s *State) Password(role string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pw, ok := s.passwords[role]
	return pw, ok
}

// Rotated lists the roles with a rotated password, sorted.
func (s *State) Rotated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]string, 0, len(s.passwords))
	for role := range s.passwords {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}

// Persist writes every rotated password back into user_credentials.json so
// later runs start from the current password. The rest of the document is
// left as it was.
func (s *State) Persist() error {
	roles := s.Rotated()
	if len(roles) == 0 {
		return nil
	}

	loader := NewLoader(s.dir)
	data, err := loader.Raw(CredentialsFile)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if !gjson.GetBytes(data, gjson.Escape(role)).Exists() {
			return errs.Wrap(errs.NotFound, fmt.Sprintf("fixtures: persist %s", role), ErrKeyNotFound)
		}
		pw, _ := s.Password(role)
		data, err = sjson.SetBytes(data, gjson.Escape(role)+".password", pw)
		if err != nil {
			return errs.Wrap(errs.Internal, fmt.Sprintf("fixtures: set %s.password", role), err)
		}
	}

	path := loader.Path(CredentialsFile)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return errs.Wrap(errs.Internal, "fixtures: write credentials", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errs.Wrap(errs.Internal, "fixtures: replace credentials", err)
	}
	obs.Pkg("fixtures").Info("credentials_persisted", "roles", strings.Join(roles, ","))
	return nil
}

// NewPassword generates a password that satisfies the studio policy:
// at least one upper-case letter, lower-case letter, digit and symbol.
func NewPassword() (string, error) {
	gen, err := password.NewGenerator(&password.GeneratorInput{Symbols: passwordSymbols})
	if err != nil {
		return "", errs.Wrap(errs.Internal, "fixtures: password generator", err)
	}
	for range 10 {
		pw, err := gen.Generate(14, 2, 2, false, false)
		if err != nil {
			return "", errs.Wrap(errs.Internal, "fixtures: generate password", err)
		}
		if hasUpperAndLower(pw) {
			return pw, nil
		}
	}
	return "", errs.New(errs.Internal, "fixtures: could not generate a policy-compliant password")
}

func hasUpperAndLower(s string) bool {
	var upper, lower bool
	for _, r := range s {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
	}
	return upper && lower
}
