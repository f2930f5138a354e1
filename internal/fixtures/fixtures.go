// Package fixtures loads the suite's JSON test data: role credentials,
// request payload templates and invalid-input tables.
//
// Every lookup reads the file from disk; a missing file or key is an error,
// never a zero value. Password changes made during a run live in a State
// and are only written back to disk by State.Persist.
package fixtures

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kuitang/plextera-e2e/internal/errs"
)

// Fixture file names.
const (
	CredentialsFile = "user_credentials.json"
	PayloadsFile    = "payloads.json"
	InvalidDataFile = "invalid_data.json"
	AutomationFile  = "automation_for_import.json"
)

// Role keys in user_credentials.json.
const (
	RoleSupport              = "support"
	RoleCompanyOwner         = "company_owner"
	RoleCompanyAdministrator = "company_administrator"
	RoleCompanyUser          = "company_user"
	RoleTempEmail            = "temp_email"
	RoleRegistrationOwner    = "registration_owner_data"
	RoleRegistrationUser     = "registration_user_data"
	RoleRegistrationAdmin    = "registration_company_administrator_data"
	RoleRegistrationSupport  = "registration_support_user_data"
	RoleInvalidEmail         = "invalid_email"
	RoleInvalidPassword      = "invalid_password"
	RoleInvalidCredentials   = "invalid_credentials"
)

var (
	ErrFileNotFound = errors.New("fixture file not found")
	ErrKeyNotFound  = errors.New("fixture key not found")
	ErrAmbiguousKey = errors.New("fixture key is ambiguous")
)

// Credential is one role entry of user_credentials.json.
type Credential struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	InboxID     string `json:"inbox_id,omitempty"`
	APIKey      string `json:"x_api_key,omitempty"`

	// Older files name the inbox id "email_id".
	LegacyInboxID string `json:"email_id,omitempty"`
}

// DisplayName is the name the home page greets the user with.
func (c Credential) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.FirstName
}

// InvalidValue is one row of an invalid-input table.
type InvalidValue struct {
	Value    string `json:"value"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Loader reads fixture files from a data directory.
type Loader struct {
	dir   string
	state *State
}

// NewLoader returns a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// WithState returns a loader whose credential lookups see the password
// overrides recorded in state.
func (l *Loader) WithState(state *State) *Loader {
	return &Loader{dir: l.dir, state: state}
}

// Dir returns the data directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Path returns the absolute-or-relative path of a fixture file.
func (l *Loader) Path(file string) string {
	return filepath.Join(l.dir, file)
}

// Raw returns the bytes of a fixture file.
func (l *Loader) Raw(file string) ([]byte, error) {
	data, err := os.ReadFile(l.Path(file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.NotFound, fmt.Sprintf("fixtures: %s", file), ErrFileNotFound)
		}
		return nil, errs.Wrap(errs.Internal, fmt.Sprintf("fixtures: read %s", file), err)
	}
	if !gjson.ValidBytes(data) {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("fixtures: %s is not valid JSON", file))
	}
	return data, nil
}

// Value decodes the value stored under a top-level key into out.
func (l *Loader) Value(file, key string, out any) error {
	data, err := l.Raw(file)
	if err != nil {
		return err
	}
	result := gjson.GetBytes(data, gjson.Escape(key))
	if !result.Exists() {
		return errs.Wrap(errs.NotFound, fmt.Sprintf("fixtures: %s[%q]", file, key), ErrKeyNotFound)
	}
	return decode(file, key, result, out)
}

// Find searches the whole document breadth-first for key and decodes its
// value into out. The key must occur exactly once; a key present at
// several paths is reported with every path instead of picking one.
func (l *Loader) Find(file, key string, out any) error {
	data, err := l.Raw(file)
	if err != nil {
		return err
	}
	matches := findPaths(gjson.ParseBytes(data), key)
	switch len(matches) {
	case 0:
		return errs.Wrap(errs.NotFound, fmt.Sprintf("fixtures: %q anywhere in %s", key, file), ErrKeyNotFound)
	case 1:
		return decode(file, key, matches[0].value, out)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, m.path)
	}
	return errs.Wrap(errs.FailedPrecondition,
		fmt.Sprintf("fixtures: %q occurs at %s in %s", key, strings.Join(paths, ", "), file),
		ErrAmbiguousKey)
}

type match struct {
	path  string
	value gjson.Result
}

type node struct {
	path  string
	value gjson.Result
}

func findPaths(root gjson.Result, key string) []match {
	var found []match
	queue := []node{{value: root}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if !current.value.IsObject() && !current.value.IsArray() {
			continue
		}
		index := 0
		current.value.ForEach(func(k, v gjson.Result) bool {
			segment := k.String()
			if current.value.IsArray() {
				segment = fmt.Sprint(index)
				index++
			}
			path := segment
			if current.path != "" {
				path = current.path + "." + segment
			}
			if current.value.IsObject() && k.String() == key {
				found = append(found, match{path: path, value: v})
			}
			queue = append(queue, node{path: path, value: v})
			return true
		})
	}
	return found
}

func decode(file, key string, result gjson.Result, out any) error {
	if err := json.Unmarshal([]byte(result.Raw), out); err != nil {
		return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("fixtures: decode %s[%q]", file, key), err)
	}
	return nil
}

// Credential returns the credentials of a role, with any password rotated
// earlier in this run.
func (l *Loader) Credential(role string) (Credential, error) {
	var cred Credential
	if err := l.Value(CredentialsFile, role, &cred); err != nil {
		return Credential{}, err
	}
	if cred.InboxID == "" {
		cred.InboxID = cred.LegacyInboxID
	}
	cred.LegacyInboxID = ""
	if l.state != nil {
		if password, ok := l.state.Password(role); ok {
			cred.Password = password
		}
	}
	if cred.Email == "" {
		return Credential{}, errs.New(errs.InvalidArgument, fmt.Sprintf("fixtures: %s has no email", role))
	}
	return cred, nil
}

// AuthPayload fills the authentication_payload template with a role's
// email and password.
func (l *Loader) AuthPayload(role string) (map[string]any, error) {
	payload := map[string]any{}
	if err := l.Value(PayloadsFile, "authentication_payload", &payload); err != nil {
		return nil, err
	}
	cred, err := l.Credential(role)
	if err != nil {
		return nil, err
	}
	payload["email"] = cred.Email
	payload["password"] = cred.Password
	return payload, nil
}

// Payload decodes a named request template from payloads.json.
func (l *Loader) Payload(key string) (map[string]any, error) {
	payload := map[string]any{}
	if err := l.Value(PayloadsFile, key, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// InvalidValues returns an invalid-input table from invalid_data.json.
func (l *Loader) InvalidValues(key string) ([]InvalidValue, error) {
	var values []InvalidValue
	if err := l.Value(InvalidDataFile, key, &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("fixtures: %s[%q] is empty", InvalidDataFile, key))
	}
	return values, nil
}
