package fixtures

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unicode"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/plextera-e2e/internal/errs"
)

func repoDataDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(filename), "..", "..", "data")
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestCredential_SupportFromRepoData(t *testing.T) {
	t.Parallel()

	loader := NewLoader(repoDataDir(t))
	cred, err := loader.Credential(RoleSupport)
	require.NoError(t, err)
	assert.NotEmpty(t, cred.Email)
	assert.NotEmpty(t, cred.Password)
	assert.NotEmpty(t, cred.Name)
	assert.Equal(t, cred.Name, cred.DisplayName())
}

func TestCredential_EveryLoginRoleIsComplete(t *testing.T) {
	t.Parallel()

	loader := NewLoader(repoDataDir(t))
	for _, role := range []string{RoleSupport, RoleCompanyOwner, RoleCompanyAdministrator, RoleCompanyUser, RoleTempEmail} {
		cred, err := loader.Credential(role)
		require.NoError(t, err, role)
		assert.NotEmpty(t, cred.Email, role)
		assert.NotEmpty(t, cred.Password, role)
		assert.NotEmpty(t, cred.DisplayName(), role)
	}

	temp, err := loader.Credential(RoleTempEmail)
	require.NoError(t, err)
	assert.NotEmpty(t, temp.InboxID)
}

func TestValue_MissingFileAndKeyAreExplicit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, PayloadsFile, `{"authentication_payload":{"email":""}}`)
	loader := NewLoader(dir)

	var out map[string]any
	err := loader.Value("nope.json", "x", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileNotFound))
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))

	err = loader.Value(PayloadsFile, "missing", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	assert.Contains(t, err.Error(), `"missing"`)
	assert.Nil(t, out)
}

func TestValue_KeysWithPathCharacters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "odd.json", `{"a.b":{"c":1},"a":{"b":{"c":2}}}`)

	var out map[string]int
	require.NoError(t, NewLoader(dir).Value("odd.json", "a.b", &out))
	assert.Equal(t, 1, out["c"])
}

func TestFind_ReportsEveryPathWhenAmbiguous(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, "nested.json", `{
		"payloads": [{"authentication": {"email": "a"}}],
		"users": [{"support": {"email": "s"}}, {"owner": {"authentication": {"email": "b"}}}]
	}`)
	loader := NewLoader(dir)

	var support map[string]string
	require.NoError(t, loader.Find("nested.json", "support", &support))
	assert.Equal(t, "s", support["email"])

	var auth map[string]string
	err := loader.Find("nested.json", "authentication", &auth)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousKey))
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "payloads.0.authentication")
	assert.Contains(t, err.Error(), "users.1.owner.authentication")

	err = loader.Find("nested.json", "absent", &auth)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestAuthPayload_MergesTemplateWithRole(t *testing.T) {
	t.Parallel()

	loader := NewLoader(repoDataDir(t))
	payload, err := loader.AuthPayload(RoleCompanyOwner)
	require.NoError(t, err)

	cred, err := loader.Credential(RoleCompanyOwner)
	require.NoError(t, err)
	want := map[string]any{
		"email":      cred.Email,
		"password":   cred.Password,
		"rememberMe": true,
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("auth payload mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidValues_Tables(t *testing.T) {
	t.Parallel()

	loader := NewLoader(repoDataDir(t))
	emails, err := loader.InvalidValues("invalid_emails")
	require.NoError(t, err)
	require.NotEmpty(t, emails)
	for _, v := range emails {
		assert.NotEmpty(t, v.Value)
	}

	passwords, err := loader.InvalidValues("invalid_passwords")
	require.NoError(t, err)
	for _, v := range passwords {
		assert.NotEmpty(t, v.ErrorMsg, v.Value)
	}
}

func TestValue_RepeatedLoadsAreEqual(t *testing.T) {
	loader := NewLoader(repoDataDir(t))
	keys := []string{RoleSupport, RoleCompanyOwner, RoleCompanyAdministrator, RoleCompanyUser, RoleTempEmail, RoleRegistrationOwner, RoleRegistrationUser, RoleRegistrationAdmin, RoleRegistrationSupport}

	rapid.Check(t, func(rt *rapid.T) {
		key := rapid.SampledFrom(keys).Draw(rt, "key")
		var first, second map[string]any
		if err := loader.Value(CredentialsFile, key, &first); err != nil {
			rt.Fatalf("first load: %v", err)
		}
		first["password"] = "mutated by caller"
		if err := loader.Value(CredentialsFile, key, &second); err != nil {
			rt.Fatalf("second load: %v", err)
		}
		var third map[string]any
		if err := loader.Value(CredentialsFile, key, &third); err != nil {
			rt.Fatalf("third load: %v", err)
		}
		if diff := cmp.Diff(second, third); diff != "" {
			rt.Fatalf("loads differ:\n%s", diff)
		}
		if second["password"] == "mutated by caller" {
			rt.Fatalf("caller mutation leaked into later load")
		}
	})
}

func TestState_RotationVisibleWithinRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, CredentialsFile, `{
    "temp_email": {"email": "t@x.test", "password": "Old#2024ab", "name": "T"},
    "support": {"email": "s@x.test", "password": "Sup#2024ab", "name": "S"}
}`)
	state := NewState(dir)
	plain := NewLoader(dir)
	bound := plain.WithState(state)

	state.RotatePassword(RoleTempEmail, "New#2024ab")

	cred, err := bound.Credential(RoleTempEmail)
	require.NoError(t, err)
	assert.Equal(t, "New#2024ab", cred.Password)

	other, err := bound.Credential(RoleSupport)
	require.NoError(t, err)
	assert.Equal(t, "Sup#2024ab", other.Password)

	unbound, err := plain.Credential(RoleTempEmail)
	require.NoError(t, err)
	assert.Equal(t, "Old#2024ab", unbound.Password, "file is untouched until Persist")
}

func TestState_PersistKeepsRestOfDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	original := `{
    "temp_email": {"email": "t@x.test", "password": "Old#2024ab", "name": "T", "inbox_id": "i-1"},
    "support": {"email": "s@x.test", "password": "Sup#2024ab", "name": "S"}
}`
	writeFixture(t, dir, CredentialsFile, original)

	state := NewState(dir)
	require.NoError(t, state.Persist(), "persist without rotations is a no-op")

	state.RotatePassword(RoleTempEmail, "New#2024ab")
	require.NoError(t, state.Persist())

	cred, err := NewLoader(dir).Credential(RoleTempEmail)
	require.NoError(t, err)
	assert.Equal(t, "New#2024ab", cred.Password)
	assert.Equal(t, "i-1", cred.InboxID)

	raw, err := os.ReadFile(filepath.Join(dir, CredentialsFile))
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(original, "Old#2024ab", "New#2024ab", 1), string(raw))

	state.RotatePassword("ghost", "x")
	assert.True(t, errors.Is(state.Persist(), ErrKeyNotFound))
}

func TestCredential_LegacyInboxKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixture(t, dir, CredentialsFile, `{"temp_email":{"email":"t@x.test","password":"p","email_id":"legacy-1"}}`)
	cred, err := NewLoader(dir).Credential(RoleTempEmail)
	require.NoError(t, err)
	assert.Equal(t, "legacy-1", cred.InboxID)
}

func TestNewPassword_MeetsPolicy(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pw, err := NewPassword()
		if err != nil {
			rt.Fatalf("NewPassword: %v", err)
		}
		var upper, lower, digit, symbol bool
		for _, r := range pw {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			case strings.ContainsRune(passwordSymbols, r):
				symbol = true
			default:
				rt.Fatalf("unexpected rune %q in %q", r, pw)
			}
		}
		if len(pw) < 8 || !upper || !lower || !digit || !symbol {
			rt.Fatalf("password %q violates policy", pw)
		}
	})
}
