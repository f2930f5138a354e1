package studiofake

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

const testPassword = "Valid#Pass1"

func newAccount(t *testing.T, s *Store, email, role, orgID string) *Account {
	t.Helper()
	a, err := s.CreateAccount(Account{Email: email, FirstName: "Test", LastName: "User", Role: role, OrganizationID: orgID}, testPassword)
	require.NoError(t, err)
	return a
}

func TestStore_AuthenticateIsCaseInsensitiveOnEmail(t *testing.T) {
	s := NewStore()
	created := newAccount(t, s, "Person@Example.test", RoleCompanyUser, "")

	got, err := s.Authenticate("  person@example.TEST ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "person@example.test", got.Email)

	_, err = s.Authenticate("person@example.test", "Wrong#Pass1")
	assert.Equal(t, errs.PermissionDenied, errs.CodeOf(err))
	_, err = s.Authenticate("nobody@example.test", testPassword)
	assert.Equal(t, errs.PermissionDenied, errs.CodeOf(err))
}

func TestStore_CreateAccountRejectsDuplicateEmail(t *testing.T) {
	s := NewStore()
	newAccount(t, s, "dup@example.test", RoleCompanyUser, "")
	_, err := s.CreateAccount(Account{Email: "DUP@example.test", FirstName: "Other"}, testPassword)
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))
}

func TestStore_ReturnedAccountIsACopy(t *testing.T) {
	s := NewStore()
	a := newAccount(t, s, "copy@example.test", RoleCompanyUser, "")
	a.FirstName = "Mutated"

	stored, err := s.Account(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test", stored.FirstName)
}

func TestStore_PasswordResetFlow(t *testing.T) {
	s := NewStore()
	a := newAccount(t, s, "reset@example.test", RoleCompanyUser, "")

	token, got, err := s.StartReset("reset@example.test")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, a.ID, got.ID)

	err = s.CompleteReset(token, testPassword)
	require.Error(t, err)
	assert.Equal(t, uitext.ErrorPasswordSameWithCurrent, errs.MessageOf(err))

	err = s.CompleteReset(token, "short")
	assert.Equal(t, uitext.ErrorPasswordLengthMin, errs.MessageOf(err))

	require.NoError(t, s.CompleteReset(token, "Brand#New22"))
	_, err = s.Authenticate("reset@example.test", "Brand#New22")
	require.NoError(t, err)
	_, err = s.Authenticate("reset@example.test", testPassword)
	require.Error(t, err)

	// Tokens are single use.
	err = s.CompleteReset(token, "Another#New33")
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestStore_StartResetForUnknownEmailIsSilent(t *testing.T) {
	s := NewStore()
	token, a, err := s.StartReset("ghost@example.test")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, a)
}

func TestStore_ResetTokenExpires(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	newAccount(t, s, "late@example.test", RoleCompanyUser, "")

	token, _, err := s.StartReset("late@example.test")
	require.NoError(t, err)
	s.now = func() time.Time { return now.Add(resetTTL + time.Minute) }

	err = s.CompleteReset(token, "Brand#New22")
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestStore_OwnerInvitationCreatesCompany(t *testing.T) {
	s := NewStore()
	token, err := s.CreateInvite("Owner@New.test", InviteOwner, "", "")
	require.NoError(t, err)

	inv, err := s.Invite(token)
	require.NoError(t, err)
	assert.Equal(t, "owner@new.test", inv.Email)
	assert.Equal(t, InviteOwner, inv.Kind)

	a, err := s.Register(Registration{Token: token, FirstName: "Nora", LastName: "Owens", Password: testPassword, CompanyName: "Northwind"})
	require.NoError(t, err)
	assert.Equal(t, RoleCompanyOwner, a.Role)

	org, err := s.Organization(a.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, "Northwind", org.Name)
	assert.Equal(t, "owner@new.test", org.OwnerEmail)
	assert.ElementsMatch(t, AddOnNames, org.AddOns)

	_, err = s.Invite(token)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err), "invitation is consumed")
}

func TestStore_UserInvitationJoinsCompany(t *testing.T) {
	s := NewStore()
	org, err := s.CreateOrganization("Acme", "owner@acme.test")
	require.NoError(t, err)

	_, err = s.CreateInvite("someone@acme.test", InviteUser, "missing", "")
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))

	token, err := s.CreateInvite("someone@acme.test", InviteUser, org.ID, "")
	require.NoError(t, err)
	a, err := s.Register(Registration{Token: token, FirstName: "Sam", LastName: "One", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, RoleCompanyUser, a.Role)
	assert.Equal(t, org.ID, a.OrganizationID)
	assert.Len(t, s.AccountsIn(org.ID), 1)
}

func TestStore_UserInvitationGrantsRole(t *testing.T) {
	s := NewStore()
	org, err := s.CreateOrganization("Acme", "owner@acme.test")
	require.NoError(t, err)

	for i, role := range InvitableRoles {
		email := fmt.Sprintf("invited%d@acme.test", i)
		token, err := s.CreateInvite(email, InviteUser, org.ID, role)
		require.NoError(t, err)
		a, err := s.Register(Registration{Token: token, FirstName: "In", LastName: "Vited", Password: testPassword})
		require.NoError(t, err)
		assert.Equal(t, role, a.Role, email)
		assert.Equal(t, org.ID, a.OrganizationID, email)
	}

	_, err = s.CreateInvite("boss@acme.test", InviteUser, org.ID, RoleCompanyOwner)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	_, err = s.CreateInvite("boss@acme.test", InviteUser, org.ID, "ROOT")
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestStore_RegisterValidatesForm(t *testing.T) {
	s := NewStore()
	token, err := s.CreateInvite("x@new.test", InviteOwner, "", "")
	require.NoError(t, err)

	_, err = s.Register(Registration{Token: token, FirstName: "", LastName: "L", Password: testPassword, CompanyName: "C"})
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	_, err = s.Register(Registration{Token: token, FirstName: "F", LastName: "L", Password: "nouppercase1!", CompanyName: "C"})
	assert.Equal(t, uitext.ErrorPasswordUppercase, errs.MessageOf(err))
	_, err = s.Register(Registration{Token: "bogus", FirstName: "F", LastName: "L", Password: testPassword, CompanyName: "C"})
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestStore_InviteForExistingAccountFails(t *testing.T) {
	s := NewStore()
	newAccount(t, s, "taken@example.test", RoleCompanyUser, "")
	_, err := s.CreateInvite("taken@example.test", InviteOwner, "", "")
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))
}

func TestStore_OrganizationsFilterAndDelete(t *testing.T) {
	s := NewStore()
	acme, err := s.CreateOrganization("Acme", "a@acme.test")
	require.NoError(t, err)
	_, err = s.CreateOrganization("Globex", "g@globex.test")
	require.NoError(t, err)
	_, err = s.CreateOrganization("acme", "other@acme.test")
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))

	assert.Len(t, s.Organizations(""), 2)
	filtered := s.Organizations("acm")
	require.Len(t, filtered, 1)
	assert.Equal(t, "Acme", filtered[0].Name)

	member := newAccount(t, s, "m@acme.test", RoleCompanyUser, acme.ID)
	require.NoError(t, s.DeleteOrganization(acme.ID))
	_, err = s.Account(member.ID)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err), "members are deleted with their company")
	assert.Equal(t, errs.NotFound, errs.CodeOf(s.DeleteOrganization(acme.ID)))
}

func TestStore_SetAddOns(t *testing.T) {
	s := NewStore()
	org, err := s.CreateOrganization("Acme", "a@acme.test")
	require.NoError(t, err)
	require.NoError(t, s.SetAddOns(org.ID, []string{"Forms"}))
	got, err := s.Organization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Forms"}, got.AddOns)
}

func TestStore_HubsAreScopedToTheCompany(t *testing.T) {
	s := NewStore()
	acme, _ := s.CreateOrganization("Acme", "a@acme.test")
	globex, _ := s.CreateOrganization("Globex", "g@globex.test")
	owner := newAccount(t, s, "owner@acme.test", RoleCompanyOwner, acme.ID)
	colleague := newAccount(t, s, "user@acme.test", RoleCompanyUser, acme.ID)
	outsider := newAccount(t, s, "user@globex.test", RoleCompanyUser, globex.ID)

	hub, err := s.CreateHub(owner, "Invoices", "outline", "scanned invoices")
	require.NoError(t, err)
	assert.Equal(t, HubTypeOutline, hub.Type)

	_, err = s.Hub(colleague, hub.ID)
	require.NoError(t, err)
	_, err = s.Hub(outsider, hub.ID)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
	assert.Empty(t, s.Hubs(outsider))
	assert.Len(t, s.Hubs(colleague), 1)

	_, err = s.CreateHub(owner, "Bad", "SPREADSHEET", "")
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	_, err = s.CreateHub(owner, "  ", HubTypeValue, "")
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestStore_HubRenameTagsDelete(t *testing.T) {
	s := NewStore()
	owner := newAccount(t, s, "solo@example.test", RoleCompanyOwner, "")
	hub, err := s.CreateHub(owner, "Receipts", HubTypeValue, "")
	require.NoError(t, err)

	renamed, err := s.RenameHub(owner, hub.ID, "Receipts 2024")
	require.NoError(t, err)
	assert.Equal(t, "Receipts 2024", renamed.Name)

	tagged, err := s.SetTags(owner, hub.ID, map[string]string{"team": "finance"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"team": "finance"}, tagged.Tags)

	require.NoError(t, s.DeleteHub(owner, hub.ID))
	_, err = s.Hub(owner, hub.ID)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestStore_FieldTree(t *testing.T) {
	s := NewStore()
	owner := newAccount(t, s, "fields@example.test", RoleCompanyOwner, "")
	hub, err := s.CreateHub(owner, "Claims", HubTypeValue, "")
	require.NoError(t, err)

	yes := true
	single, err := s.AddField(owner, hub.ID, FieldInput{Name: "Policy number", Searchable: &yes})
	require.NoError(t, err)
	assert.Equal(t, FieldSingle, single.Type)
	assert.True(t, single.Searchable)

	group, err := s.AddField(owner, hub.ID, FieldInput{Name: "Claimant", Type: "GROUP"})
	require.NoError(t, err)
	child, err := s.AddSubField(owner, hub.ID, group.ID, FieldInput{Name: "Address", Type: FieldList})
	require.NoError(t, err)
	grandchild, err := s.AddSubField(owner, hub.ID, child.ID, FieldInput{Name: "Street"})
	require.NoError(t, err)

	_, err = s.AddSubField(owner, hub.ID, single.ID, FieldInput{Name: "Nope"})
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err), "single fields hold no children")
	_, err = s.AddField(owner, hub.ID, FieldInput{Name: "Odd", Type: "matrix"})
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	updated, err := s.UpdateField(owner, hub.ID, grandchild.ID, FieldInput{Name: "Street name", Required: &yes})
	require.NoError(t, err)
	assert.Equal(t, "Street name", updated.Name)
	assert.True(t, updated.Required)

	got, err := s.Hub(owner, hub.ID)
	require.NoError(t, err)
	require.Len(t, got.Fields, 2)
	require.Len(t, got.Fields[1].Children, 1)
	require.Len(t, got.Fields[1].Children[0].Children, 1)
	assert.Equal(t, "Street name", got.Fields[1].Children[0].Children[0].Name)

	require.NoError(t, s.DeleteField(owner, hub.ID, child.ID))
	got, err = s.Hub(owner, hub.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Fields[1].Children)
	assert.Equal(t, errs.NotFound, errs.CodeOf(s.DeleteField(owner, hub.ID, grandchild.ID)))
}

func TestStore_HubCopiesDoNotAlias(t *testing.T) {
	s := NewStore()
	owner := newAccount(t, s, "alias@example.test", RoleCompanyOwner, "")
	hub, _ := s.CreateHub(owner, "Alias", HubTypeValue, "")
	_, err := s.AddField(owner, hub.ID, FieldInput{Name: "Original"})
	require.NoError(t, err)

	copy1, err := s.Hub(owner, hub.ID)
	require.NoError(t, err)
	copy1.Fields[0].Name = "Changed"

	copy2, err := s.Hub(owner, hub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", copy2.Fields[0].Name)
}

func TestStore_OutlineTemplates(t *testing.T) {
	s := NewStore()
	owner := newAccount(t, s, "outline@example.test", RoleCompanyOwner, "")
	outlineHub, _ := s.CreateHub(owner, "Forms", HubTypeOutline, "")
	valueHub, _ := s.CreateHub(owner, "Values", HubTypeValue, "")

	uploaded, err := s.UploadOutline("outline_document.pdf")
	require.NoError(t, err)
	_, err = s.AttachOutline(owner, valueHub.ID, uploaded.ID)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	hub, err := s.AttachOutline(owner, outlineHub.ID, uploaded.ID)
	require.NoError(t, err)
	require.Len(t, hub.Outlines, 1)
	assert.Equal(t, uitext.HubOutlineTemplateName, hub.Outlines[0].Name)
	assert.Equal(t, "outline_document.pdf", hub.Outlines[0].FileName)

	name, off := "Invoice layout", false
	o, err := s.UpdateOutline(owner, uploaded.ID, &name, &off)
	require.NoError(t, err)
	assert.Equal(t, "Invoice layout", o.Name)
	assert.False(t, o.Enabled)

	require.NoError(t, s.DeleteOutline(owner, uploaded.ID))
	hub, err = s.Hub(owner, outlineHub.ID)
	require.NoError(t, err)
	assert.Empty(t, hub.Outlines)
}

func TestStore_Automations(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	owner := newAccount(t, s, "auto@example.test", RoleCompanyOwner, "")

	first, err := s.CreateAutomation(owner, Automation{Name: "first"})
	require.NoError(t, err)
	now = now.Add(time.Second)
	second, err := s.CreateAutomation(owner, Automation{Name: "second", Steps: json.RawMessage(`[{"type":"navigate"}]`)})
	require.NoError(t, err)

	list := s.Automations(owner)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	now = now.Add(time.Second)
	updated, err := s.UpdateAutomation(owner, first.ID, Automation{Description: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "first", updated.Name)
	assert.Equal(t, "edited", updated.Description)
	assert.Equal(t, first.ID, s.Automations(owner)[0].ID)

	_, err = s.CreateAutomation(owner, Automation{Name: " "})
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	require.NoError(t, s.DeleteAutomation(owner, first.ID))
	_, err = s.Automation(owner, first.ID)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestUniqueName(t *testing.T) {
	existing := []Automation{{Name: "flow"}, {Name: "flow (2)"}}
	assert.Equal(t, "flow (3)", uniqueName("flow", existing))
	assert.Equal(t, "other", uniqueName("other", existing))
	assert.Equal(t, "", uniqueName("  ", existing))
}

func TestUniqueName_NeverReturnsATakenName(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "a (2)", "a (3)", "b"}), 0, 6).Draw(t, "names")
		existing := make([]Automation, 0, len(names))
		for _, n := range names {
			existing = append(existing, Automation{Name: n})
		}
		got := uniqueName("a", existing)
		for _, n := range names {
			if n == got {
				t.Fatalf("uniqueName returned taken name %q", got)
			}
		}
	})
}
