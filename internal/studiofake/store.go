package studiofake

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/uitext"
)

// Account roles.
const (
	RoleSupport              = "SUPPORT"
	RoleCompanyOwner         = "COMPANY_OWNER"
	RoleCompanyAdministrator = "COMPANY_ADMINISTRATOR"
	RoleCompanyUser          = "COMPANY_USER"
)

// Hub and field types as the API spells them.
const (
	HubTypeOutline = "OUTLINE"
	HubTypeValue   = "VALUE"

	FieldSingle = "single"
	FieldGroup  = "group"
	FieldList   = "list"
)

const (
	inviteTTL = 7 * 24 * time.Hour
	resetTTL  = time.Hour
)

// AddOnNames are the features a company can switch on.
var AddOnNames = []string{"Web Automations", "Document Insights", "SIDES", "Datastores", "Forms"}

// Account is a studio user.
type Account struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Role           string    `json:"role"`
	OrganizationID string    `json:"organizationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`

	passwordHash string
}

// FullName is "First Last", or just the first name.
func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// IsSupport reports whether a may use the admin console.
func (a Account) IsSupport() bool {
	return a.Role == RoleSupport
}

// scope is the owner key of hubs and automations: the organization, or
// the account itself for users outside any company.
func (a Account) scope() string {
	if a.OrganizationID != "" {
		return a.OrganizationID
	}
	return "account:" + a.ID
}

// Organization is a company.
type Organization struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerEmail string    `json:"ownerEmail,omitempty"`
	AddOns     []string  `json:"addOns"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Field is a hub field. Group and list fields hold children.
type Field struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Searchable bool     `json:"searchable"`
	Required   bool     `json:"required"`
	Children   []*Field `json:"children,omitempty"`
}

// Outline is a template built from an uploaded document.
type Outline struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FileName string `json:"fileName"`
	Enabled  bool   `json:"enabled"`
}

// Hub is a document hub.
type Hub struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Fields      []*Field          `json:"fields"`
	Outlines    []*Outline        `json:"outlines"`
	CreatedAt   time.Time         `json:"createdAt"`

	scope string
}

// Automation is a web automation.
type Automation struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Steps       json.RawMessage `json:"steps,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	scope string
}

// Invite kinds.
const (
	InviteOwner = "owner"
	InviteUser  = "user"
)

// Invite is a pending registration.
type Invite struct {
	Email          string
	Kind           string
	Role           string
	OrganizationID string
	ExpiresAt      time.Time
}

// InvitableRoles are the roles a company invitation may grant.
var InvitableRoles = []string{RoleCompanyAdministrator, RoleCompanyUser, RoleSupport}

type resetToken struct {
	accountID string
	expiresAt time.Time
}

// Store holds every entity of the double in memory. It is safe for
// concurrent use.
type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	accounts      map[string]*Account // by id
	organizations map[string]*Organization
	hubs          map[string]*Hub
	outlines      map[string]*Outline // uploaded, not yet attached
	automations   map[string]*Automation
	invites       map[string]*Invite // by token hash
	resets        map[string]resetToken
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:           time.Now,
		accounts:      make(map[string]*Account),
		organizations: make(map[string]*Organization),
		hubs:          make(map[string]*Hub),
		outlines:      make(map[string]*Outline),
		automations:   make(map[string]*Automation),
		invites:       make(map[string]*Invite),
		resets:        make(map[string]resetToken),
	}
}

func newID() string {
	return uuid.NewString()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ---- accounts ----

// CreateAccount adds an account. The email must be unused.
func (s *Store) CreateAccount(a Account, password string) (*Account, error) {
	a.Email = normalizeEmail(a.Email)
	if a.Email == "" {
		return nil, errs.New(errs.InvalidArgument, "email is required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "hash password", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountByEmailLocked(a.Email) != nil {
		return nil, errs.New(errs.FailedPrecondition, "an account with this email already exists")
	}
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = s.now()
	a.passwordHash = hash
	stored := a
	s.accounts[a.ID] = &stored
	return &a, nil
}

func (s *Store) accountByEmailLocked(email string) *Account {
	email = normalizeEmail(email)
	for _, a := range s.accounts {
		if a.Email == email {
			return a
		}
	}
	return nil
}

// Account returns a copy of the account with id.
func (s *Store) Account(id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "account not found")
	}
	cp := *a
	return &cp, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords fail the same way.
func (s *Store) Authenticate(email, password string) (*Account, error) {
	s.mu.Lock()
	a := s.accountByEmailLocked(email)
	var hash string
	if a != nil {
		hash = a.passwordHash
	}
	s.mu.Unlock()

	if a == nil || !verifyPassword(password, hash) {
		return nil, errs.New(errs.PermissionDenied, uitext.ErrorInvalidCredentials)
	}
	cp := *a
	return &cp, nil
}

// AccountsIn lists the accounts of an organization, oldest first.
func (s *Store) AccountsIn(orgID string) []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Account
	for _, a := range s.accounts {
		if a.OrganizationID == orgID {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b Account) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// SupportAccounts lists the internal users.
func (s *Store) SupportAccounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Account
	for _, a := range s.accounts {
		if a.Role == RoleSupport {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b Account) int { return strings.Compare(a.Email, b.Email) })
	return out
}

// ---- password reset ----

// StartReset issues a reset token for email. It returns ("", nil, nil)
// for unknown emails so callers cannot probe for accounts.
func (s *Store) StartReset(email string) (string, *Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByEmailLocked(email)
	if a == nil {
		return "", nil, nil
	}
	token, err := generateSecureToken()
	if err != nil {
		return "", nil, err
	}
	s.resets[hashToken(token)] = resetToken{accountID: a.ID, expiresAt: s.now().Add(resetTTL)}
	cp := *a
	return token, &cp, nil
}

// CompleteReset sets a new password with a reset token. The token stays
// valid when the password is rejected, so the user can try again.
func (s *Store) CompleteReset(token, password string) error {
	if msg := passwordProblem(password); msg != "" {
		return errs.New(errs.InvalidArgument, msg)
	}

	s.mu.Lock()
	key := hashToken(token)
	rt, ok := s.resets[key]
	var current string
	a := s.accounts[rt.accountID]
	if a != nil {
		current = a.passwordHash
	}
	s.mu.Unlock()

	if !ok || a == nil || s.now().After(rt.expiresAt) {
		return errs.New(errs.InvalidArgument, "The link is invalid or has expired")
	}
	if verifyPassword(password, current) {
		return errs.New(errs.InvalidArgument, uitext.ErrorPasswordSameWithCurrent)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return errs.Wrap(errs.Internal, "hash password", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a.passwordHash = hash
	delete(s.resets, key)
	return nil
}

// ---- organizations and invites ----

// CreateOrganization adds a company.
func (s *Store) CreateOrganization(name, ownerEmail string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "company name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.organizations {
		if strings.EqualFold(o.Name, name) {
			return nil, errs.New(errs.FailedPrecondition, "a company with this name already exists")
		}
	}
	o := &Organization{
		ID:         newID(),
		Name:       name,
		OwnerEmail: normalizeEmail(ownerEmail),
		AddOns:     slices.Clone(AddOnNames),
		CreatedAt:  s.now(),
	}
	s.organizations[o.ID] = o
	cp := *o
	return &cp, nil
}

// Organization returns a copy of the company with id.
func (s *Store) Organization(id string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.organizations[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "organization not found")
	}
	cp := *o
	cp.AddOns = slices.Clone(o.AddOns)
	return &cp, nil
}

// Organizations lists companies whose name contains filter
// (case-insensitive), sorted by name.
func (s *Store) Organizations(filter string) []Organization {
	filter = strings.ToLower(strings.TrimSpace(filter))
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Organization
	for _, o := range s.organizations {
		if filter == "" || strings.Contains(strings.ToLower(o.Name), filter) {
			cp := *o
			cp.AddOns = slices.Clone(o.AddOns)
			out = append(out, cp)
		}
	}
	slices.SortFunc(out, func(a, b Organization) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// DeleteOrganization removes a company and its accounts.
func (s *Store) DeleteOrganization(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organizations[id]; !ok {
		return errs.New(errs.NotFound, "organization not found")
	}
	delete(s.organizations, id)
	for aid, a := range s.accounts {
		if a.OrganizationID == id {
			delete(s.accounts, aid)
		}
	}
	return nil
}

// SetAddOns replaces the enabled add-ons of a company.
func (s *Store) SetAddOns(id string, addOns []string) error {
	for _, a := range addOns {
		if !slices.Contains(AddOnNames, a) {
			return errs.New(errs.InvalidArgument, fmt.Sprintf("unknown add-on %q", a))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.organizations[id]
	if !ok {
		return errs.New(errs.NotFound, "organization not found")
	}
	o.AddOns = slices.Clone(addOns)
	return nil
}

// CreateInvite issues an invitation token for email. Owner invitations
// ignore role; user invitations default to RoleCompanyUser.
func (s *Store) CreateInvite(email, kind, orgID, role string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", errs.New(errs.InvalidArgument, "a valid email is required")
	}
	switch {
	case kind == InviteOwner:
		role = RoleCompanyOwner
	case role == "":
		role = RoleCompanyUser
	case !slices.Contains(InvitableRoles, role):
		return "", errs.New(errs.InvalidArgument, "role "+role+" cannot be invited")
	}
	token, err := generateSecureToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountByEmailLocked(email) != nil {
		return "", errs.New(errs.FailedPrecondition, "an account with this email already exists")
	}
	if kind == InviteUser {
		if _, ok := s.organizations[orgID]; !ok {
			return "", errs.New(errs.NotFound, "organization not found")
		}
	}
	s.invites[hashToken(token)] = &Invite{
		Email:          email,
		Kind:           kind,
		Role:           role,
		OrganizationID: orgID,
		ExpiresAt:      s.now().Add(inviteTTL),
	}
	return token, nil
}

// Invite looks up a live invitation.
func (s *Store) Invite(token string) (*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[hashToken(token)]
	if !ok || s.now().After(inv.ExpiresAt) {
		return nil, errs.New(errs.NotFound, "The invitation is invalid or has expired")
	}
	cp := *inv
	return &cp, nil
}

// Registration is the form submitted from an invitation link.
type Registration struct {
	Token       string `json:"token"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Password    string `json:"password"`
	CompanyName string `json:"companyName"`
}

// Register redeems an invitation. Owner invitations also create the
// company; user invitations join the inviting company with the invited role.
func (s *Store) Register(r Registration) (*Account, error) {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return nil, errs.New(errs.InvalidArgument, "first and last name are required")
	}
	if msg := passwordProblem(r.Password); msg != "" {
		return nil, errs.New(errs.InvalidArgument, msg)
	}
	inv, err := s.Invite(r.Token)
	if err != nil {
		return nil, err
	}

	orgID := inv.OrganizationID
	if inv.Kind == InviteOwner {
		org, err := s.CreateOrganization(r.CompanyName, inv.Email)
		if err != nil {
			return nil, err
		}
		orgID = org.ID
	}
	a, err := s.CreateAccount(Account{
		Email:          inv.Email,
		FirstName:      strings.TrimSpace(r.FirstName),
		LastName:       strings.TrimSpace(r.LastName),
		Role:           inv.Role,
		OrganizationID: orgID,
	}, r.Password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.invites, hashToken(r.Token))
	s.mu.Unlock()
	return a, nil
}

// ---- hubs ----

func (s *Store) hubLocked(owner *Account, id string) (*Hub, error) {
	h, ok := s.hubs[id]
	if !ok || h.scope != owner.scope() {
		return nil, errs.New(errs.NotFound, "hub not found")
	}
	return h, nil
}

func cloneFields(fields []*Field) []*Field {
	out := make([]*Field, 0, len(fields))
	for _, f := range fields {
		cp := *f
		cp.Children = cloneFields(f.Children)
		out = append(out, &cp)
	}
	return out
}

func cloneHub(h *Hub) *Hub {
	cp := *h
	cp.Fields = cloneFields(h.Fields)
	cp.Outlines = make([]*Outline, 0, len(h.Outlines))
	for _, o := range h.Outlines {
		oc := *o
		cp.Outlines = append(cp.Outlines, &oc)
	}
	if h.Tags != nil {
		cp.Tags = make(map[string]string, len(h.Tags))
		for k, v := range h.Tags {
			cp.Tags[k] = v
		}
	}
	return &cp
}

// CreateHub adds a hub owned by owner's scope.
func (s *Store) CreateHub(owner *Account, name, hubType, description string) (*Hub, error) {
	name = strings.TrimSpace(name)
	hubType = strings.ToUpper(strings.TrimSpace(hubType))
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "hub name is required")
	}
	if hubType != HubTypeOutline && hubType != HubTypeValue {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown hub type %q", hubType))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &Hub{
		ID:          newID(),
		Name:        name,
		Type:        hubType,
		Description: strings.TrimSpace(description),
		Fields:      []*Field{},
		Outlines:    []*Outline{},
		CreatedAt:   s.now(),
		scope:       owner.scope(),
	}
	s.hubs[h.ID] = h
	return cloneHub(h), nil
}

// Hubs lists the hubs visible to owner, oldest first.
func (s *Store) Hubs(owner *Account) []*Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Hub
	for _, h := range s.hubs {
		if h.scope == owner.scope() {
			out = append(out, cloneHub(h))
		}
	}
	slices.SortFunc(out, func(a, b *Hub) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Hub returns one hub.
func (s *Store) Hub(owner *Account, id string) (*Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.hubLocked(owner, id)
	if err != nil {
		return nil, err
	}
	return cloneHub(h), nil
}

// RenameHub changes a hub's name.
func (s *Store) RenameHub(owner *Account, id, name string) (*Hub, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "hub name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.hubLocked(owner, id)
	if err != nil {
		return nil, err
	}
	h.Name = name
	return cloneHub(h), nil
}

// SetTags replaces the tags of a hub. Blank keys are dropped.
func (s *Store) SetTags(owner *Account, id string, tags map[string]string) (*Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.hubLocked(owner, id)
	if err != nil {
		return nil, err
	}
	h.Tags = make(map[string]string, len(tags))
	for k, v := range tags {
		if k = strings.TrimSpace(k); k != "" {
			h.Tags[k] = v
		}
	}
	return cloneHub(h), nil
}

// DeleteHub removes a hub.
func (s *Store) DeleteHub(owner *Account, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.hubLocked(owner, id); err != nil {
		return err
	}
	delete(s.hubs, id)
	return nil
}

// FieldInput is the body of a field create or update.
type FieldInput struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Searchable *bool  `json:"searchable,omitempty"`
	Required   *bool  `json:"required,omitempty"`
}

func (in FieldInput) build() (*Field, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "field name is required")
	}
	kind := strings.ToLower(strings.TrimSpace(in.Type))
	if kind == "" {
		kind = FieldSingle
	}
	if kind != FieldSingle && kind != FieldGroup && kind != FieldList {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown field type %q", in.Type))
	}
	f := &Field{ID: newID(), Name: name, Type: kind}
	if in.Searchable != nil {
		f.Searchable = *in.Searchable
	}
	if in.Required != nil {
		f.Required = *in.Required
	}
	return f, nil
}

// findField returns the field with id anywhere in the tree, plus the
// slice holding it.
func findField(fields *[]*Field, id string) (*Field, *[]*Field) {
	for _, f := range *fields {
		if f.ID == id {
			return f, fields
		}
		if found, holder := findField(&f.Children, id); found != nil {
			return found, holder
		}
	}
	return nil, nil
}

// AddField appends a top-level field.
func (s *Store) AddField(owner *Account, hubID string, in FieldInput) (*Field, error) {
	f, err := in.build()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.hubLocked(owner, hubID)
	if err != nil {
		return nil, err
	}
	h.Fields = append(h.Fields, f)
	cp := *f
	return &cp, nil
}

// AddSubField appends a child to a group or list field.
func (s *Store) AddSubField(owner *Account, hubID, parentID string, in FieldInput) (*Field, error) {
	f, err := in.build()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.hubLocked(owner, hubID)
	if err != nil {
		return nil, err
	}
	parent, _ := findField(&h.Fields, parentID)
	if parent == nil {
		return nil, errs.New(errs.NotFound, "field not found")
	}
	if parent.Type == FieldSingle {
		return nil, errs.New(errs.InvalidArgument, "single fields cannot have sub-fields")
	}
	parent.Children = append(parent.Children, f)
	cp := *f
	return &cp, nil
}

// UpdateField renames a field or changes its options. The type is fixed
// once created.
func (s *Store) UpdateField(owner *Account, hubID, fieldID string, in FieldInput) (*Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.hubLocked(owner, hubID)
	if err != nil {
		return nil, err
	}
	f, _ := findField(&h.Fields, fieldID)
	if f == nil {
		return nil, errs.New(errs.NotFound, "field not found")
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		f.Name = name
	}
	if in.Searchable != nil {
		f.Searchable = *in.Searchable
	}
	if in.Required != nil {
		f.Required = *in.Required
	}
	cp := *f
	cp.Children = cloneFields(f.Children)
	return &cp, nil
}

// DeleteField removes a field and its children.
func (s *Store) DeleteField(owner *Account, hubID, fieldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.hubLocked(owner, hubID)
	if err != nil {
		return err
	}
	f, holder := findField(&h.Fields, fieldID)
	if f == nil {
		return errs.New(errs.NotFound, "field not found")
	}
	*holder = slices.DeleteFunc(*holder, func(x *Field) bool { return x.ID == fieldID })
	return nil
}

// ---- outlines ----

// UploadOutline stores a template built from fileName. It is attached to
// a hub with AttachOutline.
func (s *Store) UploadOutline(fileName string) (*Outline, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, errs.New(errs.InvalidArgument, "file name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o := &Outline{ID: newID(), FileName: fileName, Enabled: true}
	s.outlines[o.ID] = o
	cp := *o
	return &cp, nil
}

// AttachOutline moves an uploaded outline onto an outline hub and names
// it "Outline N".
func (s *Store) AttachOutline(owner *Account, hubID, outlineID string) (*Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.hubLocked(owner, hubID)
	if err != nil {
		return nil, err
	}
	if h.Type != HubTypeOutline {
		return nil, errs.New(errs.InvalidArgument, "templates belong to outline hubs")
	}
	o, ok := s.outlines[outlineID]
	if !ok {
		return nil, errs.New(errs.NotFound, "outline not found")
	}
	delete(s.outlines, outlineID)
	o.Name = fmt.Sprintf("Outline %d", len(h.Outlines)+1)
	h.Outlines = append(h.Outlines, o)
	return cloneHub(h), nil
}

func (s *Store) outlineLocked(owner *Account, id string) (*Hub, *Outline, error) {
	for _, h := range s.hubs {
		if h.scope != owner.scope() {
			continue
		}
		for _, o := range h.Outlines {
			if o.ID == id {
				return h, o, nil
			}
		}
	}
	return nil, nil, errs.New(errs.NotFound, "outline not found")
}

// UpdateOutline renames a template or switches it on or off.
func (s *Store) UpdateOutline(owner *Account, id string, name *string, enabled *bool) (*Outline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, o, err := s.outlineLocked(owner, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, errs.New(errs.InvalidArgument, "template name is required")
		}
		o.Name = n
	}
	if enabled != nil {
		o.Enabled = *enabled
	}
	cp := *o
	return &cp, nil
}

// DeleteOutline removes a template from its hub.
func (s *Store) DeleteOutline(owner *Account, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, _, err := s.outlineLocked(owner, id)
	if err != nil {
		return err
	}
	h.Outlines = slices.DeleteFunc(h.Outlines, func(o *Outline) bool { return o.ID == id })
	return nil
}

// ---- web automations ----

// CreateAutomation adds an automation.
func (s *Store) CreateAutomation(owner *Account, a Automation) (*Automation, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return nil, errs.New(errs.InvalidArgument, "automation name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = newID()
	a.UpdatedAt = s.now()
	a.scope = owner.scope()
	stored := a
	s.automations[a.ID] = &stored
	cp := stored
	return &cp, nil
}

func (s *Store) automationLocked(owner *Account, id string) (*Automation, error) {
	a, ok := s.automations[id]
	if !ok || a.scope != owner.scope() {
		return nil, errs.New(errs.NotFound, "automation not found")
	}
	return a, nil
}

// Automation returns one automation.
func (s *Store) Automation(owner *Account, id string) (*Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.automationLocked(owner, id)
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

// Automations lists the automations visible to owner, newest first.
func (s *Store) Automations(owner *Account) []Automation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Automation
	for _, a := range s.automations {
		if a.scope == owner.scope() {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b Automation) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out
}

// UpdateAutomation saves an automation. Empty fields keep their value.
func (s *Store) UpdateAutomation(owner *Account, id string, in Automation) (*Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.automationLocked(owner, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		a.Name = name
	}
	if in.Description != "" {
		a.Description = in.Description
	}
	if len(in.Steps) > 0 {
		a.Steps = in.Steps
	}
	a.UpdatedAt = s.now()
	cp := *a
	return &cp, nil
}

// DeleteAutomation removes an automation.
func (s *Store) DeleteAutomation(owner *Account, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.automationLocked(owner, id); err != nil {
		return err
	}
	delete(s.automations, id)
	return nil
}
