package studiofake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/obs"
)

// Mail template names.
const (
	TemplatePasswordReset = "password_reset"
	TemplateInviteOwner   = "invite_owner"
	TemplateInviteUser    = "invite_user"
)

// DefaultMailDomain is the domain of addresses handed out by CreateInbox.
const DefaultMailDomain = "mailslurp.test"

// PasswordResetData is the data of a password reset email.
type PasswordResetData struct {
	Name      string
	Link      string
	ExpiresIn string
}

// InviteData is the data of an invitation email.
type InviteData struct {
	Company string
	Link    string
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "password_reset"}}<p>Hello {{.Name}},</p>
<p>We received a request to reset your Plextera Studio password. The link expires in {{.ExpiresIn}}.</p>
<p><a href="{{.Link}}">Create new password</a></p>{{end}}
{{define "invite_owner"}}<p>You have been invited to create a company on Plextera Studio.</p>
<p><a href="{{.Link}}">Accept invitation</a></p>{{end}}
{{define "invite_user"}}<p>You have been invited to join {{.Company}} on Plextera Studio.</p>
<p><a href="{{.Link}}">Accept invitation</a></p>{{end}}
`))

var mailSubjects = map[string]string{
	TemplatePasswordReset: "Reset your Plextera Studio password",
	TemplateInviteOwner:   "You're invited to Plextera Studio",
	TemplateInviteUser:    "You're invited to Plextera Studio",
}

// Email is a delivered message, encoded the way the inbox API returns it.
type Email struct {
	ID        string    `json:"id"`
	InboxID   string    `json:"inboxId"`
	Subject   string    `json:"subject"`
	From      string    `json:"from"`
	To        []string  `json:"to"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Inbox is a disposable inbox.
type Inbox struct {
	ID           string    `json:"id"`
	EmailAddress string    `json:"emailAddress"`
	CreatedAt    time.Time `json:"createdAt"`
}

type inboxState struct {
	Inbox
	emails []*Email
	notify chan struct{} // closed and replaced on every delivery
}

// SentEmail is one captured send, delivered to an inbox or not.
type SentEmail struct {
	To       string
	Template string
	Subject  string
	Body     string
}

// Mailer renders studio emails and delivers them to inboxes it hosts.
// Mail to addresses without an inbox is only captured.
type Mailer struct {
	mu        sync.Mutex
	inboxes   map[string]*inboxState // by id
	Emails    []SentEmail
	domain    string
	from      string
	outboxDir string
	seq       uint64
	now       func() time.Time
}

// NewMailer creates a mailer. When outboxDir is not empty every send is
// also written there as a JSON file.
func NewMailer(outboxDir string) *Mailer {
	if outboxDir != "" {
		if err := os.MkdirAll(outboxDir, 0o755); err != nil {
			obs.Pkg("studiofake").Warn("outbox_dir_failed", "dir", outboxDir, "error", err)
			outboxDir = ""
		}
	}
	return &Mailer{
		inboxes:   make(map[string]*inboxState),
		domain:    DefaultMailDomain,
		from:      "no-reply@plextera.test",
		outboxDir: outboxDir,
		now:       time.Now,
	}
}

// CreateInbox creates an inbox. Empty id and address are generated.
func (m *Mailer) CreateInbox(id, address string) (Inbox, error) {
	if id == "" {
		id = newID()
	}
	if address == "" {
		address = id + "@" + m.domain
	}
	address = normalizeEmail(address)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inboxes[id]; ok {
		return Inbox{}, errs.New(errs.FailedPrecondition, "inbox already exists")
	}
	for _, in := range m.inboxes {
		if in.EmailAddress == address {
			return Inbox{}, errs.New(errs.FailedPrecondition, "address is already taken")
		}
	}
	in := &inboxState{
		Inbox:  Inbox{ID: id, EmailAddress: address, CreatedAt: m.now()},
		notify: make(chan struct{}),
	}
	m.inboxes[id] = in
	return in.Inbox, nil
}

// DeleteInbox removes an inbox and its emails.
func (m *Mailer) DeleteInbox(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.inboxes[id]
	if !ok {
		return errs.New(errs.NotFound, "inbox not found")
	}
	close(in.notify)
	delete(m.inboxes, id)
	return nil
}

// EmptyInbox deletes every email of an inbox.
func (m *Mailer) EmptyInbox(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.inboxes[id]
	if !ok {
		return errs.New(errs.NotFound, "inbox not found")
	}
	in.emails = nil
	return nil
}

// Send renders a template and delivers it to to.
func (m *Mailer) Send(ctx context.Context, to, templateName string, data any) error {
	var body bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&body, templateName, data); err != nil {
		return errs.Wrap(errs.Internal, "render "+templateName, err)
	}
	subject := mailSubjects[templateName]
	to = normalizeEmail(to)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = append(m.Emails, SentEmail{To: to, Template: templateName, Subject: subject, Body: body.String()})

	delivered := false
	for _, in := range m.inboxes {
		if in.EmailAddress != to {
			continue
		}
		in.emails = append(in.emails, &Email{
			ID:        newID(),
			InboxID:   in.ID,
			Subject:   subject,
			From:      m.from,
			To:        []string{to},
			Body:      body.String(),
			CreatedAt: m.now(),
		})
		close(in.notify)
		in.notify = make(chan struct{})
		delivered = true
	}
	obs.From(ctx).Info("email_sent", "pkg", "studiofake", "to", to, "template", templateName, "delivered", delivered)
	return m.writeOutboxEvent(to, templateName, body.String())
}

// latest marks the newest (unread) email read and returns a copy of it.
func (in *inboxState) latest(unreadOnly bool) *Email {
	for i := len(in.emails) - 1; i >= 0; i-- {
		e := in.emails[i]
		if unreadOnly && e.Read {
			continue
		}
		e.Read = true
		cp := *e
		return &cp
	}
	return nil
}

// WaitForLatestEmail blocks until the inbox holds a matching email or the
// timeout elapses. A timeout is an errs.Timeout error.
func (m *Mailer) WaitForLatestEmail(ctx context.Context, id string, timeout time.Duration, unreadOnly bool) (*Email, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		m.mu.Lock()
		in, ok := m.inboxes[id]
		if !ok {
			m.mu.Unlock()
			return nil, errs.New(errs.NotFound, "inbox not found")
		}
		if e := in.latest(unreadOnly); e != nil {
			m.mu.Unlock()
			return e, nil
		}
		notify := in.notify
		m.mu.Unlock()

		select {
		case <-notify:
		case <-timer.C:
			return nil, errs.New(errs.Timeout, fmt.Sprintf("no email arrived in inbox %s within %s", id, timeout))
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Timeout, "wait for email", ctx.Err())
		}
	}
}

// InboxEmails lists the emails of an inbox, oldest first.
func (m *Mailer) InboxEmails(id string) ([]Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.inboxes[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "inbox not found")
	}
	out := make([]Email, 0, len(in.emails))
	for _, e := range in.emails {
		out = append(out, *e)
	}
	return out, nil
}

// Inboxes lists every inbox, oldest first.
func (m *Mailer) Inboxes() []Inbox {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Inbox, 0, len(m.inboxes))
	for _, in := range m.inboxes {
		out = append(out, in.Inbox)
	}
	slices.SortFunc(out, func(a, b Inbox) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// LastEmail returns the most recently sent email, or the zero value.
func (m *Mailer) LastEmail() SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Emails) == 0 {
		return SentEmail{}
	}
	return m.Emails[len(m.Emails)-1]
}

// Count returns the number of captured sends.
func (m *Mailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Emails)
}

type outboxEmailEvent struct {
	Sequence       uint64 `json:"sequence"`
	To             string `json:"to"`
	Template       string `json:"template"`
	Body           string `json:"body"`
	SentAtUnixNano int64  `json:"sent_at_unix_nano"`
}

// writeOutboxEvent is called with m.mu held.
func (m *Mailer) writeOutboxEvent(to, templateName, body string) error {
	if m.outboxDir == "" {
		return nil
	}
	m.seq++
	event := outboxEmailEvent{
		Sequence:       m.seq,
		To:             to,
		Template:       templateName,
		Body:           body,
		SentAtUnixNano: m.now().UnixNano(),
	}
	fileName := fmt.Sprintf("%020d-%020d-%s-%s.json",
		event.Sequence, event.SentAtUnixNano,
		sanitizeOutboxComponent(templateName), sanitizeOutboxComponent(to))
	finalPath := filepath.Join(m.outboxDir, fileName)
	tempPath := finalPath + ".tmp"

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write outbox temp file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename outbox file: %w", err)
	}
	return nil
}

var outboxSanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9._@-]+`)

func sanitizeOutboxComponent(input string) string {
	safe := strings.TrimSpace(input)
	if safe == "" {
		return "unknown"
	}
	return outboxSanitizePattern.ReplaceAllString(safe, "_")
}
