// Package ledger records every server-side resource a test run creates so
// that leaked resources can be swept after a crashed run.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/obs"
)

// Kind is the type of a tracked resource.
type Kind string

const (
	KindHub           Kind = "hub"
	KindWebAutomation Kind = "web_automation"
	KindOrganization  Kind = "organization"
	KindInbox         Kind = "inbox"
)

// Schema is the ledger table definition.
const Schema = `
CREATE TABLE IF NOT EXISTS resources (
    kind TEXT NOT NULL,
    id TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT '',
    test TEXT NOT NULL DEFAULT '',
    run_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    deleted_at INTEGER,
    last_error TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS idx_resources_pending ON resources(deleted_at);
`

// Resource is one ledger row.
type Resource struct {
	Kind      Kind
	ID        string
	Role      string
	Test      string
	RunID     string
	CreatedAt time.Time
	DeletedAt *time.Time
	LastError string
}

// Key returns "kind/id".
func (r Resource) Key() string {
	return resourceKey(string(r.Kind), r.ID)
}

// Ledger is a SQLite-backed resource ledger. It is safe for concurrent use.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the ledger at path. ":memory:" gives a private
// in-memory ledger.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errs.New(errs.InvalidArgument, "ledger: path is required")
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errs.Wrap(errs.Internal, "ledger: create directory", err)
		}
		dsn = appendParams(path, commonParams())
	}
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "ledger: open", err)
	}
	// One connection keeps an in-memory ledger a single database and
	// serializes writers on a file ledger.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Unavailable, "ledger: ping", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Internal, "ledger: initialize schema", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record stores a newly created resource. Recording the same kind and id
// again revives it as pending.
func (l *Ledger) Record(ctx context.Context, r Resource) error {
	if r.Kind == "" || r.ID == "" {
		return errs.New(errs.InvalidArgument, "ledger: kind and id are required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = l.now()
	}
	if r.RunID == "" {
		r.RunID = obs.RunID()
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO resources (kind, id, role, test, run_id, created_at, deleted_at, last_error)
VALUES (?, ?, ?, ?, ?, ?, NULL, '')
ON CONFLICT (kind, id) DO UPDATE SET
    role = excluded.role,
    test = excluded.test,
    run_id = excluded.run_id,
    created_at = excluded.created_at,
    deleted_at = NULL,
    last_error = ''`,
		string(r.Kind), r.ID, r.Role, r.Test, r.RunID, r.CreatedAt.UnixMilli())
	if err != nil {
		return errs.Wrap(errs.Internal, "ledger: record "+r.Key(), err)
	}
	obs.From(ctx).Debug("ledger_recorded", "resource", r.Key(), "test", r.Test)
	return nil
}

// MarkDeleted marks a resource as removed from the server.
func (l *Ledger) MarkDeleted(ctx context.Context, kind Kind, id string) error {
	return l.update(ctx, kind, id, `UPDATE resources SET deleted_at = ?, last_error = '' WHERE kind = ? AND id = ?`,
		l.now().UnixMilli(), string(kind), id)
}

// MarkFailed keeps a resource pending and remembers why deleting it failed.
func (l *Ledger) MarkFailed(ctx context.Context, kind Kind, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return l.update(ctx, kind, id, `UPDATE resources SET last_error = ? WHERE kind = ? AND id = ?`,
		msg, string(kind), id)
}

func (l *Ledger) update(ctx context.Context, kind Kind, id, query string, args ...any) error {
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errs.Wrap(errs.Internal, "ledger: update "+resourceKey(string(kind), id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, "ledger: update "+resourceKey(string(kind), id), err)
	}
	if n == 0 {
		return errs.New(errs.NotFound, fmt.Sprintf("ledger: %s is not recorded", resourceKey(string(kind), id)))
	}
	return nil
}

// Pending lists resources not yet deleted, oldest first.
func (l *Ledger) Pending(ctx context.Context) ([]Resource, error) {
	return l.pending(ctx, "")
}

// PendingForRun is Pending restricted to resources recorded by runID.
func (l *Ledger) PendingForRun(ctx context.Context, runID string) ([]Resource, error) {
	if runID == "" {
		return nil, errs.New(errs.InvalidArgument, "ledger: run id is required")
	}
	return l.pending(ctx, " AND run_id = ?", runID)
}

func (l *Ledger) pending(ctx context.Context, filter string, args ...any) ([]Resource, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT kind, id, role, test, run_id, created_at, last_error
FROM resources WHERE deleted_at IS NULL`+filter+` ORDER BY created_at, kind, id`, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "ledger: list pending", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		var (
			r       Resource
			kind    string
			created int64
		)
		if err := rows.Scan(&kind, &r.ID, &r.Role, &r.Test, &r.RunID, &created, &r.LastError); err != nil {
			return nil, errs.Wrap(errs.Internal, "ledger: scan pending", err)
		}
		r.Kind = Kind(kind)
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, "ledger: list pending", err)
	}
	return out, nil
}

// Get returns one resource.
func (l *Ledger) Get(ctx context.Context, kind Kind, id string) (Resource, error) {
	var (
		r       = Resource{Kind: kind, ID: id}
		created int64
		deleted sql.NullInt64
	)
	err := l.db.QueryRowContext(ctx, `
SELECT role, test, run_id, created_at, deleted_at, last_error
FROM resources WHERE kind = ? AND id = ?`, string(kind), id).
		Scan(&r.Role, &r.Test, &r.RunID, &created, &deleted, &r.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, errs.New(errs.NotFound, fmt.Sprintf("ledger: %s is not recorded", r.Key()))
	}
	if err != nil {
		return Resource{}, errs.Wrap(errs.Internal, "ledger: get "+r.Key(), err)
	}
	r.CreatedAt = time.UnixMilli(created)
	if deleted.Valid {
		t := time.UnixMilli(deleted.Int64)
		r.DeletedAt = &t
	}
	return r, nil
}

// Keys returns "kind/id" for every pending resource, computed in SQL.
func (l *Ledger) Keys(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT resource_key(kind, id) FROM resources WHERE deleted_at IS NULL ORDER BY created_at, kind, id`)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "ledger: list keys", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.Wrap(errs.Internal, "ledger: scan key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
