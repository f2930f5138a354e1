// Package cleanup deletes the server-side resources tests create, whether
// the test passes or fails, and sweeps leftovers from earlier runs.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/kuitang/plextera-e2e/internal/errs"
	"github.com/kuitang/plextera-e2e/internal/ledger"
	"github.com/kuitang/plextera-e2e/internal/mailbox"
	"github.com/kuitang/plextera-e2e/internal/obs"
	"github.com/kuitang/plextera-e2e/internal/studioapi"
)

// DefaultTimeout bounds one deletion.
const DefaultTimeout = 30 * time.Second

// Deleter removes one resource from the server.
type Deleter interface {
	Delete(ctx context.Context, r ledger.Resource) error
}

// TokenSource issues bearer tokens per fixture role.
type TokenSource interface {
	Token(ctx context.Context, role string) (string, error)
}

// Dispatcher deletes resources through the studio API, or the mail API for
// inboxes, authenticating as the role that created them.
type Dispatcher struct {
	API    *studioapi.Client
	Tokens TokenSource
	Mail   *mailbox.Client
}

// Delete implements Deleter.
func (d *Dispatcher) Delete(ctx context.Context, r ledger.Resource) error {
	if r.Kind == ledger.KindInbox {
		if d.Mail == nil {
			return errs.New(errs.FailedPrecondition, "cleanup: no mail client for "+r.Key())
		}
		return d.Mail.DeleteInbox(ctx, r.ID)
	}
	if d.API == nil || d.Tokens == nil {
		return errs.New(errs.FailedPrecondition, "cleanup: no studio client for "+r.Key())
	}
	token, err := d.Tokens.Token(ctx, r.Role)
	if err != nil {
		return err
	}
	switch r.Kind {
	case ledger.KindHub:
		return d.API.DeleteHub(ctx, token, r.ID)
	case ledger.KindWebAutomation:
		return d.API.DeleteWebAutomation(ctx, token, r.ID)
	case ledger.KindOrganization:
		return d.API.DeleteOrganization(ctx, token, r.ID)
	default:
		return errs.New(errs.InvalidArgument, fmt.Sprintf("cleanup: unknown resource kind %q", r.Kind))
	}
}

// Report summarizes a sweep.
type Report struct {
	Deleted []string
	Failed  map[string]error
}

// Sweep deletes every pending resource in the ledger. A resource the server
// no longer knows counts as deleted.
func Sweep(ctx context.Context, l *ledger.Ledger, d Deleter) (*Report, error) {
	pending, err := l.Pending(ctx)
	if err != nil {
		return nil, err
	}
	return sweep(ctx, l, d, pending), nil
}

// SweepRun is Sweep limited to the resources recorded by runID, so parallel
// runs sharing a ledger leave each other alone.
func SweepRun(ctx context.Context, l *ledger.Ledger, d Deleter, runID string) (*Report, error) {
	pending, err := l.PendingForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return sweep(ctx, l, d, pending), nil
}

func sweep(ctx context.Context, l *ledger.Ledger, d Deleter, pending []ledger.Resource) *Report {
	report := &Report{Failed: map[string]error{}}
	for _, r := range pending {
		if err := deleteOne(ctx, l, d, r); err != nil {
			report.Failed[r.Key()] = err
			continue
		}
		report.Deleted = append(report.Deleted, r.Key())
	}
	obs.From(ctx).Info("cleanup_sweep_done", "deleted", len(report.Deleted), "failed", len(report.Failed))
	return report
}

func deleteOne(ctx context.Context, l *ledger.Ledger, d Deleter, r ledger.Resource) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	err := d.Delete(ctx, r)
	if errs.Is(err, errs.NotFound) {
		err = nil
	}
	log := obs.From(ctx)
	if err != nil {
		log.Warn("cleanup_delete_failed", "resource", r.Key(), "error", err)
		if l != nil {
			if markErr := l.MarkFailed(ctx, r.Kind, r.ID, err); markErr != nil {
				log.Warn("cleanup_ledger_update_failed", "resource", r.Key(), "error", markErr)
			}
		}
		return err
	}
	log.Info("cleanup_deleted", "resource", r.Key())
	if l != nil {
		if markErr := l.MarkDeleted(ctx, r.Kind, r.ID); markErr != nil {
			log.Warn("cleanup_ledger_update_failed", "resource", r.Key(), "error", markErr)
		}
	}
	return nil
}
