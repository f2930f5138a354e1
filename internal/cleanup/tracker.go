package cleanup

import (
	"context"

	"github.com/kuitang/plextera-e2e/internal/ledger"
	"github.com/kuitang/plextera-e2e/internal/obs"
)

// TB is the part of testing.TB the tracker needs.
type TB interface {
	Helper()
	Name() string
	Cleanup(func())
	Errorf(format string, args ...any)
}

// Tracker ties created resources to a test. Deletions run from the test's
// Cleanup, so they happen after a failed assertion too.
type Tracker struct {
	t       TB
	ledger  *ledger.Ledger
	deleter Deleter
}

// NewTracker returns a tracker for t. The ledger may be nil.
func NewTracker(t TB, l *ledger.Ledger, d Deleter) *Tracker {
	return &Tracker{t: t, ledger: l, deleter: d}
}

// Track records a created resource and schedules its deletion.
func (tr *Tracker) Track(kind ledger.Kind, id, role string) {
	tr.t.Helper()
	r := ledger.Resource{Kind: kind, ID: id, Role: role, Test: tr.t.Name()}
	ctx := obs.WithTest(context.Background(), tr.t.Name())
	if tr.ledger != nil {
		if err := tr.ledger.Record(ctx, r); err != nil {
			tr.t.Errorf("record %s in ledger: %v", r.Key(), err)
		}
	}
	tr.t.Cleanup(func() {
		if err := deleteOne(ctx, tr.ledger, tr.deleter, r); err != nil {
			tr.t.Errorf("delete %s: %v", r.Key(), err)
		}
	})
}

// Defer schedules an arbitrary teardown step, for resources whose id is only
// known at teardown (an organization created through registration).
func (tr *Tracker) Defer(label string, fn func(ctx context.Context) error) {
	tr.t.Helper()
	ctx := obs.WithTest(context.Background(), tr.t.Name())
	tr.t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			tr.t.Errorf("%s: %v", label, err)
			return
		}
		obs.From(ctx).Info("cleanup_step_done", "step", label)
	})
}
