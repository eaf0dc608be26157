package focus

import (
	"context"
	stderrors "errors"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/odvcencio/regionfocus/pkg/dom"
	"github.com/odvcencio/regionfocus/pkg/errors"
)

// Phase is a stage of an update cycle.
type Phase string

const (
	// PhasePrePaint runs borrow and release transitions before the frame is
	// shown, so a hand-off never paints the old element as focused.
	PhasePrePaint Phase = "pre-paint"
	// PhasePostCommit runs reconciliation after every container and
	// fallback of the update has registered.
	PhasePostCommit Phase = "post-commit"
)

// StepResult is the outcome of one queued operation.
type StepResult struct {
	Phase    Phase
	Kind     ChangeKind
	RegionID string
	Result   Result
	Err      error
}

type transition struct {
	kind   ChangeKind
	region *Region
	target dom.Element
}

// Cycle collects the focus work of one UI update and applies it in phase
// order on Commit. A Cycle is single-use.
type Cycle struct {
	m          *Manager
	prePaint   []transition
	postCommit []*Region
	queued     map[*Region]struct{}
	committed  bool
}

// Begin opens an update cycle.
func (m *Manager) Begin() *Cycle {
	return &Cycle{m: m, queued: make(map[*Region]struct{})}
}

// Update runs fn against a fresh cycle and commits it. If fn fails nothing
// is committed.
func (m *Manager) Update(ctx context.Context, fn func(c *Cycle) error) ([]StepResult, error) {
	c := m.Begin()
	if err := fn(c); err != nil {
		c.committed = true
		return nil, err
	}
	return c.Commit(ctx)
}

// BorrowFocus queues a pre-paint borrow.
func (c *Cycle) BorrowFocus(r *Region, el dom.Element) error {
	if err := c.usable(); err != nil {
		return err
	}
	c.prePaint = append(c.prePaint, transition{kind: ChangeBorrow, region: r, target: el})
	return nil
}

// ReleaseFocus queues a pre-paint release.
func (c *Cycle) ReleaseFocus(r *Region) error {
	if err := c.usable(); err != nil {
		return err
	}
	c.prePaint = append(c.prePaint, transition{kind: ChangeRelease, region: r})
	return nil
}

// Reconcile queues post-commit reconciliation of r. Queuing the same region
// twice in one cycle reconciles it once.
func (c *Cycle) Reconcile(r *Region) error {
	if err := c.usable(); err != nil {
		return err
	}
	if _, ok := c.queued[r]; ok {
		return nil
	}
	c.queued[r] = struct{}{}
	c.postCommit = append(c.postCommit, r)
	return nil
}

func (c *Cycle) usable() error {
	if c.committed {
		return errors.New(errors.ErrCodePrecondition, "update cycle already committed")
	}
	return nil
}

// Commit applies every pre-paint transition in queue order, then reconciles
// the queued regions deepest first (ties in registration order). A failing
// step does not stop later ones; the joined error of all failures is
// returned alongside the per-step results.
func (c *Cycle) Commit(ctx context.Context) ([]StepResult, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	c.committed = true

	m := c.m
	var (
		results []StepResult
		errs    []error
	)
	err := m.run(func() error {
		ctx, span := m.tracer.Start(ctx, "focus.Commit")
		defer span.End()
		span.SetAttributes(
			attribute.Int("cycle.pre_paint", len(c.prePaint)),
			attribute.Int("cycle.post_commit", len(c.postCommit)),
		)

		for _, t := range c.prePaint {
			step := StepResult{Phase: PhasePrePaint, Kind: t.kind, RegionID: regionID(t.region)}
			switch t.kind {
			case ChangeBorrow:
				step.Err = m.borrowLocked(ctx, t.region, t.target)
			case ChangeRelease:
				step.Result, step.Err = m.releaseLocked(ctx, t.region, ChangeRelease)
			}
			if step.Err != nil {
				errs = append(errs, step.Err)
			}
			results = append(results, step)
		}

		for _, r := range c.reconcileOrderLocked() {
			step := StepResult{Phase: PhasePostCommit, Kind: ChangeReconcile, RegionID: r.id}
			step.Result, step.Err = m.reconcileLocked(ctx, r)
			if step.Err != nil {
				errs = append(errs, step.Err)
			}
			results = append(results, step)
		}
		return stderrors.Join(errs...)
	})
	return results, err
}

// reconcileOrderLocked drops regions removed during the cycle and sorts the
// rest innermost first, so the region closest to the lost element decides.
func (c *Cycle) reconcileOrderLocked() []*Region {
	live := make([]*Region, 0, len(c.postCommit))
	depth := make(map[*Region]int, len(c.postCommit))
	for _, r := range c.postCommit {
		if r == nil || r.removed {
			continue
		}
		live = append(live, r)
		depth[r] = depthLocked(r)
	}
	sort.SliceStable(live, func(i, j int) bool {
		if depth[live[i]] != depth[live[j]] {
			return depth[live[i]] > depth[live[j]]
		}
		return live[i].seq < live[j].seq
	})
	return live
}
