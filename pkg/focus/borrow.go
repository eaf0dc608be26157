package focus

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/odvcencio/regionfocus/pkg/dom"
	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

// ReleaseOutcome describes how a borrow session ended.
type ReleaseOutcome string

const (
	// ReleaseNoop means there was no session to end.
	ReleaseNoop ReleaseOutcome = "noop"
	// ReleaseRestored means focus went back to the saved element.
	ReleaseRestored ReleaseOutcome = "restored"
	// ReleaseFallback means the saved element was gone and resolution found
	// a fallback.
	ReleaseFallback ReleaseOutcome = "fallback"
	// ReleaseCleared means neither the saved element nor any fallback was
	// available.
	ReleaseCleared ReleaseOutcome = "cleared"
)

// borrowSession is a live focus hand-off owned by one region.
type borrowSession struct {
	owner  *Region
	saved  dom.Element
	target dom.Element
}

func (m *Manager) borrowLocked(ctx context.Context, r *Region, el dom.Element) error {
	_, span := m.tracer.Start(ctx, "focus.Borrow")
	defer span.End()

	if err := m.check(r, "borrow", true); err != nil {
		span.RecordError(err)
		return err
	}
	if el == nil {
		m.recorder.Violation("borrow")
		return errors.New(errors.ErrCodeInvalidInput, "borrow target is nil").
			WithContext("region", r.id)
	}
	if !m.surface.IsAttached(el) {
		m.recorder.Violation("borrow")
		err := errors.New(errors.ErrCodeInvalidInput, "borrow target is not in the document").
			WithContext("region", r.id).
			WithContext("target", dom.ID(el))
		span.RecordError(err)
		return err
	}

	active := m.surface.ActiveElement()
	replaced := r.session != nil
	if replaced {
		// Re-entrant borrow: keep the original return target and skip the
		// intermediate restore.
		r.session.target = el
	} else {
		r.session = &borrowSession{owner: r, saved: active, target: el}
	}

	m.surface.Focus(el)
	m.recorder.Borrowed(replaced)
	m.emit(Change{
		Kind:     ChangeBorrow,
		RegionID: r.id,
		From:     dom.ID(active),
		To:       dom.ID(el),
	})

	span.SetAttributes(
		attribute.String("region.id", r.id),
		attribute.String("borrow.target", dom.ID(el)),
		attribute.String("borrow.saved", dom.ID(r.session.saved)),
		attribute.Bool("borrow.replaced", replaced),
	)
	_ = m.log.Info(logging.CategoryBorrow, "borrowed", r.id, "", map[string]any{
		"target":   dom.ID(el),
		"saved":    dom.ID(r.session.saved),
		"replaced": replaced,
	})
	return nil
}

// releaseLocked ends r's session. kind distinguishes an explicit release from
// the forced release performed by Remove. An explicit release on a region
// whose container is gone still hands focus back, and reports PRECONDITION.
func (m *Manager) releaseLocked(ctx context.Context, r *Region, kind ChangeKind) (Result, error) {
	if kind == ChangeRelease {
		if err := m.check(r, "release", false); err != nil {
			return Result{}, err
		}
	}
	if r == nil || r.m != m || r.session == nil {
		return Result{}, nil
	}
	var violation error
	if kind == ChangeRelease {
		violation = m.check(r, "release", true)
	}

	_, span := m.tracer.Start(ctx, "focus.Release")
	defer span.End()

	session := r.session
	r.session = nil
	from := m.surface.ActiveElement()

	var (
		res     Result
		outcome ReleaseOutcome
	)
	switch {
	case session.saved == nil:
		// Borrowed from the neutral target; give it back.
		m.surface.Blur()
		res, outcome = Result{Action: ActionCleared}, ReleaseRestored
	case m.surface.IsAttached(session.saved):
		m.surface.Focus(session.saved)
		res, outcome = Result{Action: ActionFocused, Target: session.saved}, ReleaseRestored
	default:
		start := r.parent
		if start == nil {
			start = r
		}
		target, _, ok := m.resolveLocked(start)
		if ok {
			m.surface.Focus(target)
			res, outcome = Result{Action: ActionFocused, Target: target}, ReleaseFallback
		} else {
			m.surface.Blur()
			res, outcome = Result{Action: ActionCleared}, ReleaseCleared
		}
	}

	m.recorder.Released(outcome)
	m.emit(Change{
		Kind:     kind,
		RegionID: r.id,
		From:     dom.ID(from),
		To:       dom.ID(res.Target),
		Cleared:  res.Action == ActionCleared,
	})

	span.SetAttributes(
		attribute.String("region.id", r.id),
		attribute.String("release.outcome", string(outcome)),
		attribute.String("release.target", dom.ID(res.Target)),
	)
	_ = m.log.Info(logging.CategoryBorrow, "released", r.id, "", map[string]any{
		"outcome": string(outcome),
		"target":  dom.ID(res.Target),
		"forced":  kind == ChangeRemove,
	})
	if violation != nil {
		span.RecordError(violation)
	}
	return res, violation
}
