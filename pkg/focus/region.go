package focus

import (
	"context"

	"github.com/odvcencio/regionfocus/pkg/dom"
	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

// Region is a node of the focus tree bound to one UI container.
//
// A Region is a handle: every method takes the owning manager's lock, so it
// is safe to call from any goroutine, but the engine assumes the calls of one
// update cycle arrive in order.
type Region struct {
	m       *Manager
	id      string
	seq     uint64
	options map[string]any

	container dom.Element
	fallbacks fallbackList
	parent    *Region
	session   *borrowSession
	removed   bool
}

// RegionOption configures a region at creation time.
type RegionOption func(*Region)

// WithOptions attaches opaque options that are forwarded untouched to the
// manager's Primitive.
func WithOptions(opts map[string]any) RegionOption {
	return func(r *Region) {
		r.options = make(map[string]any, len(opts))
		for k, v := range opts {
			r.options[k] = v
		}
	}
}

// WithID overrides the generated region id. Intended for fixtures.
func WithID(id string) RegionOption {
	return func(r *Region) {
		if id != "" {
			r.id = id
		}
	}
}

// ID returns the region's stable identity.
func (r *Region) ID() string {
	return r.id
}

// Options returns a copy of the region's opaque options.
func (r *Region) Options() map[string]any {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return copyOptions(r.options)
}

// Container returns the current container, or nil before mount.
func (r *Region) Container() dom.Element {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.container
}

// Parent returns the nearest enclosing region, or nil for a root.
func (r *Region) Parent() *Region {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.parent
}

// Fallbacks returns the registered candidates in ascending order.
func (r *Region) Fallbacks() []Fallback {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.fallbacks.snapshot()
}

// Borrowed reports whether the region owns a live borrow session and, if so,
// the element focus will return to.
func (r *Region) Borrowed() (saved dom.Element, ok bool) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.session == nil {
		return nil, false
	}
	return r.session.saved, true
}

// Removed reports whether Remove has been called.
func (r *Region) Removed() bool {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.removed
}

// SetContainer assigns the region's container and relinks the tree.
// Passing the current container again is a no-op; nil unmounts it.
func (r *Region) SetContainer(el dom.Element) error {
	return r.m.run(func() error {
		return r.m.setContainerLocked(r, el)
	})
}

// SetFallback registers ref as the candidate at order, replacing any earlier
// one. A nil ref clears the slot. Focus never moves as a result.
func (r *Region) SetFallback(ref dom.Element, order int) error {
	return r.m.run(func() error {
		return r.m.setFallbackLocked(r, ref, order)
	})
}

// Reconcile repairs focus if the active element has left the document.
func (r *Region) Reconcile() (Result, error) {
	var res Result
	err := r.m.run(func() error {
		var err error
		res, err = r.m.reconcileLocked(context.Background(), r)
		return err
	})
	return res, err
}

// BorrowFocus hands focus to el until ReleaseFocus.
func (r *Region) BorrowFocus(el dom.Element) error {
	return r.m.run(func() error {
		return r.m.borrowLocked(context.Background(), r, el)
	})
}

// ReleaseFocus ends the region's borrow session, if any. Without a session it
// is a no-op. A removed region reports REGION_REMOVED; a region that lost its
// container while borrowing is released anyway and reports PRECONDITION.
func (r *Region) ReleaseFocus() (Result, error) {
	var res Result
	err := r.m.run(func() error {
		var err error
		res, err = r.m.releaseLocked(context.Background(), r, ChangeRelease)
		return err
	})
	return res, err
}

// Remove tears the region down. Calling it again is a no-op.
func (r *Region) Remove() {
	_ = r.m.run(func() error {
		r.m.removeLocked(context.Background(), r)
		return nil
	})
}

// String implements fmt.Stringer.
func (r *Region) String() string {
	return "region(" + r.id + ")"
}

func (m *Manager) setContainerLocked(r *Region, el dom.Element) error {
	if err := m.check(r, "set_container", false); err != nil {
		return err
	}
	if r.container == el {
		return nil
	}

	prev := r.container
	r.container = el
	m.relinkLocked()
	m.bindLocked(r)

	_ = m.log.Debug(logging.CategoryRegion, "container_set", r.id, "", map[string]any{
		"container": dom.ID(el),
		"previous":  dom.ID(prev),
		"parent":    regionID(r.parent),
	})
	return nil
}

func (m *Manager) setFallbackLocked(r *Region, ref dom.Element, order int) error {
	if err := m.check(r, "set_fallback", false); err != nil {
		return err
	}
	if order < 0 {
		m.recorder.Violation("set_fallback")
		return errors.Newf(errors.ErrCodeInvalidInput, "fallback order %d is negative", order).
			WithContext("region", r.id)
	}

	prev := r.fallbacks.set(order, ref)
	m.bindLocked(r)

	if ref != nil && prev != nil && prev != ref {
		_ = m.log.Warn(logging.CategoryRegion, "fallback_replaced", r.id, "", map[string]any{
			"order":    order,
			"previous": dom.ID(prev),
			"ref":      dom.ID(ref),
		})
	}

	_ = m.log.Debug(logging.CategoryRegion, "fallback_set", r.id, "", map[string]any{
		"order": order,
		"ref":   dom.ID(ref),
	})
	return nil
}

func (m *Manager) removeLocked(ctx context.Context, r *Region) {
	if r.m != m || r.removed {
		return
	}

	// Release while the parent chain is still intact.
	if r.session != nil {
		_, _ = m.releaseLocked(ctx, r, ChangeRemove)
	}

	r.removed = true
	delete(m.regions, r.id)
	for i, other := range m.order {
		if other == r {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	r.parent = nil
	m.relinkLocked()

	if m.primitive != nil {
		m.primitive.Unbind(r.id)
	}
	m.recorder.RegionsActive(len(m.order))

	_ = m.log.Debug(logging.CategoryRegion, "removed", r.id, "", nil)
}

// check validates a region handle before an operation.
func (m *Manager) check(r *Region, op string, needContainer bool) error {
	switch {
	case r == nil || r.m != m:
		m.recorder.Violation(op)
		return errors.New(errors.ErrCodeInvalidInput, "region does not belong to this manager").
			WithContext("op", op)
	case r.removed:
		m.recorder.Violation(op)
		_ = m.log.Warn(logging.CategoryRegion, "use_after_remove", r.id, op+" on removed region", nil)
		return errors.New(errors.ErrCodeRegionRemoved, "region has been removed").
			WithContext("region", r.id).
			WithContext("op", op)
	case needContainer && r.container == nil:
		m.recorder.Violation(op)
		_ = m.log.Warn(logging.CategoryRegion, "missing_container", r.id, op+" before mount", nil)
		return errors.New(errors.ErrCodePrecondition, "region has no container").
			WithContext("region", r.id).
			WithContext("op", op).
			WithRemediation("call SetContainer when the container mounts, before " + op)
	}
	return nil
}

func regionID(r *Region) string {
	if r == nil {
		return ""
	}
	return r.id
}

func copyOptions(opts map[string]any) map[string]any {
	if opts == nil {
		return nil
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}
