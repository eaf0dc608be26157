// Package focus keeps keyboard focus on a well-defined element while the
// regions of a UI mount, move and unmount around it.
//
// A Manager owns a forest of Regions. Each Region is bound to one container
// element and carries a ranked list of fallback candidates. When the focused
// element leaves the document, reconciliation walks from a region up its
// ancestors and focuses the first attached candidate, or clears focus to the
// neutral target. Regions can also borrow focus for a descendant and later
// release it, returning focus exactly where it was when the borrow began.
package focus

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/odvcencio/regionfocus/pkg/dom"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

const tracerName = "github.com/odvcencio/regionfocus/pkg/focus"

// Action is what an operation did to document focus.
type Action int

const (
	ActionNone Action = iota
	ActionFocused
	ActionCleared
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionFocused:
		return "focused"
	case ActionCleared:
		return "cleared"
	default:
		return "none"
	}
}

// Result reports the effect of a reconcile or release.
type Result struct {
	Action Action
	Target dom.Element
}

// ChangeKind names the operation that moved focus.
type ChangeKind string

const (
	ChangeReconcile ChangeKind = "reconcile"
	ChangeBorrow    ChangeKind = "borrow"
	ChangeRelease   ChangeKind = "release"
	ChangeRemove    ChangeKind = "remove"
)

// Change is a focus move performed by the engine.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	ManagerID string     `json:"manager_id"`
	RegionID  string     `json:"region_id"`
	From      string     `json:"from,omitempty"`
	To        string     `json:"to,omitempty"`
	Cleared   bool       `json:"cleared,omitempty"`
	At        time.Time  `json:"at"`
}

// Observer is notified after the engine moves focus. Observers run after the
// manager lock is released and may call back into the manager.
type Observer interface {
	FocusChanged(c Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(c Change)

// FocusChanged implements Observer.
func (f ObserverFunc) FocusChanged(c Change) { f(c) }

// Recorder receives engine measurements.
type Recorder interface {
	RegionsActive(n int)
	Reconciled(action Action, depth int)
	Borrowed(replaced bool)
	Released(outcome ReleaseOutcome)
	Violation(op string)
}

type nopRecorder struct{}

func (nopRecorder) RegionsActive(int)       {}
func (nopRecorder) Reconciled(Action, int)  {}
func (nopRecorder) Borrowed(bool)           {}
func (nopRecorder) Released(ReleaseOutcome) {}
func (nopRecorder) Violation(string)        {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the event logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithTracer sets the tracer used for commit, reconcile, borrow and release
// spans. The default comes from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithObserver registers a focus change observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithPrimitive binds region containers and fallbacks to a lower-level
// focus primitive.
func WithPrimitive(p Primitive) Option {
	return func(m *Manager) { m.primitive = p }
}

// WithClock overrides the time source used to stamp changes.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager is the focus registry of one independently mounted UI tree.
type Manager struct {
	mu      sync.Mutex
	id      string
	surface dom.Surface

	regions map[string]*Region
	order   []*Region // registration order
	seq     uint64

	primitive Primitive
	log       *logging.Logger
	recorder  Recorder
	tracer    trace.Tracer
	now       func() time.Time

	observers []Observer
	pending   []Change
}

// NewManager creates a manager over surface.
func NewManager(surface dom.Surface, opts ...Option) *Manager {
	m := &Manager{
		id:       ulid.Make().String(),
		surface:  surface,
		regions:  make(map[string]*Region),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithManager(m.id)
	return m
}

// ID returns the manager's identity.
func (m *Manager) ID() string {
	return m.id
}

// Surface returns the focus surface the manager drives.
func (m *Manager) Surface() dom.Surface {
	return m.surface
}

// Observe registers an observer after construction.
func (m *Manager) Observe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// CreateRegion allocates a parentless region. Focus is not touched.
func (m *Manager) CreateRegion(opts ...RegionOption) *Region {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	r := &Region{
		m:   m,
		id:  ulid.Make().String(),
		seq: m.seq,
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, taken := m.regions[r.id]; taken {
		// Fixture ids must stay unique; fall back to a generated one.
		r.id = ulid.Make().String()
	}

	m.regions[r.id] = r
	m.order = append(m.order, r)
	m.recorder.RegionsActive(len(m.order))

	_ = m.log.Debug(logging.CategoryRegion, "created", r.id, "", nil)
	return r
}

// Region looks up a live region by id.
func (m *Manager) Region(id string) (*Region, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	return r, ok
}

// Regions returns the live regions in registration order.
func (m *Manager) Regions() []*Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Region(nil), m.order...)
}

func (m *Manager) reconcileLocked(ctx context.Context, r *Region) (Result, error) {
	_, span := m.tracer.Start(ctx, "focus.Reconcile")
	defer span.End()

	if err := m.check(r, "reconcile", true); err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	span.SetAttributes(attribute.String("region.id", r.id))

	active := m.surface.ActiveElement()
	if active == nil || m.surface.IsAttached(active) {
		// Focus is where someone put it; never steal it.
		m.recorder.Reconciled(ActionNone, 0)
		span.SetAttributes(attribute.String("reconcile.action", ActionNone.String()))
		return Result{}, nil
	}

	target, depth, ok := m.resolveLocked(r)
	var res Result
	if ok {
		m.surface.Focus(target)
		res = Result{Action: ActionFocused, Target: target}
	} else {
		m.surface.Blur()
		res = Result{Action: ActionCleared}
	}

	m.recorder.Reconciled(res.Action, depth)
	m.emit(Change{
		Kind:     ChangeReconcile,
		RegionID: r.id,
		From:     dom.ID(active),
		To:       dom.ID(res.Target),
		Cleared:  res.Action == ActionCleared,
	})

	span.SetAttributes(
		attribute.String("reconcile.action", res.Action.String()),
		attribute.String("reconcile.target", dom.ID(res.Target)),
		attribute.Int("reconcile.depth", depth),
	)
	_ = m.log.Info(logging.CategoryReconcile, "focus_lost", r.id, "", map[string]any{
		"lost":   dom.ID(active),
		"action": res.Action.String(),
		"target": dom.ID(res.Target),
		"depth":  depth,
	})
	return res, nil
}

// run executes fn under the manager lock, then delivers the changes it
// produced to observers outside the lock.
func (m *Manager) run(fn func() error) error {
	m.mu.Lock()
	err := fn()
	changes := m.pending
	m.pending = nil
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, c := range changes {
		for _, o := range observers {
			o.FocusChanged(c)
		}
	}
	return err
}

// emit queues a change for delivery once the current operation finishes.
func (m *Manager) emit(c Change) {
	c.ManagerID = m.id
	c.At = m.now()
	m.pending = append(m.pending, c)
}

// bindLocked pushes r's container and fallbacks to the primitive.
func (m *Manager) bindLocked(r *Region) {
	if m.primitive == nil {
		return
	}
	if r.container == nil {
		m.primitive.Unbind(r.id)
		return
	}
	m.primitive.Bind(Binding{
		RegionID:  r.id,
		Container: r.container,
		Options:   copyOptions(r.options),
		Fallbacks: r.fallbacks.snapshot(),
	})
}
