package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/odvcencio/regionfocus/pkg/dom"
	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/focus"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

// Entry records the outcome of one step.
type Entry struct {
	Index   int
	Step    Step
	Outcome string
	// Active is the focused element id after the step, "body" when neutral.
	Active string
	Err    error
}

// Trace is the record of a scenario run.
type Trace struct {
	Scenario string
	Entries  []Entry
	Changes  []focus.Change
}

// Failed returns the first entry that failed, if any.
func (t *Trace) Failed() (Entry, bool) {
	for _, e := range t.Entries {
		if e.Err != nil {
			return e, true
		}
	}
	return Entry{}, false
}

// String renders the trace as an aligned table.
func (t *Trace) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", t.Scenario)
	for _, e := range t.Entries {
		status := "ok"
		if e.Err != nil {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%3d  %-4s  %-44s  %-22s  active=%s\n", e.Index, status, e.Step.String(), e.Outcome, e.Active)
		if e.Err != nil {
			fmt.Fprintf(&b, "     %v\n", e.Err)
		}
	}
	return b.String()
}

// Option configures a Session.
type Option func(*options)

type options struct {
	log          *logging.Logger
	managerOpts  []focus.Option
	withoutAttrs bool
}

// WithLogger sets the logger for the session and its manager.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithManagerOptions passes extra options to the focus manager, such as a
// recorder, tracer or observers.
func WithManagerOptions(opts ...focus.Option) Option {
	return func(o *options) { o.managerOpts = append(o.managerOpts, opts...) }
}

// WithoutAttributes disables mirroring region bindings onto element
// attributes.
func WithoutAttributes() Option {
	return func(o *options) { o.withoutAttrs = true }
}

// Session replays a scenario one step at a time.
type Session struct {
	sc      *Scenario
	log     *logging.Logger
	doc     *dom.Document
	manager *focus.Manager
	regions map[string]*focus.Region
	next    int
	trace   *Trace
}

// Start builds the scenario's document and regions. No step has run yet.
func Start(sc *Scenario, opts ...Option) (*Session, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Session{
		sc:      sc,
		log:     o.log,
		doc:     dom.NewDocument(),
		regions: make(map[string]*focus.Region),
		trace:   &Trace{Scenario: sc.Name},
	}

	managerOpts := []focus.Option{
		focus.WithLogger(o.log),
		focus.WithObserver(focus.ObserverFunc(func(c focus.Change) {
			s.trace.Changes = append(s.trace.Changes, c)
		})),
	}
	if !o.withoutAttrs {
		managerOpts = append(managerOpts, focus.WithPrimitive(focus.NewAttrPrimitive(s.doc)))
	}
	s.manager = focus.NewManager(s.doc, append(managerOpts, o.managerOpts...)...)

	if err := s.buildElements(s.doc.Body(), sc.Elements, true); err != nil {
		return nil, err
	}
	for _, spec := range sc.Regions {
		if err := s.createRegion(spec); err != nil {
			return nil, err
		}
	}

	_ = s.log.Debug(logging.CategoryScenario, "started", "", sc.Name, map[string]any{
		"elements": len(s.nodeIDs()),
		"regions":  len(sc.Regions),
		"steps":    len(sc.Steps),
	})
	return s, nil
}

func (s *Session) buildElements(parent *dom.Node, specs []ElementSpec, topLevel bool) error {
	for _, spec := range specs {
		n, err := s.doc.NewElement(spec.ID, spec.Label)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeScenarioStep, "creating element").WithContext("id", spec.ID)
		}
		if !(topLevel && spec.Detached) {
			if err := s.doc.Append(parent, n); err != nil {
				return errors.Wrap(err, errors.ErrCodeScenarioStep, "attaching element").WithContext("id", spec.ID)
			}
		}
		if err := s.buildElements(n, spec.Children, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) createRegion(spec RegionSpec) error {
	if _, ok := s.regions[spec.ID]; ok {
		return errors.Newf(errors.ErrCodeScenarioStep, "region %q already exists", spec.ID)
	}
	var opts []focus.RegionOption
	opts = append(opts, focus.WithID(spec.ID))
	if spec.Options != nil {
		opts = append(opts, focus.WithOptions(spec.Options))
	}
	r := s.manager.CreateRegion(opts...)
	s.regions[spec.ID] = r

	if spec.Container != "" {
		el, err := s.element(spec.Container)
		if err != nil {
			return err
		}
		if err := r.SetContainer(el); err != nil {
			return err
		}
	}
	for _, fb := range spec.Fallbacks {
		el, err := s.element(fb.Ref)
		if err != nil {
			return err
		}
		if err := r.SetFallback(el, fb.Order); err != nil {
			return err
		}
	}
	return nil
}

// Document returns the session's document.
func (s *Session) Document() *dom.Document { return s.doc }

// Manager returns the session's focus manager.
func (s *Session) Manager() *focus.Manager { return s.manager }

// Scenario returns the scenario being replayed.
func (s *Session) Scenario() *Scenario { return s.sc }

// Region returns the region declared under id.
func (s *Session) Region(id string) (*focus.Region, bool) {
	r, ok := s.regions[id]
	return r, ok
}

// RegionName returns the scenario id of a region, falling back to its
// manager id.
func (s *Session) RegionName(r *focus.Region) string {
	for name, candidate := range s.regions {
		if candidate == r {
			return name
		}
	}
	return r.ID()
}

// Trace returns the record so far.
func (s *Session) Trace() *Trace { return s.trace }

// Done reports whether every step has run.
func (s *Session) Done() bool { return s.next >= len(s.sc.Steps) }

// Position returns the number of steps already run.
func (s *Session) Position() int { return s.next }

// Next runs the next step. The entry's Err is also returned; a failed step
// still advances the session.
func (s *Session) Next(ctx context.Context) (Entry, error) {
	if s.Done() {
		return Entry{}, errors.New(errors.ErrCodeScenarioStep, "scenario already finished")
	}
	step := s.sc.Steps[s.next]
	s.next++

	entry := Entry{Index: s.next, Step: step}
	outcome, err := s.apply(ctx, step)
	entry.Outcome = outcome
	entry.Err = s.checkExpectedError(step, err)
	if err != nil && entry.Err == nil {
		entry.Outcome = "rejected " + string(errors.GetCode(err))
	}
	entry.Active = s.active()
	if entry.Err != nil {
		entry.Err = errors.Wrap(entry.Err, errors.GetCode(entry.Err), "step failed").
			WithContext("step", entry.Index).
			WithContext("action", step.String())
	}
	s.trace.Entries = append(s.trace.Entries, entry)

	fields := map[string]any{
		"index":   entry.Index,
		"step":    step.String(),
		"outcome": entry.Outcome,
		"active":  entry.Active,
	}
	if entry.Err != nil {
		_ = s.log.Warn(logging.CategoryScenario, "step_failed", "", entry.Err.Error(), fields)
	} else {
		_ = s.log.Debug(logging.CategoryScenario, "step", "", "", fields)
	}
	return entry, entry.Err
}

func (s *Session) checkExpectedError(step Step, err error) error {
	if step.ExpectError == "" {
		return err
	}
	want := errors.ErrorCode(strings.ToUpper(step.ExpectError))
	if err == nil {
		return errors.Newf(errors.ErrCodeScenarioExpect, "expected %s error, step succeeded", want)
	}
	if !errors.IsCode(err, want) {
		return errors.Wrap(err, errors.ErrCodeScenarioExpect, fmt.Sprintf("expected %s error", want))
	}
	return nil
}

// Run replays every remaining step and stops at the first failure.
func (s *Session) Run(ctx context.Context) (*Trace, error) {
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return s.trace, err
		}
		if _, err := s.Next(ctx); err != nil {
			return s.trace, err
		}
	}
	return s.trace, nil
}

// Run builds a session for sc and replays it to the end.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Trace, error) {
	s, err := Start(sc, opts...)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

func (s *Session) apply(ctx context.Context, step Step) (string, error) {
	switch step.Kind() {
	case KindFocus:
		n, err := s.node(step.Focus)
		if err != nil {
			return "", err
		}
		s.doc.Focus(n)
		return "ok", nil

	case KindBlur:
		s.doc.Blur()
		return "ok", nil

	case KindRemove:
		n, err := s.node(step.Remove)
		if err != nil {
			return "", err
		}
		s.doc.Remove(n)
		return "detached", nil

	case KindAppend:
		return s.append(step.Append)

	case KindCreateRegion:
		if err := s.createRegion(*step.CreateRegion); err != nil {
			return "", err
		}
		return "created", nil

	case KindSetContainer:
		r, err := s.region(step.SetContainer.Region)
		if err != nil {
			return "", err
		}
		var el dom.Element
		if step.SetContainer.Container != "" {
			if el, err = s.element(step.SetContainer.Container); err != nil {
				return "", err
			}
		}
		if err := r.SetContainer(el); err != nil {
			return "", err
		}
		return "parent=" + s.parentName(r), nil

	case KindSetFallback:
		r, err := s.region(step.SetFallback.Region)
		if err != nil {
			return "", err
		}
		el, err := s.element(step.SetFallback.Ref)
		if err != nil {
			return "", err
		}
		return "ok", r.SetFallback(el, step.SetFallback.Order)

	case KindClearFallback:
		r, err := s.region(step.ClearFallback.Region)
		if err != nil {
			return "", err
		}
		return "ok", r.SetFallback(nil, step.ClearFallback.Order)

	case KindReconcile:
		r, err := s.region(step.Reconcile)
		if err != nil {
			return "", err
		}
		res, err := r.Reconcile()
		return describe(res), err

	case KindBorrow:
		r, err := s.region(step.Borrow.Region)
		if err != nil {
			return "", err
		}
		el, err := s.element(step.Borrow.Target)
		if err != nil {
			return "", err
		}
		return "borrowed", r.BorrowFocus(el)

	case KindRelease:
		r, err := s.region(step.Release)
		if err != nil {
			return "", err
		}
		res, err := r.ReleaseFocus()
		return describe(res), err

	case KindRemoveRegion:
		r, err := s.region(step.RemoveRegion)
		if err != nil {
			return "", err
		}
		r.Remove()
		return "removed", nil

	case KindCommit:
		return s.commit(ctx, step.Commit)

	case KindExpectFocus:
		if got := s.active(); got != step.ExpectFocus {
			return got, errors.Newf(errors.ErrCodeScenarioExpect, "expected focus on %s, found %s", step.ExpectFocus, got)
		}
		return "ok", nil

	case KindExpectNeutral:
		if got := s.active(); got != Body {
			return got, errors.Newf(errors.ErrCodeScenarioExpect, "expected neutral focus, found %s", got)
		}
		return "ok", nil
	}
	return "", errors.New(errors.ErrCodeScenarioStep, "malformed step")
}

func (s *Session) append(a *AppendStep) (string, error) {
	parent, err := s.node(orBody(a.Parent))
	if err != nil {
		return "", err
	}
	child, ok := s.doc.Lookup(a.ID)
	if !ok {
		if child, err = s.doc.NewElement(a.ID, a.Label); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeScenarioStep, "creating element").WithContext("id", a.ID)
		}
	}
	if err := s.doc.Append(parent, child); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeScenarioStep, "appending element").WithContext("id", a.ID)
	}
	if ok {
		return "moved", nil
	}
	return "attached", nil
}

func (s *Session) commit(ctx context.Context, c *CommitStep) (string, error) {
	var refErr error
	steps, err := s.manager.Update(ctx, func(cycle *focus.Cycle) error {
		for _, pre := range c.PrePaint {
			switch pre.Kind() {
			case KindBorrow:
				r, err := s.region(pre.Borrow.Region)
				if err != nil {
					refErr = err
					return err
				}
				el, err := s.element(pre.Borrow.Target)
				if err != nil {
					refErr = err
					return err
				}
				if err := cycle.BorrowFocus(r, el); err != nil {
					return err
				}
			case KindRelease:
				r, err := s.region(pre.Release)
				if err != nil {
					refErr = err
					return err
				}
				if err := cycle.ReleaseFocus(r); err != nil {
					return err
				}
			}
		}
		for _, id := range c.PostCommit {
			r, err := s.region(id)
			if err != nil {
				refErr = err
				return err
			}
			if err := cycle.Reconcile(r); err != nil {
				return err
			}
		}
		return nil
	})
	if refErr != nil {
		return "", refErr
	}

	parts := make([]string, 0, len(steps))
	for _, st := range steps {
		part := fmt.Sprintf("%s:%s", st.Kind, s.regionLabel(st.RegionID))
		if st.Kind != focus.ChangeBorrow {
			part += "=" + describe(st.Result)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " "), err
}

func describe(res focus.Result) string {
	switch res.Action {
	case focus.ActionFocused:
		return "focused " + dom.ID(res.Target)
	case focus.ActionCleared:
		return "cleared"
	default:
		return "none"
	}
}

func (s *Session) active() string {
	if n := s.doc.ActiveNode(); n != nil {
		return n.ElementID()
	}
	return Body
}

func (s *Session) node(id string) (*dom.Node, error) {
	if id == Body {
		return s.doc.Body(), nil
	}
	n, ok := s.doc.Lookup(id)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeScenarioStep, "unknown element %q", id)
	}
	return n, nil
}

// element is node as a dom.Element, keeping nil untyped.
func (s *Session) element(id string) (dom.Element, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Session) region(id string) (*focus.Region, error) {
	r, ok := s.regions[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeScenarioStep, "unknown region %q", id)
	}
	return r, nil
}

func (s *Session) regionLabel(managerID string) string {
	for name, r := range s.regions {
		if r.ID() == managerID {
			return name
		}
	}
	return managerID
}

func (s *Session) parentName(r *focus.Region) string {
	if p := r.Parent(); p != nil {
		return s.RegionName(p)
	}
	return "<root>"
}

func (s *Session) nodeIDs() []string {
	var ids []string
	s.doc.Walk(func(n *dom.Node, _ int) {
		ids = append(ids, n.ElementID())
	})
	return ids
}
