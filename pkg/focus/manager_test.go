package focus

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/regionfocus/pkg/dom"
	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

func TestReconcile_FallsBackToRegisteredButton(t *testing.T) {
	f := newFixture(t)
	f.el("region", "body")
	f.el("button-1", "region")
	f.el("button-2", "region")
	r := f.region("region", map[int]string{0: "button-1"})

	f.focus("button-2")
	f.remove("button-2")

	res, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ActionFocused, res.Action)
	assert.Equal(t, "button-1", dom.ID(res.Target))
	assert.Equal(t, "button-1", f.active())
}

func TestReconcile_ClearsWhenNothingRegistered(t *testing.T) {
	f := newFixture(t)
	f.el("region", "body")
	f.el("button-1", "region")
	f.el("button-2", "region")
	r := f.region("region", nil)

	f.focus("button-2")
	f.remove("button-2")
	f.remove("button-1")

	res, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ActionCleared, res.Action)
	assert.Nil(t, res.Target)
	assert.Equal(t, "body", f.active())
}

func TestReconcile_ClimbsToParentRegion(t *testing.T) {
	f := newFixture(t)
	f.el("parent", "body")
	f.el("parent-button-1", "parent")
	f.el("child", "parent")
	f.el("child-button-1", "child")
	f.el("child-button-2", "child")

	// Children mount before their ancestors.
	child := f.region("child", nil)
	parent := f.region("parent", map[int]string{0: "parent-button-1"})
	require.Same(t, parent, child.Parent())

	f.focus("child-button-2")
	f.remove("child-button-2")

	res, err := child.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ActionFocused, res.Action)
	assert.Equal(t, "parent-button-1", f.active())
}

func TestReconcile_FallbackOrdering(t *testing.T) {
	tests := []struct {
		name     string
		detached []string
		want     string
	}{
		{name: "lowest order wins", want: "f0"},
		{name: "skips detached lower orders", detached: []string{"f0"}, want: "f1"},
		{name: "skips several", detached: []string{"f0", "f1"}, want: "f5"},
		{name: "none attached", detached: []string{"f0", "f1", "f5"}, want: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.el("region", "body")
			f.el("f5", "region")
			f.el("f1", "region")
			f.el("f0", "region")
			f.el("focused", "region")
			r := f.region("region", map[int]string{5: "f5", 1: "f1", 0: "f0"})

			f.focus("focused")
			f.remove("focused")
			for _, id := range tt.detached {
				f.remove(id)
			}

			_, err := r.Reconcile()
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.active())
		})
	}
}

func TestReconcile_IgnoresStaleFallbackReference(t *testing.T) {
	f := newFixture(t)
	f.el("region", "body")
	f.el("order-1", "region")
	f.el("order-2", "region")
	f.el("x", "region")
	r := f.region("region", map[int]string{1: "order-1", 2: "order-2"})

	f.remove("order-1")
	f.focus("x")
	f.remove("x")

	res, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, "order-2", dom.ID(res.Target))
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.el("region", "body")
	f.el("fb", "region")
	f.el("x", "region")
	r := f.region("region", map[int]string{0: "fb"})

	f.focus("x")
	f.remove("x")

	first, err := r.Reconcile()
	require.NoError(t, err)
	require.Equal(t, ActionFocused, first.Action)
	focusCount := f.doc.FocusCount()

	second, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ActionNone, second.Action)
	assert.Equal(t, focusCount, f.doc.FocusCount(), "second reconcile must not move focus")

	// Same when focus already sits on the neutral target.
	f.doc.Blur()
	f.remove("fb")
	events := len(f.doc.Events())
	res, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Len(t, f.doc.Events(), events)
}

func TestReconcile_NeverStealsAttachedFocus(t *testing.T) {
	f := newFixture(t)
	f.el("region", "body")
	f.el("fb", "region")
	f.el("other", "region")
	f.el("elsewhere", "body")
	r := f.region("region", map[int]string{0: "fb"})

	f.focus("elsewhere")
	f.remove("other")
	f.remove("fb")
	before := len(f.doc.Events())

	res, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, "elsewhere", f.active())
	assert.Len(t, f.doc.Events(), before)
}

func TestSetFallback_ReplacesSameOrder(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, WithLogger(logging.New(&buf)))
	f.el("region", "body")
	f.el("a", "region")
	f.el("b", "region")
	r := f.region("region", nil)

	require.NoError(t, r.SetFallback(f.node("a"), 0))
	require.NoError(t, r.SetFallback(f.node("a"), 0))
	require.NoError(t, r.SetFallback(f.node("b"), 0))

	fallbacks := r.Fallbacks()
	require.Len(t, fallbacks, 1)
	assert.Equal(t, "b", dom.ID(fallbacks[0].Ref))

	events, err := logging.ReadEvents(&buf)
	require.NoError(t, err)
	var replaced []logging.Event
	for _, e := range events {
		if e.EventType == "fallback_replaced" {
			replaced = append(replaced, e)
		}
	}
	require.Len(t, replaced, 1)
	assert.Equal(t, logging.LevelWarn, replaced[0].Level)
	assert.Equal(t, "a", replaced[0].Details["previous"])
}

func TestSetFallback_NilClearsSlot(t *testing.T) {
	f := newFixture(t)
	f.el("region", "body")
	f.el("a", "region")
	f.el("b", "region")
	r := f.region("region", map[int]string{0: "a", 3: "b"})

	require.NoError(t, r.SetFallback(nil, 0))
	require.NoError(t, r.SetFallback(nil, 7))

	fallbacks := r.Fallbacks()
	require.Len(t, fallbacks, 1)
	assert.Equal(t, 3, fallbacks[0].Order)
}

func TestSetFallback_BeforeContainerIsKept(t *testing.T) {
	f := newFixture(t)
	f.el("region", "body")
	f.el("fb", "region")
	f.el("x", "region")

	// Fallback refs attach before their container.
	r := f.m.CreateRegion()
	require.NoError(t, r.SetFallback(f.node("fb"), 0))
	require.NoError(t, r.SetContainer(f.node("region")))

	f.focus("x")
	f.remove("x")
	res, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, "fb", dom.ID(res.Target))
}

func TestContractViolations(t *testing.T) {
	rec := newCountingRecorder()
	f := newFixture(t, WithRecorder(rec))
	f.el("region", "body")
	f.el("a", "region")

	unmounted := f.m.CreateRegion()

	_, err := unmounted.Reconcile()
	assert.True(t, errors.IsCode(err, errors.ErrCodePrecondition), "reconcile before mount: %v", err)

	err = unmounted.BorrowFocus(f.node("a"))
	assert.True(t, errors.IsCode(err, errors.ErrCodePrecondition), "borrow before mount: %v", err)

	err = unmounted.SetFallback(f.node("a"), -1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput), "negative order: %v", err)

	mounted := f.region("region", nil)
	err = mounted.BorrowFocus(nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput), "nil borrow target: %v", err)

	other := NewManager(f.doc)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, err = other.Update(ctx, func(c *Cycle) error {
		return c.Reconcile(mounted)
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput), "foreign region: %v", err)

	mounted.Remove()
	mounted.Remove()
	assert.True(t, mounted.Removed())

	err = mounted.SetContainer(f.node("region"))
	assert.True(t, errors.IsPrecondition(err), "set_container after remove: %v", err)
	err = mounted.SetFallback(f.node("a"), 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegionRemoved), "set_fallback after remove: %v", err)
	_, err = mounted.Reconcile()
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegionRemoved), "reconcile after remove: %v", err)
	res, err := mounted.ReleaseFocus()
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegionRemoved), "release after remove: %v", err)
	assert.Equal(t, Result{}, res)

	assert.Equal(t, 2, rec.violations["reconcile"])
	assert.Equal(t, 2, rec.violations["borrow"])
	assert.Equal(t, 2, rec.violations["set_fallback"])
	assert.Equal(t, 1, rec.violations["set_container"])
	assert.Equal(t, 1, rec.violations["release"])
}

func TestRecorder_TracksActivityAndDepth(t *testing.T) {
	rec := newCountingRecorder()
	f := newFixture(t, WithRecorder(rec))
	f.el("outer", "body")
	f.el("ofb", "outer")
	f.el("inner", "outer")
	f.el("x", "inner")
	outer := f.region("outer", map[int]string{0: "ofb"})
	inner := f.region("inner", nil)
	assert.Equal(t, 2, rec.active)

	f.focus("x")
	f.remove("x")
	_, err := inner.Reconcile()
	require.NoError(t, err)
	_, err = outer.Reconcile()
	require.NoError(t, err)

	assert.Equal(t, 1, rec.reconciled[ActionFocused])
	assert.Equal(t, 1, rec.reconciled[ActionNone])
	assert.Equal(t, []int{2}, rec.depths, "inner had to climb one level")

	inner.Remove()
	assert.Equal(t, 1, rec.active)
}

func TestManager_Lookup(t *testing.T) {
	f := newFixture(t)
	r := f.m.CreateRegion(WithID("toolbar"), WithOptions(map[string]any{"trap": true}))
	dup := f.m.CreateRegion(WithID("toolbar"))

	assert.Equal(t, "toolbar", r.ID())
	assert.NotEqual(t, "toolbar", dup.ID(), "duplicate fixture ids get a generated id")
	assert.Equal(t, map[string]any{"trap": true}, r.Options())

	got, ok := f.m.Region("toolbar")
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Equal(t, []*Region{r, dup}, f.m.Regions())

	r.Remove()
	_, ok = f.m.Region("toolbar")
	assert.False(t, ok)
	assert.NotEmpty(t, f.m.ID())
	assert.Equal(t, dom.Surface(f.doc), f.m.Surface())
}

func TestManager_Resolve(t *testing.T) {
	f := newFixture(t)
	f.el("outer", "body")
	f.el("ofb", "outer")
	f.el("inner", "outer")
	f.region("outer", map[int]string{2: "ofb"})
	inner := f.region("inner", nil)

	target, ok := f.m.Resolve(inner)
	require.True(t, ok)
	assert.Equal(t, "ofb", dom.ID(target))

	f.remove("ofb")
	_, ok = f.m.Resolve(inner)
	assert.False(t, ok)
}
