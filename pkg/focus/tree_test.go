package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/regionfocus/pkg/dom"
)

func TestTree_BottomUpRegistration(t *testing.T) {
	f := newFixture(t)
	f.el("a", "body")
	f.el("b", "a")
	f.el("c", "b")

	c := f.region("c", nil)
	b := f.region("b", nil)
	assert.Same(t, b, c.Parent())
	assert.Nil(t, b.Parent())

	a := f.region("a", nil)
	assert.Same(t, a, b.Parent())
	assert.Same(t, b, c.Parent(), "deepest enclosing region wins")

	assert.Equal(t, []*Region{a}, f.m.Roots())
	assert.Equal(t, []*Region{b}, f.m.Children(a))
	assert.Equal(t, 2, f.m.Depth(c))
}

func TestTree_RemoveRelinksChildren(t *testing.T) {
	f := newFixture(t)
	f.el("a", "body")
	f.el("b", "a")
	f.el("c", "b")
	a := f.region("a", nil)
	b := f.region("b", nil)
	c := f.region("c", nil)

	b.Remove()
	assert.Same(t, a, c.Parent())
	assert.Equal(t, 1, f.m.Depth(c))
}

func TestTree_UnmountingContainerRelinks(t *testing.T) {
	f := newFixture(t)
	f.el("a", "body")
	f.el("b", "a")
	a := f.region("a", nil)
	b := f.region("b", nil)

	require.NoError(t, a.SetContainer(nil))
	assert.Nil(t, b.Parent())
	assert.Nil(t, a.Parent())
	assert.ElementsMatch(t, []*Region{a, b}, f.m.Roots())
}

func TestTree_ContainerReassignmentKeepsFallbacks(t *testing.T) {
	f := newFixture(t)
	f.el("first", "body")
	f.el("second", "body")
	f.el("fb", "second")
	f.el("x", "second")
	r := f.region("first", map[int]string{0: "fb"})

	require.NoError(t, r.SetContainer(f.node("second")))
	assert.Equal(t, "second", dom.ID(r.Container()))
	require.Len(t, r.Fallbacks(), 1)

	f.focus("x")
	f.remove("x")
	res, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, "fb", dom.ID(res.Target))
}

func TestTree_SiblingsDoNotNest(t *testing.T) {
	f := newFixture(t)
	f.el("left", "body")
	f.el("right", "body")
	f.el("left-fb", "left")
	f.el("right-x", "right")
	left := f.region("left", map[int]string{0: "left-fb"})
	right := f.region("right", nil)

	assert.Nil(t, right.Parent())
	assert.Nil(t, left.Parent())

	f.focus("right-x")
	f.remove("right-x")
	res, err := right.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ActionCleared, res.Action, "a sibling's fallback is never used")
}

func TestTree_SharedContainerIsNotAParent(t *testing.T) {
	f := newFixture(t)
	f.el("panel", "body")
	first := f.region("panel", nil)
	second := f.region("panel", nil)

	assert.Nil(t, first.Parent())
	assert.Nil(t, second.Parent())
}

// loopSurface reports that every element contains every other one.
type loopSurface struct {
	*dom.Document
}

func (loopSurface) Contains(ancestor, el dom.Element) bool {
	return ancestor != nil && el != nil
}

func TestTree_InconsistentContainmentCannotCycle(t *testing.T) {
	doc := dom.NewDocument()
	m := NewManager(loopSurface{doc})
	one, err := doc.NewElement("one", "")
	require.NoError(t, err)
	two, err := doc.NewElement("two", "")
	require.NoError(t, err)
	x, err := doc.NewElement("x", "")
	require.NoError(t, err)
	require.NoError(t, doc.Append(doc.Body(), one))
	require.NoError(t, doc.Append(doc.Body(), two))
	require.NoError(t, doc.Append(doc.Body(), x))

	r1 := m.CreateRegion()
	r2 := m.CreateRegion()
	require.NoError(t, r1.SetContainer(one))
	require.NoError(t, r2.SetContainer(two))

	roots := m.Roots()
	require.NotEmpty(t, roots, "at least one region must be a root")
	assert.LessOrEqual(t, m.Depth(r1)+m.Depth(r2), 1)

	doc.Focus(x)
	doc.Remove(x)
	res, err := r2.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ActionCleared, res.Action)
}

// tableSurface answers containment from a fixed table of element ids.
type tableSurface struct {
	*dom.Document
	contains map[string][]string
}

func (s tableSurface) Contains(ancestor, el dom.Element) bool {
	for _, id := range s.contains[dom.ID(ancestor)] {
		if id == dom.ID(el) {
			return true
		}
	}
	return false
}

func TestTree_RegionLeadingIntoCycleKeepsParent(t *testing.T) {
	doc := dom.NewDocument()
	m := NewManager(tableSurface{Document: doc, contains: map[string][]string{
		"a": {"b", "tail"},
		"b": {"a"},
	}})
	el := func(id string) dom.Element {
		n, err := doc.NewElement(id, "")
		require.NoError(t, err)
		return n
	}

	tail := m.CreateRegion(WithID("tail"))
	a := m.CreateRegion(WithID("a"))
	b := m.CreateRegion(WithID("b"))
	require.NoError(t, tail.SetContainer(el("tail")))
	require.NoError(t, a.SetContainer(el("a")))
	require.NoError(t, b.SetContainer(el("b")))

	assert.Nil(t, a.Parent(), "first region on the loop becomes a root")
	assert.Same(t, a, b.Parent())
	assert.Same(t, a, tail.Parent())
	assert.Equal(t, 1, m.Depth(tail))
}
