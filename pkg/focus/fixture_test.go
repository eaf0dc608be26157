package focus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/regionfocus/pkg/dom"
)

// fixture is a document plus a manager over it, with elements addressed by id.
type fixture struct {
	t     *testing.T
	doc   *dom.Document
	m     *Manager
	nodes map[string]*dom.Node
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	doc := dom.NewDocument()
	return &fixture{
		t:     t,
		doc:   doc,
		m:     NewManager(doc, opts...),
		nodes: map[string]*dom.Node{"body": doc.Body()},
	}
}

// el creates id under parent and attaches it.
func (f *fixture) el(id, parent string) *dom.Node {
	f.t.Helper()
	n, err := f.doc.NewElement(id, "")
	require.NoError(f.t, err)
	require.NoError(f.t, f.doc.Append(f.node(parent), n))
	f.nodes[id] = n
	return n
}

func (f *fixture) node(id string) *dom.Node {
	f.t.Helper()
	n, ok := f.nodes[id]
	require.True(f.t, ok, "unknown element %q", id)
	return n
}

// region creates a region mounted on container with fallbacks given as
// order -> element id.
func (f *fixture) region(container string, fallbacks map[int]string) *Region {
	f.t.Helper()
	r := f.m.CreateRegion()
	require.NoError(f.t, r.SetContainer(f.node(container)))
	for order, id := range fallbacks {
		require.NoError(f.t, r.SetFallback(f.node(id), order))
	}
	return r
}

func (f *fixture) focus(id string) {
	f.t.Helper()
	f.doc.Focus(f.node(id))
	require.Equal(f.t, f.node(id), f.doc.ActiveNode(), "focus(%s) did not stick", id)
}

func (f *fixture) remove(id string) {
	f.doc.Remove(f.node(id))
}

// release ends r's borrow session and fails the test on a reported error.
func (f *fixture) release(r *Region) Result {
	f.t.Helper()
	res, err := r.ReleaseFocus()
	require.NoError(f.t, err)
	return res
}

// active returns the active element id, "body" for the neutral target.
func (f *fixture) active() string {
	if n := f.doc.ActiveNode(); n != nil {
		return n.ElementID()
	}
	return "body"
}

// countingRecorder tallies Recorder calls.
type countingRecorder struct {
	active     int
	reconciled map[Action]int
	depths     []int
	borrowed   int
	replaced   int
	released   map[ReleaseOutcome]int
	violations map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		reconciled: map[Action]int{},
		released:   map[ReleaseOutcome]int{},
		violations: map[string]int{},
	}
}

func (c *countingRecorder) RegionsActive(n int) { c.active = n }
func (c *countingRecorder) Reconciled(a Action, depth int) {
	c.reconciled[a]++
	if a != ActionNone {
		c.depths = append(c.depths, depth)
	}
}
func (c *countingRecorder) Borrowed(replaced bool) {
	c.borrowed++
	if replaced {
		c.replaced++
	}
}
func (c *countingRecorder) Released(o ReleaseOutcome) { c.released[o]++ }
func (c *countingRecorder) Violation(op string)       { c.violations[op]++ }
