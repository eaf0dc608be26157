package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/regionfocus/pkg/dom"
	"github.com/odvcencio/regionfocus/pkg/focus"
)

// testDoc is a document with one container under the body and children
// under the container.
type testDoc struct {
	*dom.Document
	nodes map[string]*dom.Node
}

func newDoc(t *testing.T, container string, children ...string) *testDoc {
	t.Helper()
	d := &testDoc{Document: dom.NewDocument(), nodes: map[string]*dom.Node{}}
	parent, err := d.NewElement(container, "")
	require.NoError(t, err)
	require.NoError(t, d.Append(d.Body(), parent))
	d.nodes[container] = parent
	for _, id := range children {
		n, err := d.NewElement(id, "")
		require.NoError(t, err)
		require.NoError(t, d.Append(parent, n))
		d.nodes[id] = n
	}
	return d
}

func (d *testDoc) node(id string) *dom.Node {
	return d.nodes[id]
}

func TestMetrics_RecordsEngineActivity(t *testing.T) {
	metrics := NewMetrics("")
	doc := newDoc(t, "panel", "fallback", "focused", "dialog")
	m := focus.NewManager(doc, focus.WithRecorder(metrics))

	r := m.CreateRegion()
	require.NoError(t, r.SetContainer(doc.node("panel")))
	require.NoError(t, r.SetFallback(doc.node("fallback"), 0))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.regionsActive))

	doc.Focus(doc.node("focused"))
	doc.Remove(doc.node("focused"))
	_, err := r.Reconcile()
	require.NoError(t, err)
	_, err = r.Reconcile()
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reconciliations.WithLabelValues("focused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reconciliations.WithLabelValues("none")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.resolveDepth))

	require.NoError(t, r.BorrowFocus(doc.node("dialog")))
	require.NoError(t, r.BorrowFocus(doc.node("dialog")))
	_, err = r.ReleaseFocus()
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.borrows.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.borrows.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.releases.WithLabelValues("restored")))

	unmounted := m.CreateRegion()
	_, err = unmounted.Reconcile()
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.violations.WithLabelValues("reconcile")))

	r.Remove()
	unmounted.Remove()
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.regionsActive))
}

func TestMetrics_Handler(t *testing.T) {
	metrics := NewMetrics("")
	metrics.Borrowed(false)
	metrics.RegionsActive(3)

	srv := httptest.NewServer(metrics.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `regionfocus_borrow_total{replaced="false"} 1`), text)
	assert.True(t, strings.Contains(text, "regionfocus_region_active 3"), text)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics("")
	b := NewMetrics("")
	custom := NewMetrics("ui")
	custom.Violation("borrow")
	a.Violation("borrow")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.violations.WithLabelValues("borrow")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.violations.WithLabelValues("borrow")))
}
