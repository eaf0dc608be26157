package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/regionfocus/pkg/focus"
)

func TestTracerProvider_ExportsEngineSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider(TracingOptions{
		ServiceName: "regionfocus-test",
		Version:     "test",
		Writer:      &buf,
		Sync:        true,
	})
	require.NoError(t, err)

	doc := newDoc(t, "panel", "fallback", "focused")
	m := focus.NewManager(doc, focus.WithTracer(tp.Tracer("test")))
	r := m.CreateRegion()
	require.NoError(t, r.SetContainer(doc.node("panel")))
	require.NoError(t, r.SetFallback(doc.node("fallback"), 0))

	doc.Focus(doc.node("focused"))
	doc.Remove(doc.node("focused"))
	_, err = m.Update(context.Background(), func(c *focus.Cycle) error {
		return c.Reconcile(r)
	})
	require.NoError(t, err)
	require.NoError(t, tp.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name":"focus.Commit"`)
	assert.Contains(t, out, `"Name":"focus.Reconcile"`)
	assert.Contains(t, out, "regionfocus-test")
}
