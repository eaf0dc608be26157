package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/regionfocus/pkg/focus"
)

func receive(t *testing.T, ch <-chan focus.Change) focus.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for change")
		return focus.Change{}
	}
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()
	defer unsub()

	hub.FocusChanged(focus.Change{Kind: focus.ChangeBorrow, RegionID: "menu", To: "item-1"})

	got := receive(t, ch)
	assert.Equal(t, focus.ChangeBorrow, got.Kind)
	assert.Equal(t, "item-1", got.To)
	assert.False(t, got.At.IsZero(), "hub stamps missing timestamps")
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch1, unsub1 := hub.Subscribe()
	defer unsub1()
	ch2, unsub2 := hub.Subscribe()
	defer unsub2()

	hub.Publish(focus.Change{Kind: focus.ChangeReconcile})

	for _, ch := range []<-chan focus.Change{ch1, ch2} {
		assert.Equal(t, focus.ChangeReconcile, receive(t, ch).Kind)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()
	unsub()
	unsub()

	_, open := <-ch
	assert.False(t, open)
	hub.Publish(focus.Change{Kind: focus.ChangeRelease})
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	hub := NewHubWithBuffer(1)
	defer hub.Close()

	ch, unsub := hub.Subscribe()
	defer unsub()

	hub.Publish(focus.Change{To: "first"})
	hub.Publish(focus.Change{To: "second"})

	assert.Equal(t, "first", receive(t, ch).To)
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe()

	hub.Close()
	hub.Close()

	_, open := <-ch
	assert.False(t, open)

	late, unsub := hub.Subscribe()
	defer unsub()
	_, open = <-late
	assert.False(t, open, "subscribing after close yields a closed channel")
}

func TestHub_ObservesManager(t *testing.T) {
	doc := newDoc(t, "panel", "target")
	hub := NewHub()
	defer hub.Close()
	ch, unsub := hub.Subscribe()
	defer unsub()

	m := focus.NewManager(doc, focus.WithObserver(hub))
	r := m.CreateRegion()
	require.NoError(t, r.SetContainer(doc.node("panel")))
	require.NoError(t, r.BorrowFocus(doc.node("target")))

	got := receive(t, ch)
	assert.Equal(t, focus.ChangeBorrow, got.Kind)
	assert.Equal(t, m.ID(), got.ManagerID)
	assert.Equal(t, "target", got.To)
}
