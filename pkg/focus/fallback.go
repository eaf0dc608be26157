package focus

import (
	"sort"

	"github.com/odvcencio/regionfocus/pkg/dom"
)

// DefaultFallbackOrder is the slot used when a caller does not rank its
// fallback.
const DefaultFallbackOrder = 0

// Fallback is one ranked fallback candidate of a region.
type Fallback struct {
	Order int
	Ref   dom.Element
}

// fallbackList keeps candidates sorted by ascending order, one per order.
type fallbackList struct {
	entries []Fallback
}

// set replaces the entry at order and returns the ref it displaced. A nil
// ref clears the slot.
func (l *fallbackList) set(order int, ref dom.Element) (prev dom.Element) {
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Order >= order
	})
	exists := i < len(l.entries) && l.entries[i].Order == order
	if exists {
		prev = l.entries[i].Ref
	}

	switch {
	case ref == nil && exists:
		l.entries = append(l.entries[:i], l.entries[i+1:]...)
	case ref == nil:
	case exists:
		l.entries[i].Ref = ref
	default:
		l.entries = append(l.entries, Fallback{})
		copy(l.entries[i+1:], l.entries[i:])
		l.entries[i] = Fallback{Order: order, Ref: ref}
	}
	return prev
}

// firstAttached returns the lowest-order candidate still in the document.
func (l *fallbackList) firstAttached(s dom.Surface) (dom.Element, bool) {
	for _, f := range l.entries {
		if s.IsAttached(f.Ref) {
			return f.Ref, true
		}
	}
	return nil, false
}

func (l *fallbackList) snapshot() []Fallback {
	return append([]Fallback(nil), l.entries...)
}

func (l *fallbackList) len() int {
	return len(l.entries)
}
