package focus

import (
	"github.com/odvcencio/regionfocus/pkg/dom"
)

// Resolve returns the element that should receive focus on behalf of r: the
// first attached fallback of r, else of its nearest ancestor that has one.
// ok is false when no region in the chain has an attached candidate, in which
// case focus belongs on the neutral target.
func (m *Manager) Resolve(r *Region) (target dom.Element, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, _, ok = m.resolveLocked(r)
	return target, ok
}

// resolveLocked walks from start up the parent chain. depth is the number of
// regions consulted.
func (m *Manager) resolveLocked(start *Region) (target dom.Element, depth int, ok bool) {
	visited := make(map[*Region]struct{})
	for r := start; r != nil; r = r.parent {
		if _, seen := visited[r]; seen {
			break
		}
		visited[r] = struct{}{}
		depth++

		if el, found := r.fallbacks.firstAttached(m.surface); found {
			return el, depth, true
		}
	}
	return nil, depth, false
}
