package focus

import "github.com/odvcencio/regionfocus/pkg/logging"

// relinkLocked recomputes every region's parent from current containment.
//
// Regions mount bottom-up (children usually register their container before
// their ancestors do), so parents are never assumed fixed: any container
// change can re-home regions registered earlier.
func (m *Manager) relinkLocked() {
	parents := make(map[*Region]*Region, len(m.order))
	for _, r := range m.order {
		parents[r] = m.enclosingLocked(r)
	}
	for _, r := range m.order {
		r.parent = parents[r]
	}

	// A consistent document cannot produce a cycle, but a surface that
	// misreports containment can. Break any loop by making the first region
	// found on it a root. Regions that only lead into a loop keep their parent.
	for _, r := range m.order {
		steps := 0
		for p := r.parent; p != nil && steps <= len(m.order); p = p.parent {
			if p == r {
				_ = m.log.Warn(logging.CategoryRegion, "containment_cycle", r.id,
					"inconsistent containment, treating region as root", nil)
				r.parent = nil
				break
			}
			steps++
		}
	}
}

// enclosingLocked finds the deepest other region whose container strictly
// contains r's container.
func (m *Manager) enclosingLocked(r *Region) *Region {
	if r.container == nil {
		return nil
	}

	var best *Region
	for _, c := range m.order {
		if c == r || c.container == nil || c.container == r.container {
			continue
		}
		if !m.surface.Contains(c.container, r.container) {
			continue
		}
		if best == nil || m.surface.Contains(best.container, c.container) {
			best = c
		}
	}
	return best
}

// depthLocked counts r's ancestors.
func depthLocked(r *Region) int {
	depth := 0
	for p := r.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// Roots returns the live regions without a parent, in registration order.
func (m *Manager) Roots() []*Region {
	m.mu.Lock()
	defer m.mu.Unlock()

	var roots []*Region
	for _, r := range m.order {
		if r.parent == nil {
			roots = append(roots, r)
		}
	}
	return roots
}

// Children returns the live regions whose parent is r, in registration order.
func (m *Manager) Children(r *Region) []*Region {
	m.mu.Lock()
	defer m.mu.Unlock()

	var children []*Region
	for _, c := range m.order {
		if c.parent == r {
			children = append(children, c)
		}
	}
	return children
}

// Depth returns the number of ancestors of r.
func (m *Manager) Depth(r *Region) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return depthLocked(r)
}
