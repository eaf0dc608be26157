// Package inspector draws a scenario session in the terminal: the element
// tree with the focused element and region boundaries, each region's parent,
// fallbacks and borrow state, and the outcome of the last step.
package inspector

import (
	"fmt"
	"strings"

	"github.com/odvcencio/regionfocus/pkg/dom"
	"github.com/odvcencio/regionfocus/pkg/focus"
	"github.com/odvcencio/regionfocus/pkg/scenario"
	"github.com/odvcencio/regionfocus/pkg/ui/backend"
)

// Styles used by the view.
var (
	styleHeader  = backend.DefaultStyle().With(backend.AttrReverse | backend.AttrBold)
	styleTitle   = backend.DefaultStyle().Foreground(backend.ColorCyan).With(backend.AttrBold)
	styleText    = backend.DefaultStyle()
	styleActive  = backend.DefaultStyle().Foreground(backend.ColorGreen).With(backend.AttrBold | backend.AttrReverse)
	styleRegion  = backend.DefaultStyle().Foreground(backend.ColorYellow)
	styleMuted   = backend.DefaultStyle().With(backend.AttrDim)
	styleFailure = backend.DefaultStyle().Foreground(backend.ColorRed).With(backend.AttrBold)
)

const (
	markerActive = "▸ "
	boundary     = "│ "
)

type line struct {
	text  string
	style backend.Style
}

// View renders one session snapshot.
type View struct {
	session *scenario.Session
	status  string
}

// NewView returns a view of s.
func NewView(s *scenario.Session) *View {
	return &View{session: s}
}

// SetStatus replaces the footer message.
func (v *View) SetStatus(status string) {
	v.status = status
}

// Render draws the whole frame onto t.
func (v *View) Render(t backend.RenderTarget) {
	w, h := t.Size()
	if w <= 0 || h <= 0 {
		return
	}
	backend.Fill(t, ' ', styleText)

	header := backend.NewSubTarget(t, 0, 0, w, 1)
	backend.Fill(header, ' ', styleHeader)
	backend.DrawText(header, 1, 0, "regionfocus  "+v.session.Scenario().Name, styleHeader)
	progress := fmt.Sprintf("step %d/%d ", v.session.Position(), len(v.session.Scenario().Steps))
	backend.DrawText(header, w-len(progress), 0, progress, styleHeader)

	if h < 3 {
		return
	}
	body := backend.NewSubTarget(t, 0, 1, w, h-2)
	for y, l := range v.lines() {
		backend.DrawText(body, 1, y, l.text, l.style)
	}

	footer := backend.NewSubTarget(t, 0, h-1, w, 1)
	backend.Fill(footer, ' ', styleHeader)
	backend.DrawText(footer, 1, 0, v.footer(), styleHeader)
}

func (v *View) footer() string {
	keys := "n/space step  r restart  q quit"
	if v.session.Done() {
		keys = "done  r restart  q quit"
	}
	active := "body"
	if n := v.session.Document().ActiveNode(); n != nil {
		active = n.ElementID()
	}
	out := keys + "  active=" + active
	if v.status != "" {
		out += "  " + v.status
	}
	return out
}

func (v *View) lines() []line {
	var out []line
	out = append(out, line{text: "DOCUMENT", style: styleTitle})
	out = append(out, v.treeLines()...)
	out = append(out, line{})
	out = append(out, line{text: "REGIONS", style: styleTitle})
	out = append(out, v.regionLines()...)
	out = append(out, line{})
	out = append(out, line{text: "LAST STEP", style: styleTitle})
	out = append(out, v.lastStep()...)
	return out
}

// annotations collects, per element id, the region notes shown beside it.
func (v *View) annotations() (containers map[string]string, notes map[string][]string) {
	containers = make(map[string]string)
	notes = make(map[string][]string)
	for _, r := range v.session.Manager().Regions() {
		name := v.session.RegionName(r)
		if c := r.Container(); c != nil {
			containers[c.ElementID()] = name
		}
		for _, fb := range r.Fallbacks() {
			id := dom.ID(fb.Ref)
			notes[id] = append(notes[id], fmt.Sprintf("%s#%d", name, fb.Order))
		}
		if saved, ok := r.Borrowed(); ok && saved != nil {
			notes[saved.ElementID()] = append(notes[saved.ElementID()], "saved:"+name)
		}
	}
	return containers, notes
}

func (v *View) treeLines() []line {
	doc := v.session.Document()
	active := doc.ActiveNode()
	containers, notes := v.annotations()

	var out []line
	doc.Walk(func(n *dom.Node, depth int) {
		var sb strings.Builder
		sb.WriteString(v.gutter(n, depth, containers))

		style := styleText
		isActive := n == active || (active == nil && n == doc.Body())
		if isActive {
			sb.WriteString(markerActive)
			style = styleActive
		} else {
			sb.WriteString("  ")
		}
		sb.WriteString(n.Label())

		if name, ok := containers[n.ElementID()]; ok {
			sb.WriteString(" [region " + name + "]")
			if !isActive {
				style = styleRegion
			}
		}
		if ns := notes[n.ElementID()]; len(ns) > 0 {
			sb.WriteString(" (" + strings.Join(ns, " ") + ")")
		}
		out = append(out, line{text: sb.String(), style: style})
	})
	return out
}

// gutter draws a boundary column for every ancestor that contains a region.
func (v *View) gutter(n *dom.Node, depth int, containers map[string]string) string {
	if depth == 0 {
		return ""
	}
	cols := make([]string, depth)
	p := n.Parent()
	for i := depth - 1; i >= 0 && p != nil; i-- {
		if _, ok := containers[p.ElementID()]; ok {
			cols[i] = boundary
		} else {
			cols[i] = "  "
		}
		p = p.Parent()
	}
	return strings.Join(cols, "")
}

func (v *View) regionLines() []line {
	m := v.session.Manager()
	regions := m.Regions()
	if len(regions) == 0 {
		return []line{{text: "  (none)", style: styleMuted}}
	}

	doc := v.session.Document()
	out := make([]line, 0, len(regions))
	for _, r := range regions {
		out = append(out, line{text: "  " + v.describeRegion(m, doc, r), style: styleText})
	}
	return out
}

func (v *View) describeRegion(m *focus.Manager, doc *dom.Document, r *focus.Region) string {
	var sb strings.Builder
	sb.WriteString(v.session.RegionName(r))

	container := r.Container()
	switch {
	case container == nil:
		sb.WriteString("  unmounted")
	case !doc.IsAttached(container):
		sb.WriteString("  container=" + container.ElementID() + " (detached)")
	default:
		sb.WriteString("  container=" + container.ElementID())
	}

	parent := "-"
	if p := r.Parent(); p != nil {
		parent = v.session.RegionName(p)
	}
	fmt.Fprintf(&sb, "  parent=%s depth=%d", parent, m.Depth(r))

	if fbs := r.Fallbacks(); len(fbs) > 0 {
		parts := make([]string, 0, len(fbs))
		for _, fb := range fbs {
			parts = append(parts, fmt.Sprintf("%d:%s", fb.Order, dom.ID(fb.Ref)))
		}
		sb.WriteString("  fallbacks=" + strings.Join(parts, ","))
	}
	if saved, ok := r.Borrowed(); ok {
		target := dom.ID(saved)
		if target == "" {
			target = "body"
		}
		sb.WriteString("  borrowing saved=" + target)
	}
	return sb.String()
}

func (v *View) lastStep() []line {
	entries := v.session.Trace().Entries
	if len(entries) == 0 {
		next := "  (not started)"
		if steps := v.session.Scenario().Steps; len(steps) > 0 {
			next = "  next: " + steps[0].String()
		}
		return []line{{text: next, style: styleMuted}}
	}

	e := entries[len(entries)-1]
	status, style := "ok", styleText
	if e.Err != nil {
		status, style = "FAIL", styleFailure
	}
	out := []line{{text: fmt.Sprintf("  %d %s  %s", e.Index, status, e.Step.String()), style: style}}
	if e.Outcome != "" {
		out = append(out, line{text: "    " + e.Outcome, style: styleText})
	}
	if e.Err != nil {
		out = append(out, line{text: "    " + e.Err.Error(), style: styleFailure})
	}
	if !v.session.Done() {
		out = append(out, line{text: "  next: " + v.session.Scenario().Steps[v.session.Position()].String(), style: styleMuted})
	}
	return out
}
