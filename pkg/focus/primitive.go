package focus

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/odvcencio/regionfocus/pkg/dom"
)

// Binding is the state a Primitive receives for one region.
type Binding struct {
	RegionID  string
	Container dom.Element
	Options   map[string]any
	Fallbacks []Fallback
}

// Primitive is the environment-specific focus machinery a region's
// container and fallbacks are applied to. The engine never interprets
// region options; it only forwards them here.
//
// Bind is called whenever a region's container or fallback set changes,
// always with the complete current state. Unbind is called when the region
// unmounts its container or is removed.
type Primitive interface {
	Bind(b Binding)
	Unbind(regionID string)
}

// Annotator sets string attributes on elements. dom.Document implements it.
type Annotator interface {
	SetAttribute(el dom.Element, key, value string)
}

// Attribute names written by AttrPrimitive.
const (
	AttrRegion   = "data-focus-region"
	AttrFallback = "data-focus-fallback"
	AttrOption   = "data-focus-opt-"
)

// AttrPrimitive mirrors bindings onto element attributes so that the
// region tree is visible in the document itself.
type AttrPrimitive struct {
	target Annotator

	mu    sync.Mutex
	bound map[string]Binding
}

// NewAttrPrimitive creates a primitive annotating target.
func NewAttrPrimitive(target Annotator) *AttrPrimitive {
	return &AttrPrimitive{target: target, bound: make(map[string]Binding)}
}

// Bind implements Primitive.
func (p *AttrPrimitive) Bind(b Binding) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clearLocked(b.RegionID)

	p.target.SetAttribute(b.Container, AttrRegion, b.RegionID)
	keys := make([]string, 0, len(b.Options))
	for k := range b.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.target.SetAttribute(b.Container, AttrOption+k, fmt.Sprint(b.Options[k]))
	}
	for _, f := range b.Fallbacks {
		p.target.SetAttribute(f.Ref, AttrFallback, strconv.Itoa(f.Order))
	}
	p.bound[b.RegionID] = b
}

// Unbind implements Primitive.
func (p *AttrPrimitive) Unbind(regionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked(regionID)
}

func (p *AttrPrimitive) clearLocked(regionID string) {
	prev, ok := p.bound[regionID]
	if !ok {
		return
	}
	p.target.SetAttribute(prev.Container, AttrRegion, "")
	for k := range prev.Options {
		p.target.SetAttribute(prev.Container, AttrOption+k, "")
	}
	for _, f := range prev.Fallbacks {
		p.target.SetAttribute(f.Ref, AttrFallback, "")
	}
	delete(p.bound, regionID)
}

// Bound returns the last binding applied for a region.
func (p *AttrPrimitive) Bound(regionID string) (Binding, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bound[regionID]
	return b, ok
}
