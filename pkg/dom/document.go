package dom

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FocusEventType distinguishes focus and blur notifications.
type FocusEventType string

const (
	EventFocus FocusEventType = "focus"
	EventBlur  FocusEventType = "blur"
)

// FocusEvent records one focus transition on a Document.
// Related is the element on the other side of the transition.
type FocusEvent struct {
	Type    FocusEventType
	Target  *Node
	Related *Node
}

// Node is an element in a Document.
type Node struct {
	id       string
	label    string
	doc      *Document
	parent   *Node
	children []*Node
	attrs    map[string]string
}

// ElementID implements Element.
func (n *Node) ElementID() string {
	return n.id
}

// Label returns the human-readable label, falling back to the id.
func (n *Node) Label() string {
	if n.label != "" {
		return n.label
	}
	return n.id
}

// Parent returns the parent node, or nil for the body and detached roots.
func (n *Node) Parent() *Node {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.parent
}

// Children returns a copy of the node's children.
func (n *Node) Children() []*Node {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return append([]*Node(nil), n.children...)
}

// Attr returns a node attribute.
func (n *Node) Attr(key string) string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.attrs[key]
}

// Attrs returns a copy of the node's attributes.
func (n *Node) Attrs() map[string]string {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	out := make(map[string]string, len(n.attrs))
	for k, v := range n.attrs {
		out[k] = v
	}
	return out
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return n.Label()
}

// Document is an in-memory element tree with document focus semantics.
//
// Removing the focused element does not move focus: the stale reference
// stays active so that callers can observe the loss, the same way a focus
// owner only learns about it on its next update.
type Document struct {
	mu     sync.RWMutex
	body   *Node
	active *Node
	byID   map[string]*Node
	events []FocusEvent
}

// NewDocument creates a document containing only the body.
func NewDocument() *Document {
	d := &Document{byID: make(map[string]*Node)}
	d.body = &Node{id: "body", label: "body", doc: d, attrs: map[string]string{}}
	d.byID[d.body.id] = d.body
	return d
}

// Body returns the neutral target.
func (d *Document) Body() *Node {
	return d.body
}

// NewElement creates a detached element. An empty id gets a generated one.
func (d *Document) NewElement(id, label string) (*Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := d.byID[id]; exists {
		return nil, fmt.Errorf("element %q already exists", id)
	}

	n := &Node{id: id, label: label, doc: d, attrs: map[string]string{}}
	d.byID[id] = n
	return n, nil
}

// Lookup finds an element by id, attached or not.
func (d *Document) Lookup(id string) (*Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.byID[id]
	return n, ok
}

// Append attaches child as the last child of parent, moving it if needed.
func (d *Document) Append(parent, child *Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if parent == nil || child == nil {
		return fmt.Errorf("append: nil node")
	}
	if child == d.body {
		return fmt.Errorf("append: body cannot be a child")
	}
	for p := parent; p != nil; p = p.parent {
		if p == child {
			return fmt.Errorf("append: %s would contain itself", child.id)
		}
	}

	d.detachLocked(child)
	child.parent = parent
	parent.children = append(parent.children, child)
	return nil
}

// Remove detaches n and its subtree from its parent.
func (d *Document) Remove(n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detachLocked(n)
}

func (d *Document) detachLocked(n *Node) {
	if n == nil || n.parent == nil {
		return
	}
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// SetAttribute sets or, with an empty value, deletes an attribute.
// Elements that do not belong to the document are ignored.
func (d *Document) SetAttribute(el Element, key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.nodeLocked(el)
	if n == nil {
		return
	}
	if value == "" {
		delete(n.attrs, key)
		return
	}
	n.attrs[key] = value
}

// ActiveElement implements Surface.
func (d *Document) ActiveElement() Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.active == nil {
		return nil
	}
	return d.active
}

// ActiveNode is ActiveElement with the concrete type.
func (d *Document) ActiveNode() *Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// Focus implements Surface.
func (d *Document) Focus(el Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el == nil {
		d.setFocusLocked(nil)
		return
	}
	n := d.nodeLocked(el)
	if n == d.body {
		d.setFocusLocked(nil)
		return
	}
	if n == nil || !d.attachedLocked(n) {
		return
	}
	d.setFocusLocked(n)
}

// Blur implements Surface.
func (d *Document) Blur() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setFocusLocked(nil)
}

// setFocusLocked changes the active node, recording blur then focus.
func (d *Document) setFocusLocked(n *Node) {
	old := d.active
	if old == n {
		return
	}

	if old != nil {
		d.events = append(d.events, FocusEvent{Type: EventBlur, Target: old, Related: n})
	}

	d.active = n

	if n != nil {
		d.events = append(d.events, FocusEvent{Type: EventFocus, Target: n, Related: old})
	}
}

// IsAttached implements Surface.
func (d *Document) IsAttached(el Element) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.nodeLocked(el)
	return n != nil && d.attachedLocked(n)
}

func (d *Document) attachedLocked(n *Node) bool {
	for p := n; p != nil; p = p.parent {
		if p == d.body {
			return true
		}
	}
	return false
}

// Contains implements Surface.
func (d *Document) Contains(ancestor, el Element) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, n := d.nodeLocked(ancestor), d.nodeLocked(el)
	if a == nil || n == nil {
		return false
	}
	for p := n; p != nil; p = p.parent {
		if p == a {
			return true
		}
	}
	return false
}

// nodeLocked maps a foreign Element back to a node of this document.
func (d *Document) nodeLocked(el Element) *Node {
	if el == nil {
		return nil
	}
	if n, ok := el.(*Node); ok {
		if n == nil || n.doc != d {
			return nil
		}
		return n
	}
	return d.byID[el.ElementID()]
}

// Events returns a copy of the focus transition history.
func (d *Document) Events() []FocusEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]FocusEvent(nil), d.events...)
}

// FocusCount returns how many focus events have been recorded.
func (d *Document) FocusCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	count := 0
	for _, e := range d.events {
		if e.Type == EventFocus {
			count++
		}
	}
	return count
}

type visit struct {
	node  *Node
	depth int
}

// Walk visits the attached tree depth-first, children in order.
// The tree is snapshotted first, so fn may call back into the document.
func (d *Document) Walk(fn func(n *Node, depth int)) {
	d.mu.RLock()
	var order []visit
	var collect func(n *Node, depth int)
	collect = func(n *Node, depth int) {
		order = append(order, visit{node: n, depth: depth})
		for _, c := range n.children {
			collect(c, depth+1)
		}
	}
	collect(d.body, 0)
	d.mu.RUnlock()

	for _, v := range order {
		fn(v.node, v.depth)
	}
}

// Dump renders the attached tree as indented text, marking the active node
// with '*' and listing attributes in key order.
func (d *Document) Dump() string {
	var sb strings.Builder
	active := d.ActiveNode()
	d.Walk(func(n *Node, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		if n == active {
			sb.WriteString("* ")
		}
		sb.WriteString(n.Label())
		attrs := n.Attrs()
		if len(attrs) > 0 {
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				sb.WriteString(" " + k + "=" + strconv.Quote(attrs[k]))
			}
		}
		sb.WriteString("\n")
	})
	return sb.String()
}
