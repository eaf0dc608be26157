// Package dom defines the focus surface the engine reads and mutates, and an
// in-memory element tree that implements it.
//
// The engine never touches a real rendering surface directly. Everything it
// needs is the five questions on Surface: who is focused, focus this, blur,
// is this still attached, does this contain that.
package dom

// Element is an opaque reference to a UI element owned by the host.
// Implementations must be comparable; the engine compares elements with ==.
type Element interface {
	ElementID() string
}

// Surface is the document-level focus capability.
type Surface interface {
	// ActiveElement returns the element holding focus, or nil when focus
	// rests on the neutral target (document body).
	ActiveElement() Element

	// Focus moves focus to el. Focusing a detached element is ignored.
	Focus(el Element)

	// Blur moves focus to the neutral target.
	Blur()

	// IsAttached reports whether el is currently part of the document.
	IsAttached(el Element) bool

	// Contains reports whether el is ancestor or el itself (inclusive).
	Contains(ancestor, el Element) bool
}

// ID returns el's id, or "" for nil. Handy for logs and traces.
func ID(el Element) string {
	if el == nil {
		return ""
	}
	return el.ElementID()
}
