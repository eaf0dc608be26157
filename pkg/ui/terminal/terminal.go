// Package terminal defines the input events the inspector reacts to.
package terminal

// Event is a terminal input event.
type Event interface {
	eventMarker()
}

// KeyEvent is a key press.
type KeyEvent struct {
	Key  Key
	Rune rune
	Ctrl bool
}

func (KeyEvent) eventMarker() {}

// ResizeEvent reports new terminal dimensions.
type ResizeEvent struct {
	Width  int
	Height int
}

func (ResizeEvent) eventMarker() {}

// InterruptEvent wakes a blocked event loop, for example after a scenario
// file is reloaded. Data is opaque to the backend.
type InterruptEvent struct {
	Data any
}

func (InterruptEvent) eventMarker() {}

// Key identifies special keys. Printable characters are KeyRune.
type Key int

const (
	KeyNone Key = iota
	KeyRune
	KeyEnter
	KeyEscape
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyCtrlC
)

// IsRune reports whether ev is the printable rune r.
func (ev KeyEvent) IsRune(r rune) bool {
	return ev.Key == KeyRune && ev.Rune == r
}
