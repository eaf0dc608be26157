// Package tcell implements backend.Backend on a tcell screen.
package tcell

import (
	"github.com/gdamore/tcell/v2"

	"github.com/odvcencio/regionfocus/pkg/ui/backend"
	"github.com/odvcencio/regionfocus/pkg/ui/terminal"
)

// Backend drives a tcell.Screen.
type Backend struct {
	screen tcell.Screen
}

// New opens the process terminal.
func New() (*Backend, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Backend{screen: screen}, nil
}

// NewWithScreen wraps an existing screen, such as a simulation screen.
func NewWithScreen(screen tcell.Screen) *Backend {
	return &Backend{screen: screen}
}

// Screen exposes the underlying tcell screen.
func (b *Backend) Screen() tcell.Screen {
	return b.screen
}

// Init initializes the screen and hides the cursor.
func (b *Backend) Init() error {
	if err := b.screen.Init(); err != nil {
		return err
	}
	b.screen.HideCursor()
	return nil
}

// Fini restores the terminal.
func (b *Backend) Fini() {
	b.screen.Fini()
}

// Size returns the screen dimensions.
func (b *Backend) Size() (width, height int) {
	return b.screen.Size()
}

// SetContent sets one cell.
func (b *Backend) SetContent(x, y int, r rune, style backend.Style) {
	b.screen.SetContent(x, y, r, nil, ToTcell(style))
}

// Show flushes the screen.
func (b *Backend) Show() {
	b.screen.Show()
}

// Clear blanks the screen.
func (b *Backend) Clear() {
	b.screen.Clear()
}

// PollEvent returns the next event the inspector understands. Mouse,
// paste and focus events are skipped.
func (b *Backend) PollEvent() terminal.Event {
	for {
		ev := b.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if converted := convertEvent(ev); converted != nil {
			return converted
		}
	}
}

// PostEvent queues a key, resize or interrupt event.
func (b *Backend) PostEvent(ev terminal.Event) error {
	var tev tcell.Event
	switch e := ev.(type) {
	case terminal.KeyEvent:
		tev = tcell.NewEventKey(fromKey(e.Key), e.Rune, modifiers(e))
	case terminal.ResizeEvent:
		tev = tcell.NewEventResize(e.Width, e.Height)
	case terminal.InterruptEvent:
		tev = tcell.NewEventInterrupt(e.Data)
	default:
		return nil
	}
	return b.screen.PostEvent(tev)
}

// ToTcell converts a backend style.
func ToTcell(s backend.Style) tcell.Style {
	fg, bg, attrs := s.Decompose()
	style := tcell.StyleDefault.Foreground(toColor(fg)).Background(toColor(bg))
	if attrs&backend.AttrBold != 0 {
		style = style.Bold(true)
	}
	if attrs&backend.AttrReverse != 0 {
		style = style.Reverse(true)
	}
	if attrs&backend.AttrUnderline != 0 {
		style = style.Underline(true)
	}
	if attrs&backend.AttrDim != 0 {
		style = style.Dim(true)
	}
	return style
}

// FromTcell converts a tcell style. Colors outside the basic palette map
// to ColorDefault.
func FromTcell(ts tcell.Style) backend.Style {
	fg, bg, attrs := ts.Decompose()
	style := backend.DefaultStyle().Foreground(fromColor(fg)).Background(fromColor(bg))
	if attrs&tcell.AttrBold != 0 {
		style = style.With(backend.AttrBold)
	}
	if attrs&tcell.AttrReverse != 0 {
		style = style.With(backend.AttrReverse)
	}
	if attrs&tcell.AttrUnderline != 0 {
		style = style.With(backend.AttrUnderline)
	}
	if attrs&tcell.AttrDim != 0 {
		style = style.With(backend.AttrDim)
	}
	return style
}

func toColor(c backend.Color) tcell.Color {
	if c == backend.ColorDefault {
		return tcell.ColorDefault
	}
	return tcell.PaletteColor(int(c))
}

func fromColor(c tcell.Color) backend.Color {
	if c == tcell.ColorDefault || c&tcell.ColorIsRGB != 0 {
		return backend.ColorDefault
	}
	idx := int(c - tcell.ColorValid)
	if idx < 0 || idx > int(backend.ColorWhite) {
		return backend.ColorDefault
	}
	return backend.Color(idx)
}

func convertEvent(ev tcell.Event) terminal.Event {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return terminal.KeyEvent{
			Key:  toKey(e.Key()),
			Rune: e.Rune(),
			Ctrl: e.Modifiers()&tcell.ModCtrl != 0,
		}
	case *tcell.EventResize:
		w, h := e.Size()
		return terminal.ResizeEvent{Width: w, Height: h}
	case *tcell.EventInterrupt:
		return terminal.InterruptEvent{Data: e.Data()}
	}
	return nil
}

var keyMap = map[tcell.Key]terminal.Key{
	tcell.KeyRune:   terminal.KeyRune,
	tcell.KeyEnter:  terminal.KeyEnter,
	tcell.KeyEscape: terminal.KeyEscape,
	tcell.KeyUp:     terminal.KeyUp,
	tcell.KeyDown:   terminal.KeyDown,
	tcell.KeyHome:   terminal.KeyHome,
	tcell.KeyEnd:    terminal.KeyEnd,
	tcell.KeyCtrlC:  terminal.KeyCtrlC,
}

func toKey(k tcell.Key) terminal.Key {
	if key, ok := keyMap[k]; ok {
		return key
	}
	return terminal.KeyNone
}

func fromKey(k terminal.Key) tcell.Key {
	for tk, key := range keyMap {
		if key == k {
			return tk
		}
	}
	return tcell.KeyRune
}

func modifiers(e terminal.KeyEvent) tcell.ModMask {
	if e.Ctrl {
		return tcell.ModCtrl
	}
	return tcell.ModNone
}

var _ backend.Backend = (*Backend)(nil)
