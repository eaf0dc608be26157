// Package sim provides an in-memory backend for frame assertions.
package sim

import (
	"strings"
	"unicode/utf8"

	tcellv2 "github.com/gdamore/tcell/v2"

	"github.com/odvcencio/regionfocus/pkg/ui/backend"
	"github.com/odvcencio/regionfocus/pkg/ui/backend/tcell"
	"github.com/odvcencio/regionfocus/pkg/ui/terminal"
)

// Backend runs on tcell's simulation screen.
type Backend struct {
	*tcell.Backend
	screen tcellv2.SimulationScreen
}

// New returns a width x height simulation backend. Call Init before use.
func New(width, height int) *Backend {
	screen := tcellv2.NewSimulationScreen("")
	screen.SetSize(width, height)
	return &Backend{
		Backend: tcell.NewWithScreen(screen),
		screen:  screen,
	}
}

// Init initializes the screen and reapplies the requested size, which the
// simulation screen resets on Init.
func (s *Backend) Init() error {
	w, h := s.screen.Size()
	if err := s.Backend.Init(); err != nil {
		return err
	}
	s.screen.SetSize(w, h)
	return nil
}

// Press queues a printable key.
func (s *Backend) Press(r rune) {
	_ = s.PostEvent(terminal.KeyEvent{Key: terminal.KeyRune, Rune: r})
}

// PressKey queues a special key.
func (s *Backend) PressKey(k terminal.Key) {
	_ = s.PostEvent(terminal.KeyEvent{Key: k})
}

// Resize changes the screen size and queues the matching event.
func (s *Backend) Resize(width, height int) {
	s.screen.SetSize(width, height)
	_ = s.PostEvent(terminal.ResizeEvent{Width: width, Height: height})
}

// Lines returns the shown frame, one string per row, trailing blanks
// trimmed.
func (s *Backend) Lines() []string {
	cells, w, h := s.screen.GetContents()
	lines := make([]string, h)
	for y := 0; y < h; y++ {
		var sb strings.Builder
		for x := 0; x < w; x++ {
			runes := cells[y*w+x].Runes
			if len(runes) == 0 || runes[0] == 0 {
				sb.WriteRune(' ')
				continue
			}
			sb.WriteRune(runes[0])
		}
		lines[y] = strings.TrimRight(sb.String(), " ")
	}
	return lines
}

// Capture returns the shown frame as text.
func (s *Backend) Capture() string {
	return strings.Join(s.Lines(), "\n")
}

// FindText returns the position of the first occurrence of text, or -1, -1.
func (s *Backend) FindText(text string) (x, y int) {
	for row, line := range s.Lines() {
		if i := strings.Index(line, text); i >= 0 {
			return utf8.RuneCountInString(line[:i]), row
		}
	}
	return -1, -1
}

// ContainsText reports whether text appears on screen.
func (s *Backend) ContainsText(text string) bool {
	x, _ := s.FindText(text)
	return x >= 0
}

// StyleAt returns the style of the cell at (x, y).
func (s *Backend) StyleAt(x, y int) backend.Style {
	_, _, style, _ := s.screen.GetContent(x, y)
	return tcell.FromTcell(style)
}

var _ backend.Backend = (*Backend)(nil)
