// Package backend is the terminal abstraction the inspector draws on.
// The tcell package drives a real terminal; sim wraps tcell's simulation
// screen so frames can be asserted in tests.
package backend

import "github.com/odvcencio/regionfocus/pkg/ui/terminal"

// Backend owns a terminal screen and its input queue.
type Backend interface {
	RenderTarget

	// Init enters raw mode and the alternate screen.
	Init() error

	// Fini restores the terminal.
	Fini()

	// Show flushes pending cells to the terminal.
	Show()

	Clear()

	// PollEvent blocks for the next event. It returns nil after Fini.
	PollEvent() terminal.Event

	// PostEvent queues ev for PollEvent.
	PostEvent(ev terminal.Event) error
}

// RenderTarget is the drawing surface handed to views.
type RenderTarget interface {
	Size() (width, height int)
	SetContent(x, y int, r rune, style Style)
}

// SubTarget is a clipped, offset window onto a parent target.
type SubTarget struct {
	parent RenderTarget
	x, y   int
	w, h   int
}

// NewSubTarget returns the w x h window of parent at (x, y).
func NewSubTarget(parent RenderTarget, x, y, w, h int) *SubTarget {
	return &SubTarget{parent: parent, x: x, y: y, w: w, h: h}
}

// Size returns the window dimensions.
func (s *SubTarget) Size() (width, height int) {
	return s.w, s.h
}

// SetContent draws at window-relative coordinates. Cells outside the
// window are dropped.
func (s *SubTarget) SetContent(x, y int, r rune, style Style) {
	if x < 0 || x >= s.w || y < 0 || y >= s.h {
		return
	}
	s.parent.SetContent(s.x+x, s.y+y, r, style)
}

// DrawText writes text left to right from (x, y) and returns the column
// after the last rune drawn. Text past the right edge is cut.
func DrawText(t RenderTarget, x, y int, text string, style Style) int {
	w, _ := t.Size()
	for _, r := range text {
		if x >= w {
			break
		}
		t.SetContent(x, y, r, style)
		x++
	}
	return x
}

// Fill paints every cell of t with r.
func Fill(t RenderTarget, r rune, style Style) {
	w, h := t.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t.SetContent(x, y, r, style)
		}
	}
}
