package backend

// Color is a palette index, or ColorDefault for the terminal's own color.
type Color int16

const (
	ColorDefault Color = -1
	ColorBlack   Color = 0
	ColorRed     Color = 1
	ColorGreen   Color = 2
	ColorYellow  Color = 3
	ColorBlue    Color = 4
	ColorMagenta Color = 5
	ColorCyan    Color = 6
	ColorWhite   Color = 7
)

// AttrMask holds text attributes.
type AttrMask uint8

const (
	AttrBold AttrMask = 1 << iota
	AttrReverse
	AttrUnderline
	AttrDim
)

// Style is a foreground, background and attribute set. The zero value is
// not the default style; use DefaultStyle.
type Style struct {
	fg    Color
	bg    Color
	attrs AttrMask
}

// DefaultStyle uses the terminal's colors and no attributes.
func DefaultStyle() Style {
	return Style{fg: ColorDefault, bg: ColorDefault}
}

// Foreground returns s with fg as foreground.
func (s Style) Foreground(fg Color) Style {
	s.fg = fg
	return s
}

// Background returns s with bg as background.
func (s Style) Background(bg Color) Style {
	s.bg = bg
	return s
}

// With returns s with attrs added.
func (s Style) With(attrs AttrMask) Style {
	s.attrs |= attrs
	return s
}

// Without returns s with attrs removed.
func (s Style) Without(attrs AttrMask) Style {
	s.attrs &^= attrs
	return s
}

// Has reports whether every attribute in attrs is set.
func (s Style) Has(attrs AttrMask) bool {
	return s.attrs&attrs == attrs
}

// Decompose returns the style's parts.
func (s Style) Decompose() (fg, bg Color, attrs AttrMask) {
	return s.fg, s.bg, s.attrs
}
