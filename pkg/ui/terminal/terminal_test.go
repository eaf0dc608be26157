package terminal

import "testing"

func TestKeyConstantsUnique(t *testing.T) {
	keys := []Key{KeyNone, KeyRune, KeyEnter, KeyEscape, KeyUp, KeyDown, KeyHome, KeyEnd, KeyCtrlC}
	seen := make(map[Key]bool)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key constant: %d", k)
		}
		seen[k] = true
	}
}

func TestEventInterface(t *testing.T) {
	var _ Event = KeyEvent{}
	var _ Event = ResizeEvent{}
	var _ Event = InterruptEvent{}
}

func TestKeyEventIsRune(t *testing.T) {
	tests := []struct {
		ev   KeyEvent
		r    rune
		want bool
	}{
		{KeyEvent{Key: KeyRune, Rune: 'n'}, 'n', true},
		{KeyEvent{Key: KeyRune, Rune: 'q'}, 'n', false},
		{KeyEvent{Key: KeyEnter, Rune: 'n'}, 'n', false},
	}
	for _, tt := range tests {
		if got := tt.ev.IsRune(tt.r); got != tt.want {
			t.Errorf("%+v.IsRune(%q) = %v, want %v", tt.ev, tt.r, got, tt.want)
		}
	}
}
