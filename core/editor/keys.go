package editor

import (
	"bufio"
	"unicode"
)

// Key identifies a decoded keystroke.
type Key int

const (
	KeyUnknown Key = iota
	KeyRune
	KeyEnter
	KeyBackspace
	KeyDelete
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyEscape
	KeySave // Ctrl-S
	KeyQuit // Ctrl-X
)

const (
	ctrlH = 0x08
	ctrlS = 0x13
	ctrlX = 0x18
	esc   = 0x1b
	del   = 0x7f
)

// Event is one keystroke.
type Event struct {
	Key  Key
	Rune rune
}

// ReadEvent decodes the next keystroke from a terminal in raw mode.
//
// A lone ESC is only told apart from the start of an escape sequence by
// whether more input is already buffered, terminals send sequences in one
// write.
func ReadEvent(r *bufio.Reader) (Event, error) {
	ch, _, err := r.ReadRune()
	if err != nil {
		return Event{}, err
	}

	switch ch {
	case '\r', '\n':
		return Event{Key: KeyEnter}, nil
	case del, ctrlH:
		return Event{Key: KeyBackspace}, nil
	case ctrlS:
		return Event{Key: KeySave}, nil
	case ctrlX:
		return Event{Key: KeyQuit}, nil
	case '\t':
		return Event{Key: KeyRune, Rune: ch}, nil
	case esc:
		return readEscape(r)
	}

	if unicode.IsControl(ch) {
		return Event{Key: KeyUnknown, Rune: ch}, nil
	}
	return Event{Key: KeyRune, Rune: ch}, nil
}

func readEscape(r *bufio.Reader) (Event, error) {
	if r.Buffered() == 0 {
		return Event{Key: KeyEscape}, nil
	}

	next, err := r.Peek(1)
	if err != nil || (next[0] != '[' && next[0] != 'O') {
		return Event{Key: KeyEscape}, nil
	}
	r.ReadByte()

	// CSI parameters are digits and ';', terminated by a final byte.
	var params []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return Event{Key: KeyUnknown}, nil
		}
		if (b >= '0' && b <= '9') || b == ';' {
			params = append(params, b)
			continue
		}

		return decodeSequence(string(params), b), nil
	}
}

func decodeSequence(params string, final byte) Event {
	switch final {
	case 'A':
		return Event{Key: KeyUp}
	case 'B':
		return Event{Key: KeyDown}
	case 'C':
		return Event{Key: KeyRight}
	case 'D':
		return Event{Key: KeyLeft}
	case 'H':
		return Event{Key: KeyHome}
	case 'F':
		return Event{Key: KeyEnd}
	case '~':
		switch params {
		case "1", "7":
			return Event{Key: KeyHome}
		case "3":
			return Event{Key: KeyDelete}
		case "4", "8":
			return Event{Key: KeyEnd}
		}
	}
	return Event{Key: KeyUnknown}
}
