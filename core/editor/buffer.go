package editor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Counts holds statistics about a document.
type Counts struct {
	Lines int
	Words int
	// Chars counts characters, excluding line terminators.
	Chars int
}

// CountWords counts runs of non-whitespace characters in s.
func CountWords(s string) int {
	words := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
		}
		inWord = true
	}
	return words
}

// Buffer is the text being edited: a list of lines and a cursor.
type Buffer struct {
	lines    [][]rune
	row, col int
	dirty    bool
}

// NewBuffer creates a buffer holding text. A final newline doesn't start a
// new line.
func NewBuffer(text string) *Buffer {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")

	var lines [][]rune
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, []rune(line))
	}

	return &Buffer{lines: lines}
}

// Empty reports whether the buffer holds no text at all.
func (b *Buffer) Empty() bool {
	return len(b.lines) == 1 && len(b.lines[0]) == 0
}

// Dirty reports whether the buffer changed since it was loaded or last
// marked clean.
func (b *Buffer) Dirty() bool {
	return b.dirty
}

// MarkClean resets the dirty flag, e.g. after saving.
func (b *Buffer) MarkClean() {
	b.dirty = false
}

// Lines returns a copy of the buffer's lines.
func (b *Buffer) Lines() []string {
	out := make([]string, len(b.lines))
	for i, line := range b.lines {
		out[i] = string(line)
	}
	return out
}

// String returns the text as it is written to disk, each line terminated by
// a newline.
func (b *Buffer) String() string {
	if b.Empty() {
		return ""
	}
	return strings.Join(b.Lines(), "\n") + "\n"
}

// Cursor returns the cursor position, both zero based. col counts runes.
func (b *Buffer) Cursor() (row, col int) {
	return b.row, b.col
}

// Counts computes line, word and character counts of the buffer.
func (b *Buffer) Counts() Counts {
	if b.Empty() {
		return Counts{}
	}

	var c Counts
	for _, line := range b.lines {
		s := string(line)
		c.Lines++
		c.Words += CountWords(s)
		c.Chars += utf8.RuneCountInString(s)
	}
	return c
}

// Insert adds r at the cursor and moves past it.
func (b *Buffer) Insert(r rune) {
	line := b.lines[b.row]
	line = append(line, 0)
	copy(line[b.col+1:], line[b.col:])
	line[b.col] = r
	b.lines[b.row] = line
	b.col++
	b.dirty = true
}

// Newline splits the current line at the cursor.
func (b *Buffer) Newline() {
	line := b.lines[b.row]
	head := append([]rune(nil), line[:b.col]...)
	tail := append([]rune(nil), line[b.col:]...)

	b.lines[b.row] = head
	b.lines = append(b.lines, nil)
	copy(b.lines[b.row+2:], b.lines[b.row+1:])
	b.lines[b.row+1] = tail

	b.row++
	b.col = 0
	b.dirty = true
}

// Backspace removes the character before the cursor, joining with the
// previous line at the start of a line.
func (b *Buffer) Backspace() {
	switch {
	case b.col > 0:
		line := b.lines[b.row]
		b.lines[b.row] = append(line[:b.col-1], line[b.col:]...)
		b.col--
	case b.row > 0:
		prev := b.lines[b.row-1]
		b.col = len(prev)
		b.lines[b.row-1] = append(prev, b.lines[b.row]...)
		b.lines = append(b.lines[:b.row], b.lines[b.row+1:]...)
		b.row--
	default:
		return
	}
	b.dirty = true
}

// Delete removes the character under the cursor, joining with the next line
// at the end of a line.
func (b *Buffer) Delete() {
	line := b.lines[b.row]
	switch {
	case b.col < len(line):
		b.lines[b.row] = append(line[:b.col], line[b.col+1:]...)
	case b.row < len(b.lines)-1:
		b.lines[b.row] = append(line, b.lines[b.row+1]...)
		b.lines = append(b.lines[:b.row+1], b.lines[b.row+2:]...)
	default:
		return
	}
	b.dirty = true
}

// Up moves the cursor to the previous line.
func (b *Buffer) Up() {
	if b.row > 0 {
		b.row--
		b.clampCol()
	}
}

// Down moves the cursor to the next line.
func (b *Buffer) Down() {
	if b.row < len(b.lines)-1 {
		b.row++
		b.clampCol()
	}
}

// Left moves the cursor back one character, wrapping to the end of the
// previous line.
func (b *Buffer) Left() {
	switch {
	case b.col > 0:
		b.col--
	case b.row > 0:
		b.row--
		b.col = len(b.lines[b.row])
	}
}

// Right moves the cursor forward one character, wrapping to the start of the
// next line.
func (b *Buffer) Right() {
	switch {
	case b.col < len(b.lines[b.row]):
		b.col++
	case b.row < len(b.lines)-1:
		b.row++
		b.col = 0
	}
}

// Home moves the cursor to the start of the line.
func (b *Buffer) Home() {
	b.col = 0
}

// End moves the cursor to the end of the line.
func (b *Buffer) End() {
	b.col = len(b.lines[b.row])
}

func (b *Buffer) clampCol() {
	if n := len(b.lines[b.row]); b.col > n {
		b.col = n
	}
}
