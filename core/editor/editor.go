// Package editor is a small full-screen text editor. The interpreter only
// uses it through Editor.Open, which returns once the user leaves.
package editor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"golang.org/x/term"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	enterAltScreen = "\x1b[?1049h"
	exitAltScreen  = "\x1b[?1049l"
	clearScreen    = "\x1b[2J"
	cursorHome     = "\x1b[H"
	clearLine      = "\x1b[K"
	reverseVideo   = "\x1b[7m"
	resetVideo     = "\x1b[0m"

	helpText = "^S save | Esc save and quit | ^X quit"
)

// Editor edits files on Fs using In for keystrokes and Out for the screen.
type Editor struct {
	Fs  afero.Fs
	In  io.Reader
	Out io.Writer
}

// New creates an editor over the OS filesystem and the process's terminal.
func New() *Editor {
	return &Editor{
		Fs:  afero.NewOsFs(),
		In:  os.Stdin,
		Out: os.Stdout,
	}
}

// session holds the state of one Open call.
type session struct {
	fs     afero.Fs
	path   string
	buf    *Buffer
	out    *bufio.Writer
	width  int
	height int
	top    int
	left   int
	status string
}

// Open edits the file at path, creating it if needed, and returns the counts
// of the final buffer when the user quits.
func (e *Editor) Open(path string) (Counts, error) {
	if path == "" {
		return Counts{}, errors.New("no file name")
	}

	text, err := load(e.Fs, path)
	if err != nil {
		return Counts{}, err
	}

	s := &session{
		fs:     e.Fs,
		path:   path,
		buf:    NewBuffer(text),
		out:    bufio.NewWriter(e.Out),
		width:  defaultWidth,
		height: defaultHeight,
	}

	if f, ok := e.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return Counts{}, err
		}
		defer term.Restore(int(f.Fd()), state)
	}
	if f, ok := e.Out.(*os.File); ok {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 1 {
			s.width, s.height = w, h
		}
	}

	s.out.WriteString(enterAltScreen)
	defer func() {
		s.out.WriteString(exitAltScreen)
		s.out.Flush()
	}()

	if err := s.loop(bufio.NewReader(e.In)); err != nil {
		return s.buf.Counts(), err
	}

	return s.buf.Counts(), nil
}

// load reads the file, creating an empty one if it doesn't exist.
func load(fs afero.Fs, path string) (string, error) {
	fd, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	data, err := io.ReadAll(fd)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *session) save() error {
	text := s.buf.String()
	if err := afero.WriteFile(s.fs, s.path, []byte(text), 0644); err != nil {
		s.status = fmt.Sprintf("Error saving %s: %v", s.path, err)
		return err
	}
	s.buf.MarkClean()
	s.status = fmt.Sprintf("Wrote %d bytes to %s", len(text), s.path)
	return nil
}

// loop handles keystrokes until the user quits. End of input saves and
// quits like Esc.
func (s *session) loop(in *bufio.Reader) error {
	for {
		s.render()

		ev, err := ReadEvent(in)
		switch {
		case err == io.EOF:
			return s.save()
		case err != nil:
			return err
		}

		switch ev.Key {
		case KeyRune:
			s.buf.Insert(ev.Rune)
		case KeyEnter:
			s.buf.Newline()
		case KeyBackspace:
			s.buf.Backspace()
		case KeyDelete:
			s.buf.Delete()
		case KeyUp:
			s.buf.Up()
		case KeyDown:
			s.buf.Down()
		case KeyLeft:
			s.buf.Left()
		case KeyRight:
			s.buf.Right()
		case KeyHome:
			s.buf.Home()
		case KeyEnd:
			s.buf.End()
		case KeySave:
			// Failures are shown in the status line, editing continues.
			_ = s.save()
		case KeyEscape:
			return s.save()
		case KeyQuit:
			return nil
		}
	}
}

// scroll keeps the cursor inside the visible window.
func (s *session) scroll() {
	rows := s.height - 1
	row, col := s.buf.Cursor()

	if row < s.top {
		s.top = row
	}
	if row >= s.top+rows {
		s.top = row - rows + 1
	}
	if col < s.left {
		s.left = col
	}
	if col >= s.left+s.width {
		s.left = col - s.width + 1
	}
}

func (s *session) render() {
	s.scroll()

	s.out.WriteString(cursorHome)
	s.out.WriteString(clearScreen)

	lines := s.buf.Lines()
	for y := 0; y < s.height-1; y++ {
		n := s.top + y
		if n < len(lines) {
			line := []rune(lines[n])
			if s.left < len(line) {
				line = line[s.left:]
			} else {
				line = nil
			}
			if len(line) > s.width {
				line = line[:s.width]
			}
			s.out.WriteString(string(line))
		} else {
			s.out.WriteString("~")
		}
		s.out.WriteString(clearLine + "\r\n")
	}

	status := s.status
	if status == "" {
		modified := ""
		if s.buf.Dirty() {
			modified = " [+]"
		}
		status = fmt.Sprintf("%s%s | %s", s.path, modified, helpText)
	}
	if r := []rune(status); len(r) > s.width {
		status = string(r[:s.width])
	}
	s.out.WriteString(reverseVideo + status + clearLine + resetVideo)
	s.status = ""

	row, col := s.buf.Cursor()
	fmt.Fprintf(s.out, "\x1b[%d;%dH", row-s.top+1, col-s.left+1)
	s.out.Flush()
}
