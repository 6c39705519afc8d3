package proc

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

func findExecutable(file string) error {
	d, err := os.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories named by
// path, a list in the format of the PATH environment variable. If file
// contains a slash, it is tried directly and path is not consulted.
//
// Unlike exec.LookPath, a file that exists but can't be executed is reported
// as fs.ErrPermission if no executable with the same name is found later in
// the search.
func LookPath(path, file string) (string, error) {
	if strings.Contains(file, "/") {
		err := findExecutable(file)
		if err == nil {
			return file, nil
		}
		return "", err
	}

	var firstErr error = ErrNotFound
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		err := findExecutable(path)
		switch {
		case err == nil:
			return path, nil
		case errors.Is(err, fs.ErrPermission) && firstErr == ErrNotFound:
			firstErr = err
		}
	}
	return "", firstErr
}
