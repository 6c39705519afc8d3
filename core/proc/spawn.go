package proc

import (
	"fmt"
	"io"
	"os/exec"
)

// Spawn describes one child process and the descriptors it is handed.
//
// Every descriptor in Consumes belongs to the parent until Start is called,
// and to the child afterwards: Start closes the parent's copy once the spawn
// attempt is over, whether or not it succeeded. A pipe end that stays open in
// the parent keeps the pipe alive, and a reader downstream never sees EOF.
type Spawn struct {
	// Path to the executable, resolved by the caller.
	Path string
	// Argv holds the arguments including the command name as Argv[0].
	Argv []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Consumes lists the descriptors the parent gives up to the child.
	Consumes []io.Closer
}

// Consume adds c to the descriptors handed over to the child. Nil values are
// skipped.
func (s *Spawn) Consume(closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			s.Consumes = append(s.Consumes, c)
		}
	}
}

// Start spawns the child. Descriptors other than standard input, output and
// error are never inherited because Go opens every file close-on-exec.
func (s *Spawn) Start() (*Process, error) {
	defer closeAll(s.Consumes)

	cmd := &exec.Cmd{
		Path:   s.Path,
		Args:   s.Argv,
		Stdin:  s.Stdin,
		Stdout: s.Stdout,
		Stderr: s.Stderr,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, s.Argv[0], err)
	}

	return &Process{cmd: cmd, argv: s.Argv}, nil
}

// Process is a started child that must be waited exactly once.
type Process struct {
	cmd  *exec.Cmd
	argv []string
}

// Pid returns the OS process ID of the child.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Wait blocks until the child exits and releases its resources.
func (p *Process) Wait() JobResult {
	err := p.cmd.Wait()
	return resultFromWait(JobResult{Argv: p.argv, Pid: p.Pid()}, p.cmd, err)
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
