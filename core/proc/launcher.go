// Package proc spawns child processes and connects them into pipelines.
package proc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/josephlewis42/mysh/core/shell"
	"go.uber.org/zap"
)

// Launcher starts external commands with a fixed set of standard streams.
type Launcher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Alias rewrites a command name to another executable before it is
	// looked up. Nil means no aliases.
	Alias func(verb string) string

	// Path overrides $PATH for command lookup if non-empty.
	Path string

	Jobs *Jobs
	Log  *zap.Logger
}

// NewLauncher creates a launcher using the process's own standard streams.
func NewLauncher(log *zap.Logger) *Launcher {
	if log == nil {
		log = zap.NewNop()
	}

	return &Launcher{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Jobs:   NewJobs(log),
		Log:    log,
	}
}

// resolve applies aliases and finds the executable for argv[0].
func (l *Launcher) resolve(argv []string) (string, []string, error) {
	if l.Alias != nil {
		argv = append([]string{l.Alias(argv[0])}, argv[1:]...)
	}

	path := l.Path
	if path == "" {
		path = os.Getenv("PATH")
	}

	execPath, err := LookPath(path, argv[0])
	switch {
	case err == nil:
		return execPath, argv, nil
	case errors.Is(err, ErrNotFound):
		return "", argv, fmt.Errorf("%w: %s: command not found", ErrSpawnFailed, argv[0])
	case errors.Is(err, fs.ErrPermission):
		return "", argv, fmt.Errorf("%w: %s: permission denied", ErrSpawnFailed, argv[0])
	default:
		return "", argv, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, argv[0], err)
	}
}

// start resolves and spawns one process.
func (l *Launcher) start(spawn *Spawn) (*Process, error) {
	execPath, argv, err := l.resolve(spawn.Argv)
	if err != nil {
		closeAll(spawn.Consumes)
		return nil, err
	}
	spawn.Path = execPath
	spawn.Argv = argv

	p, err := spawn.Start()
	if err != nil {
		return nil, err
	}

	l.Log.Debug("spawned", zap.Int("pid", p.Pid()), zap.Strings("argv", argv))
	return p, nil
}

// Launch runs a single command. In the foreground it blocks until the child
// exits and returns its status. In the background it returns at once with a
// placeholder result and the child is reaped by l.Jobs.
func (l *Launcher) Launch(argv []string, background bool) (JobResult, error) {
	if len(argv) == 0 {
		return JobResult{}, shell.ErrEmptyStage
	}

	p, err := l.start(&Spawn{
		Argv:   argv,
		Stdin:  l.Stdin,
		Stdout: l.Stdout,
		Stderr: l.Stderr,
	})
	if err != nil {
		l.Log.Debug("spawn failed", zap.Strings("argv", argv), zap.Error(err))
		return JobResult{Argv: argv, Err: err}, err
	}

	if background {
		id := l.Jobs.Track(p)
		return JobResult{Argv: argv, Pid: p.Pid(), Background: true, Job: id}, nil
	}

	result := p.Wait()
	if result.Err != nil {
		l.Log.Warn("wait failed", zap.Int("pid", result.Pid), zap.Error(result.Err))
	}
	return result, result.Err
}

// RunPipeline runs each stage as its own process, stage i's standard output
// connected to stage i+1's standard input by a pipe.
//
// Stages are spawned left to right and waited for once all of them have
// been spawned. A stage that fails to spawn gets a result with Err set and
// doesn't stop the others. The returned error is only set if the pipeline
// couldn't be run at all.
//
// Background pipelines return no results; their processes are reaped by
// l.Jobs.
func (l *Launcher) RunPipeline(stages []string, background bool) ([]JobResult, error) {
	argvs := make([][]string, len(stages))
	for i, stage := range stages {
		argv, err := shell.SplitArguments(stage)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		argvs[i] = argv
	}

	switch len(argvs) {
	case 0:
		return nil, shell.ErrEmptyStage
	case 1:
		result, _ := l.Launch(argvs[0], background)
		if background {
			return nil, result.Err
		}
		return []JobResult{result}, nil
	}

	results := make([]JobResult, len(argvs))
	procs := make([]*Process, len(argvs))

	var (
		prevRead *os.File
		pipeErr  error
	)
	for i, argv := range argvs {
		results[i].Argv = argv

		if pipeErr != nil {
			results[i].Err = fmt.Errorf("%w: %s: %v", ErrSpawnFailed, argv[0], pipeErr)
			continue
		}

		spawn := &Spawn{
			Argv:   argv,
			Stdin:  l.Stdin,
			Stdout: l.Stdout,
			Stderr: l.Stderr,
		}

		// The read end of the previous pipe belongs to this stage.
		if prevRead != nil {
			spawn.Stdin = prevRead
			spawn.Consume(prevRead)
			prevRead = nil
		}

		if i < len(argvs)-1 {
			r, w, err := os.Pipe()
			if err != nil {
				pipeErr = err
				closeAll(spawn.Consumes)
				results[i].Err = fmt.Errorf("%w: %s: %v", ErrSpawnFailed, argv[0], err)
				continue
			}
			spawn.Stdout = w
			spawn.Consume(w)
			prevRead = r
		}

		p, err := l.start(spawn)
		if err != nil {
			l.Log.Debug("spawn failed", zap.Int("stage", i), zap.Strings("argv", argv), zap.Error(err))
			results[i].Err = err
			continue
		}
		procs[i] = p
		results[i].Pid = p.Pid()
	}

	if prevRead != nil {
		prevRead.Close()
	}

	if background {
		var started []*Process
		for _, p := range procs {
			if p != nil {
				started = append(started, p)
			}
		}
		if len(started) > 0 {
			l.Jobs.Track(started...)
		}
		return nil, firstErr(results)
	}

	for i, p := range procs {
		if p == nil {
			continue
		}
		results[i] = p.Wait()
		if results[i].Err != nil {
			l.Log.Warn("wait failed", zap.Int("stage", i), zap.Int("pid", results[i].Pid), zap.Error(results[i].Err))
		}
	}

	return results, nil
}

func firstErr(results []JobResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
