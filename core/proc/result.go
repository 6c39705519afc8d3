package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

var (
	// ErrSpawnFailed is returned when a child process couldn't be started.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrWaitFailed is returned when a started child couldn't be reaped.
	ErrWaitFailed = errors.New("wait failed")
)

// JobResult is the outcome of one spawned process.
type JobResult struct {
	// Argv is the argument vector the process was started with.
	Argv []string
	// Pid of the child, zero if it never started.
	Pid int
	// ExitCode of the child if it exited normally.
	ExitCode int
	// Signaled is set if the child was terminated by a signal.
	Signaled bool
	// Signal that terminated the child, if Signaled.
	Signal os.Signal
	// Background is set for placeholder results of jobs that were not waited
	// on, no status is available.
	Background bool
	// Job is the ID assigned by Jobs to a background job.
	Job int
	// Err holds ErrSpawnFailed or ErrWaitFailed.
	Err error
}

// Success reports whether the job started and exited with status zero.
func (r JobResult) Success() bool {
	return r.Err == nil && !r.Signaled && r.ExitCode == 0
}

// String formats the result as a status line.
func (r JobResult) String() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Background:
		return fmt.Sprintf("Child process %d running in background", r.Pid)
	case r.Signaled:
		return "Child process did not terminate normally"
	default:
		return fmt.Sprintf("Child process exited with status %d", r.ExitCode)
	}
}

// fillFromState copies the termination status into the result.
func (r *JobResult) fillFromState(state *os.ProcessState) {
	if state == nil {
		return
	}

	r.ExitCode = state.ExitCode()
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		r.Signaled = true
		r.Signal = ws.Signal()
	}
}

// resultFromWait converts the error returned by exec.Cmd.Wait into a result.
// A non-zero exit isn't an error of the shell.
func resultFromWait(r JobResult, cmd *exec.Cmd, waitErr error) JobResult {
	r.fillFromState(cmd.ProcessState)

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
	default:
		r.Err = fmt.Errorf("%w: %s: %v", ErrWaitFailed, r.Argv[0], waitErr)
	}

	return r
}
