package proc

import (
	"sync"

	"go.uber.org/zap"
)

// Jobs reaps background processes so none of them is left as a zombie.
type Jobs struct {
	log *zap.Logger

	mu      sync.Mutex
	nextID  int
	running map[int]int // job ID -> processes not yet reaped

	wg sync.WaitGroup
}

// NewJobs creates an empty job table.
func NewJobs(log *zap.Logger) *Jobs {
	if log == nil {
		log = zap.NewNop()
	}

	return &Jobs{
		log:     log,
		running: make(map[int]int),
	}
}

// Track hands the processes of one background job to the table and returns
// the job's ID. Each process is waited on its own goroutine.
func (j *Jobs) Track(procs ...*Process) int {
	j.mu.Lock()
	j.nextID++
	id := j.nextID
	j.running[id] = len(procs)
	j.mu.Unlock()

	for _, p := range procs {
		j.wg.Add(1)
		go j.reap(id, p)
	}

	return id
}

func (j *Jobs) reap(id int, p *Process) {
	defer j.wg.Done()

	result := p.Wait()

	j.mu.Lock()
	j.running[id]--
	if j.running[id] <= 0 {
		delete(j.running, id)
	}
	j.mu.Unlock()

	fields := []zap.Field{
		zap.Int("job", id),
		zap.Int("pid", result.Pid),
		zap.Strings("argv", result.Argv),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("signaled", result.Signaled),
	}
	if result.Err != nil {
		j.log.Warn("background process", append(fields, zap.Error(result.Err))...)
		return
	}
	j.log.Debug("background process done", fields...)
}

// Running returns the number of jobs with at least one live process.
func (j *Jobs) Running() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	return len(j.running)
}

// Wait blocks until every tracked process has been reaped.
func (j *Jobs) Wait() {
	j.wg.Wait()
}
