package commands

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/josephlewis42/mysh/core/config"
	"github.com/josephlewis42/mysh/core/editor"
	"github.com/josephlewis42/mysh/core/lineio"
	"github.com/josephlewis42/mysh/core/logger"
	"github.com/josephlewis42/mysh/core/proc"
	"github.com/josephlewis42/mysh/core/shell"
)

func newTestShell(t *testing.T, lines ...string) (*Shell, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	cfg := config.Default()
	cfg.Color = config.ColorNever
	cfg.ReportStatus = false

	input := lineio.Lines(lines)
	s := NewShell(cfg, &input, zaptest.NewLogger(t))

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	s.Stdout = stdout
	s.Stderr = stderr
	s.Launcher.Stdin = strings.NewReader("")
	s.Launcher.Stdout = stdout
	s.Launcher.Stderr = stderr
	s.Editor = &editor.Editor{
		Fs:  afero.NewMemMapFs(),
		In:  strings.NewReader(""),
		Out: io.Discard,
	}

	t.Cleanup(s.Launcher.Jobs.Wait)
	return s, stdout, stderr
}

// keepWorkingDir restores the working directory and $PWD after the test.
func keepWorkingDir(t *testing.T) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Setenv(EnvPWD, os.Getenv(EnvPWD))
	t.Setenv(EnvOldPWD, os.Getenv(EnvOldPWD))
	t.Cleanup(func() {
		os.Chdir(wd)
	})
}

func TestShell_cdThenPwd(t *testing.T) {
	keepWorkingDir(t)

	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	s, stdout, stderr := newTestShell(t, "cd "+dir, "pwd")
	assert.Equal(t, 0, s.Run())
	assert.Equal(t, want+"\n", stdout.String())
	assert.Empty(t, stderr.String())
	assert.Equal(t, want, os.Getenv(EnvPWD))
}

func TestShell_pwdResolvesSymlinks(t *testing.T) {
	keepWorkingDir(t)

	want, err := filepath.EvalSymlinks("/tmp")
	require.NoError(t, err)

	s, stdout, _ := newTestShell(t)
	require.NoError(t, s.RunCommand("cd /tmp"))
	require.NoError(t, s.RunCommand("pwd"))
	assert.Equal(t, want+"\n", stdout.String())
}

func TestShell_cdErrors(t *testing.T) {
	keepWorkingDir(t)

	before, err := os.Getwd()
	require.NoError(t, err)

	cases := map[string]struct {
		line string
		want error
	}{
		"missing-dir": {"cd /does/not/exist", ErrEnvironment},
		"no-operand":  {"cd", ErrMissingArgument},
		"two-dirs":    {"cd /tmp /", ErrTooManyArguments},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s, _, _ := newTestShell(t)

			err := s.RunCommand(tc.line)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 1, s.LastStatus())

			after, err := os.Getwd()
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestShell_mkdir(t *testing.T) {
	dir := t.TempDir()

	t.Run("creates", func(t *testing.T) {
		s, _, _ := newTestShell(t)
		target := filepath.Join(dir, "new")

		require.NoError(t, s.RunCommand("mkdir "+target))
		assert.DirExists(t, target)
	})

	t.Run("existing", func(t *testing.T) {
		s, _, _ := newTestShell(t)

		err := s.RunCommand("mkdir " + dir)
		assert.ErrorIs(t, err, ErrEnvironment)
	})

	t.Run("no-operand", func(t *testing.T) {
		s, _, _ := newTestShell(t)

		err := s.RunCommand("mkdir")
		assert.ErrorIs(t, err, ErrMissingArgument)
	})

	t.Run("parents-verbose", func(t *testing.T) {
		s, stdout, _ := newTestShell(t)
		target := filepath.Join(dir, "a", "b", "c")

		require.NoError(t, s.RunCommand("mkdir -pv "+target))
		assert.DirExists(t, target)
		assert.Equal(t, "mkdir: created directory \""+target+"\"\n", stdout.String())
	})

	t.Run("without-parents", func(t *testing.T) {
		s, _, _ := newTestShell(t)

		err := s.RunCommand("mkdir " + filepath.Join(dir, "x", "y"))
		assert.ErrorIs(t, err, ErrEnvironment)
	})

	t.Run("bad-flag", func(t *testing.T) {
		s, _, _ := newTestShell(t)

		err := s.RunCommand("mkdir --bogus " + dir)
		assert.ErrorIs(t, err, ErrUsage)
		assert.Equal(t, StatusUsage, s.LastStatus())
	})
}

func TestShell_exit(t *testing.T) {
	s, stdout, _ := newTestShell(t, "exit", "echo unreachable")

	assert.Equal(t, 0, s.Run())
	assert.True(t, s.Quit)
	assert.Empty(t, stdout.String())
}

func TestShell_endOfInput(t *testing.T) {
	s, stdout, _ := newTestShell(t, "echo one", "", "   ", "echo two")

	assert.Equal(t, 0, s.Run())
	assert.Equal(t, "one\ntwo\n", stdout.String())
}

func TestShell_background(t *testing.T) {
	s, stdout, _ := newTestShell(t)

	start := time.Now()
	require.NoError(t, s.RunCommand("sleep 1 &"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Regexp(t, regexp.MustCompile(`^\[1\] \d+\n$`), stdout.String())
}

func TestShell_backgroundPipeline(t *testing.T) {
	s, stdout, _ := newTestShell(t)

	start := time.Now()
	require.NoError(t, s.RunCommand("sleep 1 | cat &"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, stdout.String())
}

func TestShell_pipeline(t *testing.T) {
	s, stdout, stderr := newTestShell(t)

	require.NoError(t, s.RunCommand("echo hello | tr a-z A-Z"))
	assert.Equal(t, "HELLO\n", stdout.String())
	assert.Empty(t, stderr.String())
	assert.Equal(t, 0, s.LastStatus())
}

func TestShell_pipelineFailedStage(t *testing.T) {
	s, stdout, stderr := newTestShell(t, "echo hello | nosuchcommand-mysh | cat", "echo after")

	assert.Equal(t, 0, s.Run())
	assert.Equal(t, "after\n", stdout.String())
	assert.Contains(t, stderr.String(), "mysh: spawn failed: nosuchcommand-mysh: command not found\n")
}

func TestShell_parseErrors(t *testing.T) {
	cases := map[string]struct {
		line string
		want error
	}{
		"empty-stage":    {"echo a | | cat", shell.ErrEmptyStage},
		"trailing-pipe":  {"echo a |", shell.ErrEmptyStage},
		"unclosed-quote": {"echo 'a", shell.ErrSyntax},
		"bad-stage":      {"echo a | tr 'a", shell.ErrSyntax},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s, stdout, _ := newTestShell(t)

			err := s.RunCommand(tc.line)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, StatusUsage, s.LastStatus())
			assert.Empty(t, stdout.String())
		})
	}
}

func TestShell_inputTooLong(t *testing.T) {
	s, stdout, stderr := newTestShell(t, "echo "+strings.Repeat("a", 20), "echo ok")
	s.Config.MaxLineLength = 10

	err := s.RunCommand("echo " + strings.Repeat("a", 20))
	assert.ErrorIs(t, err, shell.ErrInputTooLong)

	// The session keeps going after the rejected line.
	assert.Equal(t, 0, s.Run())
	assert.Equal(t, "ok\n", stdout.String())
	assert.Contains(t, stderr.String(), "mysh: ")
}

func TestShell_longPipedLine(t *testing.T) {
	input := "echo " + strings.Repeat("a", 2<<20) + "\necho after\n"

	s, stdout, stderr := newTestShell(t)
	s.LineReader = lineio.NewScanner(strings.NewReader(input), nil)

	assert.Equal(t, 0, s.Run())
	assert.Equal(t, "after\n", stdout.String())
	assert.Contains(t, stderr.String(), "mysh: "+shell.ErrInputTooLong.Error())
}

func TestShell_escapedAmpersand(t *testing.T) {
	s, stdout, _ := newTestShell(t)

	require.NoError(t, s.RunCommand(`echo a\&`))
	assert.Equal(t, "a&\n", stdout.String())
}

func TestShell_continuation(t *testing.T) {
	t.Run("joined", func(t *testing.T) {
		s, stdout, _ := newTestShell(t, `echo hel\`, `lo wor\`, `ld`)

		assert.Equal(t, 0, s.Run())
		assert.Equal(t, "hello world\n", stdout.String())
	})

	t.Run("escaped-backslash", func(t *testing.T) {
		s, stdout, _ := newTestShell(t, `echo a\\`, `echo b`)

		assert.Equal(t, 0, s.Run())
		assert.Equal(t, "a\\\nb\n", stdout.String())
	})

	t.Run("eof-runs-collected", func(t *testing.T) {
		s, stdout, _ := newTestShell(t, `echo partial\`)

		assert.Equal(t, 0, s.Run())
		assert.Equal(t, "partial\n", stdout.String())
	})
}

// scriptedReader returns canned lines and errors and remembers the prompts
// it was asked with.
type scriptedReader struct {
	steps   []scriptedStep
	prompts []string
}

type scriptedStep struct {
	line string
	err  error
}

func (r *scriptedReader) ReadLine(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.steps) == 0 {
		return "", io.EOF
	}

	step := r.steps[0]
	r.steps = r.steps[1:]
	return step.line, step.err
}

func TestShell_prompts(t *testing.T) {
	s, _, _ := newTestShell(t)
	reader := &scriptedReader{steps: []scriptedStep{
		{line: `echo a\`},
		{line: `b`},
	}}
	s.LineReader = reader

	assert.Equal(t, 0, s.Run())
	assert.Equal(t, []string{"my_shell> ", "> ", "my_shell> "}, reader.prompts)
}

func TestShell_interrupt(t *testing.T) {
	s, stdout, _ := newTestShell(t)
	s.LineReader = &scriptedReader{steps: []scriptedStep{
		{line: `echo discarded\`},
		{err: lineio.ErrInterrupt},
		{line: "echo kept"},
	}}

	assert.Equal(t, 0, s.Run())
	assert.Equal(t, "kept\n", stdout.String())
}

func TestShell_readError(t *testing.T) {
	s, _, stderr := newTestShell(t)
	s.LineReader = &scriptedReader{steps: []scriptedStep{
		{err: errors.New("terminal went away")},
	}}

	assert.Equal(t, 1, s.Run())
	assert.Equal(t, "mysh: terminal went away\n", stderr.String())
}

func TestShell_interruptDuringJob(t *testing.T) {
	// The child sends SIGINT to the shell the way a terminal signals the
	// whole foreground group.
	s, stdout, _ := newTestShell(t, "sh -c 'kill -INT $PPID; sleep 0.1; exit 3'", "echo after")
	s.Config.ReportStatus = true

	assert.Equal(t, 0, s.Run())
	assert.Equal(t, "Child process exited with status 3\nafter\nChild process exited with status 0\n", stdout.String())
}

func TestShell_reportStatus(t *testing.T) {
	cases := map[string]struct {
		line       string
		wantOut    string
		wantStatus int
	}{
		"success": {"true", "Child process exited with status 0\n", 0},
		"failure": {"sh -c 'exit 3'", "Child process exited with status 3\n", 3},
		"killed":  {"sh -c 'kill -9 $$'", "Child process did not terminate normally\n", 137},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s, stdout, _ := newTestShell(t)
			s.Config.ReportStatus = true

			require.NoError(t, s.RunCommand(tc.line))
			assert.Equal(t, tc.wantOut, stdout.String())
			assert.Equal(t, tc.wantStatus, s.LastStatus())
		})
	}
}

func TestShell_quietStatus(t *testing.T) {
	s, stdout, _ := newTestShell(t)

	require.NoError(t, s.RunCommand("sh -c 'exit 5'"))
	assert.Empty(t, stdout.String())
	assert.Equal(t, 5, s.LastStatus())
}

func TestShell_notFound(t *testing.T) {
	s, _, _ := newTestShell(t)

	err := s.RunCommand("nosuchcommand-mysh")
	assert.ErrorIs(t, err, proc.ErrSpawnFailed)
	assert.Equal(t, StatusNotFound, s.LastStatus())
}

func TestShell_alias(t *testing.T) {
	s, stdout, _ := newTestShell(t)
	s.Config.Aliases = map[string]string{"say": "echo"}

	require.NoError(t, s.RunCommand("say aliased"))
	assert.Equal(t, "aliased\n", stdout.String())
}

func TestShell_ls(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), nil, 0600))

	s, stdout, _ := newTestShell(t)
	require.NoError(t, s.RunCommand("ls "+dir))
	assert.Equal(t, "marker.txt\n", stdout.String())
}

func TestShell_vi(t *testing.T) {
	s, stdout, _ := newTestShell(t)
	fs := afero.NewMemMapFs()
	s.Editor = &editor.Editor{
		Fs:  fs,
		In:  strings.NewReader("hello world"),
		Out: io.Discard,
	}

	require.NoError(t, s.RunCommand("vi notes.txt"))
	assert.Equal(t, "Number of lines: 1\nNumber of words: 2\nNumber of characters: 11\n", stdout.String())

	contents, err := afero.ReadFile(fs, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(contents))
}

type failingEditor struct{}

func (failingEditor) Open(string) (editor.Counts, error) {
	return editor.Counts{}, errors.New("read-only file system")
}

func TestShell_viErrors(t *testing.T) {
	s, _, _ := newTestShell(t)

	assert.ErrorIs(t, s.RunCommand("vi"), ErrMissingArgument)
	assert.ErrorIs(t, s.RunCommand("vi a b"), ErrTooManyArguments)

	s.Editor = failingEditor{}
	assert.ErrorIs(t, s.RunCommand("vi notes.txt"), ErrEnvironment)
}

func TestTryBuiltin(t *testing.T) {
	s, _, _ := newTestShell(t)

	_, ok, err := s.TryBuiltin([]string{"ls", "-l"})
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, _ = s.TryBuiltin(nil)
	assert.False(t, ok)

	result, ok, err := s.TryBuiltin([]string{"help"})
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Zero(t, result.Pid)
}

func TestBuiltinNames(t *testing.T) {
	assert.Equal(t, []string{"cd", "exit", "help", "mkdir", "pwd", "vi"}, BuiltinNames())
}

func TestShell_events(t *testing.T) {
	keepWorkingDir(t)

	var buf bytes.Buffer
	s, _, _ := newTestShell(t, "echo hi | cat", "cd", "nosuchcommand-mysh")
	s.Events = logger.NewJSONLinesEventLog(&buf).NewSession()

	assert.Equal(t, 0, s.Run())

	var report logger.Report
	require.NoError(t, logger.ReadJSONLinesLog(&buf, func(le *structpb.Struct) {
		report.Update(le)
	}))

	assert.Equal(t, 2, report.Events.Get(logger.EventSession))
	assert.Equal(t, 3, report.Events.Get(logger.EventCommand))
	assert.Equal(t, 3, report.Events.Get(logger.EventJob))
	assert.Equal(t, 1, report.Events.Get(logger.EventBuiltin))
	assert.Equal(t, 1, report.Command.PipelineLengths.Get("2"))
	assert.Equal(t, 1, report.Job.Failures.Get("nosuchcommand-mysh", "spawn failed: nosuchcommand-mysh: command not found"))
	assert.Equal(t, 1, report.Job.Failures.Get("cd", "missing argument: cd: no directory given"))
}

func TestShell_RunOnce(t *testing.T) {
	cases := map[string]struct {
		line       string
		wantStatus int
		wantErr    string
	}{
		"success":   {"echo once", 0, ""},
		"status":    {"sh -c 'exit 7'", 7, ""},
		"not-found": {"nosuchcommand-mysh", StatusNotFound, "mysh: spawn failed: nosuchcommand-mysh: command not found\n"},
		"syntax":    {"echo 'open", StatusUsage, "mysh: syntax error: "},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			s, _, stderr := newTestShell(t)

			assert.Equal(t, tc.wantStatus, s.RunOnce(tc.line))
			if tc.wantErr != "" {
				assert.Contains(t, stderr.String(), tc.wantErr)
			}
		})
	}
}
