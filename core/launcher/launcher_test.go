package launcher

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is shared by children running at the same time.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testLauncher struct {
	*Launcher
	stdout *syncBuffer
	stderr *syncBuffer
	events *bytes.Buffer
}

func newTestLauncher(t *testing.T) *testLauncher {
	t.Helper()

	events := &bytes.Buffer{}
	l := New(jobs.NewRegistry(), logger.NewJsonLinesLogRecorder(events).NewSession())
	out := &testLauncher{
		Launcher: l,
		stdout:   &syncBuffer{},
		stderr:   &syncBuffer{},
		events:   events,
	}
	l.Stdin = bytes.NewReader(nil)
	l.Stdout = out.stdout
	l.Stderr = out.stderr
	return out
}

func TestLaunchForeground(t *testing.T) {
	l := newTestLauncher(t)

	proc, err := l.Launch(context.Background(), "/bin/true", []string{"/bin/true"})
	require.NoError(t, err)

	assert.Equal(t, jobs.Completed, proc.State())
	assert.False(t, proc.Background)
	assert.Equal(t, 0, proc.ExitCode())
	assert.Equal(t, 1, l.Registry.Len())
	assert.Equal(t, []string{"/bin/true"}, proc.Argv)
	assert.Greater(t, proc.PID, 0)
}

func TestLaunchForegroundExitCode(t *testing.T) {
	l := newTestLauncher(t)

	proc, err := l.Launch(context.Background(), "/bin/sh", []string{"sh", "-c", "echo out; echo err >&2; exit 3"})
	require.NoError(t, err)

	assert.Equal(t, jobs.Completed, proc.State())
	assert.Equal(t, 3, proc.ExitCode())
	assert.Equal(t, "out\n", l.stdout.String())
	assert.Equal(t, "err\n", l.stderr.String())
}

func TestLaunchBackground(t *testing.T) {
	l := newTestLauncher(t)

	proc, err := l.Launch(context.Background(), "/bin/sleep", []string{"/bin/sleep", "1", "&"})
	require.NoError(t, err)

	assert.Equal(t, jobs.Running, proc.State())
	assert.True(t, proc.Background)
	assert.Equal(t, []string{"/bin/sleep", "1"}, proc.Argv)
	assert.Equal(t, 2, proc.Argc())

	joined, err := l.WaitBackground(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, joined)
	assert.Equal(t, jobs.Completed, proc.State())

	// Nothing left to join.
	joined, err = l.WaitBackground(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, joined)
}

func TestLaunchOrder(t *testing.T) {
	l := newTestLauncher(t)

	first, err := l.Launch(context.Background(), "/bin/true", []string{"true"})
	require.NoError(t, err)
	second, err := l.Launch(context.Background(), "/bin/sleep", []string{"sleep", "0", "&"})
	require.NoError(t, err)
	third, err := l.Launch(context.Background(), "/bin/true", []string{"true"})
	require.NoError(t, err)

	assert.Equal(t, []*jobs.Process{first, second, third}, l.Registry.Processes())
	_, err = l.WaitBackground(context.Background())
	require.NoError(t, err)
}

func TestLaunchRedirectOutputAppends(t *testing.T) {
	l := newTestLauncher(t)
	out := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(out, []byte("existing\n"), 0644))

	proc, err := l.Launch(context.Background(), "/bin/sh", []string{"sh", "-c", "echo hello", ">", out})
	require.NoError(t, err)

	assert.Equal(t, jobs.Completed, proc.State())
	assert.Equal(t, []string{"sh", "-c", "echo hello"}, proc.Argv)
	assert.NotEqual(t, jobs.FdStdout, proc.Stdout)
	assert.Equal(t, jobs.FdStdin, proc.Stdin)
	assert.Empty(t, l.stdout.String())

	contents, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "existing\nhello\n", string(contents))
}

func TestLaunchRedirectOutputCreates(t *testing.T) {
	l := newTestLauncher(t)
	out := filepath.Join(t.TempDir(), "new.txt")

	_, err := l.Launch(context.Background(), "/bin/sh", []string{"sh", "-c", "printf abc", ">", out})
	require.NoError(t, err)

	contents, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(contents))
}

func TestLaunchRedirectInput(t *testing.T) {
	l := newTestLauncher(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("line one\nline two\n"), 0644))

	proc, err := l.Launch(context.Background(), "/bin/cat", []string{"/bin/cat", "<", in, ">", out})
	require.NoError(t, err)

	assert.NotEqual(t, jobs.FdStdin, proc.Stdin)
	assert.NotEqual(t, jobs.FdStdout, proc.Stdout)
	assert.Equal(t, []string{"/bin/cat"}, proc.Argv)

	contents, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(contents))
}

func TestLaunchRedirectInputMissing(t *testing.T) {
	l := newTestLauncher(t)
	missing := filepath.Join(t.TempDir(), "missing.txt")

	proc, err := l.Launch(context.Background(), "/bin/cat", []string{"/bin/cat", "<", missing})
	assert.Nil(t, proc)

	var redirErr *RedirectionError
	require.True(t, errors.As(err, &redirErr))
	assert.Equal(t, TokenRedirIn, redirErr.Op)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, 0, l.Registry.Len())
}

func TestLaunchRedirectOutputUnwritable(t *testing.T) {
	l := newTestLauncher(t)
	bad := filepath.Join(t.TempDir(), "no", "such", "dir", "out.txt")

	proc, err := l.Launch(context.Background(), "/bin/true", []string{"true", ">", bad})
	assert.Nil(t, proc)

	var redirErr *RedirectionError
	require.True(t, errors.As(err, &redirErr))
	assert.Equal(t, TokenRedirOut, redirErr.Op)
	assert.Equal(t, 0, l.Registry.Len())
}

func TestLaunchSyntaxError(t *testing.T) {
	l := newTestLauncher(t)

	proc, err := l.Launch(context.Background(), "/bin/cat", []string{"/bin/cat", ">"})
	assert.Nil(t, proc)
	assert.True(t, errors.Is(err, ErrSyntax))
	assert.Equal(t, 1, Status(err))
	assert.Equal(t, 0, l.Registry.Len())
}

func TestLaunchExecErrors(t *testing.T) {
	dir := t.TempDir()
	notExecutable := filepath.Join(dir, "script")
	require.NoError(t, os.WriteFile(notExecutable, []byte("#!/bin/sh\n"), 0644))

	cases := map[string]struct {
		path   string
		status int
	}{
		"missing":        {filepath.Join(dir, "missing"), StatusNotFound},
		"not executable": {notExecutable, StatusNotExecutable},
		"directory":      {dir, StatusNotExecutable},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			l := newTestLauncher(t)

			proc, err := l.Launch(context.Background(), tc.path, []string{tc.path})
			assert.Nil(t, proc)

			var execErr *ExecError
			require.True(t, errors.As(err, &execErr), "got %T: %v", err, err)
			assert.Equal(t, tc.status, Status(err))
			assert.Equal(t, 0, l.Registry.Len())
			assert.Contains(t, l.events.String(), "launch_failure")
		})
	}
}

func TestLaunchContextCancelled(t *testing.T) {
	l := newTestLauncher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	proc, err := l.Launch(ctx, "/bin/sleep", []string{"sleep", "5"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NotNil(t, proc)
	assert.Equal(t, jobs.Running, proc.State())

	p, err := os.FindProcess(proc.PID)
	require.NoError(t, err)
	require.NoError(t, p.Kill())
	<-proc.Done()
	assert.Equal(t, jobs.Completed, proc.State())
	assert.Equal(t, 128+int(syscall.SIGKILL), proc.ExitCode())
}

func TestLaunchKilledBySignal(t *testing.T) {
	l := newTestLauncher(t)

	proc, err := l.Launch(context.Background(), "/bin/sh", []string{"sh", "-c", "kill -TERM $$"})
	require.NoError(t, err)

	assert.Equal(t, jobs.Completed, proc.State())
	assert.Equal(t, 143, proc.ExitCode())
}

func TestLaunchSettlesOnStop(t *testing.T) {
	l := newTestLauncher(t)

	result := make(chan *jobs.Process)
	go func() {
		proc, _ := l.Launch(context.Background(), "/bin/sleep", []string{"sleep", "5"})
		result <- proc
	}()

	require.Eventually(t, func() bool { return l.Registry.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	target := l.Registry.Processes()[0]
	assert.True(t, target.MarkStopped())

	proc := <-result
	assert.Equal(t, jobs.Stopped, proc.State())

	// The watcher reaps it later but never overwrites Stopped.
	p, err := os.FindProcess(proc.PID)
	require.NoError(t, err)
	require.NoError(t, p.Kill())
	<-proc.Done()
	assert.Equal(t, jobs.Stopped, proc.State())
}

func TestLaunchEvents(t *testing.T) {
	l := newTestLauncher(t)

	_, err := l.Launch(context.Background(), "/bin/true", []string{"true"})
	require.NoError(t, err)
	l.Watcher().Wait()

	var report logger.Report
	require.NoError(t, logger.ReadJSONLinesLog(l.events, report.Update))
	assert.Equal(t, 1, report.Launch.Count)
	assert.Equal(t, 1, report.Exit.States.Get("completed"))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, 0, Status(nil))
	assert.Equal(t, 1, Status(errors.New("boom")))
	assert.Equal(t, 127, Status(&ExecError{Status: StatusNotFound}))
	assert.Equal(t, 1, Status(&LaunchError{Path: "x", Cause: errors.New("fork")}))
}
