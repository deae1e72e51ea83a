// Package launcher starts external programs for the shell, wiring up
// redirection and tracking each child in the process registry.
package launcher

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"golang.org/x/sys/unix"
)

// OutputFileMode is the permission used when ">" creates a file.
const OutputFileMode = 0644

// Launcher starts programs and registers them.
type Launcher struct {
	Registry *jobs.Registry

	// Stdin, Stdout and Stderr are handed to children whose streams aren't
	// redirected.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Env is the environment of new children, nil inherits the shell's.
	Env []string

	events  logger.EventRecorder
	watcher *Watcher
}

// New creates a Launcher bound to the process's standard streams.
func New(registry *jobs.Registry, events logger.EventRecorder) *Launcher {
	if events == nil {
		events = logger.Nop()
	}

	return &Launcher{
		Registry: registry,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		events:   events,
		watcher:  NewWatcher(events),
	}
}

// Watcher returns the watcher tracking this launcher's children.
func (l *Launcher) Watcher() *Watcher {
	return l.watcher
}

// Launch starts the program at path with argv, which may contain control
// tokens. Foreground jobs block until the record leaves Running or ctx is done;
// background jobs return as soon as the child is registered.
//
// No record is created if the command line is invalid, a redirect can't be
// opened, or the child can't be started.
func (l *Launcher) Launch(ctx context.Context, path string, argv []string) (*jobs.Process, error) {
	parsed, err := ParseCommand(argv)
	if err != nil {
		return nil, err
	}

	redirs, err := openRedirects(parsed)
	if err != nil {
		return nil, err
	}
	// The child keeps its own copies.
	defer redirs.Close()

	cmd := &exec.Cmd{
		Path:   path,
		Args:   parsed.Args,
		Env:    l.Env,
		Stdin:  l.Stdin,
		Stdout: l.Stdout,
		Stderr: l.Stderr,
	}
	if redirs.in != nil {
		cmd.Stdin = redirs.in
	}
	if redirs.out != nil {
		cmd.Stdout = redirs.out
	}
	if parsed.Background {
		// Keep terminal generated signals away from background jobs.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		err = classifyStartError(path, err)
		l.events.Record(&logger.LaunchFailure{
			Command: parsed.Args,
			Path:    path,
			Error:   err.Error(),
		})
		return nil, err
	}

	proc := jobs.NewProcess(cmd.Process.Pid, path, parsed.Args, parsed.Background)
	if redirs.in != nil {
		proc.Stdin = redirs.inFd
	}
	if redirs.out != nil {
		proc.Stdout = redirs.outFd
	}
	l.Registry.Append(proc)

	l.events.Record(&logger.Launch{
		PID:        proc.PID,
		Command:    proc.Argv,
		Path:       path,
		Background: proc.Background,
		InputFile:  parsed.InputFile,
		OutputFile: parsed.OutputFile,
	})

	l.watcher.Track(proc, cmd)

	if proc.Background {
		return proc, nil
	}

	select {
	case <-proc.Settled():
		return proc, nil
	case <-ctx.Done():
		// A settle racing the cancellation still counts.
		select {
		case <-proc.Settled():
			return proc, nil
		default:
		}
		return proc, ctx.Err()
	}
}

// WaitBackground blocks until every running background job has exited,
// marking each Completed. It returns how many jobs it joined.
func (l *Launcher) WaitBackground(ctx context.Context) (int, error) {
	joined := 0
	var err error
	l.Registry.ForEachRunningBackground(func(p *jobs.Process) {
		if err != nil {
			return
		}
		select {
		case <-p.Done():
			p.MarkCompleted()
			joined++
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return joined, err
}

type redirects struct {
	in, out     *os.File
	inFd, outFd int
}

func openRedirects(cmd *Command) (*redirects, error) {
	out := &redirects{}

	if cmd.OutputFile != "" {
		fd, err := os.OpenFile(cmd.OutputFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, OutputFileMode)
		if err != nil {
			return nil, &RedirectionError{Op: TokenRedirOut, File: cmd.OutputFile, Cause: err}
		}
		out.out = fd
		out.outFd = int(fd.Fd())
	}

	if cmd.InputFile != "" {
		fd, err := os.Open(cmd.InputFile)
		if err != nil {
			out.Close()
			return nil, &RedirectionError{Op: TokenRedirIn, File: cmd.InputFile, Cause: err}
		}
		out.in = fd
		out.inFd = int(fd.Fd())
	}

	return out, nil
}

func (r *redirects) Close() error {
	var lastErr error
	for _, fd := range []*os.File{r.in, r.out} {
		if fd == nil {
			continue
		}
		if err := fd.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func classifyStartError(path string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return &ExecError{Path: path, Status: StatusNotFound, Cause: err}
	case errors.Is(err, fs.ErrPermission), errors.Is(err, unix.ENOEXEC), errors.Is(err, unix.EISDIR):
		return &ExecError{Path: path, Status: StatusNotExecutable, Cause: err}
	default:
		return &LaunchError{Path: path, Cause: err}
	}
}

// exitCode extracts a status from a finished command. A child killed by a
// signal gets 128 plus the signal number, like a POSIX shell reports it.
func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return cmd.ProcessState.ExitCode()
}
