package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/abiosoft/readline"
	"github.com/anmitsu/go-shlex"
	"github.com/fatih/color"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobctl"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/launcher"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/spf13/afero"
)

const (
	EnvHome = "HOME"
	EnvPath = "PATH"
	EnvUser = "USER"

	DefaultPrompt = `\w: `
)

// Options holds the streams and collaborators of a Shell.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive is set when Stdin is the controlling terminal.
	Interactive bool

	Events logger.EventRecorder
}

type Shell struct {
	Config   *config.Configuration
	Registry *jobs.Registry
	Launcher *launcher.Launcher
	JobCtl   *jobctl.Handler
	Readline *readline.Instance

	// Fs is searched when resolving executables.
	Fs afero.Fs

	stdout      io.Writer
	stderr      io.Writer
	interactive bool
	colorize    bool
	events      logger.EventRecorder

	mu     sync.Mutex
	cancel context.CancelFunc

	lastRet int
	history []string

	// Set to true to quit the shell
	Quit bool
}

// NewShell creates a shell that launches jobs into registry.
func NewShell(cfg *config.Configuration, registry *jobs.Registry, opts Options) (*Shell, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Events == nil {
		opts.Events = logger.Nop()
	}

	shell := &Shell{
		Config:      cfg,
		Registry:    registry,
		Launcher:    launcher.New(registry, opts.Events),
		JobCtl:      jobctl.NewHandler(registry, opts.Stdout, opts.Events),
		Fs:          afero.NewOsFs(),
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		interactive: opts.Interactive,
		colorize:    cfg.ShouldColor(opts.Interactive),
		events:      opts.Events,
	}
	shell.Launcher.Stdin = opts.Stdin
	shell.Launcher.Stdout = opts.Stdout
	shell.Launcher.Stderr = opts.Stderr
	shell.JobCtl.OnSweep = shell.onSweep

	rlCfg := &readline.Config{
		Stdin:       readline.NewCancelableStdin(opts.Stdin),
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
		HistoryFile: cfg.HistoryPath(),
		FuncIsTerminal: func() bool {
			return opts.Interactive
		},
		FuncFilterInputRune: shell.filterInputRune,
	}
	if !opts.Interactive {
		nop := func() error { return nil }
		rlCfg.FuncMakeRaw = nop
		rlCfg.FuncExitRaw = nop
		rlCfg.FuncGetWidth = func() int { return 80 }
	}

	if err := rlCfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return nil, err
	}
	shell.Readline = rl

	// Sweep reports are redrawn around the prompt while it's displayed.
	shell.JobCtl.Out = rl.Stdout()

	return shell, nil
}

// filterInputRune handles job control keys typed at the prompt. The terminal
// is in raw mode there so they never become signals.
func (s *Shell) filterInputRune(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		s.JobCtl.Stop()
		return r, false
	}
	return r, true
}

// onSweep aborts a builtin that is blocked on behalf of the user.
func (s *Shell) onSweep(sig syscall.Signal, _ int) {
	if sig != syscall.SIGINT {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// LastStatus is the exit status of the most recent command.
func (s *Shell) LastStatus() int {
	return s.lastRet
}

// Path gets the search path for commands.
func (s *Shell) Path() string {
	if s.Config.Path != "" {
		return s.Config.Path
	}
	return os.Getenv(EnvPath)
}

func (s *Shell) prompt() string {
	prompt := s.Config.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	host, _ := os.Hostname()
	prompt = strings.ReplaceAll(prompt, `\u`, os.Getenv(EnvUser))
	prompt = strings.ReplaceAll(prompt, `\h`, host)

	pwd, _ := os.Getwd()
	home := os.Getenv(EnvHome)
	if home != "" && strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}

	prompt = strings.ReplaceAll(prompt, `\w`, pwd)

	if os.Getuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return prompt
}

// Banner prints the startup line identifying the shell process.
func (s *Shell) Banner(name string) {
	fmt.Fprintf(s.stdout, "%s running as PID %d under %d\n", name, os.Getpid(), os.Getppid())
}

// Run reads and executes commands until quit or end of input. It returns the
// shell's exit status.
func (s *Shell) Run(ctx context.Context) int {
	for !s.Quit {
		s.Readline.SetPrompt(s.prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			return 1 // Input closed, quit.

		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			s.JobCtl.Interrupt()
			continue

		case err != nil:
			s.errorf("readline: %v\n", err)
			return 1

		case strings.TrimSpace(line) == "":
			continue // empty line

		default:
			s.history = append(s.history, line)
			s.RunCommand(ctx, line)
		}

		if ctx.Err() != nil {
			return 1
		}
	}
	return 0
}

// RunCommand executes one line of input.
func (s *Shell) RunCommand(ctx context.Context, line string) int {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		s.errorf("syntax error: %v\n", err)
		s.lastRet = 1
		return s.lastRet
	}
	if len(tokens) == 0 {
		return s.lastRet
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	s.lastRet = s.executeProgramOrBuiltin(ctx, tokens)
	return s.lastRet
}

func (s *Shell) executeProgramOrBuiltin(ctx context.Context, args []string) int {
	if builtin, ok := LookupBuiltin(args[0]); ok {
		return builtin.Main(ctx, s, args)
	}

	// Control tokens may come before the program name.
	parsed, err := launcher.ParseCommand(args)
	if err != nil {
		s.errorf("%s: %v\n", args[0], err)
		return launcher.Status(err)
	}
	name := parsed.Args[0]

	execPath, err := LookPath(s.Fs, s.Path(), name)
	if err != nil {
		s.events.Record(&logger.UnknownCommand{
			Command: args,
			Error:   err.Error(),
		})
		s.errorf("Couldn't resolve path for executable '%s'.\n", name)
		return launcher.StatusNotFound
	}

	parsed.Args[0] = execPath
	proc, err := s.Launcher.Launch(ctx, execPath, parsed.Argv())
	if err != nil {
		s.errorf("%s: %v\n", name, err)
		return launcher.Status(err)
	}

	switch proc.State() {
	case jobs.Stopped:
		return 128 + proc.StopSignal()
	case jobs.Completed:
		if code := proc.ExitCode(); code >= 0 {
			return code
		}
		return 1
	default:
		// Still running in the background.
		return 0
	}
}

// errorf writes a diagnostic to stderr.
func (s *Shell) errorf(format string, a ...interface{}) {
	if s.colorize {
		red := color.New(color.FgRed)
		red.EnableColor()
		red.Fprintf(s.stderr, format, a...)
		return
	}
	fmt.Fprintf(s.stderr, format, a...)
}

// Close releases the line reader.
func (s *Shell) Close() error {
	return s.Readline.Close()
}
