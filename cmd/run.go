package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/josephlewis42/jobsh/core"
	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/josephlewis42/jobsh/core/terminal"
	"github.com/spf13/cobra"
)

// runShell runs an interactive session on the process's standard streams and
// returns a SilentExitError carrying the shell's exit status.
func runShell(cmd *cobra.Command, configuration *config.Configuration, banner bool) error {
	// The shell owns the terminal for the whole session; failing to get it is
	// the only fatal error.
	term, err := terminal.Init(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	defer term.Restore()

	events := logger.Nop()
	logFd, err := configuration.OpenEventLog()
	if err != nil {
		return err
	}
	if logFd != nil {
		defer logFd.Close()
		session := logger.NewJsonLinesLogRecorder(logFd).NewSession()
		session.Record(&logger.SessionStart{
			PID:         os.Getpid(),
			PPID:        os.Getppid(),
			Interactive: term.Interactive(),
		})
		events = session
	}

	// A single registry lives for the whole session.
	registry := jobs.NewRegistry()
	shell, err := core.NewShell(configuration, registry, core.Options{
		Stdin:       os.Stdin,
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
		Interactive: term.Interactive(),
		Events:      events,
	})
	if err != nil {
		return err
	}
	defer shell.Close()

	shell.JobCtl.Install()
	defer shell.JobCtl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if banner {
		shell.Banner(os.Args[0])
	}

	return NewSilentExit(shell.Run(ctx))
}
