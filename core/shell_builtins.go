package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/josephlewis42/jobsh/core/config"
	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/procstat"
	"github.com/pborman/getopt/v2"
)

// statTimeout bounds how long listProcs -v waits on a single process.
const statTimeout = 250 * time.Millisecond

type ShellBuiltin interface {
	Main(ctx context.Context, s *Shell, args []string) int
}

type ShellBuiltinFunc func(ctx context.Context, s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(ctx context.Context, s *Shell, args []string) int {
	return f(ctx, s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// BuiltinEntry describes a builtin in the dispatch table.
type BuiltinEntry struct {
	// Names holds the primary name followed by any aliases.
	Names []string
	// Short is the one line description shown by help.
	Short string

	Builtin ShellBuiltin
}

var allBuiltins []BuiltinEntry

// AllBuiltins returns the dispatch table in display order.
func AllBuiltins() []BuiltinEntry {
	return append([]BuiltinEntry(nil), allBuiltins...)
}

// LookupBuiltin finds the builtin registered under name.
func LookupBuiltin(name string) (ShellBuiltin, bool) {
	for _, entry := range allBuiltins {
		for _, n := range entry.Names {
			if n == name {
				return entry.Builtin, true
			}
		}
	}
	return nil, false
}

func addBuiltin(short string, fn ShellBuiltinFunc, names ...string) {
	allBuiltins = append(allBuiltins, BuiltinEntry{
		Names:   names,
		Short:   short,
		Builtin: fn,
	})
}

// builtinFlags parses getopt style flags for a builtin, printing usage on
// failure or when --help is given. It returns false if the builtin should
// exit with the returned code.
func builtinFlags(s *Shell, opts *getopt.Set, use string, args []string) (bool, int) {
	helpOpt := opts.BoolLong("help", 'h', "show this help and exit")

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(s.stderr, "%s: %s\n", args[0], err)
		printUsage(s.stderr, opts, use)
		return false, 2
	}
	if *helpOpt {
		printUsage(s.stdout, opts, use)
		return false, 0
	}
	return true, 0
}

func printUsage(w io.Writer, opts *getopt.Set, use string) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, use)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	opts.PrintOptions(w)
}

// Help lists the builtins with their descriptions.
func Help(ctx context.Context, s *Shell, args []string) int {
	for _, entry := range allBuiltins {
		fmt.Fprintf(s.stdout, "%s - %s\n", entry.Names[0], entry.Short)
	}
	return 0
}

// Quit exits the shell.
func Quit(ctx context.Context, s *Shell, args []string) int {
	fmt.Fprintln(s.stdout, "Bye")
	s.Quit = true
	return 0
}

// Cd is the cd shell builtin
func Cd(ctx context.Context, s *Shell, args []string) int {
	switch len(args) {
	case 1:
		args = append(args, os.Getenv(EnvHome))
		fallthrough
	case 2:
		if err := os.Chdir(args[1]); err != nil {
			s.errorf("%s: %v\n", args[0], err)
			return 1
		}
	default:
		s.errorf("%s: too many arguments\n", args[0])
		return 1
	}
	return 0
}

// ListProcs prints the process registry.
func ListProcs(ctx context.Context, s *Shell, args []string) int {
	opts := getopt.New()
	verbose := opts.BoolLong("verbose", 'v', "show descriptors and live stats of running processes")
	colorOpt := opts.EnumLong(
		"color",
		rune(0), // No short flag.
		[]string{config.ColorAlways, config.ColorAuto, config.ColorNever},
		s.Config.Color,
		"colorize the output (always|auto|never)")

	if ok, code := builtinFlags(s, opts, "listProcs [-v] [--color=WHEN]", args); !ok {
		return code
	}

	renderOpts := jobs.RenderOptions{
		Width:   s.Config.ListingWidth,
		Verbose: *verbose,
	}
	switch *colorOpt {
	case config.ColorAlways:
		renderOpts.Color = true
	case config.ColorNever:
		renderOpts.Color = false
	default:
		renderOpts.Color = s.interactive
	}
	if *verbose {
		renderOpts.Annotate = procstat.Annotator(statTimeout)
	}

	if err := s.Registry.Render(s.stdout, renderOpts); err != nil {
		s.errorf("%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

// Wait blocks until every background job has finished.
func Wait(ctx context.Context, s *Shell, args []string) int {
	joined, err := s.Launcher.WaitBackground(ctx)
	if err != nil {
		s.errorf("%s: %v\n", args[0], err)
		return 130
	}
	fmt.Fprintf(s.stdout, "%d background processes completed.\n", joined)
	return 0
}

// History shows or clears the line history.
func History(ctx context.Context, s *Shell, args []string) int {
	opts := getopt.New()
	clearOpt := opts.Bool('c', "clear the history by deleting all entries")

	if ok, code := builtinFlags(s, opts, "history [-c]", args); !ok {
		return code
	}

	if *clearOpt {
		s.history = nil
		if s.interactive {
			// Recall through the arrow keys only exists at a terminal, and
			// readline's history is shared with its reader goroutine.
			s.Readline.Operation.ResetHistory()
		}
		return 0
	}

	for i, line := range s.history {
		fmt.Fprintf(s.stdout, "% 5d  %s\n", i+1, line)
	}
	return 0
}

func init() {
	addBuiltin("show this help menu", Help, "?", "help")
	addBuiltin("quit the command shell", Quit, "quit")
	addBuiltin("change directory to argv", Cd, "cd")
	addBuiltin("list all processes started by this shell.", ListProcs, "listProcs")
	addBuiltin("wait for all background processes to finish", Wait, "wait")
	addBuiltin("display or clear the command history", History, "history")
}
