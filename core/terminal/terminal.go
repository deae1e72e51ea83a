// Package terminal makes the shell the foreground process group of its
// controlling terminal.
package terminal

import (
	"fmt"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal is the shell's view of its controlling terminal.
type Terminal struct {
	fd          int
	interactive bool
	pgid        int
	saved       *term.State
}

// IsInteractive reports whether fd refers to a terminal.
func IsInteractive(fd int) bool {
	return term.IsTerminal(fd)
}

// Init takes control of the terminal on fd. If fd isn't a terminal the shell
// runs non-interactively and nothing is changed. Any failure while taking
// control is fatal to the shell.
func Init(fd int) (*Terminal, error) {
	t := &Terminal{fd: fd, interactive: IsInteractive(fd)}
	if !t.interactive {
		return t, nil
	}

	// Wait until we're in the foreground before touching the terminal.
	for {
		fg, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
		if err != nil {
			return nil, fmt.Errorf("couldn't read the terminal's foreground group: %w", err)
		}
		pgrp := unix.Getpgrp()
		if fg == pgrp {
			break
		}
		if err := unix.Kill(-pgrp, unix.SIGTTIN); err != nil {
			return nil, fmt.Errorf("couldn't wait for the foreground: %w", err)
		}
	}

	pid := unix.Getpid()
	if pgid, _ := unix.Getpgid(0); pgid != pid {
		if err := unix.Setpgid(pid, pid); err != nil {
			return nil, fmt.Errorf("couldn't put the shell in its own process group: %w", err)
		}
	}
	t.pgid = pid

	// A background group changing the foreground gets SIGTTOU, ignored signals
	// are inherited by children so the default is put back afterwards.
	signal.Ignore(unix.SIGTTOU)
	err := unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, t.pgid)
	signal.Reset(unix.SIGTTOU)
	if err != nil {
		return nil, fmt.Errorf("couldn't take control of the terminal: %w", err)
	}

	state, err := term.GetState(fd)
	if err != nil {
		return nil, fmt.Errorf("couldn't save terminal modes: %w", err)
	}
	t.saved = state

	return t, nil
}

// Interactive is true when the shell controls a terminal.
func (t *Terminal) Interactive() bool {
	return t.interactive
}

// ProcessGroup is the shell's process group, zero if non-interactive.
func (t *Terminal) ProcessGroup() int {
	return t.pgid
}

// Restore puts back the terminal modes saved by Init.
func (t *Terminal) Restore() error {
	if t.saved == nil {
		return nil
	}
	return term.Restore(t.fd, t.saved)
}
