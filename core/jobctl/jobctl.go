// Package jobctl turns interrupt and stop signals delivered to the shell into
// sweeps over the running foreground jobs.
package jobctl

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
	"golang.org/x/sys/unix"
)

// KillFunc delivers sig to pid.
type KillFunc func(pid int, sig syscall.Signal) error

// Handler sweeps the registry when the shell receives SIGINT or SIGTSTP.
//
// Signals are queued on a channel by the runtime and drained by a single
// goroutine, so the sweep never runs in a signal context.
type Handler struct {
	Registry *jobs.Registry
	// Out receives the "N processes ended." reports.
	Out io.Writer
	// Kill delivers signals, unix.Kill if nil.
	Kill KillFunc
	// OnSweep, if set, is called after every sweep with the signal handled.
	OnSweep func(sig syscall.Signal, affected int)

	events logger.EventRecorder

	sigs chan os.Signal
	wg   sync.WaitGroup
	once sync.Once
}

// NewHandler creates a handler reporting to out.
func NewHandler(registry *jobs.Registry, out io.Writer, events logger.EventRecorder) *Handler {
	if events == nil {
		events = logger.Nop()
	}
	return &Handler{
		Registry: registry,
		Out:      out,
		events:   events,
	}
}

// Install starts receiving SIGINT and SIGTSTP. The shell itself is never
// interrupted or stopped while installed.
func (h *Handler) Install() {
	h.sigs = make(chan os.Signal, 8)
	signal.Notify(h.sigs, unix.SIGINT, unix.SIGTSTP)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for sig := range h.sigs {
			if s, ok := sig.(syscall.Signal); ok {
				h.Handle(s)
			}
		}
	}()
}

// Close stops signal delivery and waits for queued signals to be handled.
func (h *Handler) Close() {
	h.once.Do(func() {
		if h.sigs == nil {
			return
		}
		signal.Stop(h.sigs)
		close(h.sigs)
		h.wg.Wait()
	})
}

// Handle runs one sweep for sig and returns the number of jobs affected.
// Signals other than SIGINT and SIGTSTP are ignored.
func (h *Handler) Handle(sig syscall.Signal) int {
	var verb string
	switch sig {
	case unix.SIGINT:
		verb = "ended"
	case unix.SIGTSTP:
		verb = "stopped"
	default:
		return 0
	}

	affected := h.Sweep(sig)
	if h.Out != nil {
		fmt.Fprintf(h.Out, "\n%d processes %s.\n", len(affected), verb)
	}
	if h.OnSweep != nil {
		h.OnSweep(sig, len(affected))
	}
	return len(affected)
}

// Interrupt sweeps the foreground jobs with SIGINT.
func (h *Handler) Interrupt() int {
	return h.Handle(unix.SIGINT)
}

// Stop sweeps the foreground jobs with SIGTSTP.
func (h *Handler) Stop() int {
	return h.Handle(unix.SIGTSTP)
}

// Sweep sends sig to every Running foreground job and marks it Stopped. It
// returns the PIDs it signaled.
func (h *Handler) Sweep(sig syscall.Signal) []int {
	kill := h.Kill
	if kill == nil {
		kill = unix.Kill
	}

	var affected []int
	h.Registry.ForEachRunningForeground(func(p *jobs.Process) {
		// A job that finished between the snapshot and now is left alone.
		if !p.MarkStoppedBy(int(sig)) {
			return
		}
		// The child may already be gone, its state is terminal either way.
		_ = kill(p.PID, sig)
		affected = append(affected, p.PID)
	})

	h.events.Record(&logger.SignalSweep{
		Signal:   unix.SignalName(sig),
		Affected: affected,
	})
	return affected
}
