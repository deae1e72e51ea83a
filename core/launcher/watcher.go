package launcher

import (
	"os/exec"
	"sync"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/josephlewis42/jobsh/core/logger"
)

// Watcher observes children exiting without blocking the command loop.
type Watcher struct {
	events logger.EventRecorder
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher that reports exits to events.
func NewWatcher(events logger.EventRecorder) *Watcher {
	if events == nil {
		events = logger.Nop()
	}
	return &Watcher{events: events}
}

// Track waits for cmd in its own goroutine, then records the exit status on p
// and moves it to Completed unless a signal handler got there first.
func (w *Watcher) Track(p *jobs.Process, cmd *exec.Cmd) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		// A non-zero exit is still a completed job, the status carries it.
		_ = cmd.Wait()
		code := exitCode(cmd)

		// The exit code must be visible before anyone waiting on Settled wakes.
		p.Reaped(code)
		p.MarkCompleted()

		w.events.Record(&logger.Exit{
			PID:      p.PID,
			ExitCode: code,
			State:    p.State().String(),
		})
	}()
}

// Wait blocks until every tracked child has been reaped.
func (w *Watcher) Wait() {
	w.wg.Wait()
}
