// Package jobs holds the records of every program the shell has launched and
// the registry that keeps them in launch order.
package jobs

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the observed lifecycle state of a launched process.
type State uint32

const (
	// Running is the only non-terminal state.
	Running State = iota
	// Completed means the OS reported the process exited.
	Completed
	// Stopped means a signal handler interrupted or suspended the process.
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Standard descriptor numbers used when a stream isn't redirected.
const (
	FdStdin  = 0
	FdStdout = 1
	FdStderr = 2
)

// Process is the record of one launched external command.
type Process struct {
	// PID is the OS process ID of the child.
	PID int
	// Path is the resolved executable that was started.
	Path string
	// Argv holds the arguments passed to the program with control tokens removed.
	Argv []string

	// Stdin, Stdout and Stderr hold the descriptors the child's standard streams
	// were bound to.
	Stdin  int
	Stdout int
	Stderr int

	// Background is set at launch and never changes.
	Background bool

	StartedAt time.Time

	state      atomic.Uint32
	exitCode   atomic.Int32
	stopSignal atomic.Int32

	settleOnce sync.Once
	settled    chan struct{}
	doneOnce   sync.Once
	done       chan struct{}

	next *Process
	prev *Process
}

// NewProcess creates a Running record for a started child.
func NewProcess(pid int, path string, argv []string, background bool) *Process {
	p := &Process{
		PID:        pid,
		Path:       path,
		Argv:       append([]string(nil), argv...),
		Stdin:      FdStdin,
		Stdout:     FdStdout,
		Stderr:     FdStderr,
		Background: background,
		StartedAt:  time.Now(),
		settled:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	p.exitCode.Store(-1)
	return p
}

// Argc is the number of arguments the program received.
func (p *Process) Argc() int {
	return len(p.Argv)
}

// State returns the current state of the record.
func (p *Process) State() State {
	return State(p.state.Load())
}

// IsActive is true while the process is Running.
func (p *Process) IsActive() bool {
	return p.State() == Running
}

// MarkCompleted moves the record from Running to Completed. It returns false
// if the record had already reached a terminal state.
func (p *Process) MarkCompleted() bool {
	return p.transition(Completed)
}

// MarkStopped moves the record from Running to Stopped. A Completed record is
// never overwritten.
func (p *Process) MarkStopped() bool {
	return p.transition(Stopped)
}

// MarkStoppedBy is MarkStopped for a record that is about to receive sig.
func (p *Process) MarkStoppedBy(sig int) bool {
	if !p.state.CompareAndSwap(uint32(Running), uint32(Stopped)) {
		return false
	}
	p.stopSignal.Store(int32(sig))
	p.settle()
	return true
}

// StopSignal is the signal recorded by MarkStoppedBy, zero if none.
func (p *Process) StopSignal() int {
	return int(p.stopSignal.Load())
}

func (p *Process) transition(to State) bool {
	if !p.state.CompareAndSwap(uint32(Running), uint32(to)) {
		return false
	}
	p.settle()
	return true
}

func (p *Process) settle() {
	p.settleOnce.Do(func() { close(p.settled) })
}

// Settled is closed once the record leaves Running.
func (p *Process) Settled() <-chan struct{} {
	return p.settled
}

// Reaped records the exit code of the OS process and releases anyone waiting
// on Done. It is safe to call more than once; only the first call counts.
func (p *Process) Reaped(exitCode int) {
	p.doneOnce.Do(func() {
		p.exitCode.Store(int32(exitCode))
		close(p.done)
	})
}

// Done is closed once the OS process has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode is the exit status of the reaped process, or -1 if it hasn't been
// reaped. A process killed by a signal reports 128 plus the signal number.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}
