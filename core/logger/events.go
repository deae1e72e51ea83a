package logger

// LogEntry is a single line of the event log. Exactly one event field is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	SessionStart   *SessionStart   `json:"session_start,omitempty"`
	Launch         *Launch         `json:"launch,omitempty"`
	LaunchFailure  *LaunchFailure  `json:"launch_failure,omitempty"`
	Exit           *Exit           `json:"exit,omitempty"`
	SignalSweep    *SignalSweep    `json:"signal_sweep,omitempty"`
	UnknownCommand *UnknownCommand `json:"unknown_command,omitempty"`
}

// LogType is implemented by every event that can be stored in a LogEntry.
type LogType interface {
	setOn(le *LogEntry)
}

// SessionStart is logged once when an interactive session begins.
type SessionStart struct {
	PID         int  `json:"pid"`
	PPID        int  `json:"ppid"`
	Interactive bool `json:"interactive"`
}

func (e *SessionStart) setOn(le *LogEntry) { le.SessionStart = e }

// Launch is logged when a child is started and registered.
type Launch struct {
	PID        int      `json:"pid"`
	Command    []string `json:"command"`
	Path       string   `json:"path"`
	Background bool     `json:"background,omitempty"`
	InputFile  string   `json:"input_file,omitempty"`
	OutputFile string   `json:"output_file,omitempty"`
}

func (e *Launch) setOn(le *LogEntry) { le.Launch = e }

// LaunchFailure is logged when a resolved program couldn't be started.
type LaunchFailure struct {
	Command []string `json:"command"`
	Path    string   `json:"path"`
	Error   string   `json:"error"`
}

func (e *LaunchFailure) setOn(le *LogEntry) { le.LaunchFailure = e }

// Exit is logged when a child is reaped.
type Exit struct {
	PID      int    `json:"pid"`
	ExitCode int    `json:"exit_code"`
	State    string `json:"state"`
}

func (e *Exit) setOn(le *LogEntry) { le.Exit = e }

// SignalSweep is logged when a signal handler swept the foreground jobs.
type SignalSweep struct {
	Signal   string `json:"signal"`
	Affected []int  `json:"affected"`
}

func (e *SignalSweep) setOn(le *LogEntry) { le.SignalSweep = e }

// UnknownCommand is logged when a command couldn't be resolved.
type UnknownCommand struct {
	Command []string `json:"command"`
	Error   string   `json:"error"`
}

func (e *UnknownCommand) setOn(le *LogEntry) { le.UnknownCommand = e }
