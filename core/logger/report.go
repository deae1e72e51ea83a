package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	for decoder.More() {
		var logEntry LogEntry
		if err := decoder.Decode(&logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries int        `json:"invalid_entries,omitempty"`

	Launch         LaunchReport         `json:"launch_report"`
	LaunchFailure  LaunchFailureReport  `json:"launch_failure_report"`
	Exit           ExitReport           `json:"exit_report"`
	SignalSweep    SignalSweepReport    `json:"signal_sweep_report"`
	UnknownCommand UnknownCommandReport `json:"unknown_command_report"`
}

// Update folds a log entry into the report.
func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	if le.SessionID != "" {
		r.Sessions.Increment(le.SessionID)
	}

	switch {
	case le.SessionStart != nil:
		// Counted through Sessions.
	case le.Launch != nil:
		r.Launch.update(le.Launch)
	case le.LaunchFailure != nil:
		r.LaunchFailure.update(le.LaunchFailure)
	case le.Exit != nil:
		r.Exit.update(le.Exit)
	case le.SignalSweep != nil:
		r.SignalSweep.update(le.SignalSweep)
	case le.UnknownCommand != nil:
		r.UnknownCommand.update(le.UnknownCommand)
	default:
		r.InvalidEntries++
	}
}

type LaunchReport struct {
	Count int `json:"count"`
	// Name of the command
	CommandNames StrCounter `json:"command_names"`
	// Name of the resolved command
	ResolvedCommandPaths StrCounter `json:"resolved_command_paths"`
	Background           int        `json:"background"`
	Redirected           int        `json:"redirected"`
}

func (r *LaunchReport) update(l *Launch) {
	r.Count++
	r.ResolvedCommandPaths.Increment(l.Path)
	if len(l.Command) > 0 {
		r.CommandNames.Increment(l.Command[0])
	}
	if l.Background {
		r.Background++
	}
	if l.InputFile != "" || l.OutputFile != "" {
		r.Redirected++
	}
}

type LaunchFailureReport struct {
	Errors *PathCounter `json:"errors"`
}

func (r *LaunchFailureReport) update(l *LaunchFailure) {
	if r.Errors == nil {
		r.Errors = NewPathCounter("path", "error")
	}
	r.Errors.Increment(l.Path, l.Error)
}

type ExitReport struct {
	ExitCodes StrCounter `json:"exit_codes"`
	States    StrCounter `json:"states"`
}

func (r *ExitReport) update(e *Exit) {
	r.ExitCodes.Increment(fmt.Sprintf("%d", e.ExitCode))
	r.States.Increment(e.State)
}

type SignalSweepReport struct {
	Signals  StrCounter `json:"signals"`
	Affected int        `json:"affected"`
}

func (r *SignalSweepReport) update(s *SignalSweep) {
	r.Signals.Increment(s.Signal)
	r.Affected += len(s.Affected)
}

type UnknownCommandReport struct {
	CommandNames StrCounter `json:"command_names"`
}

func (r *UnknownCommandReport) update(u *UnknownCommand) {
	if len(u.Command) > 0 {
		r.CommandNames.Increment(u.Command[0])
	}
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// Len returns the number of distinct keys.
func (s *StrCounter) Len() int {
	return len(s.internal)
}

// MarshalJSON implements a custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	if s.internal == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of times a tuple of strings was seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implements a custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
