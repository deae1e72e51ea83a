// Package procstat samples live OS statistics for processes launched by the
// shell.
package procstat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josephlewis42/jobsh/core/jobs"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time sample of a running process.
type Stats struct {
	PID        int
	Status     []string
	RSS        uint64
	CPUPercent float64
	Threads    int32
}

// Sample reads the current statistics for pid.
func Sample(ctx context.Context, pid int) (*Stats, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}

	out := &Stats{PID: pid}
	if out.Status, err = proc.StatusWithContext(ctx); err != nil {
		return nil, fmt.Errorf("process %d status: %w", pid, err)
	}

	// The remaining fields are best effort, some platforms don't expose them.
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		out.RSS = mem.RSS
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		out.CPUPercent = cpu
	}
	if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
		out.Threads = threads
	}

	return out, nil
}

// Fields formats the sample as listing rows.
func (s *Stats) Fields() []jobs.Field {
	return []jobs.Field{
		{Label: "Status", Value: strings.Join(s.Status, ",")},
		{Label: "RSS", Value: BytesToHuman(int64(s.RSS))},
		{Label: "CPU", Value: fmt.Sprintf("%0.1f%%", s.CPUPercent)},
		{Label: "Threads", Value: fmt.Sprintf("%d", s.Threads)},
	}
}

// Annotator returns a listing annotator that samples each running process,
// giving up on a single sample after timeout.
func Annotator(timeout time.Duration) jobs.Annotator {
	return func(p *jobs.Process) []jobs.Field {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		stats, err := Sample(ctx, p.PID)
		if err != nil {
			return []jobs.Field{{Label: "Status", Value: "unavailable"}}
		}
		return stats.Fields()
	}
}

// BytesToHuman formats a byte count with a short SI suffix.
func BytesToHuman(bytes int64) string {
	for _, e := range []struct {
		unit  string
		power int64
	}{
		{"P", 1e15},
		{"T", 1e12},
		{"G", 1e9},
		{"M", 1e6},
		{"K", 1e3},
	} {
		quotient := bytes / e.power
		switch {
		case quotient == 0:
			continue
		case quotient > 10:
			return fmt.Sprintf("%d%s", quotient, e.unit)
		default:
			return fmt.Sprintf("%0.1f%s", float64(bytes)/float64(e.power), e.unit)
		}
	}

	return fmt.Sprintf("%d", bytes)
}
