package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryAppendPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Processes())

	for pid := 100; pid < 105; pid++ {
		reg.Append(NewProcess(pid, "/bin/true", []string{"/bin/true"}, false))
	}

	assert.Equal(t, 5, reg.Len())
	var pids []int
	reg.Each(func(i int, p *Process) {
		assert.Equal(t, 100+i, p.PID)
		pids = append(pids, p.PID)
	})
	assert.Equal(t, []int{100, 101, 102, 103, 104}, pids)
}

func TestRegistryLinks(t *testing.T) {
	reg := NewRegistry()
	a := NewProcess(1, "/bin/a", []string{"a"}, false)
	b := NewProcess(2, "/bin/b", []string{"b"}, true)
	reg.Append(a)
	reg.Append(b)

	assert.Equal(t, &reg.head, a.prev)
	assert.Equal(t, a, b.prev)
	assert.Equal(t, b, a.next)
	assert.Nil(t, b.next)
}

func TestRegistryConcurrentAppend(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			reg.Append(NewProcess(pid, "/bin/true", nil, false))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, reg.Len())
}

func TestForEachRunning(t *testing.T) {
	reg := NewRegistry()

	fgRunning := NewProcess(1, "/bin/cat", []string{"cat"}, false)
	fgCompleted := NewProcess(2, "/bin/true", []string{"true"}, false)
	fgCompleted.MarkCompleted()
	fgStopped := NewProcess(3, "/bin/cat", []string{"cat"}, false)
	fgStopped.MarkStopped()
	bgRunning := NewProcess(4, "/bin/sleep", []string{"sleep", "5"}, true)
	bgCompleted := NewProcess(5, "/bin/sleep", []string{"sleep", "0"}, true)
	bgCompleted.MarkCompleted()

	for _, p := range []*Process{fgRunning, fgCompleted, fgStopped, bgRunning, bgCompleted} {
		reg.Append(p)
	}

	t.Run("foreground", func(t *testing.T) {
		var visited []int
		n := reg.ForEachRunningForeground(func(p *Process) {
			visited = append(visited, p.PID)
		})
		assert.Equal(t, 1, n)
		assert.Equal(t, []int{1}, visited)
	})

	t.Run("background", func(t *testing.T) {
		var visited []int
		n := reg.ForEachRunningBackground(func(p *Process) {
			visited = append(visited, p.PID)
		})
		assert.Equal(t, 1, n)
		assert.Equal(t, []int{4}, visited)
	})

	t.Run("callback may mutate", func(t *testing.T) {
		n := reg.ForEachRunningForeground(func(p *Process) {
			p.MarkStopped()
		})
		assert.Equal(t, 1, n)
		assert.Equal(t, 0, reg.ForEachRunningForeground(func(*Process) {}))
	})
}

func TestStateTransitions(t *testing.T) {
	cases := map[string]struct {
		first, second func(p *Process) bool
		want          State
	}{
		"complete then stop": {(*Process).MarkCompleted, (*Process).MarkStopped, Completed},
		"stop then complete": {(*Process).MarkStopped, (*Process).MarkCompleted, Stopped},
		"complete twice":     {(*Process).MarkCompleted, (*Process).MarkCompleted, Completed},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			p := NewProcess(1, "/bin/true", nil, false)
			assert.Equal(t, Running, p.State())
			assert.True(t, p.IsActive())

			assert.True(t, tc.first(p))
			assert.False(t, tc.second(p))
			assert.Equal(t, tc.want, p.State())
			assert.False(t, p.IsActive())

			select {
			case <-p.Settled():
			default:
				t.Fatal("settled channel should be closed")
			}
		})
	}
}

func TestStopSignal(t *testing.T) {
	p := NewProcess(1, "/bin/cat", nil, false)
	assert.Equal(t, 0, p.StopSignal())

	assert.True(t, p.MarkStoppedBy(2))
	assert.False(t, p.MarkStoppedBy(20))
	assert.Equal(t, 2, p.StopSignal())
	assert.Equal(t, Stopped, p.State())

	completed := NewProcess(2, "/bin/true", nil, false)
	completed.MarkCompleted()
	assert.False(t, completed.MarkStoppedBy(2))
	assert.Equal(t, 0, completed.StopSignal())
}

func TestReaped(t *testing.T) {
	p := NewProcess(1, "/bin/false", []string{"false"}, false)
	assert.Equal(t, -1, p.ExitCode())

	p.Reaped(1)
	p.Reaped(5)

	<-p.Done()
	assert.Equal(t, 1, p.ExitCode())
	// Reaping alone doesn't change the state; the watcher does that.
	assert.Equal(t, Running, p.State())
}

func TestNewProcessCopiesArgv(t *testing.T) {
	argv := []string{"/bin/echo", "hi"}
	p := NewProcess(1, argv[0], argv, false)
	argv[1] = "changed"

	assert.Equal(t, []string{"/bin/echo", "hi"}, p.Argv)
	assert.Equal(t, 2, p.Argc())
	assert.Equal(t, FdStdin, p.Stdin)
	assert.Equal(t, FdStdout, p.Stdout)
	assert.Equal(t, FdStderr, p.Stderr)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
