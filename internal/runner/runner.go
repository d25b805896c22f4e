// Package runner spawns one compile or run step as a resource-limited child
// process. Every process runs in its own process group so that terminating it
// also terminates anything it spawned; a supervisor goroutine enforces the
// wall-clock, CPU, memory and output ceilings while the process runs.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Status is the terminal classification of one execution attempt.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusTimedOut       Status = "timed_out"
	StatusMemoryExceeded Status = "memory_exceeded"
	StatusOutputExceeded Status = "output_exceeded"
	StatusKilled         Status = "killed"
	StatusSpawnFailed    Status = "spawn_failed"
)

// Limits is a fully resolved set of resource ceilings. It is never partially
// applied: callers resolve language defaults and overrides before Run.
type Limits struct {
	CpuMs          int64
	WallMs         int64
	MemKiB         int64
	MaxOutputBytes int64
	MaxProcs       int64
}

// Cmd describes a single process to run. Line is executed through
// `bash -c` with Dir as the working directory; it is a fixed toolchain
// template and must never contain submission-derived text.
type Cmd struct {
	Line  string
	Dir   string
	Stdin []byte
}

// Attempt records the outcome of one process invocation.
type Attempt struct {
	Status Status

	ExitCode   int64
	ExitSignal *int64

	CpuMs  int64
	WallMs int64
	MemKiB int64

	// Stdout and Stderr are truncated at Limits.MaxOutputBytes; bytes past
	// the cap were consumed and discarded, not buffered.
	Stdout []byte
	Stderr []byte

	// SpawnError is set when Status is spawn_failed.
	SpawnError string
}

// gracePeriod is how long a terminated process group gets to exit after
// SIGTERM before it is forcefully killed.
const gracePeriod = 500 * time.Millisecond

// pollInterval bounds how late a memory or CPU spike can be noticed.
const pollInterval = 75 * time.Millisecond

// Run executes c under lim and blocks until the process group is gone.
// In-band failures (timeouts, kills, spawn errors) are reported through
// Attempt.Status, never as a Go error.
func Run(ctx context.Context, c Cmd, lim Limits) *Attempt {
	a := &Attempt{Status: StatusCompleted, ExitCode: -1}

	line := c.Line
	if lim.MaxProcs > 0 {
		line = fmt.Sprintf("ulimit -u %d 2>/dev/null; %s", lim.MaxProcs, c.Line)
	}

	cmd := exec.Command("/bin/bash", "-c", line)
	cmd.Dir = c.Dir
	cmd.Stdin = bytes.NewReader(c.Stdin)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newCapWriter(lim.MaxOutputBytes)
	stderr := newCapWriter(lim.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		a.Status = StatusSpawnFailed
		a.SpawnError = err.Error()
		return a
	}

	sup := newSupervisor(cmd.Process.Pid, lim)
	stdout.onBreach = func() { sup.terminate(StatusOutputExceeded) }
	stderr.onBreach = func() { sup.terminate(StatusOutputExceeded) }

	done := make(chan struct{})
	go sup.watch(ctx, done)

	_ = cmd.Wait()
	close(done)
	a.WallMs = time.Since(start).Milliseconds()

	// The group may still hold grandchildren keeping pipes open; make sure
	// nothing survives the attempt.
	sup.killAll()

	if state := cmd.ProcessState; state != nil {
		a.ExitCode = int64(state.ExitCode())
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			sig := int64(ws.Signal())
			a.ExitSignal = &sig
		}
		if ru, ok := state.SysUsage().(*syscall.Rusage); ok {
			a.CpuMs = (ru.Utime.Sec+ru.Stime.Sec)*1000 +
				int64(ru.Utime.Usec+ru.Stime.Usec)/1000
			a.MemKiB = ru.Maxrss
		}
	}
	if peak := sup.peakMemKiB(); peak > a.MemKiB {
		a.MemKiB = peak
	}

	a.Stdout = stdout.Bytes()
	a.Stderr = stderr.Bytes()

	a.Status = resolveStatus(sup.cause(), a, lim)

	// The shell wrapper exits 127 for a command it cannot find and 126 for
	// one it cannot execute. That is a missing or broken toolchain, not the
	// submission failing at runtime.
	if a.Status == StatusCompleted && a.ExitSignal == nil &&
		(a.ExitCode == 126 || a.ExitCode == 127) {
		a.Status = StatusSpawnFailed
		a.SpawnError = strings.TrimSpace(string(a.Stderr))
	}
	return a
}

// resolveStatus attributes the attempt outcome. A supervisor-initiated kill
// outranks whatever exit status the dying process produced, so a program
// killed at the wall-clock ceiling reports timed_out even when it also
// crashed on the way down.
func resolveStatus(cause Status, a *Attempt, lim Limits) Status {
	if cause != "" {
		return cause
	}
	// The poller can miss a spike that ended the process between ticks;
	// the final rusage numbers are authoritative.
	if lim.CpuMs > 0 && a.CpuMs > lim.CpuMs {
		return StatusTimedOut
	}
	if lim.MemKiB > 0 && a.MemKiB > lim.MemKiB {
		return StatusMemoryExceeded
	}
	return StatusCompleted
}

// killGroup delivers sig to the whole process group. Safe to call after the
// group is gone.
func killGroup(pgid int, sig syscall.Signal) {
	_ = unix.Kill(-pgid, sig)
}
