package runner

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// supervisor watches one process group and terminates it when a ceiling is
// breached. Termination escalates from SIGTERM to SIGKILL after the grace
// period; every action is idempotent and safe after the group has exited.
type supervisor struct {
	pgid int
	lim  Limits

	mu        sync.Mutex
	reason    Status
	peakKiB   int64
	killTimer *time.Timer
}

func newSupervisor(pid int, lim Limits) *supervisor {
	return &supervisor{pgid: pid, lim: lim}
}

// terminate records the first breach cause and starts the kill escalation.
// Later causes lose: whoever killed the process first gets to name the
// verdict.
func (s *supervisor) terminate(cause Status) {
	s.mu.Lock()
	first := s.reason == ""
	if first {
		s.reason = cause
	}
	s.mu.Unlock()

	killGroup(s.pgid, syscall.SIGTERM)
	if first {
		s.mu.Lock()
		s.killTimer = time.AfterFunc(gracePeriod, func() {
			killGroup(s.pgid, syscall.SIGKILL)
		})
		s.mu.Unlock()
	}
}

// killAll ends the attempt: the escalation timer must not fire later
// against a pid the kernel may have reused.
func (s *supervisor) killAll() {
	s.mu.Lock()
	if s.killTimer != nil {
		s.killTimer.Stop()
		s.killTimer = nil
	}
	s.mu.Unlock()
	killGroup(s.pgid, syscall.SIGKILL)
}

func (s *supervisor) cause() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *supervisor) peakMemKiB() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peakKiB
}

// watch polls the process counters until done is closed. Exit-code
// inspection alone would miss a memory spike in a process that the kernel
// lets finish; the poll catches it while it is still resident.
func (s *supervisor) watch(ctx context.Context, done <-chan struct{}) {
	var wallC <-chan time.Time
	if s.lim.WallMs > 0 {
		wall := time.NewTimer(time.Duration(s.lim.WallMs) * time.Millisecond)
		defer wall.Stop()
		wallC = wall.C
	}

	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	ctxDone := ctx.Done()
	for {
		select {
		case <-done:
			return
		case <-ctxDone:
			s.terminate(StatusKilled)
			ctxDone = nil
		case <-wallC:
			s.terminate(StatusTimedOut)
			wallC = nil
		case <-tick.C:
			s.poll()
		}
	}
}

func (s *supervisor) poll() {
	if kib, ok := procPeakRSSKiB(s.pgid); ok {
		s.mu.Lock()
		if kib > s.peakKiB {
			s.peakKiB = kib
		}
		s.mu.Unlock()
		if s.lim.MemKiB > 0 && kib > s.lim.MemKiB {
			s.terminate(StatusMemoryExceeded)
		}
	}
	if s.lim.CpuMs > 0 {
		if ms, ok := procCPUMs(s.pgid); ok && ms > s.lim.CpuMs {
			s.terminate(StatusTimedOut)
		}
	}
}

// procPeakRSSKiB reads VmHWM from /proc/<pid>/status.
func procPeakRSSKiB(pid int) (int64, bool) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmHWM:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kib, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kib, true
	}
	return 0, false
}

// userHZ is the kernel's USER_HZ; /proc stat times are reported in these
// ticks and the value is 100 on every supported platform.
const userHZ = 100

// procCPUMs reads utime+stime from /proc/<pid>/stat.
func procCPUMs(pid int) (int64, bool) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0, false
	}
	// comm may contain spaces; fields are stable only after the closing paren.
	raw := string(data)
	i := strings.LastIndexByte(raw, ')')
	if i < 0 || i+2 > len(raw) {
		return 0, false
	}
	fields := strings.Fields(raw[i+1:])
	// fields[0] is the state; utime and stime are overall fields 14 and 15.
	if len(fields) < 13 {
		return 0, false
	}
	utime, err1 := strconv.ParseInt(fields[11], 10, 64)
	stime, err2 := strconv.ParseInt(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return (utime + stime) * 1000 / userHZ, true
}
