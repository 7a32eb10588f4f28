package relay

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSample is the relay's own resource usage.
type ProcessSample struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

// ProcessStats samples the current process.
type ProcessStats struct {
	proc *process.Process
	err  error
}

func NewProcessStats() *ProcessStats {
	p, err := process.NewProcess(int32(os.Getpid()))
	return &ProcessStats{proc: p, err: err}
}

// Sample returns what could be read; err reports the first failure.
func (s *ProcessStats) Sample() (ProcessSample, error) {
	out := ProcessSample{PID: int32(os.Getpid()), Goroutines: runtime.NumGoroutine()}
	if s.err != nil {
		return out, s.err
	}
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		out.RSSBytes = mem.RSS
	} else {
		keep(err)
	}
	if cpu, err := s.proc.CPUPercent(); err == nil {
		out.CPUPercent = cpu
	} else {
		keep(err)
	}
	if n, err := s.proc.NumThreads(); err == nil {
		out.Threads = n
	} else {
		keep(err)
	}
	return out, firstErr
}
