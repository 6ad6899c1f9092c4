// Package sysinfo reports host and process health for the systemStatus command.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Status is a point-in-time snapshot
type Status struct {
	Hostname      string        `json:"hostname"`
	OS            string        `json:"os"`
	Uptime        time.Duration `json:"uptime"`
	CPUPercent    float64       `json:"cpu_percent"`
	CPUCount      int           `json:"cpu_count"`
	MemUsed       uint64        `json:"mem_used"`
	MemTotal      uint64        `json:"mem_total"`
	MemPercent    float64       `json:"mem_percent"`
	ProcessRSS    uint64        `json:"process_rss"`
	NumGoroutines int           `json:"goroutines"`
}

// Reader collects Status. Each reading degrades to zero values on failure.
type Reader struct {
	sample time.Duration
	pid    int32
}

// NewReader creates a reader for the current process
func NewReader() *Reader {
	return &Reader{sample: 200 * time.Millisecond, pid: int32(os.Getpid())}
}

// Status gathers a snapshot
func (r *Reader) Status(ctx context.Context) (Status, error) {
	s := Status{
		CPUCount:      runtime.NumCPU(),
		NumGoroutines: runtime.NumGoroutine(),
	}
	var errs []string

	if info, err := host.InfoWithContext(ctx); err == nil {
		s.Hostname = info.Hostname
		s.OS = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
		s.Uptime = time.Duration(info.Uptime) * time.Second
	} else {
		errs = append(errs, "host: "+err.Error())
	}

	if pcts, err := cpu.PercentWithContext(ctx, r.sample, false); err == nil && len(pcts) > 0 {
		s.CPUPercent = pcts[0]
	} else if err != nil {
		errs = append(errs, "cpu: "+err.Error())
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemUsed = vm.Used
		s.MemTotal = vm.Total
		s.MemPercent = vm.UsedPercent
	} else {
		errs = append(errs, "mem: "+err.Error())
	}

	if p, err := process.NewProcessWithContext(ctx, r.pid); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			s.ProcessRSS = mi.RSS
		}
	}

	if len(errs) == 3 {
		return s, fmt.Errorf("system readings failed: %s", strings.Join(errs, "; "))
	}
	return s, nil
}

// Summary renders s as one human sentence
func (s Status) Summary() string {
	var parts []string
	if s.Hostname != "" {
		parts = append(parts, fmt.Sprintf("Host %s", s.Hostname))
	}
	parts = append(parts, fmt.Sprintf("CPU %.0f%% across %d cores", s.CPUPercent, s.CPUCount))
	if s.MemTotal > 0 {
		parts = append(parts, fmt.Sprintf("memory %s of %s used (%.0f%%)",
			humanize.IBytes(s.MemUsed), humanize.IBytes(s.MemTotal), s.MemPercent))
	}
	if s.Uptime > 0 {
		now := time.Now()
		parts = append(parts, "up "+strings.TrimSpace(humanize.RelTime(now.Add(-s.Uptime), now, "", "")))
	}
	if s.ProcessRSS > 0 {
		parts = append(parts, "assistant using "+humanize.IBytes(s.ProcessRSS))
	}
	return strings.Join(parts, ", ") + "."
}
