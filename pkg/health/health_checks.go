package health

import (
	"runtime"
)

// TransportStats is what TransportCheck needs from the request server.
type TransportStats struct {
	Listening bool
	Served    uint64
	Failed    uint64
}

// maxFailureRatio is the share of failed requests above which the
// transport is reported degraded.
const maxFailureRatio = 0.5

// TransportCheck reports whether the environment server is accepting
// requests and how many of them failed.
func TransportCheck(stats func() TransportStats) CheckFunc {
	return func() Check {
		s := stats()
		check := Check{
			Details: map[string]any{
				"listening": s.Listening,
				"served":    s.Served,
				"failed":    s.Failed,
			},
		}

		switch {
		case !s.Listening:
			check.Status = StatusUnhealthy
			check.Message = "Not listening"
		case s.Served > 0 && float64(s.Failed)/float64(s.Served) > maxFailureRatio:
			check.Status = StatusDegraded
			check.Message = "Most requests are failing"
		default:
			check.Status = StatusHealthy
			check.Message = "Accepting requests"
		}
		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		alloc, sys := getUsage()
		check := Check{
			Details: map[string]any{
				"alloc_bytes": alloc,
				"sys_bytes":   sys,
			},
		}

		usagePercent := 0.0
		if sys > 0 {
			usagePercent = float64(alloc) / float64(sys) * 100
		}

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}
		return check
	}
}

// RuntimeMemory reads heap allocation and memory obtained from the OS.
func RuntimeMemory() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc, m.Sys
}
