package cycle

import "sync/atomic"

// Stats holds atomic counters for the polling loop.
type Stats struct {
	Cycles              atomic.Int64
	NewFeliCa           atomic.Int64
	NewISO14443A        atomic.Int64
	DuplicateSuppressed atomic.Int64
	FeedbackErrors      atomic.Int64
	ReportErrors        atomic.Int64
}

// Snapshot returns all counters as a string-keyed map.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"cycles_total":               s.Cycles.Load(),
		"new_felica_total":           s.NewFeliCa.Load(),
		"new_iso14443a_total":        s.NewISO14443A.Load(),
		"duplicate_suppressed_total": s.DuplicateSuppressed.Load(),
		"feedback_errors_total":      s.FeedbackErrors.Load(),
		"report_errors_total":        s.ReportErrors.Load(),
	}
}
