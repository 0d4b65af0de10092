package automation

import (
	"browser-pilot/internal/domain/entity"
)

// StuckConfig holds the loop-detection thresholds. Empirically chosen values,
// deliberately configurable.
type StuckConfig struct {
	SameSelectorRun int
	FailureRun      int
	SameURLWindow   int
	SameURLFailures int
}

func DefaultStuckConfig() StuckConfig {
	return StuckConfig{
		SameSelectorRun: 3,
		FailureRun:      3,
		SameURLWindow:   5,
		SameURLFailures: 2,
	}
}

// StuckDetector flags repetitive behavior in recent history. The signal is
// advisory: the controller injects it into the next observation and the
// decision policy remains responsible for choosing differently.
type StuckDetector struct {
	cfg StuckConfig
}

func NewStuckDetector(cfg StuckConfig) *StuckDetector {
	def := DefaultStuckConfig()
	if cfg.SameSelectorRun <= 0 {
		cfg.SameSelectorRun = def.SameSelectorRun
	}
	if cfg.FailureRun <= 0 {
		cfg.FailureRun = def.FailureRun
	}
	if cfg.SameURLWindow <= 0 {
		cfg.SameURLWindow = def.SameURLWindow
	}
	if cfg.SameURLFailures <= 0 {
		cfg.SameURLFailures = def.SameURLFailures
	}
	return &StuckDetector{cfg: cfg}
}

// IsStuck evaluates the most recent entries against all three rules.
func (d *StuckDetector) IsStuck(history []entity.HistoryEntry) bool {
	return d.sameSelectorRun(history) || d.failureRun(history) || d.sameURLWithFailures(history)
}

// sameSelectorRun flags repeated targeting of one element. A run where every
// attempt succeeded is legitimate (e.g. scrolling a feed), so at least one
// failure is required.
func (d *StuckDetector) sameSelectorRun(history []entity.HistoryEntry) bool {
	n := d.cfg.SameSelectorRun
	if len(history) < n {
		return false
	}
	recent := history[len(history)-n:]
	selector := recent[0].Selector
	if selector == "" {
		return false
	}
	failed := false
	for _, e := range recent {
		if e.Selector != selector {
			return false
		}
		if !e.Success {
			failed = true
		}
	}
	return failed
}

func (d *StuckDetector) failureRun(history []entity.HistoryEntry) bool {
	n := d.cfg.FailureRun
	if len(history) < n {
		return false
	}
	for _, e := range history[len(history)-n:] {
		if e.Success {
			return false
		}
	}
	return true
}

func (d *StuckDetector) sameURLWithFailures(history []entity.HistoryEntry) bool {
	n := d.cfg.SameURLWindow
	if len(history) < n {
		return false
	}
	recent := history[len(history)-n:]
	url := recent[0].URL
	failures := 0
	for _, e := range recent {
		if e.URL != url {
			return false
		}
		if !e.Success {
			failures++
		}
	}
	return failures >= d.cfg.SameURLFailures
}
