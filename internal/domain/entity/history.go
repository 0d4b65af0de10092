package entity

import "time"

// HistoryEntry records one attempted action (not each retry).
// The log is append-only and ordered by execution.
type HistoryEntry struct {
	Action     ActionType `json:"action"`
	Selector   string     `json:"selector,omitempty"`
	Text       string     `json:"text,omitempty"`
	URL        string     `json:"url"`
	Success    bool       `json:"success"`
	Step       int        `json:"step"`
	Timestamp  time.Time  `json:"timestamp"`
	Verified   *bool      `json:"verified,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
}

// Observation is what the decision policy sees before choosing the next action.
type Observation struct {
	Task           string         `json:"task"`
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Elements       []Element      `json:"elements"`
	PageText       string         `json:"page_text,omitempty"`
	StepNumber     int            `json:"step_number"`
	StepsRemaining int            `json:"steps_remaining"`
	RecentHistory  []HistoryEntry `json:"recent_history,omitempty"`
	Stuck          bool           `json:"stuck"`
	LastError      string         `json:"last_error,omitempty"`
	Overlay        *Overlay       `json:"overlay,omitempty"`
}
