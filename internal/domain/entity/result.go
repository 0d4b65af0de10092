package entity

// Verdict is the structured outcome of visual verification for one action.
type Verdict struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// AutomationResult is the terminal value of one automation run.
type AutomationResult struct {
	Success      bool   `json:"success"`
	Steps        int    `json:"steps"`
	TotalRetries int    `json:"total_retries"`
	FinalURL     string `json:"final_url,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Error        string `json:"error,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	VideoPath    string `json:"video_path,omitempty"`
}
