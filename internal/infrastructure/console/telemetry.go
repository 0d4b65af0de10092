package console

import (
	"fmt"

	"github.com/fatih/color"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

var _ output.TelemetryPort = (*Telemetry)(nil)

// Telemetry prints run progress to the terminal. It is one implementation of
// the telemetry callback; the engine itself never writes to stdout.
type Telemetry struct{}

func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

func (t *Telemetry) StepStarted(step, maxSteps int) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Printf("\n━━━ Step %d/%d ━━━\n", step, maxSteps)
}

func (t *Telemetry) ActionChosen(step int, action entity.Action) {
	blue := color.New(color.FgBlue)
	target := action.Selector
	if action.Type == entity.ActionNavigate {
		target = action.URL
	}
	blue.Printf("→ %s %s\n", action.Type, target)
	if action.Reasoning != "" {
		fmt.Printf("  %s\n", action.Reasoning)
	}
}

func (t *Telemetry) RetryEngaged(step, attempt int, strategy string, action entity.Action) {
	yellow := color.New(color.FgYellow)
	yellow.Printf("  retry %d (%s): %s %s\n", attempt, strategy, action.Type, action.Selector)
}

func (t *Telemetry) StuckDetected(step int) {
	red := color.New(color.FgRed, color.Bold)
	red.Printf("  loop detected, advising the policy to change strategy\n")
}

func (t *Telemetry) VerdictReceived(step int, verdict entity.Verdict) {
	if verdict.Success {
		color.Green("  verified (confidence %.2f)", verdict.Confidence)
		return
	}
	color.Yellow("  unverified: %s (confidence %.2f)", verdict.Reason, verdict.Confidence)
}

func (t *Telemetry) RunFinished(result entity.AutomationResult) {
	fmt.Println()
	if result.Success {
		color.Green("Done in %d steps (%d retries): %s", result.Steps, result.TotalRetries, result.Summary)
	} else {
		color.Red("Failed after %d steps (%d retries): %s", result.Steps, result.TotalRetries, result.Error)
	}
	if result.VideoPath != "" {
		fmt.Printf("Recording: %s\n", result.VideoPath)
	}
}
