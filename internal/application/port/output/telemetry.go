package output

import (
	"browser-pilot/internal/domain/entity"
)

// TelemetryPort receives structured progress events from the controller.
// It replaces any process-wide verbose/debug state: everything an operator sees
// flows through this callback.
type TelemetryPort interface {
	StepStarted(step, maxSteps int)
	ActionChosen(step int, action entity.Action)
	RetryEngaged(step, attempt int, strategy string, action entity.Action)
	StuckDetected(step int)
	VerdictReceived(step int, verdict entity.Verdict)
	RunFinished(result entity.AutomationResult)
}
