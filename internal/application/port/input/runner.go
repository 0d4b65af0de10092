package input

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

// AutomationRunner is the library entry point: drive the browser toward a goal
// starting from startURL. The returned error is non-nil only for connection-level
// failures; every other failure mode surfaces as a structured AutomationResult.
type AutomationRunner interface {
	Run(ctx context.Context, goal, startURL string) (*entity.AutomationResult, error)
}
