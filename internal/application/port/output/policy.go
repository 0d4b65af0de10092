package output

import (
	"context"

	"browser-pilot/internal/domain/entity"
)

// DecisionPolicyPort chooses the next action for an observation.
// The engine treats it as an opaque external call with its own timeout; it may
// return free-form action names, which the controller normalizes before execution.
type DecisionPolicyPort interface {
	Decide(ctx context.Context, obs entity.Observation) (entity.Action, error)
}

// VisualJudgePort is an optional capability of a decision policy: given the
// screenshots taken around an action, judge whether the action had effect.
// Discovered by interface assertion on the policy; absence downgrades
// verification to a neutral verdict.
type VisualJudgePort interface {
	Judge(ctx context.Context, action entity.Action, before, after []byte) (entity.Verdict, error)
}
