package output

import (
	"browser-pilot/internal/domain/entity"
)

// SessionRecorderPort persists a durable log of the run for later inspection.
// All calls are fire-and-forget side effects: recorder failures never fail the run.
type SessionRecorderPort interface {
	CreateSession(goal string) (string, error)
	UpdateSession(sessionID string, fields map[string]any) error
	AddStep(sessionID string, step int, obs entity.Observation, action entity.Action, outcome entity.ActionOutcome) error
}

// VideoSinkPort consumes raw screencast frames and produces a video file.
// A sink that cannot start (e.g. no encoder installed) reports false from Start
// and recording is skipped for the run.
type VideoSinkPort interface {
	Start(path string, fps, width, height int) bool
	WriteFrame(frame []byte) bool
	Finish() (string, bool)
}
