package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/browser"
	"browser-pilot/internal/infrastructure/cdp"
	"browser-pilot/internal/usecase/verifier"
)

var _ input.AutomationRunner = (*Controller)(nil)

// DialFunc opens the connection to a page target for the duration of one run.
// The returned cleanup tears down anything acquired alongside it (e.g. a
// locally launched browser process).
type DialFunc func(ctx context.Context) (*cdp.Client, func(), error)

// Controller drives the automation loop: extract, decide, execute with the
// retry ladder, verify, record. A single logical task runs the loop
// sequentially; the only concurrent activity is the passive screencast relay.
type Controller struct {
	dial      DialFunc
	extractor *browser.Extractor
	executor  *browser.Executor
	retry     *RetryEngine
	stuck     *StuckDetector
	verifier  *verifier.Verifier
	policy    output.DecisionPolicyPort
	recorder  output.SessionRecorderPort
	video     output.VideoSinkPort
	telemetry output.TelemetryPort
	logger    output.LoggerPort
	cfg       Config
}

// Deps bundles the controller's collaborators. Recorder, video and telemetry
// are optional; their absence degrades the corresponding side effects.
type Deps struct {
	Dial      DialFunc
	Extractor *browser.Extractor
	Executor  *browser.Executor
	Verifier  *verifier.Verifier
	Policy    output.DecisionPolicyPort
	Recorder  output.SessionRecorderPort
	Video     output.VideoSinkPort
	Telemetry output.TelemetryPort
	Logger    output.LoggerPort
}

func New(deps Deps, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		dial:      deps.Dial,
		extractor: deps.Extractor,
		executor:  deps.Executor,
		retry:     NewRetryEngine(),
		stuck:     NewStuckDetector(cfg.Stuck),
		verifier:  deps.Verifier,
		policy:    deps.Policy,
		recorder:  deps.Recorder,
		video:     deps.Video,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// Run executes the loop until the policy reports done, the step budget is
// exhausted, the context is cancelled, or the connection is lost. Everything
// except a connection-level failure comes back as a structured result.
func (c *Controller) Run(ctx context.Context, goal, startURL string) (*entity.AutomationResult, error) {
	sessionID := c.createSession(goal)

	conn, cleanup, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		conn.Close()
		if cleanup != nil {
			cleanup()
		}
	}()

	relay := newFrameRelay(conn, c.video, c.logger)
	recording := relay.start(ctx, c.cfg.VideoPath, c.cfg.VideoFPS, c.cfg.VideoWidth, c.cfg.VideoHeight)

	result := c.runLoop(ctx, conn, goal, startURL, sessionID)

	if recording {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if path, ok := relay.stop(stopCtx); ok {
			result.VideoPath = path
		}
		cancel()
	}

	c.updateSession(sessionID, map[string]any{
		"success": result.Success,
		"steps":   result.Steps,
		"summary": result.Summary,
		"error":   result.Error,
	})
	if c.telemetry != nil {
		c.telemetry.RunFinished(*result.AutomationResult)
	}

	if result.ConnError != nil {
		return result.AutomationResult, result.ConnError
	}
	return result.AutomationResult, nil
}

// loopResult pairs the structured result with a connection error that must
// escape the state machine.
type loopResult struct {
	*entity.AutomationResult
	ConnError error
}

func (c *Controller) runLoop(ctx context.Context, conn *cdp.Client, goal, startURL, sessionID string) *loopResult {
	result := &entity.AutomationResult{SessionID: sessionID}
	fail := func(err error) *loopResult {
		result.Error = err.Error()
		return &loopResult{AutomationResult: result, ConnError: err}
	}

	if err := conn.Navigate(ctx, startURL); err != nil {
		return fail(fmt.Errorf("initial navigation: %w", err))
	}

	var history []entity.HistoryEntry
	lastError := ""
	finalURL := startURL

	for step := 1; step <= c.cfg.MaxSteps; step++ {
		// Cooperative cancellation point, checked before each extract.
		select {
		case <-ctx.Done():
			result.Steps = step - 1
			result.FinalURL = finalURL
			result.Error = "cancelled: " + ctx.Err().Error()
			return &loopResult{AutomationResult: result, ConnError: ctx.Err()}
		default:
		}

		result.Steps = step
		if c.telemetry != nil {
			c.telemetry.StepStarted(step, c.cfg.MaxSteps)
		}

		state, err := c.extractor.Extract(ctx, conn)
		if err != nil {
			if isConnectionError(err) {
				result.FinalURL = finalURL
				return fail(err)
			}
			c.logger.Warn("Page state extraction failed", "step", step, "error", err)
			lastError = err.Error()
			continue
		}
		finalURL = state.URL

		stuck := c.stuck.IsStuck(history)
		if stuck && c.telemetry != nil {
			c.telemetry.StuckDetected(step)
		}

		obs := c.buildObservation(goal, state, history, step, stuck, lastError)

		action, err := c.decide(ctx, obs)
		if err != nil {
			c.logger.Warn("Decision policy failed", "step", step, "error", err)
			lastError = err.Error()
			continue
		}

		normalized, known := action.Normalized()
		if !known {
			c.logger.Warn("Unknown action type, defaulting to wait", "step", step, "type", action.Type)
		}
		action = normalized
		if c.telemetry != nil {
			c.telemetry.ActionChosen(step, action)
		}

		if action.IsTerminal() {
			entry := c.record(sessionID, step, obs, action, entity.ActionOutcome{Success: true})
			history = append(history, entry)
			result.FinalURL = finalURL
			if action.Summary == "" {
				result.Error = "done without summary"
				return &loopResult{AutomationResult: result}
			}
			result.Success = true
			result.Summary = action.Summary
			return &loopResult{AutomationResult: result}
		}

		verifyEligible := c.cfg.VerifyEnabled && c.verifier != nil && c.verifier.Supported()
		var before []byte
		if verifyEligible {
			before, _ = browser.CaptureFrame(ctx, conn)
		}

		outcome, executed := c.executeWithRetries(ctx, conn, action, state, result)

		entry := c.record(sessionID, step, obs, executed, outcome)

		if outcome.Success && verifyEligible {
			verdict := c.verifier.Verify(ctx, conn, executed, before)
			verified := verdict.Success
			entry.Verified = &verified
			entry.Confidence = verdict.Confidence
			if c.telemetry != nil {
				c.telemetry.VerdictReceived(step, verdict)
			}
		}

		history = append(history, entry)

		if outcome.Success {
			lastError = ""
		} else {
			lastError = outcome.Error
		}
	}

	result.FinalURL = finalURL
	result.Error = "max steps reached"
	return &loopResult{AutomationResult: result}
}

// executeWithRetries runs the action, applying the fallback ladder on failure.
// Every resolve invocation counts toward TotalRetries whether or not the
// retried action succeeds.
func (c *Controller) executeWithRetries(ctx context.Context, conn *cdp.Client, action entity.Action, state *entity.PageState, result *entity.AutomationResult) (entity.ActionOutcome, entity.Action) {
	original := action
	current := action
	outcome := c.executor.Execute(ctx, conn, current)

	for attempt := 1; !outcome.Success && attempt <= c.cfg.MaxRetries; attempt++ {
		resolved, strategy, ok := c.retry.Resolve(attempt, original, current, state)
		result.TotalRetries++
		if !ok {
			break
		}
		if c.telemetry != nil {
			c.telemetry.RetryEngaged(result.Steps, attempt, strategy, resolved)
		}
		c.logger.Info("Retrying with fallback",
			"attempt", attempt,
			"strategy", strategy,
			"selector", resolved.Selector,
		)
		current = resolved
		outcome = c.executor.Execute(ctx, conn, current)
	}

	return outcome, current
}

func (c *Controller) decide(ctx context.Context, obs entity.Observation) (entity.Action, error) {
	decideCtx, cancel := context.WithTimeout(ctx, c.cfg.DecideTimeout)
	defer cancel()
	return c.policy.Decide(decideCtx, obs)
}

func (c *Controller) buildObservation(goal string, state *entity.PageState, history []entity.HistoryEntry, step int, stuck bool, lastError string) entity.Observation {
	recent := history
	if len(recent) > c.cfg.HistoryWindow {
		recent = recent[len(recent)-c.cfg.HistoryWindow:]
	}
	return entity.Observation{
		Task:           goal,
		URL:            state.URL,
		Title:          state.Title,
		Elements:       state.Elements,
		PageText:       state.Text,
		StepNumber:     step,
		StepsRemaining: c.cfg.MaxSteps - step,
		RecentHistory:  recent,
		Stuck:          stuck,
		LastError:      lastError,
		Overlay:        state.Overlay,
	}
}

// record appends the step to the session log and returns the history entry.
// Recorder failures are logged and ignored.
func (c *Controller) record(sessionID string, step int, obs entity.Observation, action entity.Action, outcome entity.ActionOutcome) entity.HistoryEntry {
	entry := entity.HistoryEntry{
		Action:    action.Type,
		Selector:  action.Selector,
		Text:      action.Value,
		URL:       obs.URL,
		Success:   outcome.Success,
		Step:      step,
		Timestamp: time.Now(),
	}
	if c.recorder != nil && sessionID != "" {
		if err := c.recorder.AddStep(sessionID, step, obs, action, outcome); err != nil {
			c.logger.Warn("Session recorder failed", "step", step, "error", err)
		}
	}
	return entry
}

func (c *Controller) createSession(goal string) string {
	if c.recorder == nil {
		return ""
	}
	sessionID, err := c.recorder.CreateSession(goal)
	if err != nil {
		c.logger.Warn("Session create failed", "error", err)
		return ""
	}
	return sessionID
}

func (c *Controller) updateSession(sessionID string, fields map[string]any) {
	if c.recorder == nil || sessionID == "" {
		return
	}
	if err := c.recorder.UpdateSession(sessionID, fields); err != nil {
		c.logger.Warn("Session update failed", "error", err)
	}
}

func isConnectionError(err error) bool {
	return errors.Is(err, cdp.ErrConnection) || errors.Is(err, cdp.ErrConnectionClosed)
}
