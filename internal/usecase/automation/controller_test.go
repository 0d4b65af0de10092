package automation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/browser"
	"browser-pilot/internal/infrastructure/cdp"
	"browser-pilot/internal/infrastructure/cdp/cdptest"
	"browser-pilot/internal/infrastructure/logger"
	"browser-pilot/internal/usecase/verifier"
)

// scriptedPolicy replays a fixed action sequence; once drained it keeps
// returning wait so a runaway loop terminates on the step budget.
type scriptedPolicy struct {
	mu       sync.Mutex
	actions  []entity.Action
	onCall   func(call int)
	calls    int
	observed []entity.Observation
}

func (p *scriptedPolicy) Decide(ctx context.Context, obs entity.Observation) (entity.Action, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.observed = append(p.observed, obs)
	if p.onCall != nil {
		p.onCall(p.calls)
	}
	if len(p.actions) == 0 {
		return entity.Action{Type: entity.ActionWait}, nil
	}
	next := p.actions[0]
	p.actions = p.actions[1:]
	return next, nil
}

func (p *scriptedPolicy) observation(i int) entity.Observation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.observed[i]
}

// scriptPage wires a cdptest server to serve one synthetic page: a snapshot
// for the introspection script, markup for the text condenser, and
// resolvable centers for clicks.
func scriptPage(srv *cdptest.Server, snapshot map[string]any) {
	srv.Handle("Runtime.evaluate", func(params json.RawMessage) (any, error) {
		var in struct {
			Expression string `json:"expression"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		switch {
		case strings.Contains(in.Expression, "(maxElements)"):
			return cdptest.EvaluateResult(snapshot), nil
		case strings.Contains(in.Expression, "outerHTML"):
			return cdptest.EvaluateResult("<html><body><p>Results page</p></body></html>"), nil
		case strings.Contains(in.Expression, "rect.width / 2"):
			return cdptest.EvaluateResult(map[string]any{"x": 120, "y": 80}), nil
		default:
			return cdptest.EvaluateResult("ok"), nil
		}
	})
}

func pageSnapshot(url string, elements ...map[string]any) map[string]any {
	return map[string]any{
		"url":      url,
		"title":    "Catalog",
		"viewport": map[string]any{"width": 1280, "height": 800},
		"elements": elements,
	}
}

func testDeps(t *testing.T, srv *cdptest.Server, policy *scriptedPolicy) Deps {
	t.Helper()
	return Deps{
		Dial: func(ctx context.Context) (*cdp.Client, func(), error) {
			client, err := cdp.Dial(ctx, srv.URL())
			return client, nil, err
		},
		Extractor: browser.NewExtractor(50),
		Executor: browser.NewExecutor(browser.ExecutorConfig{
			SettleInterval: time.Millisecond,
			KeyDelay:       time.Millisecond,
			ScrollDelta:    600,
		}),
		Policy: policy,
		Logger: logger.NewNop(),
	}
}

func TestController_RunCompletesOnDone(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/catalog",
		map[string]any{"tag": "button", "kind": "button", "text": "Next", "selector": "#next"},
	))

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionClick, Selector: "#next", Reasoning: "advance"},
		{Type: entity.ActionDone, Summary: "reached the product page"},
	}}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 5})
	result, err := ctrl.Run(context.Background(), "open the product page", "https://shop.test/")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Steps)
	assert.Equal(t, "reached the product page", result.Summary)
	assert.Equal(t, "https://shop.test/catalog", result.FinalURL)
	assert.Zero(t, result.TotalRetries)
	assert.Empty(t, result.Error)

	// One initial navigation and one synthesized click, nothing after done.
	assert.Equal(t, 1, srv.CountMethod("Page.navigate"))
	assert.Equal(t, 2, srv.CountMethod("Input.dispatchMouseEvent"))
}

func TestController_SearchScenario(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://example.test/search",
		map[string]any{"tag": "input", "kind": "input", "selector": "input[name=q]"},
		map[string]any{"tag": "button", "kind": "button", "text": "Search", "selector": "#go"},
	))

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionTypeText, Selector: "input[name=q]", Value: "widgets"},
		{Type: entity.ActionSubmit},
		{Type: entity.ActionDone, Done: true, Summary: "Searched for widgets"},
	}}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 10})
	result, err := ctrl.Run(context.Background(), "search for 'widgets'", "https://example.test/search")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Steps)
	assert.Equal(t, "Searched for widgets", result.Summary)
	assert.Zero(t, result.TotalRetries)

	// Seven char events for "widgets" plus the Enter keyDown/char/keyUp triple.
	assert.Equal(t, 10, srv.CountMethod("Input.dispatchKeyEvent"))
}

func TestController_DoneWithoutSummaryFails(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/"))

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionDone},
	}}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 5})
	result, err := ctrl.Run(context.Background(), "goal", "https://shop.test/")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Steps)
	assert.Equal(t, "done without summary", result.Error)
}

func TestController_MaxStepsReached(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/feed"))

	// The policy never finishes; every step is a successful scroll.
	scrolls := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionScroll, Direction: "down"},
		{Type: entity.ActionScroll, Direction: "down"},
		{Type: entity.ActionScroll, Direction: "down"},
	}}

	ctrl := New(testDeps(t, srv, scrolls), Config{MaxSteps: 3})
	result, err := ctrl.Run(context.Background(), "scroll forever", "https://shop.test/")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Steps)
	assert.Equal(t, "max steps reached", result.Error)
	assert.Equal(t, "https://shop.test/feed", result.FinalURL)
}

func TestController_UnknownActionBecomesWait(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/"))

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionType("teleport")},
		{Type: entity.ActionDone, Summary: "gave up"},
	}}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 5})
	result, err := ctrl.Run(context.Background(), "goal", "https://shop.test/")
	require.NoError(t, err)

	// The bogus action degraded to a successful wait, then the run finished.
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Steps)
	assert.Zero(t, result.TotalRetries)
}

func TestController_RetryLadderSpendsFullBudget(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()

	snapshot := pageSnapshot("https://shop.test/",
		map[string]any{
			"tag": "input", "kind": "input", "selector": "#search",
			"altSelectors": []string{"input[name=q]", "[data-pilot-id=el-0]"},
		},
	)
	// Every click fails: centers never resolve and the native fallback
	// reports the element missing.
	srv.Handle("Runtime.evaluate", func(params json.RawMessage) (any, error) {
		var in struct {
			Expression string `json:"expression"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		switch {
		case strings.Contains(in.Expression, "(maxElements)"):
			return cdptest.EvaluateResult(snapshot), nil
		case strings.Contains(in.Expression, "outerHTML"):
			return cdptest.EvaluateResult("<html></html>"), nil
		case strings.Contains(in.Expression, "rect.width / 2"):
			return cdptest.EvaluateResult(nil), nil
		default:
			return cdptest.EvaluateResult("not_found"), nil
		}
	})

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionClick, Selector: "#search"},
	}}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 1, MaxRetries: 2})
	result, err := ctrl.Run(context.Background(), "goal", "https://shop.test/")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Steps)
	assert.Equal(t, 2, result.TotalRetries)
	assert.Equal(t, "max steps reached", result.Error)
}

func TestController_RetryStopsWhenLadderExhausted(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()

	// Page offers no alternatives, so the first resolve already fails.
	snapshot := pageSnapshot("https://shop.test/")
	srv.Handle("Runtime.evaluate", func(params json.RawMessage) (any, error) {
		var in struct {
			Expression string `json:"expression"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		switch {
		case strings.Contains(in.Expression, "(maxElements)"):
			return cdptest.EvaluateResult(snapshot), nil
		case strings.Contains(in.Expression, "outerHTML"):
			return cdptest.EvaluateResult("<html></html>"), nil
		case strings.Contains(in.Expression, "rect.width / 2"):
			return cdptest.EvaluateResult(nil), nil
		default:
			return cdptest.EvaluateResult("not_found"), nil
		}
	})

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionClick, Selector: "#gone"},
	}}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 1, MaxRetries: 3})
	result, err := ctrl.Run(context.Background(), "goal", "https://shop.test/")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.TotalRetries)
}

func TestController_CancellationStopsBeforeNextStep(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/"))

	ctx, cancel := context.WithCancel(context.Background())
	policy := &scriptedPolicy{
		actions: []entity.Action{
			{Type: entity.ActionScroll, Direction: "down"},
		},
		onCall: func(call int) {
			if call == 1 {
				cancel()
			}
		},
	}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 5})
	result, err := ctrl.Run(ctx, "goal", "https://shop.test/")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Steps)
	assert.Contains(t, result.Error, "cancelled")
}

func TestController_ConnectionLossEscapes(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/"))

	policy := &scriptedPolicy{}
	policy.onCall = func(call int) {
		if call == 1 {
			srv.CloseConn()
		}
	}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 5})
	result, err := ctrl.Run(context.Background(), "goal", "https://shop.test/")
	require.Error(t, err)
	assert.ErrorIs(t, err, cdp.ErrConnectionClosed)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestController_PolicyFailureSkipsStep(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/"))

	failing := &failThenDonePolicy{}
	ctrl := New(Deps{
		Dial: func(ctx context.Context) (*cdp.Client, func(), error) {
			client, err := cdp.Dial(ctx, srv.URL())
			return client, nil, err
		},
		Extractor: browser.NewExtractor(50),
		Executor: browser.NewExecutor(browser.ExecutorConfig{
			SettleInterval: time.Millisecond,
			KeyDelay:       time.Millisecond,
			ScrollDelta:    600,
		}),
		Policy: failing,
		Logger: logger.NewNop(),
	}, Config{MaxSteps: 5})

	result, err := ctrl.Run(context.Background(), "goal", "https://shop.test/")
	require.NoError(t, err)

	// Step 1 burned on the policy error, step 2 finished the run.
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Steps)
}

type failThenDonePolicy struct {
	calls int
}

func (p *failThenDonePolicy) Decide(ctx context.Context, obs entity.Observation) (entity.Action, error) {
	p.calls++
	if p.calls == 1 {
		return entity.Action{}, assert.AnError
	}
	return entity.Action{Type: entity.ActionDone, Summary: "finished"}, nil
}

// captureTelemetry records the controller's progress callbacks.
type captureTelemetry struct {
	mu       sync.Mutex
	steps    int
	finished []entity.AutomationResult
}

func (c *captureTelemetry) StepStarted(step, maxSteps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps++
}

func (c *captureTelemetry) ActionChosen(step int, action entity.Action) {}

func (c *captureTelemetry) RetryEngaged(step, attempt int, strategy string, action entity.Action) {}

func (c *captureTelemetry) StuckDetected(step int) {}

func (c *captureTelemetry) VerdictReceived(step int, verdict entity.Verdict) {}

func (c *captureTelemetry) RunFinished(result entity.AutomationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, result)
}

func TestController_TelemetryReceivesRunResult(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/catalog"))

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionDone, Summary: "nothing to do"},
	}}
	telemetry := &captureTelemetry{}

	deps := testDeps(t, srv, policy)
	deps.Telemetry = telemetry

	ctrl := New(deps, Config{MaxSteps: 5})
	result, err := ctrl.Run(context.Background(), "goal", "https://shop.test/")
	require.NoError(t, err)

	require.Len(t, telemetry.finished, 1)
	assert.Equal(t, *result, telemetry.finished[0])
	assert.True(t, telemetry.finished[0].Success)
	assert.Equal(t, 1, telemetry.steps)
}

func TestController_DirectionalScrollGoesUp(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://feed.test/"))

	var (
		mu     sync.Mutex
		deltas []float64
	)
	srv.Handle("Input.dispatchMouseEvent", func(params json.RawMessage) (any, error) {
		var in struct {
			Type   string  `json:"type"`
			DeltaY float64 `json:"deltaY"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		if in.Type == "mouseWheel" {
			mu.Lock()
			deltas = append(deltas, in.DeltaY)
			mu.Unlock()
		}
		return map[string]any{}, nil
	})

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionType("scroll_up"), Reasoning: "back to the header"},
		{Type: entity.ActionDone, Summary: "back at the top"},
	}}

	ctrl := New(testDeps(t, srv, policy), Config{MaxSteps: 5})
	_, err := ctrl.Run(context.Background(), "goal", "https://feed.test/")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, deltas, 1)
	assert.Equal(t, float64(-600), deltas[0])
}

func TestController_UnsupportedJudgeLeavesHistoryUnverified(t *testing.T) {
	srv := cdptest.NewServer()
	defer srv.Close()
	scriptPage(srv, pageSnapshot("https://shop.test/catalog"))

	policy := &scriptedPolicy{actions: []entity.Action{
		{Type: entity.ActionScroll},
		{Type: entity.ActionDone, Summary: "browsed"},
	}}

	deps := testDeps(t, srv, policy)
	deps.Verifier = verifier.New(nil, logger.NewNop(), verifier.Config{
		MinDwell:       time.Millisecond,
		MaxWait:        10 * time.Millisecond,
		SampleInterval: time.Millisecond,
	})

	ctrl := New(deps, Config{MaxSteps: 5, VerifyEnabled: true})
	result, err := ctrl.Run(context.Background(), "goal", "https://shop.test/")
	require.NoError(t, err)
	assert.True(t, result.Success)

	// Without a judge no verdict exists, so the history entry must not carry
	// a fabricated one.
	obs := policy.observation(1)
	require.Len(t, obs.RecentHistory, 1)
	assert.Nil(t, obs.RecentHistory[0].Verified)
	assert.Zero(t, obs.RecentHistory[0].Confidence)

	// And the judge was never consulted: no frames were captured.
	assert.Zero(t, srv.CountMethod("Page.captureScreenshot"))
}
