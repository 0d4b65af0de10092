package browser

import (
	"context"
	"fmt"
	"time"

	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/cdp"
)

// ExecutorConfig holds the timing knobs for input synthesis.
type ExecutorConfig struct {
	SettleInterval time.Duration
	KeyDelay       time.Duration
	ScrollDelta    float64
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		SettleInterval: 2 * time.Second,
		KeyDelay:       30 * time.Millisecond,
		ScrollDelta:    600,
	}
}

// Executor translates one Action into protocol commands. Protocol-level
// failures degrade to a reported ActionOutcome; nothing here is fatal for
// the run.
type Executor struct {
	cfg ExecutorConfig
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = DefaultExecutorConfig().SettleInterval
	}
	if cfg.KeyDelay <= 0 {
		cfg.KeyDelay = DefaultExecutorConfig().KeyDelay
	}
	if cfg.ScrollDelta <= 0 {
		cfg.ScrollDelta = DefaultExecutorConfig().ScrollDelta
	}
	return &Executor{cfg: cfg}
}

// Execute runs the action against the connection and reports the outcome.
func (x *Executor) Execute(ctx context.Context, conn *cdp.Client, action entity.Action) entity.ActionOutcome {
	var err error
	switch action.Type {
	case entity.ActionNavigate:
		err = x.navigate(ctx, conn, action.URL)
	case entity.ActionTypeText:
		err = x.typeText(ctx, conn, action.Selector, action.Value)
	case entity.ActionSubmit:
		err = x.submit(ctx, conn)
	case entity.ActionClick:
		err = x.click(ctx, conn, action.Selector)
	case entity.ActionScroll:
		err = x.scroll(ctx, conn, action.Direction)
	case entity.ActionWait:
		err = sleep(ctx, x.cfg.SettleInterval)
	case entity.ActionDone:
		// Terminal: the controller stops the loop, no command is issued.
	default:
		return entity.ActionOutcome{Success: false, Error: fmt.Sprintf("unknown action %q", action.Type)}
	}

	if err != nil {
		return entity.ActionOutcome{Success: false, Error: err.Error()}
	}
	return entity.ActionOutcome{Success: true}
}

func (x *Executor) navigate(ctx context.Context, conn *cdp.Client, url string) error {
	if url == "" {
		return fmt.Errorf("navigate: url is required")
	}
	if err := conn.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return sleep(ctx, x.cfg.SettleInterval)
}

func (x *Executor) typeText(ctx context.Context, conn *cdp.Client, selector, text string) error {
	if selector == "" {
		return fmt.Errorf("type: selector is required")
	}
	value, err := conn.Evaluate(ctx, invokeScript(focusClearScript, selector))
	if err != nil {
		return fmt.Errorf("type: focus: %w", err)
	}
	if value.Str() != "ok" {
		return fmt.Errorf("type: element not found: %s", selector)
	}

	// One char event per rune with a small delay to emulate real input.
	for _, r := range text {
		if err := conn.DispatchKey(ctx, cdp.KeyEvent{
			Type:           "char",
			Text:           string(r),
			UnmodifiedText: string(r),
		}); err != nil {
			return fmt.Errorf("type: dispatch key: %w", err)
		}
		if err := sleep(ctx, x.cfg.KeyDelay); err != nil {
			return err
		}
	}
	return nil
}

func (x *Executor) submit(ctx context.Context, conn *cdp.Client) error {
	for _, eventType := range []string{"keyDown", "char", "keyUp"} {
		ev := cdp.KeyEvent{
			Type:                  eventType,
			Key:                   "Enter",
			Code:                  "Enter",
			WindowsVirtualKeyCode: 13,
			NativeVirtualKeyCode:  13,
		}
		if eventType == "char" {
			ev.Text = "\r"
			ev.UnmodifiedText = "\r"
		}
		if err := conn.DispatchKey(ctx, ev); err != nil {
			return fmt.Errorf("submit: dispatch enter %s: %w", eventType, err)
		}
	}
	return sleep(ctx, x.cfg.SettleInterval)
}

func (x *Executor) click(ctx context.Context, conn *cdp.Client, selector string) error {
	if selector == "" {
		return fmt.Errorf("click: selector is required")
	}
	value, err := conn.Evaluate(ctx, invokeScript(centerScript, selector))
	if err != nil {
		return fmt.Errorf("click: resolve center: %w", err)
	}

	if value.Val() == nil {
		// Center not resolvable: fall back to native activation.
		fallback, err := conn.Evaluate(ctx, invokeScript(nativeClickScript, selector))
		if err != nil {
			return fmt.Errorf("click: native fallback: %w", err)
		}
		if fallback.Str() != "ok" {
			return fmt.Errorf("click: element not found: %s", selector)
		}
		return nil
	}

	cx := value.Get("x").Num()
	cy := value.Get("y").Num()
	for _, eventType := range []string{"mousePressed", "mouseReleased"} {
		if err := conn.DispatchMouse(ctx, cdp.MouseEvent{
			Type:       eventType,
			X:          cx,
			Y:          cy,
			Button:     "left",
			ClickCount: 1,
		}); err != nil {
			return fmt.Errorf("click: dispatch %s: %w", eventType, err)
		}
	}
	return nil
}

func (x *Executor) scroll(ctx context.Context, conn *cdp.Client, direction string) error {
	delta := x.cfg.ScrollDelta
	if direction == "up" {
		delta = -delta
	}
	if err := conn.DispatchMouse(ctx, cdp.MouseEvent{
		Type:   "mouseWheel",
		X:      100,
		Y:      100,
		DeltaY: delta,
	}); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
