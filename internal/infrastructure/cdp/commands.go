package cdp

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ysmood/gson"
)

// Navigate issues Page.navigate. Settling after navigation is the caller's concern.
func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.Call(ctx, "Page.navigate", map[string]any{"url": url}, nil)
}

// Evaluate runs an expression in the page and returns its by-value result.
// gson absorbs the loosely typed payloads Runtime.evaluate produces.
func (c *Client) Evaluate(ctx context.Context, expression string) (gson.JSON, error) {
	var response struct {
		Result struct {
			Value any `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	err := c.Call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	}, &response)
	if err != nil {
		return gson.New(nil), err
	}
	if response.ExceptionDetails != nil {
		return gson.New(nil), fmt.Errorf("%w: evaluate: %s", ErrProtocol, response.ExceptionDetails.Text)
	}
	return gson.New(response.Result.Value), nil
}

// CaptureScreenshot returns the current frame as encoded image bytes.
func (c *Client) CaptureScreenshot(ctx context.Context, format string) ([]byte, error) {
	if format == "" {
		format = "png"
	}
	var response struct {
		Data string `json:"data"`
	}
	if err := c.Call(ctx, "Page.captureScreenshot", map[string]any{"format": format}, &response); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(response.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode screenshot: %v", ErrProtocol, err)
	}
	return data, nil
}

// KeyEvent is one Input.dispatchKeyEvent payload.
type KeyEvent struct {
	Type                  string `json:"type"`
	Key                   string `json:"key,omitempty"`
	Code                  string `json:"code,omitempty"`
	Text                  string `json:"text,omitempty"`
	UnmodifiedText        string `json:"unmodifiedText,omitempty"`
	WindowsVirtualKeyCode int    `json:"windowsVirtualKeyCode,omitempty"`
	NativeVirtualKeyCode  int    `json:"nativeVirtualKeyCode,omitempty"`
}

// DispatchKey synthesizes one key event.
func (c *Client) DispatchKey(ctx context.Context, ev KeyEvent) error {
	return c.Call(ctx, "Input.dispatchKeyEvent", ev, nil)
}

// MouseEvent is one Input.dispatchMouseEvent payload.
type MouseEvent struct {
	Type       string  `json:"type"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Button     string  `json:"button,omitempty"`
	ClickCount int     `json:"clickCount,omitempty"`
	DeltaX     float64 `json:"deltaX,omitempty"`
	DeltaY     float64 `json:"deltaY,omitempty"`
}

// DispatchMouse synthesizes one mouse event.
func (c *Client) DispatchMouse(ctx context.Context, ev MouseEvent) error {
	return c.Call(ctx, "Input.dispatchMouseEvent", ev, nil)
}

// StartScreencast begins frame streaming; frames arrive as
// Page.screencastFrame events on the registered event handler.
func (c *Client) StartScreencast(ctx context.Context, format string, quality, maxWidth, maxHeight int) error {
	return c.Call(ctx, "Page.startScreencast", map[string]any{
		"format":    format,
		"quality":   quality,
		"maxWidth":  maxWidth,
		"maxHeight": maxHeight,
	}, nil)
}

// StopScreencast ends frame streaming.
func (c *Client) StopScreencast(ctx context.Context) error {
	return c.Call(ctx, "Page.stopScreencast", nil, nil)
}

// AckScreencastFrame acknowledges a streamed frame so the browser sends the next.
func (c *Client) AckScreencastFrame(ctx context.Context, sessionID int) error {
	return c.Call(ctx, "Page.screencastFrameAck", map[string]any{"sessionId": sessionID}, nil)
}
