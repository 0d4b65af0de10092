package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultCallTimeout = 20 * time.Second
	readLimit          = 64 << 20
)

// EventHandler receives unsolicited protocol events (messages without an id),
// e.g. streamed screencast frames. Handlers must not block: they run on the
// connection's read loop.
type EventHandler func(method string, params json.RawMessage)

type envelope struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *responseError  `json:"error,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type targetInfo struct {
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Client owns the duplex channel to one browser page target. A monotonically
// increasing id correlates every sent command with exactly one response; a
// single read loop dispatches responses to their pending slots and routes
// everything else to the registered event handler. Concurrent Call invocations
// on one Client are safe.
type Client struct {
	conn   *websocket.Conn
	nextID atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan envelope
	closed   bool
	closeErr error

	handlerMu sync.RWMutex
	onEvent   EventHandler

	// callTimeout bounds each command round-trip; zero means the default.
	callTimeout time.Duration

	readDone chan struct{}
}

// Dial discovers a page target behind the DevTools HTTP endpoint and opens the
// websocket channel to it, enabling the Page, DOM and Runtime domains.
func Dial(ctx context.Context, devtoolsURL string) (*Client, error) {
	socketURL, err := discoverPageTarget(ctx, devtoolsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, socketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, socketURL, err)
	}
	conn.SetReadLimit(readLimit)

	c := &Client{
		conn:     conn,
		pending:  make(map[int64]chan envelope),
		readDone: make(chan struct{}),
	}
	go c.readLoop()

	for _, method := range []string{"Page.enable", "DOM.enable", "Runtime.enable"} {
		if err := c.Call(ctx, method, nil, nil); err != nil {
			c.Close()
			return nil, fmt.Errorf("%w: enable domains: %v", ErrConnection, err)
		}
	}

	return c, nil
}

func discoverPageTarget(ctx context.Context, devtoolsURL string) (string, error) {
	base := strings.TrimSpace(devtoolsURL)
	if base == "" {
		base = "http://127.0.0.1:9222"
	}
	base = strings.TrimSuffix(base, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/json/list", nil)
	if err != nil {
		return "", fmt.Errorf("%w: build target request: %v", ErrConnection, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: query target endpoint: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: target endpoint returned status %d", ErrConnection, resp.StatusCode)
	}

	var targets []targetInfo
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", fmt.Errorf("%w: decode target list: %v", ErrConnection, err)
	}

	for _, t := range targets {
		if t.Type == "page" && strings.TrimSpace(t.WebSocketDebuggerURL) != "" {
			return t.WebSocketDebuggerURL, nil
		}
	}
	return "", fmt.Errorf("%w: no page target available", ErrConnection)
}

// OnEvent registers the handler for unsolicited event messages. Passing nil
// removes the handler; unhandled events are dropped after that.
func (c *Client) OnEvent(handler EventHandler) {
	c.handlerMu.Lock()
	c.onEvent = handler
	c.handlerMu.Unlock()
}

// Call sends a command and blocks until the response with the matching id
// arrives, the context is cancelled, or the per-call timeout elapses. The
// timeout applies regardless of any caller deadline, so one dropped response
// cannot stall a long-lived run. A non-nil out receives the decoded result
// payload.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	slot := make(chan envelope, 1)

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return err
	}
	c.pending[id] = slot
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload := map[string]any{"id": id, "method": method}
	if params != nil {
		payload["params"] = params
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrProtocol, method, err)
	}

	timeout := c.callTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	// The earlier of the caller's deadline and the per-call timeout governs.
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.conn.Write(callCtx, websocket.MessageText, raw); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrProtocol, method, err)
	}

	select {
	case env, ok := <-slot:
		if !ok {
			return ErrConnectionClosed
		}
		if env.Error != nil {
			return &CommandError{Method: method, Code: env.Error.Code, Message: env.Error.Message}
		}
		if out != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("%w: decode %s response: %v", ErrProtocol, method, err)
			}
		}
		return nil
	case <-callCtx.Done():
		return fmt.Errorf("%w: %s: %v", ErrProtocol, method, callCtx.Err())
	}
}

func (c *Client) readLoop() {
	defer close(c.readDone)
	for {
		_, message, err := c.conn.Read(context.Background())
		if err != nil {
			c.failPending(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			continue
		}

		if env.ID != 0 {
			// Deliver under the lock so Close cannot tear down the slot mid-send.
			// Slots are buffered for their single response; this never blocks.
			c.mu.Lock()
			if slot, ok := c.pending[env.ID]; ok {
				slot <- env
				delete(c.pending, env.ID)
			}
			c.mu.Unlock()
			continue
		}

		c.handlerMu.RLock()
		handler := c.onEvent
		c.handlerMu.RUnlock()
		if handler != nil && env.Method != "" {
			handler(env.Method, env.Params)
		}
	}
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	for id, slot := range c.pending {
		close(slot)
		delete(c.pending, id)
	}
}

// Close releases the channel. In-flight calls fail with ErrConnectionClosed.
func (c *Client) Close() error {
	c.failPending(ErrConnectionClosed)
	err := c.conn.Close(websocket.StatusNormalClosure, "closing")
	<-c.readDone
	return err
}
