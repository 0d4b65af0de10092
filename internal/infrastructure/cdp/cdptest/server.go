// Package cdptest provides an in-process remote-debugging endpoint for
// exercising the protocol client and everything built on it without a
// browser. The server answers /json/list with a single page target and
// serves commands over a real websocket, so tests cover the same code
// paths production traffic takes.
package cdptest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/coder/websocket"
)

// Handler produces the result payload for one command. Returning a non-nil
// error yields a protocol error response instead of a result.
type Handler func(params json.RawMessage) (any, error)

// Server is a scriptable debugging endpoint. Methods without a registered
// handler succeed with an empty result, which matches how enable-style
// commands behave against a real browser.
type Server struct {
	httpSrv *httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	silent   map[string]bool
	methods  []string

	connMu sync.Mutex
	conn   *websocket.Conn

	writeMu sync.Mutex
}

// NewServer starts the endpoint. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		handlers: make(map[string]Handler),
		silent:   make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", s.serveTargets)
	mux.HandleFunc("/ws", s.serveSocket)
	s.httpSrv = httptest.NewServer(mux)
	return s
}

// URL is the HTTP base tests hand to Dial for target discovery.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// Close tears the endpoint down, dropping any open socket.
func (s *Server) Close() {
	s.CloseConn()
	s.httpSrv.Close()
}

// CloseConn abruptly drops the active websocket, leaving the HTTP endpoint
// up. In-flight calls on the client side fail with a closed-connection error.
func (s *Server) CloseConn() {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusGoingAway, "server closing")
	}
}

// Handle registers the result producer for a method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// HandleResult registers a fixed result payload for a method.
func (s *Server) HandleResult(method string, result any) {
	s.Handle(method, func(json.RawMessage) (any, error) { return result, nil })
}

// Silence makes the server swallow a method without ever responding, for
// exercising timeout and teardown paths.
func (s *Server) Silence(method string) {
	s.mu.Lock()
	s.silent[method] = true
	s.mu.Unlock()
}

// Methods returns every command method received so far, in arrival order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.methods))
	copy(out, s.methods)
	return out
}

// CountMethod returns how many commands with the given method arrived.
func (s *Server) CountMethod(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.methods {
		if m == method {
			n++
		}
	}
	return n
}

// Emit pushes an unsolicited event to the connected client.
func (s *Server) Emit(method string, params any) error {
	raw, err := json.Marshal(map[string]any{"method": method, "params": params})
	if err != nil {
		return err
	}
	return s.write(raw)
}

func (s *Server) serveTargets(w http.ResponseWriter, r *http.Request) {
	wsURL := "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/ws"
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode([]map[string]string{{
		"type":                 "page",
		"url":                  "about:blank",
		"webSocketDebuggerUrl": wsURL,
	}})
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(-1)

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	ctx := context.Background()
	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var cmd struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		s.mu.Lock()
		s.methods = append(s.methods, cmd.Method)
		handler := s.handlers[cmd.Method]
		muted := s.silent[cmd.Method]
		s.mu.Unlock()

		if muted {
			continue
		}

		// Handlers may sleep to reorder responses; each command gets its
		// own goroutine so a slow one never blocks the next read.
		go s.respond(cmd.ID, cmd.Params, handler)
	}
}

func (s *Server) respond(id int64, params json.RawMessage, handler Handler) {
	var (
		result any = map[string]any{}
		err    error
	)
	if handler != nil {
		result, err = handler(params)
	}

	reply := map[string]any{"id": id}
	if err != nil {
		reply["error"] = map[string]any{"code": -32000, "message": err.Error()}
	} else {
		reply["result"] = result
	}

	raw, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		return
	}
	s.write(raw)
}

func (s *Server) write(raw []byte) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.Write(context.Background(), websocket.MessageText, raw)
}

// EvaluateResult wraps a by-value evaluation payload the way the browser
// reports it, for use as a Runtime.evaluate handler result.
func EvaluateResult(value any) map[string]any {
	return map[string]any{"result": map[string]any{"value": value}}
}
