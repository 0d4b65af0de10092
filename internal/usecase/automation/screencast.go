package automation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/infrastructure/cdp"
)

// frameRelay is the passive consumer task for streamed screencast frames. It
// never touches automation state: the event handler only enqueues, and a
// single goroutine writes to the sink and acknowledges frames. Acks must not
// run on the event handler, which executes on the connection's read loop.
type frameRelay struct {
	conn    *cdp.Client
	sink    output.VideoSinkPort
	logger  output.LoggerPort
	frames  chan screencastFrame
	done    chan struct{}
	started bool

	// mu orders handler sends against stop's close of frames: a handler
	// invocation still in flight on the read loop must never send after the
	// channel is closed.
	mu     sync.Mutex
	closed bool
}

type screencastFrame struct {
	data      []byte
	sessionID int
}

func newFrameRelay(conn *cdp.Client, sink output.VideoSinkPort, logger output.LoggerPort) *frameRelay {
	return &frameRelay{
		conn:   conn,
		sink:   sink,
		logger: logger,
		frames: make(chan screencastFrame, 16),
		done:   make(chan struct{}),
	}
}

func (r *frameRelay) start(ctx context.Context, path string, fps, width, height int) bool {
	if r.sink == nil || path == "" {
		return false
	}
	if !r.sink.Start(path, fps, width, height) {
		r.logger.Warn("Video sink unavailable, recording skipped")
		return false
	}

	r.conn.OnEvent(func(method string, params json.RawMessage) {
		if method != "Page.screencastFrame" {
			return
		}
		var payload struct {
			Data      string `json:"data"`
			SessionID int    `json:"sessionId"`
		}
		if err := json.Unmarshal(params, &payload); err != nil {
			return
		}
		data, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			return
		}
		r.mu.Lock()
		if !r.closed {
			select {
			case r.frames <- screencastFrame{data: data, sessionID: payload.SessionID}:
			default:
				// Encoder is behind; drop the frame rather than block the read loop.
			}
		}
		r.mu.Unlock()
	})

	if err := r.conn.StartScreencast(ctx, "jpeg", 60, width, height); err != nil {
		r.logger.Warn("Screencast start failed, recording skipped", "error", err)
		r.conn.OnEvent(nil)
		return false
	}

	go r.consume()
	r.started = true
	return true
}

func (r *frameRelay) consume() {
	for frame := range r.frames {
		if !r.sink.WriteFrame(frame.data) {
			continue
		}
		ackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.conn.AckScreencastFrame(ackCtx, frame.sessionID)
		cancel()
	}
	close(r.done)
}

// stop ends streaming and finalizes the sink, returning the produced path.
func (r *frameRelay) stop(ctx context.Context) (string, bool) {
	if !r.started {
		return "", false
	}
	r.started = false
	_ = r.conn.StopScreencast(ctx)
	r.conn.OnEvent(nil)

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	close(r.frames)
	<-r.done
	return r.sink.Finish()
}
