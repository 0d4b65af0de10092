package cdp

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means the duplex channel could not be established or kept
	// alive. Fatal for the run; nothing retries at this layer.
	ErrConnection = errors.New("cdp: connection failed")

	// ErrConnectionClosed fails calls that were in flight when the channel closed.
	ErrConnectionClosed = errors.New("cdp: connection closed")

	// ErrProtocol wraps a command that received an error response or timed out.
	// Recoverable at the executor/retry layer.
	ErrProtocol = errors.New("cdp: protocol error")
)

// CommandError is the error response to a single command.
type CommandError struct {
	Method  string
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("cdp: %s failed (%d): %s", e.Method, e.Code, e.Message)
}

func (e *CommandError) Unwrap() error { return ErrProtocol }
