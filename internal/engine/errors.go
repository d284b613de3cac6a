package engine

import "errors"

var (
	// ErrNoPeerCollection means state binding found no object-valued key
	// to attach to; all sync operations on the binding no-op.
	ErrNoPeerCollection = errors.New("engine: no peer collection in state")

	// ErrConnectTimeout means the relay did not acknowledge a join within
	// the configured deadline. Joins are not retried automatically.
	ErrConnectTimeout = errors.New("engine: connect timeout")

	// ErrReconnectExhausted means the attempt ceiling was reached; the
	// session is terminally failed until a fresh Join.
	ErrReconnectExhausted = errors.New("engine: reconnect attempts exhausted")

	// ErrSessionClosed means the operation ran against a session that was
	// left or never joined.
	ErrSessionClosed = errors.New("engine: session closed")
)
