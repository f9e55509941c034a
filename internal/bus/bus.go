// Package bus is the engine's transport boundary: connect/disconnect,
// publish, request/reply, subscribe, and server-side reply
// registration. JSON is the on-the-wire payload format; errors from a
// replier are conveyed as {"error": "..."} payloads, never
// transport-level exceptions.
package bus

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one received publish/subscribe payload. Data holds the
// raw JSON bytes, left undecoded for the caller to unmarshal.
type Message struct {
	Subject string
	Data    json.RawMessage
}

// Handler processes one subscribed message. Returning an error only
// logs; it never propagates to the publisher (there is no reply path
// on a plain subscription).
type Handler func(ctx context.Context, msg Message) error

// ReplyFunc answers a request/reply call. A non-nil error is converted
// to a {"error": "<message>"} JSON reply by the adapter, never raised
// to the requester as a transport fault.
type ReplyFunc func(ctx context.Context, request json.RawMessage) (any, error)

// Adapter is the message bus contract. Implementations
// must be safe for concurrent use by multiple goroutines (one per
// in-flight session).
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect() error

	// Publish is fire-and-forget; value is JSON-marshaled.
	Publish(ctx context.Context, subject string, value any) error

	// Request sends value and waits up to timeout for one reply,
	// unmarshaled into out. A timeout surfaces as ErrTimeout.
	Request(ctx context.Context, subject string, value any, timeout time.Duration, out any) error

	// Subscribe registers handler for subject (and optional queue group
	// for load-balanced delivery across instances). Returns an
	// unsubscribe function.
	Subscribe(ctx context.Context, subject, queue string, handler Handler) (unsubscribe func() error, err error)

	// ReplyHandler registers a server-side request/reply endpoint on
	// subject; fn's return value is JSON-marshaled as the reply, and any
	// error is converted to {"error": "..."} rather than propagated.
	ReplyHandler(ctx context.Context, subject, queue string, fn ReplyFunc) (unsubscribe func() error, err error)
}

// ErrTimeout is returned by Request when no reply arrives within the
// given timeout.
type ErrTimeout struct{ Subject string }

func (e *ErrTimeout) Error() string { return "bus: request to " + e.Subject + " timed out" }

// ErrRemote is returned by Request when the replier answered with an
// {"error": "..."} payload instead of a result.
type ErrRemote struct {
	Subject string
	Message string
}

func (e *ErrRemote) Error() string { return "bus: remote error on " + e.Subject + ": " + e.Message }

// errorPayload is the wire shape used by ReplyHandler to convey a
// replier-side failure without a transport exception.
type errorPayload struct {
	Error string `json:"error"`
}
