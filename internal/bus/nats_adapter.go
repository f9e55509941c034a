package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Config configures the NATS-backed Adapter.
type Config struct {
	URL                  string
	MaxReconnectAttempts int
	ReconnectWait        time.Duration
	ConnectTimeout       time.Duration
}

// DefaultConfig targets a local NATS server with bounded reconnects.
func DefaultConfig() Config {
	return Config{
		URL:                  nats.DefaultURL,
		MaxReconnectAttempts: 10,
		ReconnectWait:        2 * time.Second,
		ConnectTimeout:       5 * time.Second,
	}
}

// natsAdapter implements Adapter over github.com/nats-io/nats.go.
type natsAdapter struct {
	cfg  Config
	log  *slog.Logger
	conn *nats.Conn
}

// NewNATSAdapter constructs an Adapter that has not yet connected; call
// Connect before use.
func NewNATSAdapter(cfg Config, log *slog.Logger) Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &natsAdapter{cfg: cfg, log: log}
}

func (a *natsAdapter) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.MaxReconnects(a.cfg.MaxReconnectAttempts),
		nats.ReconnectWait(a.cfg.ReconnectWait),
		nats.Timeout(a.cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				a.log.Warn("bus_disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			a.log.Info("bus_reconnected", "url", c.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			a.log.Error("bus_async_error", "subject", subject, "error", err)
		}),
	}
	conn, err := nats.Connect(a.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("bus: connect: %w", err)
	}
	a.conn = conn
	a.log.Info("bus_connected", "url", a.cfg.URL)
	return nil
}

func (a *natsAdapter) Disconnect() error {
	if a.conn != nil {
		a.conn.Close()
	}
	return nil
}

func (a *natsAdapter) Publish(ctx context.Context, subject string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("bus: marshal publish payload: %w", err)
	}
	if err := a.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("bus: publish %s: %w", subject, err)
	}
	return nil
}

func (a *natsAdapter) Request(ctx context.Context, subject string, value any, timeout time.Duration, out any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("bus: marshal request payload: %w", err)
	}
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	msg, err := a.conn.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return &ErrTimeout{Subject: subject}
		}
		return fmt.Errorf("bus: request %s: %w", subject, err)
	}

	var errPayload errorPayload
	if json.Unmarshal(msg.Data, &errPayload) == nil && errPayload.Error != "" {
		return &ErrRemote{Subject: subject, Message: errPayload.Error}
	}

	if out != nil {
		if err := json.Unmarshal(msg.Data, out); err != nil {
			return fmt.Errorf("bus: decode reply from %s: %w", subject, err)
		}
	}
	return nil
}

func (a *natsAdapter) Subscribe(ctx context.Context, subject, queue string, handler Handler) (func() error, error) {
	cb := func(msg *nats.Msg) {
		if err := handler(ctx, Message{Subject: msg.Subject, Data: msg.Data}); err != nil {
			a.log.Error("bus_handler_error", "subject", msg.Subject, "error", err)
		}
	}

	var sub *nats.Subscription
	var err error
	if queue != "" {
		sub, err = a.conn.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = a.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

func (a *natsAdapter) ReplyHandler(ctx context.Context, subject, queue string, fn ReplyFunc) (func() error, error) {
	cb := func(msg *nats.Msg) {
		reply, err := a.safeCall(ctx, fn, msg.Data)
		if err != nil {
			reply = errorPayload{Error: err.Error()}
		}
		data, merr := json.Marshal(reply)
		if merr != nil {
			data, _ = json.Marshal(errorPayload{Error: merr.Error()})
		}
		if rerr := msg.Respond(data); rerr != nil {
			a.log.Error("bus_reply_failed", "subject", msg.Subject, "error", rerr)
		}
	}

	var sub *nats.Subscription
	var err error
	if queue != "" {
		sub, err = a.conn.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = a.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("bus: reply_handler %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

// safeCall recovers from a panicking handler, converting it to an error
// reply instead of crashing the bus's delivery goroutine.
func (a *natsAdapter) safeCall(ctx context.Context, fn ReplyFunc, data json.RawMessage) (reply any, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("bus_reply_handler_panic", "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return fn(ctx, data)
}

var _ Adapter = (*natsAdapter)(nil)
