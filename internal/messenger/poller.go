package messenger

import (
	"context"
	"strconv"
	"time"

	"github.com/anthropics/session-webhook-bridge/internal/domain"
)

// Subscribe registers a handler for one event kind. Must be called before
// StartPolling; there is no unsubscribe.
func (c *Client) Subscribe(kind domain.EventKind, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], h)
}

// StartPolling begins fetching inbound events from the daemon on a fixed
// ticker. The poll cursor is restored from the identity store so a restart
// resumes where the previous process stopped.
func (c *Client) StartPolling(ctx context.Context) {
	if raw, err := c.store.Get(storeKeyCursor); err == nil && raw != nil {
		if v, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			c.cursor = v
		}
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.pollLoop(ctx)
}

// Stop halts the poll loop and waits for the in-flight tick to finish.
func (c *Client) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Client) pollLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("event polling started", "interval", c.interval.String())
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("event polling stopped")
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

type receiveParams struct {
	Cursor int64 `json:"cursor"`
}

// pollOnce fetches and dispatches pending envelopes. Errors are logged and
// swallowed: a failed poll never kills the loop, the next tick tries again.
func (c *Client) pollOnce(ctx context.Context) {
	var res struct {
		Envelopes []domain.Envelope `json:"envelopes"`
		Cursor    int64             `json:"cursor"`
	}
	if err := c.call(ctx, "receive", receiveParams{Cursor: c.cursor}, &res); err != nil {
		c.logger.Warn("receive poll failed", "error", err)
		return
	}

	for _, env := range res.Envelopes {
		c.dispatch(env)
	}

	if res.Cursor > c.cursor {
		c.cursor = res.Cursor
		if err := c.store.Put(storeKeyCursor, []byte(strconv.FormatInt(c.cursor, 10))); err != nil {
			c.logger.Warn("failed to persist poll cursor", "error", err)
		}
	}
}

// dispatch hands one envelope to every handler registered for its kind. A
// panicking handler must not take down the poll loop.
func (c *Client) dispatch(env domain.Envelope) {
	c.handlersMu.RLock()
	handlers := c.handlers[env.Kind]
	c.handlersMu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("event with no subscribers", "event", env.Kind)
		return
	}

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("event handler panic", "event", env.Kind, "panic", r)
				}
			}()
			h(env.Kind, env.Payload)
		}()
	}
}
