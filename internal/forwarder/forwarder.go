// Package forwarder turns session events into outbound webhook calls.
//
// Delivery is fire-and-forget, at most once: a non-2xx response or transport
// failure is logged and dropped. There is deliberately no retry and no
// idempotency key — retrying would change observable behavior for webhook
// consumers (duplicate deliveries).
package forwarder

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/anthropics/session-webhook-bridge/internal/domain"
)

const userAgent = "session-webhook-bridge/1.0"

// Forwarder posts events to a single configured webhook URL. It is
// event-name-agnostic: the set of forwarded kinds is decided by whoever
// subscribes it to the messenger.
type Forwarder struct {
	url    string
	client *http.Client
	logger hclog.Logger
}

// New creates a forwarder for the given webhook URL. The HTTP client keeps
// its default (no) timeout; slow consumers only delay their own delivery.
func New(url string, logger hclog.Logger) *Forwarder {
	return &Forwarder{
		url:    url,
		client: &http.Client{},
		logger: logger,
	}
}

type eventBody struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

// Forward delivers one event. It never returns an error: failures are logged
// and must not reach the event source.
func (f *Forwarder) Forward(kind domain.EventKind, payload interface{}) {
	body, err := json.Marshal(eventBody{
		Event:     string(kind),
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		f.logger.Error("failed to encode event", "event", kind, "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		f.logger.Error("failed to build webhook request", "event", kind, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("webhook delivery failed", "event", kind, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("webhook endpoint rejected event", "event", kind, "status", resp.StatusCode)
		return
	}

	f.logger.Debug("event forwarded", "event", kind)
}
