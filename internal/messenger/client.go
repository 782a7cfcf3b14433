// Package messenger is the bridge's client for the session daemon, which owns
// the messaging protocol: identity derivation, encryption, and network
// transport. The bridge drives it over JSON-RPC 2.0 and polls it for inbound
// events.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/anthropics/session-webhook-bridge/internal/conf"
	"github.com/anthropics/session-webhook-bridge/internal/domain"
	"github.com/anthropics/session-webhook-bridge/internal/identity"
)

const (
	storeKeyIdentity  = "identity"
	storeKeySessionID = "sessionId"
	storeKeyCursor    = "pollCursor"
)

// Handler receives one dispatched event. Payload is the daemon's opaque
// event payload.
type Handler func(kind domain.EventKind, payload json.RawMessage)

// Client talks to the session daemon. Construct with New, then WaitReady,
// Restore and StartPolling, in that order. SessionID is only valid after
// Restore has succeeded.
type Client struct {
	rpcURL      string
	mnemonic    string
	displayName string
	interval    time.Duration

	httpClient *http.Client
	store      *identity.Store
	logger     hclog.Logger

	sessionID string
	nextID    atomic.Int64
	cursor    int64

	handlersMu sync.RWMutex
	handlers   map[domain.EventKind][]Handler

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client bound to the identity store. No network traffic
// happens until WaitReady.
func New(cfg *conf.Config, store *identity.Store, logger hclog.Logger) *Client {
	return &Client{
		rpcURL:      cfg.RPCURL,
		mnemonic:    cfg.Mnemonic,
		displayName: cfg.DisplayName,
		interval:    time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		store:       store,
		logger:      logger,
		handlers:    make(map[domain.EventKind][]Handler),
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int64       `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC round trip. out may be nil when the result is
// not needed.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// WaitReady blocks until the daemon answers a version call, retrying with
// exponential backoff. The HTTP listener must not start before this
// succeeds.
func (c *Client) WaitReady(ctx context.Context) error {
	op := func() error {
		var res struct {
			Version string `json:"version"`
		}
		if err := c.call(ctx, "version", nil, &res); err != nil {
			c.logger.Debug("daemon not ready yet", "error", err)
			return err
		}
		c.logger.Info("session daemon ready", "version", res.Version)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 60 * time.Second
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

type restoreParams struct {
	Mnemonic    string          `json:"mnemonic"`
	DisplayName string          `json:"displayName"`
	Identity    json.RawMessage `json:"identity,omitempty"`
}

// Restore hands the recovery phrase and display name to the daemon and
// persists the opaque identity state it returns. A previously stored
// identity blob is passed back so the daemon can skip re-derivation.
func (c *Client) Restore(ctx context.Context) error {
	cached, err := c.store.Get(storeKeyIdentity)
	if err != nil {
		return err
	}

	var res struct {
		SessionID string          `json:"sessionId"`
		Identity  json.RawMessage `json:"identity"`
	}
	params := restoreParams{
		Mnemonic:    c.mnemonic,
		DisplayName: c.displayName,
		Identity:    cached,
	}
	if err := c.call(ctx, "restoreIdentity", params, &res); err != nil {
		return fmt.Errorf("identity restore failed: %w", err)
	}
	if res.SessionID == "" {
		return fmt.Errorf("daemon returned empty session id")
	}

	if len(res.Identity) > 0 {
		if err := c.store.Put(storeKeyIdentity, res.Identity); err != nil {
			return err
		}
	}
	if err := c.store.Put(storeKeySessionID, []byte(res.SessionID)); err != nil {
		return err
	}

	c.sessionID = res.SessionID
	return nil
}

// SessionID returns the stable public identifier of the bridged identity.
func (c *Client) SessionID() string {
	return c.sessionID
}

// --- Message operations ---

type sendParams struct {
	To          string              `json:"to"`
	Text        string              `json:"text,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

// SendMessage sends a text message to a session ID.
func (c *Client) SendMessage(ctx context.Context, to, text string) (*domain.SendResult, error) {
	return c.send(ctx, sendParams{To: to, Text: text})
}

// SendAttachment sends a message carrying one attachment. Attachments ride
// on the regular send operation; they are not a separate daemon call.
func (c *Client) SendAttachment(ctx context.Context, to, text string, att domain.Attachment) (*domain.SendResult, error) {
	return c.send(ctx, sendParams{To: to, Text: text, Attachments: []domain.Attachment{att}})
}

func (c *Client) send(ctx context.Context, params sendParams) (*domain.SendResult, error) {
	var res domain.SendResult
	if err := c.call(ctx, "send", params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteMessage unsends a previously sent message identified by its
// timestamp and hash.
func (c *Client) DeleteMessage(ctx context.Context, to string, timestamp int64, hash string) error {
	return c.call(ctx, "deleteMessage", map[string]interface{}{
		"to":        to,
		"timestamp": timestamp,
		"hash":      hash,
	}, nil)
}

// --- Profile operations ---

// SetDisplayName updates the profile display name.
func (c *Client) SetDisplayName(ctx context.Context, name string) error {
	return c.call(ctx, "setDisplayName", map[string]string{"displayName": name}, nil)
}

// SetAvatar updates the profile avatar image.
func (c *Client) SetAvatar(ctx context.Context, avatar []byte) error {
	return c.call(ctx, "setAvatar", map[string][]byte{"avatar": avatar}, nil)
}

// --- Conversation notifications ---

// NotifyScreenshot tells a conversation that a screenshot was taken.
func (c *Client) NotifyScreenshot(ctx context.Context, to string) error {
	return c.call(ctx, "notifyScreenshotTaken", map[string]string{"to": to}, nil)
}

// NotifyMediaSaved tells a conversation that media from a message was saved.
func (c *Client) NotifyMediaSaved(ctx context.Context, to string, timestamp int64) error {
	return c.call(ctx, "notifyMediaSaved", map[string]interface{}{
		"to":        to,
		"timestamp": timestamp,
	}, nil)
}

// --- Reactions ---

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, r domain.Reaction) error {
	return c.call(ctx, "addReaction", r, nil)
}

// RemoveReaction removes an emoji reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, r domain.Reaction) error {
	return c.call(ctx, "removeReaction", r, nil)
}

// --- Operations the daemon exposes but the HTTP surface does not ---

// MarkAsRead marks a message as read in a conversation.
func (c *Client) MarkAsRead(ctx context.Context, to string, timestamp int64) error {
	return c.call(ctx, "markAsRead", map[string]interface{}{
		"to":        to,
		"timestamp": timestamp,
	}, nil)
}

// ShowTyping shows the typing indicator in a conversation.
func (c *Client) ShowTyping(ctx context.Context, to string) error {
	return c.call(ctx, "showTyping", map[string]string{"to": to}, nil)
}

// HideTyping hides the typing indicator in a conversation.
func (c *Client) HideTyping(ctx context.Context, to string) error {
	return c.call(ctx, "hideTyping", map[string]string{"to": to}, nil)
}

// AcceptRequest approves a pending message request.
func (c *Client) AcceptRequest(ctx context.Context, from string) error {
	return c.call(ctx, "acceptRequest", map[string]string{"from": from}, nil)
}
