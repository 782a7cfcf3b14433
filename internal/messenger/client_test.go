package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/session-webhook-bridge/internal/conf"
	"github.com/anthropics/session-webhook-bridge/internal/domain"
	"github.com/anthropics/session-webhook-bridge/internal/identity"
)

// fakeDaemon is an httptest JSON-RPC endpoint. Handlers are registered per
// method; params of the last call per method are recorded.
type fakeDaemon struct {
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]func(params json.RawMessage) (interface{}, *rpcError)
	calls    map[string][]json.RawMessage
	server   *httptest.Server
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	d := &fakeDaemon{
		t:        t,
		handlers: make(map[string]func(json.RawMessage) (interface{}, *rpcError)),
		calls:    make(map[string][]json.RawMessage),
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.server.Close)
	return d
}

func (d *fakeDaemon) on(method string, h func(json.RawMessage) (interface{}, *rpcError)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

func (d *fakeDaemon) callsFor(method string) []json.RawMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[method]
}

func (d *fakeDaemon) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
		ID     int64           `json:"id"`
	}
	require.NoError(d.t, json.NewDecoder(r.Body).Decode(&req))

	d.mu.Lock()
	d.calls[req.Method] = append(d.calls[req.Method], req.Params)
	h := d.handlers[req.Method]
	d.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if h == nil {
		resp["error"] = &rpcError{Code: -32601, Message: "method not found"}
	} else if result, rpcErr := h(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, daemon *fakeDaemon) (*Client, *identity.Store) {
	t.Helper()
	store, err := identity.Open(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &conf.Config{
		RPCURL:         daemon.server.URL,
		Mnemonic:       "puffin dialect total",
		DisplayName:    "Bridge Bot",
		PollIntervalMS: 10,
	}
	return New(cfg, store, hclog.NewNullLogger()), store
}

func TestWaitReady(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.on("version", func(json.RawMessage) (interface{}, *rpcError) {
		return map[string]string{"version": "1.4.2"}, nil
	})
	client, _ := newTestClient(t, daemon)

	require.NoError(t, client.WaitReady(context.Background()))
}

func TestRestoreStoresIdentity(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.on("restoreIdentity", func(json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{
			"sessionId": "05abc",
			"identity":  map[string]string{"seed": "opaque"},
		}, nil
	})
	client, store := newTestClient(t, daemon)

	require.NoError(t, client.Restore(context.Background()))
	assert.Equal(t, "05abc", client.SessionID())

	// Daemon received the mnemonic and display name
	calls := daemon.callsFor("restoreIdentity")
	require.Len(t, calls, 1)
	var params restoreParams
	require.NoError(t, json.Unmarshal(calls[0], &params))
	assert.Equal(t, "puffin dialect total", params.Mnemonic)
	assert.Equal(t, "Bridge Bot", params.DisplayName)

	// Identity state persisted
	sessionID, err := store.Get(storeKeySessionID)
	require.NoError(t, err)
	assert.Equal(t, []byte("05abc"), sessionID)

	blob, err := store.Get(storeKeyIdentity)
	require.NoError(t, err)
	assert.JSONEq(t, `{"seed":"opaque"}`, string(blob))
}

func TestRestorePassesCachedIdentity(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.on("restoreIdentity", func(json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{"sessionId": "05abc"}, nil
	})
	client, store := newTestClient(t, daemon)
	require.NoError(t, store.Put(storeKeyIdentity, []byte(`{"seed":"cached"}`)))

	require.NoError(t, client.Restore(context.Background()))

	var params restoreParams
	require.NoError(t, json.Unmarshal(daemon.callsFor("restoreIdentity")[0], &params))
	assert.JSONEq(t, `{"seed":"cached"}`, string(params.Identity))
}

func TestSendMessageMapsResult(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.on("send", func(json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{
			"messageHash":     "h1",
			"syncMessageHash": "h2",
			"timestamp":       1700000000000,
		}, nil
	})
	client, _ := newTestClient(t, daemon)

	res, err := client.SendMessage(context.Background(), "05abc", "hi")
	require.NoError(t, err)
	assert.Equal(t, "h1", res.MessageHash)
	assert.Equal(t, "h2", res.SyncMessageHash)
	assert.Equal(t, int64(1700000000000), res.Timestamp)

	var params sendParams
	require.NoError(t, json.Unmarshal(daemon.callsFor("send")[0], &params))
	assert.Equal(t, "05abc", params.To)
	assert.Equal(t, "hi", params.Text)
	assert.Empty(t, params.Attachments)
}

func TestSendAttachmentRidesOnSend(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.on("send", func(json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{"messageHash": "h1", "syncMessageHash": "h2", "timestamp": 1}, nil
	})
	client, _ := newTestClient(t, daemon)

	att := domain.Attachment{Filename: "hello.txt", MimeType: "text/plain", Data: []byte("Hello, World!")}
	_, err := client.SendAttachment(context.Background(), "05abc", "", att)
	require.NoError(t, err)

	var params sendParams
	require.NoError(t, json.Unmarshal(daemon.callsFor("send")[0], &params))
	require.Len(t, params.Attachments, 1)
	assert.Equal(t, "hello.txt", params.Attachments[0].Filename)
	assert.Equal(t, []byte("Hello, World!"), params.Attachments[0].Data)
}

func TestDaemonErrorSurfaces(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.on("send", func(json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "recipient unreachable"}
	})
	client, _ := newTestClient(t, daemon)

	_, err := client.SendMessage(context.Background(), "05abc", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient unreachable")
}

func TestPollOnceDispatchesAndAdvancesCursor(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.on("receive", func(json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{
			"envelopes": []map[string]interface{}{
				{"event": "reactionAdded", "payload": map[string]int{"id": 1}, "receivedAt": 1700000000000},
			},
			"cursor": 42,
		}, nil
	})
	client, store := newTestClient(t, daemon)

	var gotKind domain.EventKind
	var gotPayload json.RawMessage
	calls := 0
	client.Subscribe(domain.EventReactionAdded, func(kind domain.EventKind, payload json.RawMessage) {
		calls++
		gotKind = kind
		gotPayload = payload
	})

	client.pollOnce(context.Background())

	assert.Equal(t, 1, calls)
	assert.Equal(t, domain.EventReactionAdded, gotKind)
	assert.JSONEq(t, `{"id":1}`, string(gotPayload))

	cursor, err := store.Get(storeKeyCursor)
	require.NoError(t, err)
	assert.Equal(t, []byte("42"), cursor)
}

func TestPollOnceSendsStoredCursor(t *testing.T) {
	daemon := newFakeDaemon(t)
	daemon.on("receive", func(json.RawMessage) (interface{}, *rpcError) {
		return map[string]interface{}{"envelopes": []interface{}{}, "cursor": 42}, nil
	})
	client, store := newTestClient(t, daemon)
	require.NoError(t, store.Put(storeKeyCursor, []byte("42")))

	ctx, cancel := context.WithCancel(context.Background())
	client.StartPolling(ctx)
	cancel()
	client.Stop()

	client.pollOnce(context.Background())

	var params receiveParams
	require.NoError(t, json.Unmarshal(daemon.callsFor("receive")[len(daemon.callsFor("receive"))-1], &params))
	assert.Equal(t, int64(42), params.Cursor)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	daemon := newFakeDaemon(t)
	client, _ := newTestClient(t, daemon)

	secondCalled := false
	client.Subscribe(domain.EventMessage, func(domain.EventKind, json.RawMessage) {
		panic("boom")
	})
	client.Subscribe(domain.EventMessage, func(domain.EventKind, json.RawMessage) {
		secondCalled = true
	})

	assert.NotPanics(t, func() {
		client.dispatch(domain.Envelope{Kind: domain.EventMessage, Payload: json.RawMessage(`{}`)})
	})
	assert.True(t, secondCalled)
}

func TestDispatchUnsubscribedKindIsIgnored(t *testing.T) {
	daemon := newFakeDaemon(t)
	client, _ := newTestClient(t, daemon)

	assert.NotPanics(t, func() {
		client.dispatch(domain.Envelope{Kind: domain.EventCall, Payload: json.RawMessage(`{}`)})
	})
}
