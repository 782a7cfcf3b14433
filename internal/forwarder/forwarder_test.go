package forwarder

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/session-webhook-bridge/internal/domain"
)

type capturedRequest struct {
	header http.Header
	body   []byte
}

func newCapturingEndpoint(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	var mu sync.Mutex
	var requests []capturedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{header: r.Header.Clone(), body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func TestForwardPostsOneEvent(t *testing.T) {
	server, captured := newCapturingEndpoint(t, http.StatusOK)
	f := New(server.URL, hclog.NewNullLogger())

	f.Forward(domain.EventReactionAdded, json.RawMessage(`{"id":1}`))

	requests := captured()
	require.Len(t, requests, 1)
	assert.Equal(t, "application/json", requests[0].header.Get("Content-Type"))
	assert.Equal(t, "session-webhook-bridge/1.0", requests[0].header.Get("User-Agent"))

	var body struct {
		Event     string          `json:"event"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp string          `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(requests[0].body, &body))
	assert.Equal(t, "reactionAdded", body.Event)
	assert.JSONEq(t, `{"id":1}`, string(body.Payload))

	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err, "timestamp must be ISO-8601")
}

func TestForwardRejectedEventIsDropped(t *testing.T) {
	server, captured := newCapturingEndpoint(t, http.StatusBadGateway)
	f := New(server.URL, hclog.NewNullLogger())

	// A rejected delivery must not panic or block the next one.
	assert.NotPanics(t, func() {
		f.Forward(domain.EventMessage, json.RawMessage(`{"a":1}`))
		f.Forward(domain.EventMessage, json.RawMessage(`{"a":2}`))
	})
	assert.Len(t, captured(), 2)
}

func TestForwardUnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	f := New(url, hclog.NewNullLogger())
	assert.NotPanics(t, func() {
		f.Forward(domain.EventCall, json.RawMessage(`{}`))
	})
}
