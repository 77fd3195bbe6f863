package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookDeliver(t *testing.T) {
	var got WebhookPayload
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		calls.Add(1)
	}))
	defer server.Close()

	w := NewWebhook(func() string { return server.URL })
	w.Deliver(WebhookPayload{Embeds: []Embed{{Title: "Ban #1 for 30 minutes", Description: "details"}}})

	require.EqualValues(t, 1, calls.Load())
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Ban #1 for 30 minutes", got.Embeds[0].Title)
}

func TestWebhookDisabledWhenURLEmpty(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	w := NewWebhook(func() string { return "" })
	w.Deliver(WebhookPayload{Embeds: []Embed{{Title: "dropped"}}})

	assert.Zero(t, calls.Load(), "empty URL means the channel is disabled")
}

func TestWebhookFailureIsSwallowed(t *testing.T) {
	w := NewWebhook(func() string { return "http://127.0.0.1:1/unreachable" })
	// Must not panic or block beyond the client timeout.
	done := make(chan struct{})
	go func() {
		w.Deliver(WebhookPayload{Embeds: []Embed{{Title: "lost"}}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("delivery did not return")
	}
}

func TestWebhookErrorStatusIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusBadGateway)
	}))
	defer server.Close()

	w := NewWebhook(func() string { return server.URL })
	w.Deliver(WebhookPayload{Embeds: []Embed{{Title: "rejected"}}})
}
