package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeClient(id string, buffer int) *Client {
	return &Client{ID: id, send: make(chan []byte, buffer)}
}

func decodeFrame(t *testing.T, raw []byte) Frame {
	t.Helper()
	var f Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestHubPublishSkipsOriginator(t *testing.T) {
	hub := NewHub(testLogger())
	a, b, c := fakeClient("a", 1), fakeClient("b", 1), fakeClient("c", 1)
	hub.register(a)
	hub.register(b)
	hub.register(c)

	hub.Publish(EventMessageSent, map[string]string{"id": "m1"}, "a")

	assert.Empty(t, a.send)
	require.Len(t, b.send, 1)
	require.Len(t, c.send, 1)

	f := decodeFrame(t, <-b.send)
	assert.Equal(t, EventMessageSent, f.Event)
	assert.Equal(t, map[string]any{"id": "m1"}, f.Data)
}

func TestHubPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(testLogger())
	slow := fakeClient("slow", 1)
	hub.register(slow)

	hub.Publish(EventTypingStarted, nil, "")
	hub.Publish(EventTypingStopped, nil, "")

	require.Len(t, slow.send, 1)
	assert.Equal(t, EventTypingStarted, decodeFrame(t, <-slow.send).Event)
}

func TestHubUnregisterClosesSendOnce(t *testing.T) {
	hub := NewHub(testLogger())
	c := fakeClient("x", 1)
	hub.register(c)
	require.Equal(t, 1, hub.Sessions())

	hub.unregister(c)
	hub.unregister(c)

	_, open := <-c.send
	assert.False(t, open)
	assert.Equal(t, 0, hub.Sessions())

	// publishing after the client left must not panic on the closed channel
	hub.Publish(EventUserStatusChanged, nil, "")
}

func TestRelayedEventOnlyAcceptsClientEvents(t *testing.T) {
	e, ok := RelayedEvent("StartTyping")
	require.True(t, ok)
	assert.Equal(t, EventTypingStarted, e)

	_, ok = RelayedEvent("NewMessageHasBeenSent")
	assert.False(t, ok)
}

func TestSessionContext(t *testing.T) {
	ctx := WithSession(t.Context(), "abc")
	assert.Equal(t, "abc", SessionFrom(ctx))
	assert.Empty(t, SessionFrom(t.Context()))
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello struct {
		Event Event             `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, EventSessionCreated, hello.Event)
	require.NotEmpty(t, hello.Data["session_id"])
	return conn, hello.Data["session_id"]
}

func TestClientRelaysTypingToOtherSessions(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, 0).Run()
	}))
	defer srv.Close()

	sender, _ := dial(t, srv)
	receiver, _ := dial(t, srv)

	require.NoError(t, sender.WriteJSON(map[string]any{
		"event": "StartTyping",
		"data":  map[string]any{"channel_id": 7},
	}))

	var got struct {
		Event Event          `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, receiver.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, receiver.ReadJSON(&got))
	assert.Equal(t, EventTypingStarted, got.Event)
	assert.Equal(t, float64(7), got.Data["channel_id"])

	// the sender must not hear its own event
	require.NoError(t, sender.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := sender.ReadMessage()
	assert.Error(t, err)
}

func TestClientUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(testLogger())
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, 3).Run()
		close(done)
	}))
	defer srv.Close()

	conn, _ := dial(t, srv)
	require.Equal(t, 1, hub.Sessions())
	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after disconnect")
	}
	assert.Equal(t, 0, hub.Sessions())
}
