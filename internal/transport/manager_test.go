package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbkit/nbkit/internal/event"
	"github.com/nbkit/nbkit/pkg/types"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func wsBase(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func statusFrame(state string) []byte {
	content, _ := json.Marshal(types.StatusContent{ExecutionState: state})
	frame, _ := json.Marshal(types.Message{
		Header:  types.Header{MsgID: "m1", MsgType: types.MsgTypeStatus},
		Content: content,
		Channel: types.ChannelIOPub,
	})
	return frame
}

func TestConnectDeliversFramesInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/kernels/k1/channels", r.URL.Path)
		assert.Equal(t, "s1", r.URL.Query().Get("session_id"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, statusFrame("busy"))
		conn.WriteMessage(websocket.TextMessage, []byte("{malformed"))
		conn.WriteMessage(websocket.TextMessage, statusFrame("idle"))
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	received := make(chan *types.Message, 8)
	m := NewManager(wsBase(server), bus, func(msg *types.Message) { received <- msg })
	t.Cleanup(func() { m.Close() })

	err := m.Connect(context.Background(),
		&types.Session{ID: "s1", Kernel: types.Kernel{ID: "k1", Name: "python3"}})
	require.NoError(t, err)
	assert.True(t, m.Connected())

	var states []string
	for len(states) < 2 {
		select {
		case msg := <-received:
			var content types.StatusContent
			require.NoError(t, json.Unmarshal(msg.Content, &content))
			states = append(states, content.ExecutionState)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}

	// The malformed frame was dropped, the loop survived, order held.
	assert.Equal(t, []string{"busy", "idle"}, states)
}

func TestConnectionStatusEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn.Close() // immediate server-side close
	}))
	defer server.Close()

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	statuses := make(chan string, 4)
	bus.Subscribe(event.ConnectionStatus, func(e event.Event) {
		statuses <- e.Data.(event.ConnectionStatusData).Status
	})

	m := NewManager(wsBase(server), bus, func(*types.Message) {})
	t.Cleanup(func() { m.Close() })

	err := m.Connect(context.Background(),
		&types.Session{ID: "s1", Kernel: types.Kernel{ID: "k1"}})
	require.NoError(t, err)

	assert.Equal(t, "connected", waitStatus(t, statuses))
	assert.Equal(t, "disconnected", waitStatus(t, statuses))
}

func waitStatus(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection status")
		return ""
	}
}

func TestSendWithoutConnection(t *testing.T) {
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	m := NewManager("ws://localhost:1", bus, func(*types.Message) {})
	err := m.Send(&types.Message{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendWritesJSONFrame(t *testing.T) {
	got := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_, raw, err := conn.ReadMessage()
		if err == nil {
			got <- raw
		}
	}))
	defer server.Close()

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	m := NewManager(wsBase(server), bus, func(*types.Message) {})
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.Connect(context.Background(),
		&types.Session{ID: "s1", Kernel: types.Kernel{ID: "k1"}}))

	sent := &types.Message{
		Header:  types.Header{MsgID: "cell-1", MsgType: types.MsgTypeExecuteRequest},
		Content: json.RawMessage(`{"code":"1+1"}`),
		Channel: types.ChannelShell,
	}
	require.NoError(t, m.Send(sent))

	select {
	case raw := <-got:
		var received types.Message
		require.NoError(t, json.Unmarshal(raw, &received))
		assert.Equal(t, "cell-1", received.Header.MsgID)
		assert.Equal(t, types.ChannelShell, received.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestCloseIsDeliberate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	m := NewManager(wsBase(server), bus, func(*types.Message) {}, WithReconnect())
	require.NoError(t, m.Connect(context.Background(),
		&types.Session{ID: "s1", Kernel: types.Kernel{ID: "k1"}}))

	require.NoError(t, m.Close())
	assert.False(t, m.Connected())

	// A deliberate close never triggers the reconnect policy.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, m.Connected())
}
