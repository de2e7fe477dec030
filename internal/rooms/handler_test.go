package rooms

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRoom(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForMembers(t *testing.T, reg *Registry, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Count(room) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d members (have %d)", room, want, reg.Count(room))
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	reg := NewRegistry("game")
	mux := http.NewServeMux()
	NewHandler(reg).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialRoom(t, srv, "game")
	waitForMembers(t, reg, "game", 1)

	reg.Broadcast("game", []byte(`{"type":"state","payload":{}}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"state","payload":{}}`, string(data))
}

func TestWebSocket_RoomIsolation(t *testing.T) {
	reg := NewRegistry("game", "display")
	mux := http.NewServeMux()
	NewHandler(reg).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	game := dialRoom(t, srv, "game")
	display := dialRoom(t, srv, "display")
	waitForMembers(t, reg, "game", 1)
	waitForMembers(t, reg, "display", 1)

	reg.Broadcast("display", []byte(`{"type":"showView","payload":{"view":"timer"}}`))

	display.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := display.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "showView")

	game.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = game.ReadMessage()
	assert.Error(t, err, "game subscriber must not see display traffic")
}

func TestWebSocket_DisconnectLeavesRoom(t *testing.T) {
	reg := NewRegistry("game")
	mux := http.NewServeMux()
	NewHandler(reg).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialRoom(t, srv, "game")
	waitForMembers(t, reg, "game", 1)

	conn.Close()
	waitForMembers(t, reg, "game", 0)
}
