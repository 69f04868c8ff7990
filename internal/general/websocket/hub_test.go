package websocket_test

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"delivery-track/internal/general/jwt"
	"delivery-track/internal/general/logger"
	"delivery-track/internal/general/websocket"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// pingGoroutines counts goroutines spawned by Connect (the ping loop).
func pingGoroutines() int {
	buf := make([]byte, 1<<22)
	n := runtime.Stack(buf, true)
	return strings.Count(string(buf[:n]), "(*WebSocket).Connect.func")
}

func TestConnect_PingGoroutineExitsOnDisconnect(t *testing.T) {
	lg := logger.New("test")
	mgr := jwt.NewManager("hub-test-secret", time.Hour)
	hub := websocket.NewWebSocket(lg, mgr, nil, websocket.Options{})

	srv := httptest.NewServer(http.HandlerFunc(hub.Connect))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	before := pingGoroutines()

	for i := 0; i < 10; i++ {
		conn, resp, err := gws.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		if resp != nil {
			resp.Body.Close()
		}
		// any first frame gets the connection past auth handling and into
		// the read loop, where the ping goroutine is running
		require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"type":"noop"}`)))
		_, _, err = conn.ReadMessage() // error frame for the unknown type
		require.NoError(t, err)
		require.NoError(t, conn.Close())
	}

	require.Eventually(t, func() bool {
		return pingGoroutines() <= before
	}, 2*time.Second, 20*time.Millisecond, "ping goroutines survived their connections")
}
