package trx

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

func testWebsocketServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebsocketLink_ReadAfterIdleTimeout(t *testing.T) {
	send := make(chan string)
	url := testWebsocketServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		frame := <-send
		err := conn.WriteMessage(websocket.BinaryMessage, []byte(frame))
		assert.NoError(t, err)
		<-send
	})

	link, err := DialWebsocket(url)
	require.NoError(t, err)
	defer link.Close()

	buf := make([]byte, 64)

	// the transceiver is idle, the read times out without data
	n, err := link.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// data arriving after an idle period still comes through
	send <- "FA00014074000;"
	var received strings.Builder
	deadline := time.Now().Add(time.Second)
	for received.Len() < 14 && time.Now().Before(deadline) {
		n, err := link.Read(buf)
		require.NoError(t, err)
		received.Write(buf[:n])
	}
	assert.Equal(t, "FA00014074000;", received.String())
	close(send)
}

func TestWebsocketLink_ReadReportsClosedConnection(t *testing.T) {
	url := testWebsocketServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})

	link, err := DialWebsocket(url)
	require.NoError(t, err)
	defer link.Close()

	buf := make([]byte, 64)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_, err = link.Read(buf)
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrLinkClosed)
}

func TestWebsocketLink_CloseUnblocksRead(t *testing.T) {
	url := testWebsocketServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		time.Sleep(100 * time.Millisecond)
	})

	link, err := DialWebsocket(url)
	require.NoError(t, err)
	link.Close()

	buf := make([]byte, 64)
	_, err = link.Read(buf)
	assert.ErrorIs(t, err, ErrLinkClosed)
}
