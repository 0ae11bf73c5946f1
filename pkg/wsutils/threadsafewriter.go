package wsutils

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	PongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10

	// Enough for SDP payloads, which dominate signaling traffic.
	maxMessageSize = 64 * 1024
)

type ThreadSafeWriter struct {
	*websocket.Conn
	sync.Mutex
}

func (t *ThreadSafeWriter) WriteJSON(val interface{}) error {
	t.Lock()
	defer t.Unlock()

	t.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.Conn.WriteJSON(val)
}

func (t *ThreadSafeWriter) Ping() error {
	t.Lock()
	defer t.Unlock()

	t.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.Conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *ThreadSafeWriter) Close() error {
	return t.Conn.Close()
}

func (t *ThreadSafeWriter) ReadJSON(val any) error {
	return t.Conn.ReadJSON(val)
}

func NewThreadSafeWriter(conn *websocket.Conn) *ThreadSafeWriter {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})
	return &ThreadSafeWriter{
		Conn: conn,
	}
}
