package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/googollee/go-assert"
	"github.com/gorilla/websocket"

	"github.com/aravindet/engine.io/parser"
	"github.com/aravindet/engine.io/transport"
)

type testCallback struct {
	mu      sync.Mutex
	packets []parser.Packet
	closed  int
	arrived chan struct{}
}

func newTestCallback() *testCallback {
	return &testCallback{
		arrived: make(chan struct{}, 10),
	}
}

func (c *testCallback) OnPacket(p parser.Packet) {
	c.mu.Lock()
	c.packets = append(c.packets, p)
	c.mu.Unlock()
	select {
	case c.arrived <- struct{}{}:
	default:
	}
}

func (c *testCallback) OnDrain(transport.Server) {}

func (c *testCallback) OnError(error) {}

func (c *testCallback) OnClose(transport.Server) {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

func (c *testCallback) Packets() []parser.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]parser.Packet(nil), c.packets...)
}

func dialTestServer(t *testing.T, cb *testCallback) (transport.Server, *websocket.Conn, func()) {
	upgrader := &websocket.Upgrader{}
	serverCh := make(chan transport.Server, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svr, err := NewServer(upgrader, w, r, cb)
		assert.MustEqual(t, err, nil)
		serverCh <- svr
	}))

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.MustEqual(t, err, nil)

	svr := <-serverCh
	return svr, conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestWebsocketReceive(t *testing.T) {
	cb := newTestCallback()
	_, conn, cleanup := dialTestServer(t, cb)
	defer cleanup()

	err := conn.WriteMessage(websocket.TextMessage, []byte("4hello"))
	assert.MustEqual(t, err, nil)
	select {
	case <-cb.arrived:
	case <-time.After(time.Second):
		t.Fatal("packet never dispatched")
	}

	packets := cb.Packets()
	assert.MustEqual(t, len(packets), 1)
	assert.Equal(t, packets[0].Type, parser.PacketMessage)
	assert.Equal(t, string(packets[0].Data), "hello")
}

func TestWebsocketSend(t *testing.T) {
	cb := newTestCallback()
	svr, conn, cleanup := dialTestServer(t, cb)
	defer cleanup()

	assert.Equal(t, svr.Writable(), true)
	err := svr.Send([]parser.Packet{
		{Type: parser.PacketMessage, Message: parser.MessageText, Data: []byte("hello")},
		{Type: parser.PacketMessage, Message: parser.MessageBinary, Data: []byte{0x01, 0x02}},
	})
	assert.MustEqual(t, err, nil)

	ft, frame, err := conn.ReadMessage()
	assert.MustEqual(t, err, nil)
	assert.Equal(t, ft, websocket.TextMessage)
	assert.Equal(t, string(frame), "4hello")

	ft, frame, err = conn.ReadMessage()
	assert.MustEqual(t, err, nil)
	assert.Equal(t, ft, websocket.BinaryMessage)
	assert.Equal(t, string(frame), "\x04\x01\x02")
}

func TestWebsocketClose(t *testing.T) {
	cb := newTestCallback()
	svr, conn, cleanup := dialTestServer(t, cb)
	defer cleanup()

	done := false
	err := svr.Close(func() {
		done = true
	})
	assert.MustEqual(t, err, nil)
	assert.Equal(t, done, true)
	assert.Equal(t, svr.Writable(), false)

	// the close packet arrives before the connection dies
	_, frame, err := conn.ReadMessage()
	assert.MustEqual(t, err, nil)
	assert.Equal(t, string(frame), "1")

	_, _, err = conn.ReadMessage()
	assert.NotEqual(t, err, nil)

	err = svr.Send([]parser.Packet{{Type: parser.PacketPing, Message: parser.MessageText}})
	assert.Equal(t, err, transport.ErrClosed)
}
