package transport

import (
	"net/http"

	"github.com/aravindet/engine.io/parser"
)

// Creater registers one transport kind with the enclosing server layer.
type Creater struct {
	Name   string
	Server func(http.ResponseWriter, *http.Request, Callback) (Server, error)
}

// Callback is implemented by the session layer owning a transport. Transports
// never act on their own packets; everything is handed up through here.
type Callback interface {

	// OnPacket is called once per packet decoded from the client.
	OnPacket(parser.Packet)

	// OnDrain is called when the transport becomes writable, so queued
	// outgoing packets can be flushed with Send.
	OnDrain(Server)

	// OnError is called with transport-level failures. The session layer
	// decides whether the failure is fatal to the session.
	OnError(error)

	// OnClose is called when the transport shut down on its own, either
	// gracefully from a client close packet or from a dropped connection.
	OnClose(Server)
}

// Server is one server-side transport bound to a single logical client
// connection.
type Server interface {

	// Name is the registered transport name, in lowercase.
	Name() string

	// ServeHTTP handles one HTTP request/response cycle of this connection.
	ServeHTTP(http.ResponseWriter, *http.Request)

	// Writable reports whether Send can begin a new write now.
	Writable() bool

	// Send writes one batch of packets as a single payload. It fails with
	// ErrNotWritable while a previous write is pending completion.
	Send([]parser.Packet) error

	// Close shuts the transport down, guaranteeing a close packet is
	// delivered first. done, if not nil, runs once delivery is arranged.
	Close(done func()) error
}
