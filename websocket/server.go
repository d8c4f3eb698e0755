package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aravindet/engine.io/parser"
	"github.com/aravindet/engine.io/transport"
)

// Server speaks the same packets as the polling transport over one websocket
// connection, one packet per frame.
type Server struct {
	callback transport.Callback
	conn     *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func NewServer(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, callback transport.Callback) (transport.Server, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	ret := &Server{
		callback: callback,
		conn:     conn,
	}

	go ret.readLoop()

	return ret, nil
}

func (s *Server) Name() string {
	return "websocket"
}

// ServeHTTP rejects further HTTP cycles, the connection is already hijacked.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusBadRequest)
}

func (s *Server) Writable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Server) Send(packets []parser.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrClosed
	}
	for i := range packets {
		if err := s.writePacket(packets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) writePacket(p parser.Packet) error {
	frameType := websocket.TextMessage
	if p.Message == parser.MessageBinary {
		frameType = websocket.BinaryMessage
	}
	w, err := s.conn.NextWriter(frameType)
	if err != nil {
		return err
	}
	if err := p.EncodeFrame(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *Server) Close(done func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transport.ErrClosed
	}
	s.closed = true
	err := s.writePacket(parser.Packet{Type: parser.PacketClose, Message: parser.MessageText})
	s.mu.Unlock()

	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	if done != nil {
		done()
	}
	return err
}

func (s *Server) readLoop() {
	for {
		t, r, err := s.conn.NextReader()
		if err != nil {
			s.conn.Close()
			s.mu.Lock()
			wasClosed := s.closed
			s.closed = true
			s.mu.Unlock()
			if !wasClosed {
				s.callback.OnError(&transport.Error{
					Transport: s.Name(),
					Err:       transport.ErrPrematureClose,
				})
				s.callback.OnClose(s)
			}
			return
		}

		switch t {
		case websocket.TextMessage, websocket.BinaryMessage:
			p, err := parser.DecodeFrame(r)
			if err != nil {
				s.callback.OnError(&transport.Error{
					Transport: s.Name(),
					Err:       err,
				})
				continue
			}
			if p.Type == parser.PacketClose {
				s.Close(func() {
					s.callback.OnClose(s)
				})
				return
			}
			s.callback.OnPacket(p)
		}
	}
}
