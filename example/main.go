// Command example hosts an echo session over the polling transport, with
// websocket available for clients that can hold a socket open.
package main

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aravindet/engine.io/parser"
	"github.com/aravindet/engine.io/polling"
	"github.com/aravindet/engine.io/transport"
	"github.com/aravindet/engine.io/websocket"
)

// session owns one transport and echoes message packets back, buffering them
// while the transport is not writable.
type session struct {
	id     uuid.UUID
	logger *zap.SugaredLogger

	mu     sync.Mutex
	server transport.Server
	queue  []parser.Packet
}

func (s *session) OnPacket(p parser.Packet) {
	s.logger.Debugw("packet", "session", s.id, "type", p.Type.String(), "len", len(p.Data))
	switch p.Type {
	case parser.PacketPing:
		s.enqueue(parser.Packet{Type: parser.PacketPong, Message: parser.MessageText, Data: p.Data})
	case parser.PacketMessage:
		p.Compressible = true
		s.enqueue(p)
	}
}

func (s *session) OnDrain(server transport.Server) {
	s.flush(server)
}

func (s *session) OnError(err error) {
	s.logger.Warnw("transport error", "session", s.id, "err", err)
}

func (s *session) OnClose(server transport.Server) {
	s.logger.Infow("session closed", "session", s.id)
}

func (s *session) enqueue(p parser.Packet) {
	s.mu.Lock()
	s.queue = append(s.queue, p)
	server := s.server
	s.mu.Unlock()
	if server != nil && server.Writable() {
		s.flush(server)
	}
}

func (s *session) flush(server transport.Server) {
	s.mu.Lock()
	packets := s.queue
	s.queue = nil
	s.mu.Unlock()
	if len(packets) == 0 {
		return
	}
	if err := server.Send(packets); err != nil {
		s.logger.Warnw("send failed", "session", s.id, "err", err)
	}
}

type registry struct {
	creaters map[string]transport.Creater
	logger   *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*session
}

func (reg *registry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("transport")
	if name == "" {
		name = "polling"
	}
	creater, ok := reg.creaters[name]
	if !ok {
		http.Error(w, "unknown transport", http.StatusBadRequest)
		return
	}

	sid := r.URL.Query().Get("sid")
	reg.mu.Lock()
	sess, ok := reg.sessions[sid]
	reg.mu.Unlock()

	if !ok {
		sess = &session{
			id:     uuid.New(),
			logger: reg.logger,
		}
		server, err := creater.Server(w, r, sess)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sess.mu.Lock()
		sess.server = server
		sess.mu.Unlock()
		reg.mu.Lock()
		reg.sessions[sess.id.String()] = sess
		reg.mu.Unlock()
		reg.logger.Infow("session opened", "session", sess.id, "transport", name)
		if name == "websocket" {
			return
		}
	}

	sess.mu.Lock()
	server := sess.server
	sess.mu.Unlock()
	server.ServeHTTP(w, r)
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	reg := &registry{
		creaters: map[string]transport.Creater{
			"polling":   polling.NewCreater(polling.WithCompression(1024, 6), polling.Logger(sugar)),
			"websocket": websocket.NewCreater(&gorilla.Upgrader{}),
		},
		logger:   sugar,
		sessions: map[string]*session{},
	}

	http.Handle("/engine.io/", reg)
	sugar.Infow("listening", "addr", ":3333")
	sugar.Fatal(http.ListenAndServe(":3333", nil))
}
