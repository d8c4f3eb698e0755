package polling

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/aravindet/engine.io/parser"
	"github.com/aravindet/engine.io/transport"
)

// legacy IE sniffs poll responses and trips its XSS filter on packet
// payloads, so the filter is switched off for those user agents
var ieUserAgent = regexp.MustCompile(`;MSIE|Trident/`)

// pollCycle is one bound GET request/response pair. The handler goroutine
// parks on done until the send pipeline completes the response.
type pollCycle struct {
	w    http.ResponseWriter
	r    *http.Request
	done chan error
}

// dataCycle is one bound POST request. Closing abort makes its handler
// destroy the connection without responding; the response controller lets an
// abort unblock a read stalled mid-upload.
type dataCycle struct {
	abort chan struct{}
	rc    *http.ResponseController
}

type server struct {
	callback transport.Callback
	options  options
	logger   *zap.SugaredLogger

	getLocker  tryLocker
	postLocker tryLocker

	mu           sync.Mutex
	poll         *pollCycle
	data         *dataCycle
	writable     bool
	pendingClose func()
	closed       bool
}

// NewServer creates a polling transport for one logical client connection.
// The session layer supplies the callback; packets and transport errors flow
// through it.
func NewServer(w http.ResponseWriter, r *http.Request, callback transport.Callback, opts ...Option) (transport.Server, error) {
	o := newOptions(opts...)
	if r != nil && r.URL.Query()["b64"] != nil {
		o.binary = false
	}
	return &server{
		callback: callback,
		options:  o,
		logger:   o.logger,
	}, nil
}

// NewCreater returns the registry entry for the polling transport.
func NewCreater(opts ...Option) transport.Creater {
	return transport.Creater{
		Name: "polling",
		Server: func(w http.ResponseWriter, r *http.Request, callback transport.Callback) (transport.Server, error) {
			return NewServer(w, r, callback, opts...)
		},
	}
}

func (s *server) Name() string {
	return "polling"
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.isClosed() {
		http.Error(w, "closed", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.servePoll(w, r)
	case http.MethodPost:
		s.serveData(w, r)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *server) Writable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writable && s.poll != nil
}

// servePoll binds the GET request/response pair and parks until a send
// completes the response or the client drops.
func (s *server) servePoll(w http.ResponseWriter, r *http.Request) {
	if !s.getLocker.TryLock() {
		s.onError(errors.Wrap(transport.ErrOverlap, "poll"))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer s.getLocker.Unlock()

	cycle := &pollCycle{
		w:    w,
		r:    r,
		done: make(chan error, 1),
	}

	s.mu.Lock()
	s.poll = cycle
	s.writable = true
	s.mu.Unlock()
	s.logger.Debugw("poll bound", "transport", s.Name())

	// transport became writable, let the session flush queued packets
	s.callback.OnDrain(s)

	// nudge a parked close out with a noop so it doesn't wait for new data
	s.mu.Lock()
	deferred := s.pendingClose != nil && s.writable && s.poll == cycle
	s.mu.Unlock()
	if deferred {
		s.Send([]parser.Packet{{Type: parser.PacketNoop, Message: parser.MessageText, Compressible: true}})
	}

	select {
	case <-cycle.done:
	case <-r.Context().Done():
		s.mu.Lock()
		taken := s.poll != cycle
		if !taken {
			s.poll = nil
			s.writable = false
			s.closed = true
		}
		s.mu.Unlock()
		if taken {
			// a send owns the response, let it finish
			<-cycle.done
			return
		}
		s.onError(errors.Wrap(transport.ErrPrematureClose, "poll connection"))
		s.callback.OnClose(s)
	}
}

// serveData binds the POST request, accumulates its body against the size
// ceiling, and dispatches the decoded packets.
func (s *server) serveData(w http.ResponseWriter, r *http.Request) {
	if !s.postLocker.TryLock() {
		s.onError(errors.Wrap(transport.ErrOverlap, "data request"))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer s.postLocker.Unlock()

	cycle := &dataCycle{
		abort: make(chan struct{}),
		rc:    http.NewResponseController(w),
	}
	s.mu.Lock()
	s.data = cycle
	s.mu.Unlock()
	defer s.clearData(cycle)

	// framing is sniffed from the payload itself, the content type is only
	// recorded for the log
	s.logger.Debugw("data request bound",
		"binary", strings.HasPrefix(r.Header.Get("Content-Type"), "application/octet-stream"))

	buf, err := s.readBody(r.Body, cycle)
	if err != nil {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.onError(errors.Wrap(transport.ErrPrematureClose, "data request connection"))
		s.callback.OnClose(s)
		return
	}

	var closing bool
	err = parser.DecodePayload(bytes.NewReader(buf), func(p parser.Packet) bool {
		if p.Type == parser.PacketClose {
			closing = true
			return false
		}
		s.callback.OnPacket(p)
		return true
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// sequence the close before acknowledging, so a client polling right
	// after the ack finds the close already parked
	if closing {
		s.clearData(cycle)
		s.Close(func() {
			s.callback.OnClose(s)
		})
	}

	// text/html over text/plain so browsers don't prompt a download
	w.Header().Set("Content-Type", "text/html")
	disableXSSFilter(w.Header(), r)
	w.Header().Set("Content-Length", "2")
	w.Write([]byte("ok"))
}

// readBody accumulates the request body, failing fast on overflow: the buffer
// is discarded and the connection destroyed with no response. Chunks arriving
// after an abort are never read.
func (s *server) readBody(body io.Reader, cycle *dataCycle) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	chunk := make([]byte, 4<<10)
	for {
		n, err := body.Read(chunk)

		// an aborted upload is never processed, whatever the read saw
		select {
		case <-cycle.abort:
			buf.Reset()
			panic(http.ErrAbortHandler)
		default:
		}

		if n > 0 {
			buf.Write(chunk[:n])
			if int64(buf.Len()) > s.options.maxBodyBytes {
				buf.Reset()
				s.mu.Lock()
				s.closed = true
				s.mu.Unlock()
				s.onError(errors.Wrap(transport.ErrBodyTooLarge, "data request"))
				panic(http.ErrAbortHandler)
			}
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			buf.Reset()
			return nil, err
		}
	}
}

// Send writes one batch of packets to the bound poll response. A pending
// close is consumed here: its close packet rides this payload and terminates
// the transport.
func (s *server) Send(packets []parser.Packet) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transport.ErrClosed
	}
	if !s.writable || s.poll == nil {
		s.mu.Unlock()
		return transport.ErrNotWritable
	}
	cycle := s.poll
	s.poll = nil
	s.writable = false
	var closing func()
	if s.pendingClose != nil {
		closing = s.pendingClose
		s.pendingClose = nil
		s.closed = true
		packets = append(packets, parser.Packet{Type: parser.PacketClose, Message: parser.MessageText, Compressible: true})
	}
	s.mu.Unlock()

	err := s.write(cycle, packets)
	if closing != nil {
		closing()
	}
	return err
}

// write encodes the batch and completes the held poll response, releasing the
// parked handler afterward.
func (s *server) write(cycle *pollCycle, packets []parser.Packet) error {
	compress := false
	for i := range packets {
		if packets[i].Compressible {
			compress = true
			break
		}
	}

	buf := bytes.NewBuffer(nil)
	err := parser.EncodePayload(buf, packets, s.options.binary)
	if err == nil {
		err = s.doWrite(cycle, buf.Bytes(), compress)
	}
	cycle.done <- err
	return err
}

func (s *server) doWrite(cycle *pollCycle, data []byte, compress bool) error {
	header := cycle.w.Header()
	if s.options.binary {
		header.Set("Content-Type", "application/octet-stream")
	} else {
		header.Set("Content-Type", "text/plain; charset=UTF-8")
	}
	disableXSSFilter(header, cycle.r)

	encoding := negotiateEncoding(len(data), compress, cycle.r.Header.Get("Accept-Encoding"), s.options.compression)
	if encoding != "" {
		compressed := bytes.NewBuffer(nil)
		if err := compressPayload(compressed, data, encoding, s.options.compression.Level); err != nil {
			cycle.w.WriteHeader(http.StatusInternalServerError)
			return err
		}
		header.Set("Content-Encoding", encoding)
		data = compressed.Bytes()
	}

	header.Set("Content-Length", strconv.Itoa(len(data)))
	_, err := cycle.w.Write(data)
	return err
}

// Close sequences graceful shutdown: any bound upload is aborted, and the
// close packet either goes out immediately or parks until the next send.
func (s *server) Close(done func()) error {
	if done == nil {
		done = func() {}
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transport.ErrClosed
	}
	if s.data != nil {
		close(s.data.abort)
		// unblock a read stalled mid-upload so the abort lands now
		s.data.rc.SetReadDeadline(time.Now())
		s.data = nil
	}
	s.pendingClose = done
	immediate := s.writable && s.poll != nil
	s.mu.Unlock()

	s.logger.Debugw("transport closing", "immediate", immediate)
	if immediate {
		if err := s.Send(nil); err != nil && err != transport.ErrClosed {
			return err
		}
	}
	return nil
}

func (s *server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *server) clearData(c *dataCycle) {
	s.mu.Lock()
	if s.data == c {
		s.data = nil
	}
	s.mu.Unlock()
}

func (s *server) onError(err error) {
	terr := &transport.Error{
		Transport: s.Name(),
		Err:       err,
	}
	s.logger.Warnw("transport error", "err", terr)
	s.callback.OnError(terr)
}

func disableXSSFilter(header http.Header, r *http.Request) {
	if ua := r.UserAgent(); ua != "" && ieUserAgent.MatchString(ua) {
		header.Set("X-XSS-Protection", "0")
	}
}
