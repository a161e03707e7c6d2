package httpx

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/encoding"

	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
	"dqx0.com/go/rawhttp/httpx/internal/http1"
	"dqx0.com/go/rawhttp/internal/obs"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 80

	dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// DefaultName is the Server header value used when Server.Name is empty.
var DefaultName = "Go/" + strings.TrimPrefix(runtime.Version(), "go")

// Server answers one request per connection. Routes, handlers and
// default headers must not change once Serve has been called.
type Server struct {
	// Name is sent as the Server header.
	Name string
	Host string
	Port int
	// Newline terminates start and header lines; nil means CRLF.
	Newline []byte
	// Charset encodes the status line and header text; "" means UTF-8.
	Charset string
	// Headers are added to every response, replacing handler values.
	Headers *header.Header
	// Debug enables the access log line.
	Debug bool

	Router   *Router
	Handlers Handlers
	// TLSConfig, when set, makes ListenAndServe accept TLS.
	TLSConfig *tls.Config

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
	MaxBodyBytes   int64

	Logger         obs.Logger
	Meter          obs.Meter
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
	// OnError receives every error returned by a connection.
	OnError func(error)

	once       sync.Once
	initErr    error
	dispatcher *Dispatcher
	defaults   *header.Header
	enc        *encoding.Encoder

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	closed    bool
	wg        sync.WaitGroup
}

// Handle registers a route on the server's router.
func (s *Server) Handle(pattern string, h Handler, methods ...string) error {
	if s.Router == nil {
		s.Router = NewRouter()
	}
	return s.Router.Handle(pattern, h, methods...)
}

// Addr is the listen address built from Host and Port.
func (s *Server) Addr() string {
	host := s.Host
	if host == "" {
		host = DefaultHost
	}
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (s *Server) init() error {
	s.once.Do(func() {
		if s.Router == nil {
			s.Router = NewRouter()
		}
		s.dispatcher = NewDispatcher(s.Router, s.Handlers)
		name := s.Name
		if name == "" {
			name = DefaultName
		}
		s.defaults = header.New()
		s.defaults.Set("Server", header.Str(name))
		s.defaults.Merge(s.Headers)
		s.enc, s.initErr = encoderFor(s.Charset)
	})
	return s.initErr
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	if s.TLSConfig != nil {
		ln = tls.NewListener(ln, s.TLSConfig)
	}
	return s.Serve(ln)
}

// Serve accepts connections on l and handles each in its own goroutine.
// It returns ErrServerClosed after Shutdown.
func (s *Server) Serve(l net.Listener) error {
	if err := s.init(); err != nil {
		_ = l.Close()
		return err
	}
	if !s.track(l, true) {
		_ = l.Close()
		return ErrServerClosed
	}
	defer s.track(l, false)
	obs.OrNop(s.Logger).Logf(obs.Info, "httpx: serving on %s", l.Addr())
	for {
		c, err := l.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			return err
		}
		if !s.startConn() {
			_ = c.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			if err := s.ServeConn(c); err != nil {
				s.report(err)
			}
		}()
	}
}

// Shutdown closes the listeners and waits for in-flight connections until
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for l := range s.listeners {
		_ = l.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(l net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closed {
			return false
		}
		if s.listeners == nil {
			s.listeners = make(map[net.Listener]struct{})
		}
		s.listeners[l] = struct{}{}
		return true
	}
	delete(s.listeners, l)
	return true
}

func (s *Server) startConn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) report(err error) {
	log := obs.OrNop(s.Logger)
	var he *HandlerError
	switch {
	case errors.As(err, &he):
		log.Logf(obs.Error, "%v", err)
	case IsConnectivity(err):
		log.Logf(obs.Debug, "%v", err)
	default:
		log.Logf(obs.Warn, "httpx: %v", err)
	}
	obs.OrNopMeter(s.Meter).Counter("httpx_server_errors_total", 1)
	if s.OnError != nil {
		s.OnError(err)
	}
}

// ServeConn reads one request from c, dispatches it, writes the response
// and closes c. A missing or malformed request line closes c without a
// response. Handler failures are answered by the error handler and then
// returned; transport failures are returned without a response.
func (s *Server) ServeConn(c net.Conn) (err error) {
	defer c.Close()
	if err := s.init(); err != nil {
		return err
	}
	start := time.Now()
	if s.ReadTimeout > 0 {
		_ = c.SetReadDeadline(start.Add(s.ReadTimeout))
	}
	remote := c.RemoteAddr().String()
	rd := &http1.Reader{BR: bufio.NewReader(c), MaxHeaderBytes: s.MaxHeaderBytes, MaxBodyBytes: s.MaxBodyBytes}
	m, err := rd.ReadRequest()
	if err != nil {
		return s.readFailed(c, remote, err)
	}

	log := obs.OrNop(s.Logger)
	path, query := splitTarget(m.Target)
	host, port := s.requestHost(m.Header)
	scheme := "http"
	if _, ok := c.(*tls.Conn); ok {
		scheme = "https"
	}
	ctx := extractTrace(context.Background(), s.Propagator, m.Header)
	ctx, span := tracerFrom(s.TracerProvider).Start(ctx, "HTTP "+m.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", m.Method),
			attribute.String("url.path", path),
			attribute.String("client.address", remote),
		))
	id := requestID(m.Header)
	ctx = WithRemoteAddr(WithRequestID(ctx, id), remote)
	r := &Request{
		Method:     m.Method,
		Target:     m.Target,
		Path:       path,
		RawQuery:   query,
		Proto:      m.Proto,
		Scheme:     scheme,
		Host:       host,
		Port:       port,
		Header:     m.Header,
		Body:       m.Body,
		RemoteAddr: remote,
		RequestID:  id,
		ctx:        ctx,
	}
	if m.DuplicateLength {
		log.Logf(obs.Warn, "httpx: %s %s from %s: repeated Content-Length", r.Method, r.Path, remote)
	}

	status := 0
	defer func() {
		endSpan(span, status, err)
		labels := []obs.Label{{Key: "method", Value: r.Method}, {Key: "code", Value: strconv.Itoa(status)}}
		meter := obs.OrNopMeter(s.Meter)
		meter.Counter("httpx_server_requests_total", 1, labels...)
		meter.Histogram("httpx_server_duration_ms", float64(time.Since(start).Microseconds())/1000, labels...)
		if s.Debug {
			target := r.Path
			if r.RawQuery != "" {
				target += "?" + r.RawQuery
			}
			log.Logf(obs.Info, "%q %d", r.Method+" "+target, status)
		}
	}()

	res, err := s.dispatcher.Dispatch(r)
	if err == nil {
		status, err = s.writeResult(c, r, res)
		var he *HandlerError
		if err == nil || !errors.As(err, &he) || headSent(err) {
			return err
		}
	} else if IsConnectivity(err) {
		return err
	}
	if st, werr := s.writeResult(c, r, s.dispatcher.Error(r)); werr == nil {
		status = st
	} else {
		log.Logf(obs.Debug, "httpx: error response to %s: %v", remote, werr)
	}
	return err
}

// readFailed decides what a broken request gets back. Start line failures
// and peers that went away get nothing; other framing errors get a bare
// 400 or 413.
func (s *Server) readFailed(c net.Conn, remote string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, http1.ErrMalformedStartLine) {
		return nil
	}
	if IsConnectivity(err) || errors.Is(err, io.ErrUnexpectedEOF) {
		return wrapConn("read", remote, err)
	}
	status := 400
	if errors.Is(err, http1.ErrBodyTooLarge) {
		status = 413
	}
	h := s.defaults.Clone()
	h.Set("Date", header.Str(time.Now().UTC().Format(dateFormat)))
	h.Set("Content-Length", header.Int(0))
	if s.WriteTimeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}
	w := &http1.Writer{BW: bufio.NewWriter(c), Newline: s.Newline, Encoder: s.enc}
	_ = w.WriteResponse(status, h, body.Empty())
	return err
}

// writeResult frames res and writes it. A body that was never streamed is
// released on every path. Framing failures and invalid header fields are
// returned as *HandlerError before anything reaches the wire; a body source
// failing mid-stream is a *HandlerError too, but the head is already out.
func (s *Server) writeResult(c net.Conn, r *Request, res *Result) (int, error) {
	defer body.Release(res.Body)
	status, h, src, err := s.frame(res)
	if err != nil {
		return status, &HandlerError{Method: r.Method, Path: r.Path, Err: err}
	}
	if s.WriteTimeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}
	w := &http1.Writer{BW: bufio.NewWriter(c), Newline: s.Newline, Encoder: s.enc}
	if err := w.WriteResponse(status, h, src); err != nil {
		var se *body.SourceError
		if errors.Is(err, http1.ErrInvalidHeader) || errors.As(err, &se) {
			return status, &HandlerError{Method: r.Method, Path: r.Path, Err: err}
		}
		return status, wrapConn("write", r.RemoteAddr, err)
	}
	return status, nil
}

// frame resolves the status, the response header and the body of res.
// Server defaults replace handler values; Date and Content-Type are only
// added when absent; Content-Length always comes from the body.
func (s *Server) frame(res *Result) (int, *header.Header, body.Source, error) {
	status := res.Status
	if status == 0 {
		status = 200
	}
	src := res.Body
	if src == nil {
		src = body.Empty()
	}
	h := res.Header.Clone()
	h.Merge(s.defaults)
	if !h.Has("Date") {
		h.Set("Date", header.Str(time.Now().UTC().Format(dateFormat)))
	}
	if !h.Has("Content-Type") {
		switch ct := src.ContentType(); {
		case ct != "":
			h.Set("Content-Type", header.Str(ct))
		case body.IsFramed(src):
			return status, nil, nil, ErrMissingContentType
		}
	}
	h.Set("Content-Length", header.Int(src.Len()))
	return status, h, src, nil
}

// requestHost splits the Host field, falling back to the listen host and
// port.
func (s *Server) requestHost(h *header.Header) (string, int) {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	v := h.Text("Host")
	if v == "" {
		host := s.Host
		if host == "" {
			host = DefaultHost
		}
		return host, port
	}
	host, p, err := net.SplitHostPort(v)
	if err != nil {
		return strings.Trim(v, "[]"), port
	}
	if n, err := strconv.Atoi(p); err == nil {
		port = n
	}
	return host, port
}
