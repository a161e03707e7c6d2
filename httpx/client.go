package httpx

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
	"dqx0.com/go/rawhttp/httpx/internal/http1"
	"dqx0.com/go/rawhttp/internal/obs"
)

// DefaultUserAgent is sent when Client.UserAgent is empty.
const DefaultUserAgent = "Unknown"

// Client performs one request per connection. The zero value is usable.
type Client struct {
	UserAgent string
	// TLSConfig is used for https; ServerName and NextProtos are filled in
	// when empty.
	TLSConfig   *tls.Config
	DialTimeout time.Duration
	// Timeout bounds the whole exchange after dialing; zero means none.
	Timeout time.Duration
	// Newline terminates start and header lines; nil means CRLF.
	Newline []byte
	// Charset encodes the start line and header text; "" means UTF-8.
	Charset        string
	MaxHeaderBytes int
	MaxBodyBytes   int64
	// Dial replaces the default net.Dialer when set.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	Logger         obs.Logger
	Meter          obs.Meter
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

// DefaultClient backs the package level helpers.
var DefaultClient = &Client{}

// Do sends method to rawURL with h and src and reads the full response.
// Transport failures come back as *ConnError; no Response is returned on
// error.
func (c *Client) Do(ctx context.Context, method, rawURL string, h *header.Header, src body.Source) (res *Response, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if src == nil {
		src = body.Empty()
	}
	defer body.Release(src)
	method = strings.ToUpper(method)
	if method == "" {
		method = "GET"
	}
	t, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	log := obs.OrNop(c.Logger)
	meter := obs.OrNopMeter(c.Meter)
	start := time.Now()
	ctx, span := tracerFrom(c.TracerProvider).Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("server.address", t.host),
			attribute.Int("server.port", t.port),
		))
	labels := []obs.Label{{Key: "method", Value: method}}
	defer func() {
		status := 0
		if res != nil {
			status = res.StatusCode
		}
		endSpan(span, status, err)
		if err != nil {
			meter.Counter("httpx_client_requests_error", 1, labels...)
			log.Logf(obs.Warn, "httpx: %s %s: %v", method, rawURL, err)
			return
		}
		meter.Counter("httpx_client_requests_total", 1, append(labels, obs.Label{Key: "code", Value: strconv.Itoa(status)})...)
		meter.Histogram("httpx_client_roundtrip_duration_ms", float64(time.Since(start).Microseconds())/1000, labels...)
		log.Logf(obs.Debug, "httpx: %q %d", method+" "+rawURL, status)
	}()

	sent := c.outboundHeader(t, h, src)
	injectTrace(ctx, c.Propagator, sent)
	if err := http1.ValidateHeader(sent); err != nil {
		return nil, err
	}
	enc, err := encoderFor(c.Charset)
	if err != nil {
		return nil, err
	}

	conn, err := c.dialConn(ctx, t)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	setDeadlineWithContext(conn, c.Timeout, ctx)
	// Unblock pending I/O when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	rec := &recorder{Source: src}
	w := &http1.Writer{BW: bufio.NewWriter(conn), Newline: c.Newline, Encoder: enc}
	if err := w.WriteRequest(method, t.requestURI, sent, rec); err != nil {
		if rec.err != nil {
			return nil, fmt.Errorf("httpx: request body: %w", rec.err)
		}
		return nil, c.ioError(ctx, "write", t.addr(), err)
	}

	r := &http1.Reader{BR: bufio.NewReader(conn), MaxHeaderBytes: c.MaxHeaderBytes, MaxBodyBytes: c.MaxBodyBytes}
	m, err := r.ReadResponse()
	if err != nil {
		return nil, c.ioError(ctx, "read", t.addr(), err)
	}
	if m.DuplicateLength {
		log.Logf(obs.Warn, "httpx: %s: repeated Content-Length in response", t.addr())
	}
	return &Response{
		Proto:      m.Proto,
		StatusCode: m.StatusCode,
		Reason:     m.Reason,
		Header:     m.Header,
		Body:       m.Body,
		SentHeader: sent,
		SentBody:   rec.buf.Bytes(),
	}, nil
}

// outboundHeader orders the request fields: User-Agent, Content-Type,
// caller fields, Host, Content-Length.
func (c *Client) outboundHeader(t *target, h *header.Header, src body.Source) *header.Header {
	out := header.New()
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	out.Set("User-Agent", header.Str(ua))
	if ct := src.ContentType(); ct != "" {
		out.Set("Content-Type", header.Str(ct))
	}
	out.Merge(h)
	out.Set("Host", header.Str(t.hostHeader()))
	if n := src.Len(); n > 0 {
		out.Set("Content-Length", header.Int(n))
	}
	return out
}

// ioError reports the ctx error in place of the deadline it caused.
func (c *Client) ioError(ctx context.Context, op, addr string, err error) error {
	if cerr := ctx.Err(); cerr != nil && !isProtocol(err) {
		return &ConnError{Op: op, Addr: addr, Err: cerr}
	}
	return wrapConn(op, addr, err)
}

// Send is Do with the body given as a plain value; see body.Outbound.
func (c *Client) Send(ctx context.Context, method, rawURL string, h *header.Header, v any) (*Response, error) {
	src, err := body.Outbound(v)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, method, rawURL, h, src)
}

func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, "GET", rawURL, nil, nil)
}

func (c *Client) Post(ctx context.Context, rawURL string, h *header.Header, src body.Source) (*Response, error) {
	return c.Do(ctx, "POST", rawURL, h, src)
}

func (c *Client) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, "DELETE", rawURL, nil, nil)
}

// Do calls DefaultClient.Do.
func Do(ctx context.Context, method, rawURL string, h *header.Header, src body.Source) (*Response, error) {
	return DefaultClient.Do(ctx, method, rawURL, h, src)
}

// Send calls DefaultClient.Send.
func Send(ctx context.Context, method, rawURL string, h *header.Header, v any) (*Response, error) {
	return DefaultClient.Send(ctx, method, rawURL, h, v)
}

// Get calls DefaultClient.Get.
func Get(ctx context.Context, rawURL string) (*Response, error) {
	return DefaultClient.Get(ctx, rawURL)
}

// Post calls DefaultClient.Post.
func Post(ctx context.Context, rawURL string, h *header.Header, src body.Source) (*Response, error) {
	return DefaultClient.Post(ctx, rawURL, h, src)
}

// Delete calls DefaultClient.Delete.
func Delete(ctx context.Context, rawURL string) (*Response, error) {
	return DefaultClient.Delete(ctx, rawURL)
}

// recorder keeps a copy of the body bytes as they are streamed and remembers
// failures of the source itself.
type recorder struct {
	body.Source
	buf bytes.Buffer
	err error
}

func (r *recorder) Open() (io.ReadCloser, error) {
	rc, err := r.Source.Open()
	if err != nil {
		r.err = err
		return nil, err
	}
	return &recordingReader{rc: rc, rec: r}, nil
}

type recordingReader struct {
	rc  io.ReadCloser
	rec *recorder
}

func (t *recordingReader) Read(p []byte) (int, error) {
	n, err := t.rc.Read(p)
	t.rec.buf.Write(p[:n])
	switch {
	case err == io.EOF:
		if int64(t.rec.buf.Len()) < t.rec.Len() {
			t.rec.err = io.ErrUnexpectedEOF
		}
	case err != nil:
		t.rec.err = err
	}
	return n, err
}

func (t *recordingReader) Close() error { return t.rc.Close() }
