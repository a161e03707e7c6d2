package httpx

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// target is the resolved destination of one client exchange.
type target struct {
	scheme string
	host   string // without port, brackets stripped
	port   int
	// requestURI is path plus query, "/" when empty.
	requestURI string
}

func parseTarget(rawURL string) (*target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &url.Error{Op: "parse", URL: rawURL, Err: ErrUnsupportedScheme}
	}
	t := &target{scheme: scheme, host: u.Hostname(), port: defaultPort(scheme)}
	if t.host == "" {
		return nil, &url.Error{Op: "parse", URL: rawURL, Err: errMissingHost}
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return nil, &url.Error{Op: "parse", URL: rawURL, Err: errBadPort}
		}
		t.port = n
	}
	t.requestURI = u.EscapedPath()
	if t.requestURI == "" {
		t.requestURI = "/"
	}
	if u.RawQuery != "" {
		t.requestURI += "?" + u.RawQuery
	}
	return t, nil
}

func (t *target) addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// hostHeader is the Host field value; the port is only given when it is
// not the scheme default.
func (t *target) hostHeader() string {
	return hostWithPort(t.scheme, t.host, t.port)
}

func hostWithPort(scheme, host string, port int) string {
	if port == 0 || port == defaultPort(scheme) {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}

// dialConn opens the stream for t, TLS-wrapped for https.
func (c *Client) dialConn(ctx context.Context, t *target) (net.Conn, error) {
	addr := t.addr()
	dial := c.Dial
	if dial == nil {
		d := &net.Dialer{Timeout: c.DialTimeout}
		dial = d.DialContext
	}
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnError{Op: "dial", Addr: addr, Err: err}
	}
	if t.scheme != "https" {
		return conn, nil
	}
	cfg := c.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	// Ensure SNI and ALPN
	if cfg.ServerName == "" {
		cfg = cfg.Clone()
		cfg.ServerName = t.host
	}
	if len(cfg.NextProtos) == 0 {
		cfg = cfg.Clone()
		cfg.NextProtos = []string{"http/1.1"}
	}
	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, &ConnError{Op: "tls", Addr: addr, Err: err}
	}
	return tc, nil
}

// setDeadlineWithContext applies the earlier of now+timeout and the ctx
// deadline to c. Zero timeout and no ctx deadline leave c unbounded.
func setDeadlineWithContext(c net.Conn, timeout time.Duration, ctx context.Context) {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if dl, ok := ctx.Deadline(); ok {
		if d.IsZero() || dl.Before(d) {
			d = dl
		}
	}
	if !d.IsZero() {
		_ = c.SetDeadline(d)
	}
}
