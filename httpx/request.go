package httpx

import (
	"context"
	"net/url"
	"strings"

	"dqx0.com/go/rawhttp/httpx/header"
)

// Request is an inbound request as seen by a handler.
type Request struct {
	Method string
	// Target is the request-target exactly as received.
	Target   string
	Path     string
	RawQuery string
	Proto    string
	Scheme   string
	Host     string
	Port     int
	Header   *header.Header
	Body     []byte
	// Params holds the groups captured by the matched route pattern.
	Params     []string
	RemoteAddr string
	// RequestID is the inbound X-Request-ID or a generated one.
	RequestID string
	ctx       context.Context
}

// Context returns the request's context. If nil, returns Background.
func (r *Request) Context() context.Context {
	if r == nil || r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func WithContext(r *Request, ctx context.Context) *Request {
	if r == nil {
		return nil
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// Query parses the query string. Malformed pairs are skipped.
func (r *Request) Query() url.Values {
	v, _ := url.ParseQuery(r.RawQuery)
	return v
}

// Form parses the body as application/x-www-form-urlencoded.
func (r *Request) Form() (url.Values, error) {
	return url.ParseQuery(string(r.Body))
}

// URL rebuilds the absolute URL of the request.
func (r *Request) URL() *url.URL {
	u := &url.URL{Scheme: r.Scheme, Host: hostWithPort(r.Scheme, r.Host, r.Port), Path: r.Path, RawQuery: r.RawQuery}
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	return u
}

func splitTarget(target string) (path, query string) {
	path, query, _ = strings.Cut(target, "?")
	return path, query
}
