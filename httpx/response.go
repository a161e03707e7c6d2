package httpx

import (
	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
)

// Response is the outcome of one client exchange. SentHeader and SentBody
// are what actually went on the wire, kept for diagnostics and replay.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Header     *header.Header
	Body       []byte

	SentHeader *header.Header
	SentBody   []byte
}

// Result is what a handler returns. A zero Status means 200, a nil Body
// means no body and a nil Header means no extra headers.
type Result struct {
	Body   body.Source
	Status int
	Header *header.Header
}

// Respond builds a Result.
func Respond(src body.Source, status int, h *header.Header) *Result {
	return &Result{Body: src, Status: status, Header: h}
}

// Status is a Result without a body.
func Status(code int) *Result {
	return &Result{Status: code}
}

// Reply converts v with body.FromValue and answers 200.
func Reply(v any) (*Result, error) {
	src, err := body.FromValue(v)
	if err != nil {
		return nil, err
	}
	return &Result{Body: src}, nil
}

// WithHeader sets name on the result's headers and returns r.
func (r *Result) WithHeader(name string, vals ...header.Value) *Result {
	if r.Header == nil {
		r.Header = header.New()
	}
	r.Header.Set(name, vals...)
	return r
}
