package httpx

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/internal/http1"
)

var (
	ErrUnsupportedScheme   = errors.New("httpx: unsupported scheme")
	ErrMissingContentType  = errors.New("httpx: content-type is required")
	ErrServerClosed        = errors.New("httpx: server closed")
	errMissingHost         = errors.New("httpx: missing host")
	errBadPort             = errors.New("httpx: invalid port")
	ErrUnsupportedBodyType = body.ErrUnsupportedBodyType

	ErrMalformedStartLine = http1.ErrMalformedStartLine
	ErrMalformedHeader    = http1.ErrMalformedHeader
	ErrHeaderTooLarge     = http1.ErrHeaderTooLarge
	ErrBodyTooLarge       = http1.ErrBodyTooLarge
	ErrBadContentLength   = http1.ErrBadContentLength
	ErrConflictingLength  = http1.ErrConflictingLength
	ErrInvalidHeader      = http1.ErrInvalidHeader
)

// ConnError is a transport failure: dial, TLS handshake, socket read or
// write. It is never turned into an HTTP response.
type ConnError struct {
	Op   string // "dial", "tls", "read", "write"
	Addr string
	Err  error
}

func (e *ConnError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("httpx: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("httpx: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err originates from the transport rather
// than from the protocol or the application.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConnError
	if errors.As(err, &ce) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// HandlerError is any non-transport failure raised while dispatching a
// request. The peer got the error handler's response before it surfaced.
type HandlerError struct {
	Method string
	Path   string
	Err    error
	// Panic holds the recovered value when the handler panicked.
	Panic any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("httpx: handler for %s %s panicked: %v", e.Method, e.Path, e.Panic)
	}
	return fmt.Sprintf("httpx: handler for %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// wrapConn tags err as a transport failure unless it already is one or it
// is a protocol error from the codec.
func wrapConn(op, addr string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnError
	if errors.As(err, &ce) || isProtocol(err) {
		return err
	}
	return &ConnError{Op: op, Addr: addr, Err: err}
}

func isProtocol(err error) bool {
	for _, p := range []error{
		http1.ErrMalformedStartLine, http1.ErrMalformedHeader, http1.ErrHeaderTooLarge,
		http1.ErrBadContentLength, http1.ErrConflictingLength, http1.ErrBodyTooLarge,
		http1.ErrInvalidHeader, body.ErrUnsupportedBodyType,
	} {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// headSent reports whether err struck after the response head was written,
// leaving no room for an error response.
func headSent(err error) bool {
	var se *body.SourceError
	return errors.As(err, &se)
}
