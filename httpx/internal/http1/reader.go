package http1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
)

var (
	ErrMalformedStartLine = errors.New("http1: malformed start line")
	ErrMalformedHeader    = errors.New("http1: malformed header line")
	ErrHeaderTooLarge     = errors.New("http1: header line too large")
	ErrBadContentLength   = errors.New("http1: invalid Content-Length")
	ErrConflictingLength  = errors.New("http1: conflicting Content-Length values")
	ErrBodyTooLarge       = errors.New("http1: body too large")
)

// DefaultMaxHeaderBytes bounds a single start or header line.
const DefaultMaxHeaderBytes = 8 << 10

// Message is a request or response parsed from the wire. Only the fields
// of its kind are set.
type Message struct {
	Method string
	Target string

	StatusCode int
	Reason     string

	Proto  string
	Header *header.Header
	Body   []byte

	// DuplicateLength is set when several identical Content-Length
	// values were received.
	DuplicateLength bool
}

// Reader parses one message off a buffered stream.
type Reader struct {
	BR             *bufio.Reader
	MaxHeaderBytes int
	// MaxBodyBytes rejects larger advertised bodies; 0 means no limit.
	MaxBodyBytes int64
}

// ReadRequest parses `METHOD SP target SP proto`, the header block and the
// content-length delimited body.
func (r *Reader) ReadRequest() (*Message, error) {
	line, err := r.readStartLine()
	if err != nil {
		return nil, err
	}
	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformedStartLine
	}
	if !httpguts.ValidHeaderFieldName(parts[0]) {
		return nil, ErrMalformedStartLine
	}
	m := &Message{
		Method: strings.ToUpper(parts[0]),
		Target: parts[1],
		Proto:  parts[2],
	}
	if err := r.readRest(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadResponse parses `proto SP status [SP reason]`, the header block and
// the content-length delimited body.
func (r *Reader) ReadResponse() (*Message, error) {
	line, err := r.readStartLine()
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return nil, ErrMalformedStartLine
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 999 {
		return nil, ErrMalformedStartLine
	}
	m := &Message{Proto: parts[0], StatusCode: code}
	if len(parts) == 3 {
		m.Reason = parts[2]
	}
	if err := r.readRest(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Reader) readRest(m *Message) error {
	h, err := r.readHeaders()
	if err != nil {
		return err
	}
	m.Header = h
	n, dup, err := ContentLength(h)
	if err != nil {
		return err
	}
	m.DuplicateLength = dup
	if r.MaxBodyBytes > 0 && n > r.MaxBodyBytes {
		return ErrBodyTooLarge
	}
	m.Body, err = r.readBody(n)
	return err
}

func (r *Reader) readHeaders() (*header.Header, error) {
	h := header.New()
	for {
		line, err := r.readLine()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return nil, ErrMalformedHeader
		}
		k := strings.TrimSpace(line[:i])
		if !httpguts.ValidHeaderFieldName(k) {
			return nil, ErrMalformedHeader
		}
		h.Add(k, header.Coerce(strings.TrimSpace(line[i+1:])))
	}
	return h, nil
}

// readBody reads exactly n bytes, ChunkSize at a time.
func (r *Reader) readBody(n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, 0, min(n, 64<<10))
	chunk := make([]byte, body.ChunkSize)
	for remain := n; remain > 0; {
		want := int64(len(chunk))
		if want > remain {
			want = remain
		}
		got, err := io.ReadFull(r.BR, chunk[:want])
		buf = append(buf, chunk[:got]...)
		remain -= int64(got)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	return buf, nil
}

// readStartLine reads the first line. An oversized line is a malformed
// start line; ErrHeaderTooLarge stays in the chain.
func (r *Reader) readStartLine() (string, error) {
	line, err := r.readLine()
	if errors.Is(err, ErrHeaderTooLarge) {
		return "", fmt.Errorf("%w: %w", ErrMalformedStartLine, err)
	}
	return line, err
}

func (r *Reader) readLine() (string, error) {
	limit := r.MaxHeaderBytes
	if limit <= 0 {
		limit = DefaultMaxHeaderBytes
	}
	var sb strings.Builder
	for {
		b, err := r.BR.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if b == '\n' {
			break
		}
		if b != '\r' {
			sb.WriteByte(b)
		}
		if sb.Len() > limit {
			return "", ErrHeaderTooLarge
		}
	}
	return sb.String(), nil
}

// ContentLength returns the advertised body length of h, 0 when absent.
// Identical repeated values are accepted and reported through dup.
func ContentLength(h *header.Header) (n int64, dup bool, err error) {
	vv := h.Values("Content-Length")
	if len(vv) == 0 {
		return 0, false, nil
	}
	first, ok := vv[0].Int()
	if !ok || first < 0 {
		return 0, false, ErrBadContentLength
	}
	for _, v := range vv[1:] {
		if n, ok := v.Int(); !ok || n != first {
			return 0, false, ErrConflictingLength
		}
	}
	return first, len(vv) > 1, nil
}
