package http1

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
)

// recorder keeps every write that reaches the underlying stream.
type recorder struct {
	writes [][]byte
}

func (r *recorder) Write(p []byte) (int, error) {
	r.writes = append(r.writes, bytes.Clone(p))
	return len(p), nil
}

func (r *recorder) String() string { return string(bytes.Join(r.writes, nil)) }

func TestWriter_ResponseWire(t *testing.T) {
	rec := &recorder{}
	w := &Writer{BW: bufio.NewWriter(rec)}
	h := header.FromPairs(header.P("Content-Type", "text/plain"), header.P("Content-Length", "2"))
	require.NoError(t, w.WriteResponse(200, h, body.Raw("text/plain", []byte("ok"))))
	require.Equal(t, "HTTP/1.1 200\r\nContent-Type: text/plain\r\nContent-Length: 2\r\n\r\nok", rec.String())
}

func TestWriter_FlushBoundaries(t *testing.T) {
	rec := &recorder{}
	w := &Writer{BW: bufio.NewWriterSize(rec, 64<<10)}
	payload := strings.Repeat("b", body.ChunkSize+10)
	h := header.FromPairs(header.P("X-A", "1"), header.P("X-A", "2"))
	require.NoError(t, w.WriteRequest("PUT", "/x", h, body.Bytes([]byte(payload))))

	// start line, header block, blank line, then two body chunks.
	require.Len(t, rec.writes, 5)
	require.Equal(t, "PUT /x HTTP/1.1\r\n", string(rec.writes[0]))
	require.Equal(t, "X-A: 1\r\nX-A: 2\r\n", string(rec.writes[1]))
	require.Equal(t, "\r\n", string(rec.writes[2]))
	require.Len(t, rec.writes[3], body.ChunkSize)
	require.Len(t, rec.writes[4], 10)
}

func TestWriter_Newline(t *testing.T) {
	rec := &recorder{}
	w := &Writer{BW: bufio.NewWriter(rec), Newline: []byte("\n")}
	require.NoError(t, w.WriteResponse(204, header.FromPairs(header.P("Server", "t")), nil))
	require.Equal(t, "HTTP/1.1 204\nServer: t\n\n", rec.String())
}

func TestWriter_Encoder(t *testing.T) {
	rec := &recorder{}
	w := &Writer{BW: bufio.NewWriter(rec), Encoder: charmap.ISO8859_1.NewEncoder()}
	require.NoError(t, w.WriteResponse(200, header.FromPairs(header.P("X-Name", "café")), nil))
	require.Contains(t, rec.String(), "X-Name: caf\xe9\r\n")
}

func TestWriter_RejectsInjectedHeader(t *testing.T) {
	rec := &recorder{}
	w := &Writer{BW: bufio.NewWriter(rec)}
	h := header.New()
	h.Set("X-Evil", header.Str("a\r\nSet-Cookie: x"))
	require.ErrorIs(t, w.WriteResponse(200, h, nil), ErrInvalidHeader)
	require.Empty(t, rec.writes, "nothing may reach the wire")

	h = header.New()
	h.Set("Bad Name", header.Str("v"))
	require.ErrorIs(t, w.WriteResponse(200, h, nil), ErrInvalidHeader)
}

func TestValidateHeader(t *testing.T) {
	require.NoError(t, ValidateHeader(nil))
	require.NoError(t, ValidateHeader(header.FromPairs(header.P("X-Ok", "a b"), header.P("N", "1"))))
	require.ErrorIs(t, ValidateHeader(header.FromPairs(header.P("Bad Name", "x"))), ErrInvalidHeader)
	require.ErrorIs(t, ValidateHeader(header.FromPairs(header.P("X", "a\r\nb"))), ErrInvalidHeader)
}

func TestWriter_WriteHeaderValidates(t *testing.T) {
	rec := &recorder{}
	w := &Writer{BW: bufio.NewWriter(rec)}
	require.ErrorIs(t, w.WriteHeader(header.FromPairs(header.P("X", "a\nb"))), ErrInvalidHeader)
	require.NoError(t, w.WriteHeader(header.FromPairs(header.P("X", "1"))))
	require.NoError(t, w.BW.Flush())
	require.Equal(t, "X: 1\r\n", rec.String())
}

func TestWriter_SourceErrorPassesThrough(t *testing.T) {
	rec := &recorder{}
	w := &Writer{BW: bufio.NewWriter(rec)}
	src := body.Framed(body.TypeOctetStream, 4, io.NopCloser(strings.NewReader("ab")))
	err := w.WriteResponse(200, header.FromPairs(header.P("Content-Length", "4")), src)
	var se *body.SourceError
	require.ErrorAs(t, err, &se)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.True(t, strings.HasSuffix(rec.String(), "\r\n\r\nab"), rec.String())
}
