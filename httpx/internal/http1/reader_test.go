package http1

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
)

func readReq(t *testing.T, raw string, maxLine int) (*Message, error) {
	t.Helper()
	r := &Reader{BR: bufio.NewReader(strings.NewReader(raw)), MaxHeaderBytes: maxLine}
	return r.ReadRequest()
}

func TestReader_ContentLengthBody(t *testing.T) {
	raw := "POST /up?x=1 HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	m, err := readReq(t, raw, 0)
	require.NoError(t, err)
	require.Equal(t, "POST", m.Method)
	require.Equal(t, "/up?x=1", m.Target)
	require.Equal(t, "HTTP/1.1", m.Proto)
	require.Equal(t, "hello", string(m.Body))
}

func TestReader_TruncatesToContentLength(t *testing.T) {
	// Trailing bytes after the declared body stay unread.
	raw := "POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabcdef"
	br := bufio.NewReader(strings.NewReader(raw))
	m, err := (&Reader{BR: br}).ReadRequest()
	require.NoError(t, err)
	require.Equal(t, "abc", string(m.Body))
	rest, _ := io.ReadAll(br)
	require.Equal(t, "def", string(rest))
}

func TestReader_LargeBodyChunks(t *testing.T) {
	payload := strings.Repeat("z", 3*body.ChunkSize+17)
	raw := "PUT /f HTTP/1.1\r\nContent-Length: 3089\r\n\r\n" + payload
	m, err := readReq(t, raw, 0)
	require.NoError(t, err)
	require.Equal(t, payload, string(m.Body))
}

func TestReader_ZeroLength(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nContent-Length: 0\r\n\r\nNEXT"
	br := bufio.NewReader(strings.NewReader(raw))
	m, err := (&Reader{BR: br}).ReadRequest()
	require.NoError(t, err)
	require.Empty(t, m.Body)
	rest, _ := io.ReadAll(br)
	require.Equal(t, "NEXT", string(rest), "no body bytes may be consumed")
}

func TestReader_NoContentLength(t *testing.T) {
	m, err := readReq(t, "GET / HTTP/1.1\r\nHost: x\r\n\r\n", 0)
	require.NoError(t, err)
	require.Empty(t, m.Body)
}

func TestReader_ShortBody(t *testing.T) {
	_, err := readReq(t, "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc", 0)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_MultipleContentLength(t *testing.T) {
	m, err := readReq(t, "POST / HTTP/1.1\r\nContent-Length: 2\r\nContent-Length: 2\r\n\r\nok", 0)
	require.NoError(t, err)
	require.True(t, m.DuplicateLength)
	require.Equal(t, "ok", string(m.Body))

	_, err = readReq(t, "POST / HTTP/1.1\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\nhello!", 0)
	require.ErrorIs(t, err, ErrConflictingLength)
}

func TestReader_BadContentLength(t *testing.T) {
	for _, v := range []string{"abc", "-1", "1.5", "5, 6"} {
		_, err := readReq(t, "POST / HTTP/1.1\r\nContent-Length: "+v+"\r\n\r\n", 0)
		require.ErrorIs(t, err, ErrBadContentLength, v)
	}
}

func TestReader_MalformedStartLine(t *testing.T) {
	for _, raw := range []string{"GET /\r\n\r\n", "GET  / HTTP/1.1\r\n\r\n", "garbage\r\n\r\n"} {
		_, err := readReq(t, raw, 0)
		require.ErrorIs(t, err, ErrMalformedStartLine, raw)
	}
}

func TestReader_InvalidHeaderName(t *testing.T) {
	_, err := readReq(t, "GET / HTTP/1.1\r\nBad( : v\r\n\r\n", 0)
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestReader_MaxHeaderBytes(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 64) + "\r\n\r\n"
	_, err := readReq(t, raw, 32)
	require.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestReader_OversizedStartLine(t *testing.T) {
	_, err := readReq(t, "GET /"+strings.Repeat("a", 64)+" HTTP/1.1\r\n\r\n", 32)
	require.ErrorIs(t, err, ErrMalformedStartLine)
	require.ErrorIs(t, err, ErrHeaderTooLarge)

	r := &Reader{BR: bufio.NewReader(strings.NewReader("HTTP/1.1 200 " + strings.Repeat("x", 64) + "\r\n\r\n")), MaxHeaderBytes: 32}
	_, err = r.ReadResponse()
	require.ErrorIs(t, err, ErrMalformedStartLine)
}

func TestReader_MaxBodyBytes(t *testing.T) {
	r := &Reader{BR: bufio.NewReader(strings.NewReader("POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n")), MaxBodyBytes: 10}
	_, err := r.ReadRequest()
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestReader_HeaderValuesCoerced(t *testing.T) {
	m, err := readReq(t, "GET / HTTP/1.1\r\nX-A: 1\r\nx-a: 2\r\nX-Ratio: 0.5\r\nX-Time: 10:30\r\n\r\n", 0)
	require.NoError(t, err)
	vv := m.Header.Values("X-A")
	require.Len(t, vv, 2)
	require.True(t, vv[0].Equal(header.Int(1)))
	require.True(t, vv[1].Equal(header.Int(2)))
	f, ok := m.Header.Values("x-ratio")[0].Float()
	require.True(t, ok)
	require.Equal(t, 0.5, f)
	require.Equal(t, "10:30", m.Header.Text("X-Time"), "split on the first colon only")
}

func TestReader_Response(t *testing.T) {
	raw := "HTTP/1.1 404\r\nContent-Length: 2\r\n\r\n{}"
	r := &Reader{BR: bufio.NewReader(strings.NewReader(raw))}
	m, err := r.ReadResponse()
	require.NoError(t, err)
	require.Equal(t, 404, m.StatusCode)
	require.Empty(t, m.Reason)
	require.Equal(t, "{}", string(m.Body))

	r = &Reader{BR: bufio.NewReader(strings.NewReader("HTTP/1.0 200 OK\r\n\r\n"))}
	m, err = r.ReadResponse()
	require.NoError(t, err)
	require.Equal(t, "OK", m.Reason)

	r = &Reader{BR: bufio.NewReader(strings.NewReader("ICY 200 OK\r\n\r\n"))}
	_, err = r.ReadResponse()
	require.ErrorIs(t, err, ErrMalformedStartLine)
}

func TestReader_EOFBeforeRequest(t *testing.T) {
	_, err := readReq(t, "", 0)
	require.ErrorIs(t, err, io.EOF)
}

func TestRoundTrip_JSON(t *testing.T) {
	src, err := body.JSON(map[string]int{"a": 1})
	require.NoError(t, err)
	h := header.New()
	h.SetString("Host", "example.com")
	h.Set("Content-Type", header.Str(src.ContentType()))
	h.Set("Content-Length", header.Int(src.Len()))

	var buf bytes.Buffer
	w := &Writer{BW: bufio.NewWriter(&buf)}
	require.NoError(t, w.WriteRequest("POST", "/json", h, src))

	m, err := (&Reader{BR: bufio.NewReader(&buf)}).ReadRequest()
	require.NoError(t, err)
	require.Equal(t, "application/json", m.Header.Text("content-type"))
	n, _ := m.Header.Values("Content-Length")[0].Int()
	require.Equal(t, int64(len(`{"a":1}`)), n)

	var got map[string]int
	require.NoError(t, json.Unmarshal(m.Body, &got))
	require.Equal(t, map[string]int{"a": 1}, got)
}

func TestParseIdempotent(t *testing.T) {
	raw := "PATCH /a/b HTTP/1.1\r\nX-A: 1\r\nX-A: two\r\nContent-Length: 4\r\n\r\nbody"
	a, err := readReq(t, raw, 0)
	require.NoError(t, err)
	b, err := readReq(t, raw, 0)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
