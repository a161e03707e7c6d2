package httpx

import (
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"dqx0.com/go/rawhttp/httpx/body"
)

func resultBody(t *testing.T, res *Result) string {
	t.Helper()
	b, err := body.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestDispatch_ParamsAndFallbacks(t *testing.T) {
	r := NewRouter()
	r.GET(`/p/(\w+)`, func(req *Request, groups ...string) (*Result, error) {
		require.Equal(t, groups, req.Params)
		return Reply(groups[0])
	})
	d := NewDispatcher(r, Handlers{})

	res, err := d.Dispatch(&Request{Method: "GET", Path: "/p/x"})
	require.NoError(t, err)
	require.Equal(t, "x", resultBody(t, res))

	res, err = d.Dispatch(&Request{Method: "POST", Path: "/p/x"})
	require.NoError(t, err)
	require.Equal(t, 405, res.Status)

	res, err = d.Dispatch(&Request{Method: "GET", Path: "/q"})
	require.NoError(t, err)
	require.Equal(t, 404, res.Status)
	require.Equal(t, `"404 Not Found"`, resultBody(t, res))
}

func TestDispatch_CustomNotFound(t *testing.T) {
	d := NewDispatcher(NewRouter(), Handlers{
		NotFound: HandlerFunc(func(r *Request, _ ...string) (*Result, error) {
			return Respond(body.Bytes([]byte("nope "+r.Path)), 404, nil), nil
		}),
	})
	res, err := d.Dispatch(&Request{Method: "GET", Path: "/z"})
	require.NoError(t, err)
	require.Equal(t, "nope /z", resultBody(t, res))
}

func TestDispatch_Errors(t *testing.T) {
	r := NewRouter()
	r.GET("/err", func(*Request, ...string) (*Result, error) { return nil, io.ErrShortWrite })
	r.GET("/gone", func(*Request, ...string) (*Result, error) { return nil, syscall.EPIPE })
	r.GET("/panic", func(*Request, ...string) (*Result, error) { panic(errors.New("p")) })
	d := NewDispatcher(r, Handlers{})

	_, err := d.Dispatch(&Request{Method: "GET", Path: "/err"})
	var he *HandlerError
	require.ErrorAs(t, err, &he)
	require.ErrorIs(t, err, io.ErrShortWrite)
	require.Nil(t, he.Panic)

	_, err = d.Dispatch(&Request{Method: "GET", Path: "/gone"})
	require.True(t, IsConnectivity(err))
	require.False(t, errors.As(err, &he))

	_, err = d.Dispatch(&Request{Method: "GET", Path: "/panic"})
	require.ErrorAs(t, err, &he)
	require.NotNil(t, he.Panic)
	require.Contains(t, he.Error(), "panicked")
}

func TestDispatch_ErrorHandlerFallsBack(t *testing.T) {
	d := NewDispatcher(NewRouter(), Handlers{
		Error: HandlerFunc(func(*Request, ...string) (*Result, error) { return nil, errors.New("worse") }),
	})
	res := d.Error(&Request{Method: "GET", Path: "/"})
	require.Equal(t, 500, res.Status)
	require.Equal(t, `"500 Internal Server Error"`, resultBody(t, res))
}

func TestIsConnectivity(t *testing.T) {
	require.False(t, IsConnectivity(nil))
	require.False(t, IsConnectivity(errors.New("x")))
	require.False(t, IsConnectivity(&HandlerError{Err: errors.New("x")}))
	require.True(t, IsConnectivity(&ConnError{Op: "read", Err: io.EOF}))
	require.True(t, IsConnectivity(syscall.ECONNRESET))
	require.True(t, IsConnectivity(io.ErrClosedPipe))
	require.ErrorIs(t, wrapConn("read", "x", ErrMalformedHeader), ErrMalformedHeader)
	require.False(t, IsConnectivity(wrapConn("read", "x", ErrMalformedHeader)))
}
