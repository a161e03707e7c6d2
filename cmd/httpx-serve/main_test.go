package main

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dqx0.com/go/rawhttp/httpx"
	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
	"dqx0.com/go/rawhttp/internal/obs"
)

func startFiles(t *testing.T, token string) (string, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config{Host: "127.0.0.1", Root: root, Token: token}
	s := newServer(cfg, obs.NopLogger{}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return root, "http://" + ln.Addr().String()
}

func TestFiles_PostGetListDelete(t *testing.T) {
	root, base := startFiles(t, "")
	ctx := context.Background()

	res, err := httpx.Post(ctx, base+"/sub/a.txt", nil, body.Bytes([]byte("abc")))
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	res, err = httpx.Post(ctx, base+"/sub/a.txt", nil, body.Bytes([]byte("de")))
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	b, err := os.ReadFile(filepath.Join(root, "sub", "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "abcde", string(b))

	res, err = httpx.Get(ctx, base+"/sub/a.txt")
	require.NoError(t, err)
	require.Equal(t, "abcde", string(res.Body))
	require.Equal(t, "*", res.Header.Text("Access-Control-Allow-Origin"))

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.bin"), []byte("12"), 0o644))
	res, err = httpx.Get(ctx, base+"/")
	require.NoError(t, err)
	require.Equal(t, "application/json", res.Header.Text("Content-Type"))
	var list [][]any
	require.NoError(t, json.Unmarshal(res.Body, &list))
	require.Equal(t, [][]any{{"b.bin", 2.0}, {"sub", 5.0}}, list)

	res, err = httpx.Delete(ctx, base+"/sub/a.txt")
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	_, err = os.Stat(filepath.Join(root, "sub", "a.txt"))
	require.True(t, os.IsNotExist(err))

	res, err = httpx.Get(ctx, base+"/sub/a.txt")
	require.NoError(t, err)
	require.Equal(t, 404, res.StatusCode)
}

func TestFiles_NoEscape(t *testing.T) {
	root, base := startFiles(t, "")
	res, err := httpx.Post(context.Background(), base+"/../escape", nil, body.Bytes([]byte("x")))
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	_, err = os.Stat(filepath.Join(root, "escape"))
	require.NoError(t, err)
}

func TestFiles_Token(t *testing.T) {
	_, base := startFiles(t, "s3cret")
	ctx := context.Background()

	res, err := httpx.Get(ctx, base+"/")
	require.NoError(t, err)
	require.Equal(t, 401, res.StatusCode)
	require.Equal(t, "Bearer", res.Header.Text("WWW-Authenticate"))

	res, err = httpx.Do(ctx, "GET", base+"/", header.FromPairs(header.P("Authorization", "Bearer s3cret")), nil)
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)

	res, err = httpx.Do(ctx, "OPTIONS", base+"/anything", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "GET, POST, DELETE, OPTIONS", res.Header.Text("Allow"))
	require.Equal(t, "Authorization", res.Header.Text("Access-Control-Allow-Headers"))
}

func TestBearer(t *testing.T) {
	require.Equal(t, "abc", bearer("Bearer abc"))
	require.Equal(t, "abc", bearer("  bearer   abc "))
	require.Equal(t, "abc", bearer("abc"))
}

func TestParseConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HTTPX_TOKEN", "tok")
	cfg, err := parseConfig([]string{"-port", "1", "-root", "/srv"})
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "tok", cfg.Token)
	require.Equal(t, "/srv", cfg.Root)

	t.Setenv("PORT", "x")
	_, err = parseConfig(nil)
	require.Error(t, err)

	_, err = newLogger("xml")
	require.Error(t, err)
}
