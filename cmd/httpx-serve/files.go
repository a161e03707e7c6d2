package main

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"dqx0.com/go/rawhttp/httpx"
	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
)

// files serves, appends to and removes files below root.
type files struct {
	root  string
	token string
}

func (f *files) register(r *httpx.Router) {
	r.GET("/(.*)", f.guard(f.get))
	r.POST("/(.*)", f.guard(f.post))
	r.DELETE("/(.*)", f.guard(f.delete))
	r.OPTIONS("/(.*)", f.options)
}

// guard answers 401 unless the request carries the bearer token. An empty
// token disables the check.
func (f *files) guard(next httpx.HandlerFunc) httpx.HandlerFunc {
	return func(r *httpx.Request, groups ...string) (*httpx.Result, error) {
		if f.token == "" {
			return next(r, groups...)
		}
		for _, v := range r.Header.Values("Authorization") {
			if bearer(v.String()) == f.token {
				return next(r, groups...)
			}
		}
		return httpx.Status(401).WithHeader("WWW-Authenticate", header.Str("Bearer")), nil
	}
}

// bearer returns what follows the Bearer scheme, or the whole value.
func bearer(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.Index(strings.ToLower(v), "bearer"); i >= 0 {
		return strings.TrimSpace(v[i+len("bearer"):])
	}
	return v
}

func (f *files) resolve(p string) string {
	if u, err := url.PathUnescape(p); err == nil {
		p = u
	}
	return filepath.Join(f.root, filepath.FromSlash(path.Clean("/"+p)))
}

func (f *files) get(_ *httpx.Request, groups ...string) (*httpx.Result, error) {
	p := f.resolve(groups[0])
	fi, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		src, err := body.File(p)
		if err != nil {
			return nil, err
		}
		return httpx.Respond(src, 200, nil), nil
	}
	entries, err := listing(p)
	if err != nil {
		return nil, err
	}
	return httpx.Reply(entries)
}

// listing returns [name, size] pairs sorted by name; a directory's size is
// the total of the regular files below it.
func listing(dir string) ([][]any, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([][]any, 0, len(des))
	for _, de := range des {
		var size int64
		if de.IsDir() {
			size, err = treeSize(filepath.Join(dir, de.Name()))
		} else {
			var fi fs.FileInfo
			if fi, err = de.Info(); err == nil {
				size = fi.Size()
			}
		}
		if err != nil {
			return nil, err
		}
		out = append(out, []any{de.Name(), size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0].(string) < out[j][0].(string) })
	return out, nil
}

func treeSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
		}
		return nil
	})
	return total, err
}

func (f *files) post(r *httpx.Request, groups ...string) (*httpx.Result, error) {
	p := f.resolve(groups[0])
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	fh, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := fh.Write(r.Body); err != nil {
		fh.Close()
		return nil, err
	}
	if err := fh.Close(); err != nil {
		return nil, err
	}
	return httpx.Status(200), nil
}

func (f *files) delete(_ *httpx.Request, groups ...string) (*httpx.Result, error) {
	p := f.resolve(groups[0])
	fi, err := os.Stat(p)
	if err != nil {
		return nil, nil
	}
	if err := os.Remove(p); err != nil {
		if fi.IsDir() {
			return httpx.Status(403), nil
		}
		return nil, nil
	}
	return httpx.Status(200), nil
}

func (f *files) options(*httpx.Request, ...string) (*httpx.Result, error) {
	return httpx.Status(200).
		WithHeader("Allow", header.Str("GET, POST, DELETE, OPTIONS")).
		WithHeader("Access-Control-Allow-Headers", header.Str("Authorization")), nil
}
