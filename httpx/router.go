package httpx

import (
	"fmt"
	"regexp"
	"strings"
)

// Handler answers a request. groups are the submatches captured by the
// route pattern, in order. Returning (nil, nil) falls back to not-found.
type Handler interface {
	Serve(r *Request, groups ...string) (*Result, error)
}

type HandlerFunc func(r *Request, groups ...string) (*Result, error)

func (f HandlerFunc) Serve(r *Request, groups ...string) (*Result, error) {
	return f(r, groups...)
}

// Route is one registered (method, anchored pattern, handler) entry.
type Route struct {
	Method  string
	Pattern *regexp.Regexp
	Handler Handler
}

// Router is an ordered route table. Register routes before serving; the
// table is not safe for mutation while requests are dispatched.
type Router struct {
	Routes []Route
}

func NewRouter() *Router {
	return &Router{}
}

// Anchor wraps pattern so it only matches a whole path.
func Anchor(pattern string) string {
	p := strings.TrimPrefix(pattern, "^")
	if strings.HasSuffix(p, "$") && !strings.HasSuffix(p, `\$`) {
		p = p[:len(p)-1]
	}
	return "^(?:" + p + ")$"
}

// Handle registers h for pattern under each method (GET when none given).
func (router *Router) Handle(pattern string, h Handler, methods ...string) error {
	if h == nil {
		return fmt.Errorf("httpx: nil handler for %q", pattern)
	}
	re, err := regexp.Compile(Anchor(pattern))
	if err != nil {
		return fmt.Errorf("httpx: route %q: %w", pattern, err)
	}
	if len(methods) == 0 {
		methods = []string{"GET"}
	}
	for _, m := range methods {
		router.Routes = append(router.Routes, Route{
			Method:  strings.ToUpper(m),
			Pattern: re,
			Handler: h,
		})
	}
	return nil
}

// MustHandle is Handle that panics on a bad pattern.
func (router *Router) MustHandle(pattern string, h Handler, methods ...string) {
	if err := router.Handle(pattern, h, methods...); err != nil {
		panic(err)
	}
}

func (router *Router) GET(pattern string, h HandlerFunc) {
	router.MustHandle(pattern, h, "GET")
}

func (router *Router) HEAD(pattern string, h HandlerFunc) {
	router.MustHandle(pattern, h, "HEAD")
}

func (router *Router) POST(pattern string, h HandlerFunc) {
	router.MustHandle(pattern, h, "POST")
}

func (router *Router) PUT(pattern string, h HandlerFunc) {
	router.MustHandle(pattern, h, "PUT")
}

func (router *Router) PATCH(pattern string, h HandlerFunc) {
	router.MustHandle(pattern, h, "PATCH")
}

func (router *Router) DELETE(pattern string, h HandlerFunc) {
	router.MustHandle(pattern, h, "DELETE")
}

func (router *Router) OPTIONS(pattern string, h HandlerFunc) {
	router.MustHandle(pattern, h, "OPTIONS")
}

// Match returns the first route, in registration order, whose pattern
// matches path and whose method equals method, with its captured groups.
// pathFound reports whether any route matched the path at all.
func (router *Router) Match(method, path string) (route *Route, groups []string, pathFound bool) {
	if router == nil {
		return nil, nil, false
	}
	for i := range router.Routes {
		rt := &router.Routes[i]
		sm := rt.Pattern.FindStringSubmatch(path)
		if sm == nil {
			continue
		}
		pathFound = true
		if rt.Method == method {
			return rt, sm[1:], true
		}
	}
	return nil, nil, pathFound
}
