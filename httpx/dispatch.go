package httpx

import (
	"errors"
	"fmt"
	"runtime/debug"

	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
)

// Handlers are the fallback responders used by the Dispatcher. Nil fields
// use the defaults from DefaultHandlers.
type Handlers struct {
	NotFound         Handler
	MethodNotAllowed Handler
	Error            Handler
}

// DefaultHandlers answer with a JSON string body naming the status.
func DefaultHandlers() Handlers {
	return Handlers{
		NotFound:         jsonStatus(404, "404 Not Found"),
		MethodNotAllowed: jsonStatus(405, "405 Method Not Allowed"),
		Error:            jsonStatus(500, "500 Internal Server Error"),
	}
}

func jsonStatus(code int, msg string) HandlerFunc {
	return func(*Request, ...string) (*Result, error) {
		src, err := body.JSON(msg)
		if err != nil {
			return nil, err
		}
		h := header.New()
		h.Set("Content-Type", header.Str(body.TypeJSON))
		return Respond(src, code, h), nil
	}
}

func (h Handlers) withDefaults() Handlers {
	d := DefaultHandlers()
	if h.NotFound == nil {
		h.NotFound = d.NotFound
	}
	if h.MethodNotAllowed == nil {
		h.MethodNotAllowed = d.MethodNotAllowed
	}
	if h.Error == nil {
		h.Error = d.Error
	}
	return h
}

// Dispatcher matches requests against a Router and runs the handler.
type Dispatcher struct {
	router   *Router
	handlers Handlers
}

func NewDispatcher(router *Router, handlers Handlers) *Dispatcher {
	return &Dispatcher{router: router, handlers: handlers.withDefaults()}
}

// Dispatch runs the matching route, or the method-not-allowed handler when
// only the path matched, or the not-found handler. A nil result falls back
// to not-found. Handler failures and panics come back as *HandlerError
// unless they are transport failures.
func (d *Dispatcher) Dispatch(r *Request) (*Result, error) {
	route, groups, pathFound := d.router.Match(r.Method, r.Path)
	var h Handler
	switch {
	case route != nil:
		h = route.Handler
		r.Params = groups
	case pathFound:
		h = d.handlers.MethodNotAllowed
	default:
		h = d.handlers.NotFound
	}
	res, err := d.call(h, r, groups)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return d.call(d.handlers.NotFound, r, nil)
	}
	return res, nil
}

// Error produces the error handler's response for r. It falls back to the
// default 500 body when the configured handler fails too.
func (d *Dispatcher) Error(r *Request) *Result {
	res, err := d.call(d.handlers.Error, r, nil)
	if err != nil || res == nil {
		res, _ = DefaultHandlers().Error.Serve(r)
	}
	return res
}

func (d *Dispatcher) call(h Handler, r *Request, groups []string) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &HandlerError{
				Method: r.Method,
				Path:   r.Path,
				Err:    fmt.Errorf("panic: %v\n%s", p, debug.Stack()),
				Panic:  p,
			}
		}
	}()
	res, err = h.Serve(r, groups...)
	var he *HandlerError
	if err != nil && !errors.As(err, &he) && !IsConnectivity(err) {
		err = &HandlerError{Method: r.Method, Path: r.Path, Err: err}
	}
	return res, err
}
