package httpx

import (
	"dqx0.com/go/rawhttp/httpx/header"
)

// Header is the case-insensitive multi-value header store.
type Header = header.Header

// headerCarrier exposes a Header to OpenTelemetry propagators.
type headerCarrier struct {
	h *header.Header
}

func (c headerCarrier) Get(key string) string {
	return c.h.Text(key)
}

func (c headerCarrier) Set(key, value string) {
	c.h.Set(key, header.Str(value))
}

func (c headerCarrier) Keys() []string {
	return c.h.Names()
}
