package httpx

import "context"

type ctxKey uint8

const (
	ctxKeyRequestID ctxKey = iota + 1
	ctxKeyRemoteAddr
)

// WithRequestID returns a copy of ctx carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFrom returns the request id set by the server, if any.
func RequestIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, ctxKeyRequestID)
}

// WithRemoteAddr returns a copy of ctx carrying the peer address.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ctxKeyRemoteAddr, addr)
}

// RemoteAddrFrom returns the address of the connection the request came in
// on.
func RemoteAddrFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, ctxKeyRemoteAddr)
}

func stringFrom(ctx context.Context, k ctxKey) (string, bool) {
	s, _ := ctx.Value(k).(string)
	return s, s != ""
}
