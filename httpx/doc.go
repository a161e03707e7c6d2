// Package httpx is a small HTTP/1.1 client and server written directly
// against net.Conn, one request per connection.
//
// Highlights
//   - Server: regexp routes with captured groups, 404/405/500 fallback
//     handlers, server-wide default headers, Date and Content-Length
//     framing, optional TLS, graceful shutdown.
//   - Client: http and https (SNI/ALPN), ordered outbound headers, the
//     sent header and body kept on the Response, context deadlines.
//   - Messages: content-length framing only; bodies are body.Source
//     values that know their length before the first byte is written.
//   - Observability: plug-in Logger and Meter interfaces, OpenTelemetry
//     spans and W3C trace context on both sides.
//
// Quick start (server):
//
//	s := &httpx.Server{Port: 8080}
//	s.Router = httpx.NewRouter()
//	s.Router.GET(`/hello/(\w+)`, func(r *httpx.Request, groups ...string) (*httpx.Result, error) {
//	    return httpx.Reply("hello " + groups[0])
//	})
//	if err := s.ListenAndServe(); err != nil { log.Fatal(err) }
//
// Quick start (client):
//
//	res, err := httpx.Get(ctx, "http://127.0.0.1:8080/hello/you")
//	if err != nil { log.Fatal(err) }
//	fmt.Println(res.StatusCode, string(res.Body))
package httpx
