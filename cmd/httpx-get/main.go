// Command httpx-get sends one request with httpx and prints the status
// line, the response headers and the body.
//
//	httpx-get [-X METHOD] [-H 'Name: value']... [-d data] URL
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dqx0.com/go/rawhttp/httpx"
	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
	"dqx0.com/go/rawhttp/internal/obs"
)

type headerFlags []header.Pair

func (h *headerFlags) String() string { return fmt.Sprint(*h) }

func (h *headerFlags) Set(v string) error {
	name, value, ok := strings.Cut(v, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return errors.New("want 'Name: value'")
	}
	*h = append(*h, header.P(strings.TrimSpace(name), strings.TrimSpace(value)))
	return nil
}

type options struct {
	method  string
	headers headerFlags
	data    string
	file    string
	timeout time.Duration
	verbose bool
	url     string
}

func parseOptions(args []string) (*options, error) {
	o := &options{}
	fset := flag.NewFlagSet("httpx-get", flag.ContinueOnError)
	fset.StringVar(&o.method, "X", "", "request method (GET, or POST with a body)")
	fset.Var(&o.headers, "H", "extra header, repeatable")
	fset.StringVar(&o.data, "d", "", "request body")
	fset.StringVar(&o.file, "f", "", "send this file as the request body")
	fset.DurationVar(&o.timeout, "timeout", 30*time.Second, "exchange timeout")
	fset.BoolVar(&o.verbose, "v", false, "print the sent headers and debug logs")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if fset.NArg() != 1 {
		return nil, errors.New("exactly one URL required")
	}
	o.url = fset.Arg(0)
	if o.method == "" {
		o.method = "GET"
		if o.data != "" || o.file != "" {
			o.method = "POST"
		}
	}
	return o, nil
}

func (o *options) source() (body.Source, error) {
	switch {
	case o.file != "":
		return body.File(o.file)
	case o.data != "":
		return body.Bytes([]byte(o.data)), nil
	}
	return body.Empty(), nil
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "httpx-get:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	o, err := parseOptions(args)
	if err != nil {
		return err
	}
	src, err := o.source()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	c := &httpx.Client{
		Timeout: o.timeout,
		Logger:  obs.ZerologLogger{L: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)},
	}
	res, err := c.Do(ctx, o.method, o.url, header.FromPairs(o.headers...), src)
	if err != nil {
		return err
	}
	if o.verbose {
		fmt.Fprint(out, res.SentHeader.String(), "\n")
	}
	fmt.Fprintf(out, "%s %d %s\n", res.Proto, res.StatusCode, res.Reason)
	fmt.Fprint(out, res.Header.String(), "\n")
	_, err = out.Write(res.Body)
	return err
}
