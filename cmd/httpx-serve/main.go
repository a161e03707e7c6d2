// Command httpx-serve is a small file server built on httpx. GET lists a
// directory as JSON or streams a file, POST appends the body to a file and
// DELETE removes one. An optional bearer token guards all three.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dqx0.com/go/rawhttp/httpx"
	"dqx0.com/go/rawhttp/httpx/header"
	"dqx0.com/go/rawhttp/internal/obs"
	"dqx0.com/go/rawhttp/internal/telemetry"
)

type config struct {
	Host      string
	Port      int
	Root      string
	Token     string
	Debug     bool
	LogFormat string
	Timeout   time.Duration
}

// parseConfig reads flags, then lets PORT and HTTPX_TOKEN override them.
func parseConfig(args []string) (*config, error) {
	cfg := &config{}
	fset := flag.NewFlagSet("httpx-serve", flag.ContinueOnError)
	fset.StringVar(&cfg.Host, "host", httpx.DefaultHost, "listen host")
	fset.IntVar(&cfg.Port, "port", 8000, "listen port")
	fset.StringVar(&cfg.Root, "root", ".", "directory to serve")
	fset.StringVar(&cfg.Token, "token", "", "bearer token required for GET, POST and DELETE")
	fset.BoolVar(&cfg.Debug, "debug", true, "log one line per request")
	fset.StringVar(&cfg.LogFormat, "log", "console", "log format: console, json or slog")
	fset.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "read and write timeout per connection")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = n
	}
	if v := os.Getenv("HTTPX_TOKEN"); v != "" {
		cfg.Token = v
	}
	return cfg, nil
}

func newLogger(format string) (obs.Logger, error) {
	switch format {
	case "console":
		zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		return obs.ZerologLogger{L: zl}, nil
	case "json":
		return obs.ZerologLogger{L: zerolog.New(os.Stderr).With().Timestamp().Logger()}, nil
	case "slog":
		return obs.SlogLogger{L: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))}, nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

func newServer(cfg *config, logger obs.Logger, tel *telemetry.Providers) *httpx.Server {
	s := &httpx.Server{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Debug:        cfg.Debug,
		Headers:      header.FromPairs(header.P("Access-Control-Allow-Origin", "*")),
		Router:       httpx.NewRouter(),
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		Logger:       logger,
	}
	if tel != nil {
		s.TracerProvider = tel.Tracer
		s.Meter = obs.NewOTelMeter(tel.Meter.Meter("httpx-serve"))
	}
	(&files{root: cfg.Root, token: cfg.Token}).register(s.Router)
	return s
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "httpx-serve:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, "httpx-serve")
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(sctx)
	}()
	if tel.Exporting {
		logger = obs.Multi{logger, obs.NewOTelLogger("httpx-serve", tel.Logger)}
	}

	s := newServer(cfg, logger, tel)
	errCh := make(chan error, 1)
	go func() {
		logger.Logf(obs.Info, "Serving HTTP on %s (http://%s)", s.Addr(), s.Addr())
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		stop()
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, httpx.ErrServerClosed) {
		return err
	}
	return nil
}
