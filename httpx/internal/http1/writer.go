package http1

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/net/http/httpguts"
	"golang.org/x/text/encoding"

	"dqx0.com/go/rawhttp/httpx/body"
	"dqx0.com/go/rawhttp/httpx/header"
)

var ErrInvalidHeader = errors.New("http1: invalid header field")

// CRLF is the default line terminator.
var CRLF = []byte("\r\n")

// Writer serializes one message. Every logical part (start line, header
// block, blank line, each body chunk) is flushed before the next starts.
type Writer struct {
	BW *bufio.Writer
	// Newline terminates each line; nil means CRLF.
	Newline []byte
	// Encoder, if set, converts start line and header text.
	Encoder *encoding.Encoder
}

// WriteRequest writes `METHOD SP target SP HTTP/1.1`, h and src.
func (w *Writer) WriteRequest(method, target string, h *header.Header, src body.Source) error {
	if err := ValidateHeader(h); err != nil {
		return err
	}
	if err := w.line(method + " " + target + " HTTP/1.1"); err != nil {
		return err
	}
	return w.finish(h, src)
}

// WriteResponse writes `HTTP/1.1 SP status`, h and src. No reason phrase
// is emitted.
func (w *Writer) WriteResponse(status int, h *header.Header, src body.Source) error {
	if err := ValidateHeader(h); err != nil {
		return err
	}
	if err := w.line("HTTP/1.1 " + strconv.Itoa(status)); err != nil {
		return err
	}
	return w.finish(h, src)
}

func (w *Writer) finish(h *header.Header, src body.Source) error {
	if err := w.BW.Flush(); err != nil {
		return err
	}
	if err := w.headerLines(h); err != nil {
		return err
	}
	if err := w.BW.Flush(); err != nil {
		return err
	}
	if _, err := w.BW.Write(w.newline()); err != nil {
		return err
	}
	if err := w.BW.Flush(); err != nil {
		return err
	}
	return w.WriteBody(src)
}

// ValidateHeader checks every name and value of h before anything is
// written, so a bad field never leaves a half-sent message.
func ValidateHeader(h *header.Header) error {
	for name, v := range h.All() {
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(v.String()) {
			return fmt.Errorf("%w: %q", ErrInvalidHeader, name)
		}
	}
	return nil
}

// WriteHeader validates h and writes one `Name: value` line per pair.
func (w *Writer) WriteHeader(h *header.Header) error {
	if err := ValidateHeader(h); err != nil {
		return err
	}
	return w.headerLines(h)
}

// headerLines writes h without validating it; callers validate first.
func (w *Writer) headerLines(h *header.Header) error {
	for name, v := range h.All() {
		if err := w.line(name + ": " + v.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteBody streams src chunk by chunk, flushing after each. Failures of
// src itself come back as *body.SourceError.
func (w *Writer) WriteBody(src body.Source) error {
	for chunk, err := range body.Chunks(src, body.ChunkSize) {
		if err != nil {
			return err
		}
		if _, err := w.BW.Write(chunk); err != nil {
			return err
		}
		if err := w.BW.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) line(s string) error {
	b := []byte(s)
	if w.Encoder != nil {
		enc, err := w.Encoder.Bytes(b)
		if err != nil {
			return err
		}
		b = enc
	}
	if _, err := w.BW.Write(b); err != nil {
		return err
	}
	_, err := w.BW.Write(w.newline())
	return err
}

func (w *Writer) newline() []byte {
	if len(w.Newline) == 0 {
		return CRLF
	}
	return w.Newline
}
