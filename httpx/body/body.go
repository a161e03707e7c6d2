// Package body describes message bodies before they are framed. Every
// Source knows its content type hint and exact length up front, which is
// what content-length framing needs.
package body

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"os"
	"reflect"

	"golang.org/x/text/encoding/htmlindex"
	"google.golang.org/protobuf/proto"
)

// ChunkSize is the read size used when streaming a Source.
const ChunkSize = 1024

const (
	TypeOctetStream = "application/octet-stream"
	TypeJSON        = "application/json"
	TypeForm        = "application/x-www-form-urlencoded"
	TypeText        = "text/plain"
	TypeProtobuf    = "application/x-protobuf"
)

var ErrUnsupportedBodyType = errors.New("body: unsupported body type")

// Source is a message body whose length is known before it is read.
type Source interface {
	// ContentType returns the implied media type, or "" for none.
	ContentType() string
	Len() int64
	// Open returns a fresh reader over exactly Len bytes.
	Open() (io.ReadCloser, error)
}

type empty struct{}

func (empty) ContentType() string          { return "" }
func (empty) Len() int64                   { return 0 }
func (empty) Open() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(nil)), nil }

// Empty is the absent body.
func Empty() Source { return empty{} }

// IsEmpty reports whether src carries no bytes.
func IsEmpty(src Source) bool {
	return src == nil || src.Len() == 0
}

type memory struct {
	ctype string
	b     []byte
}

func (m *memory) ContentType() string { return m.ctype }
func (m *memory) Len() int64          { return int64(len(m.b)) }
func (m *memory) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.b)), nil
}

// Bytes returns b as an application/octet-stream body.
func Bytes(b []byte) Source {
	return &memory{ctype: TypeOctetStream, b: b}
}

// Raw returns b with the given content type.
func Raw(contentType string, b []byte) Source {
	return &memory{ctype: contentType, b: b}
}

// Text returns s as text/plain encoded in charset ("" means UTF-8).
func Text(s, charset string) (Source, error) {
	b, err := Encode(s, charset)
	if err != nil {
		return nil, err
	}
	return &memory{ctype: TypeText, b: b}, nil
}

// JSON marshals v now so its length is known.
func JSON(v any) (Source, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBodyType, err)
	}
	return &memory{ctype: TypeJSON, b: b}, nil
}

// Form percent-encodes vals as application/x-www-form-urlencoded.
func Form(vals url.Values) Source {
	return &memory{ctype: TypeForm, b: []byte(vals.Encode())}
}

// Proto marshals m as application/x-protobuf.
func Proto(m proto.Message) (Source, error) {
	b, err := proto.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBodyType, err)
	}
	return &memory{ctype: TypeProtobuf, b: b}, nil
}

// ReadAll returns the content of src, reading it if needed.
func ReadAll(src Source) ([]byte, error) {
	if src == nil {
		return nil, nil
	}
	if m, ok := src.(*memory); ok {
		return m.b, nil
	}
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b := make([]byte, src.Len())
	if _, err := io.ReadFull(rc, b); err != nil {
		return nil, err
	}
	return b, nil
}

type file struct {
	path string
	size int64
}

func (f *file) ContentType() string          { return TypeOctetStream }
func (f *file) Len() int64                   { return f.size }
func (f *file) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// File is an external resource read from path. The size is taken now.
func File(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedBodyType, path)
	}
	return &file{path: path, size: fi.Size()}, nil
}

type framed struct {
	ctype string
	n     int64
	rc    io.ReadCloser
	used  bool
}

func (f *framed) ContentType() string { return f.ctype }
func (f *framed) Len() int64          { return f.n }
func (f *framed) Open() (io.ReadCloser, error) {
	if f.used {
		return nil, errors.New("body: framed stream already opened")
	}
	f.used = true
	return f.rc, nil
}

// Framed wraps an already open stream that advertises its own content
// type and length. It can be opened once.
func Framed(contentType string, n int64, rc io.ReadCloser) Source {
	return &framed{ctype: contentType, n: n, rc: rc}
}

// IsFramed reports whether src came from Framed.
func IsFramed(src Source) bool {
	_, ok := src.(*framed)
	return ok
}

// FromValue picks the variant for a dynamic value.
func FromValue(v any) (Source, error) {
	switch x := v.(type) {
	case nil:
		return Empty(), nil
	case Source:
		return x, nil
	case []byte:
		return Bytes(x), nil
	case string:
		return Text(x, "")
	case url.Values:
		return Form(x), nil
	case proto.Message:
		return Proto(x)
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer,
		reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return JSON(v)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedBodyType, v)
}

// Outbound picks the variant for a client request body: key-value maps
// are percent-encoded as a form, everything else follows FromValue.
func Outbound(v any) (Source, error) {
	switch x := v.(type) {
	case map[string]string:
		vals := make(url.Values, len(x))
		for k, s := range x {
			vals.Set(k, s)
		}
		return Form(vals), nil
	case map[string][]string:
		return Form(url.Values(x)), nil
	case map[string]any:
		vals := make(url.Values, len(x))
		for k, e := range x {
			vals.Set(k, fmt.Sprint(e))
		}
		return Form(vals), nil
	}
	return FromValue(v)
}

// SourceError is a failure of the body source itself (opening or reading
// it), as opposed to a failure of the stream the body is written to.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string { return "body: source: " + e.Err.Error() }

func (e *SourceError) Unwrap() error { return e.Err }

// Chunks opens src and yields its bytes in order, size bytes at a time.
// The yielded slice is reused between iterations. Every non-nil src is
// opened, even an empty one, and the reader is closed when iteration ends
// for any reason. Open and read failures are yielded as *SourceError; a
// stream shorter than Len yields io.ErrUnexpectedEOF.
func Chunks(src Source, size int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if src == nil {
			return
		}
		if size <= 0 {
			size = ChunkSize
		}
		rc, err := src.Open()
		if err != nil {
			yield(nil, &SourceError{Err: err})
			return
		}
		defer rc.Close()
		remain := src.Len()
		if remain <= 0 {
			return
		}
		buf := make([]byte, min(int64(size), remain))
		for remain > 0 {
			n := min(int64(len(buf)), remain)
			m, err := io.ReadFull(rc, buf[:n])
			remain -= int64(m)
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				if m > 0 && !yield(buf[:m], nil) {
					return
				}
				yield(nil, &SourceError{Err: err})
				return
			}
			if !yield(buf[:m], nil) {
				return
			}
		}
	}
}

// Release closes a Framed stream that was never opened. Other variants
// hold nothing until Open, so Release is a no-op for them.
func Release(src Source) error {
	f, ok := src.(*framed)
	if !ok || f.used {
		return nil
	}
	f.used = true
	return f.rc.Close()
}

// Encode converts UTF-8 text to charset. "" and utf-8 are returned as is.
func Encode(s, charset string) ([]byte, error) {
	if charset == "" {
		return []byte(s), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("body: charset %q: %w", charset, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return []byte(s), nil
	}
	return enc.NewEncoder().Bytes([]byte(s))
}
