package header

import (
	"strconv"
	"strings"
)

// Kind reports how a header value was typed when it entered the store.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Value is a single header value. Values built from wire text keep that
// text so they serialize back byte for byte.
type Value struct {
	kind Kind
	i    int64
	f    float64
	raw  string
}

// Int returns an integer value.
func Int(n int64) Value {
	return Value{kind: KindInt, i: n, raw: strconv.FormatInt(n, 10)}
}

// Float returns a float value.
func Float(f float64) Value {
	return Value{kind: KindFloat, f: f, raw: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Str returns s verbatim as a string value, without numeric coercion.
func Str(s string) Value {
	return Value{kind: KindString, raw: s}
}

// Coerce types s opportunistically: an integer if all of s parses as a
// decimal one, else a float if it parses as one, else a string. Single
// underscores between digits are allowed ("1_000"); hex forms such as
// "0x10" or "0x1p-2" stay strings.
func Coerce(s string) Value {
	t := strings.TrimSpace(s)
	if t == "" || strings.ContainsAny(t, "xX") {
		return Value{kind: KindString, raw: s}
	}
	if strings.Contains(t, "_") {
		var ok bool
		if t, ok = dropDigitSeparators(t); !ok {
			return Value{kind: KindString, raw: s}
		}
	}
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return Value{kind: KindInt, i: n, raw: s}
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return Value{kind: KindFloat, f: f, raw: s}
	}
	return Value{kind: KindString, raw: s}
}

// dropDigitSeparators removes underscores that sit between two digits. Any
// other underscore makes t non-numeric.
func dropDigitSeparators(t string) (string, bool) {
	var sb strings.Builder
	for i := 0; i < len(t); i++ {
		if t[i] != '_' {
			sb.WriteByte(t[i])
			continue
		}
		if i == 0 || i == len(t)-1 || !isDigit(t[i-1]) || !isDigit(t[i+1]) {
			return "", false
		}
	}
	return sb.String(), true
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

func (v Value) Kind() Kind { return v.kind }

// Int returns the integer and true when v was typed as an integer.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInt
}

// Float returns v as a float. Integers convert; strings report false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// String returns the text written on the wire for v.
func (v Value) String() string { return v.raw }

// Equal compares typed content: numbers by value, strings by text.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	}
	return v.raw == o.raw
}

// Strs coerces each of ss. Handy for literal header sets.
func Strs(ss ...string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = Coerce(s)
	}
	return out
}
