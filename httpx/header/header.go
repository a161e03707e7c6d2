// Package header implements the case-insensitive, multi-value, order
// preserving header store shared by the client and the server.
package header

import (
	"iter"
	"strings"
)

// Pair is one (name, value) header occurrence.
type Pair struct {
	Name  string
	Value Value
}

// P builds a Pair from wire text, coercing the value.
func P(name, value string) Pair {
	return Pair{Name: name, Value: Coerce(value)}
}

type entry struct {
	name   string // display spelling
	values []Value
}

// Header maps case-insensitive names to ordered value lists. The zero
// value is not usable; call New or FromPairs. Name order is the order in
// which names were first stored.
type Header struct {
	index   map[string]int
	entries []entry
}

// New returns an empty Header.
func New() *Header {
	return &Header{index: make(map[string]int)}
}

// FromPairs builds a Header accumulating repeated names into one entry.
// The first spelling seen for a name is kept for display.
func FromPairs(pairs ...Pair) *Header {
	h := New()
	for _, p := range pairs {
		h.Add(p.Name, p.Value)
	}
	return h
}

func key(name string) string { return strings.ToLower(name) }

// Set replaces all values of name. The entry keeps its position but takes
// the new spelling. Set with no values stores an empty list.
func (h *Header) Set(name string, vals ...Value) {
	k := key(name)
	cp := append([]Value(nil), vals...)
	if i, ok := h.index[k]; ok {
		h.entries[i] = entry{name: name, values: cp}
		return
	}
	h.index[k] = len(h.entries)
	h.entries = append(h.entries, entry{name: name, values: cp})
}

// SetString is Set with a coerced value.
func (h *Header) SetString(name, value string) {
	h.Set(name, Coerce(value))
}

// Add appends v to the values of name.
func (h *Header) Add(name string, v Value) {
	k := key(name)
	if i, ok := h.index[k]; ok {
		h.entries[i].values = append(h.entries[i].values, v)
		return
	}
	h.index[k] = len(h.entries)
	h.entries = append(h.entries, entry{name: name, values: []Value{v}})
}

// Del removes name.
func (h *Header) Del(name string) {
	k := key(name)
	i, ok := h.index[k]
	if !ok {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	delete(h.index, k)
	for j := i; j < len(h.entries); j++ {
		h.index[key(h.entries[j].name)] = j
	}
}

// Has reports whether name is present.
func (h *Header) Has(name string) bool {
	if h == nil {
		return false
	}
	_, ok := h.index[key(name)]
	return ok
}

// Get returns the first value of name.
func (h *Header) Get(name string) (Value, bool) {
	vv := h.Values(name)
	if len(vv) == 0 {
		return Value{}, false
	}
	return vv[0], true
}

// Text returns the wire text of the first value of name, or "".
func (h *Header) Text(name string) string {
	v, _ := h.Get(name)
	return v.String()
}

// Values returns every value of name in insertion order, or nil.
func (h *Header) Values(name string) []Value {
	if h == nil {
		return nil
	}
	i, ok := h.index[key(name)]
	if !ok {
		return nil
	}
	return h.entries[i].values
}

// Len returns the number of distinct names.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Names returns the display spelling of every name in order.
func (h *Header) Names() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.name
	}
	return out
}

// All yields one (name, value) pair per stored value. Each call starts a
// fresh iteration.
func (h *Header) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if h == nil {
			return
		}
		for _, e := range h.entries {
			for _, v := range e.values {
				if !yield(e.name, v) {
					return
				}
			}
		}
	}
}

// Pairs collects All into a slice.
func (h *Header) Pairs() []Pair {
	var out []Pair
	for n, v := range h.All() {
		out = append(out, Pair{Name: n, Value: v})
	}
	return out
}

// Merge sets every name of src on h, replacing what h had.
func (h *Header) Merge(src *Header) {
	if src == nil {
		return
	}
	for _, e := range src.entries {
		h.Set(e.name, e.values...)
	}
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	c := New()
	if h == nil {
		return c
	}
	for _, e := range h.entries {
		c.Set(e.name, e.values...)
	}
	return c
}

// String renders h as wire header lines without the terminating blank line.
func (h *Header) String() string {
	var sb strings.Builder
	for n, v := range h.All() {
		sb.WriteString(n)
		sb.WriteString(": ")
		sb.WriteString(v.String())
		sb.WriteString("\r\n")
	}
	return sb.String()
}
