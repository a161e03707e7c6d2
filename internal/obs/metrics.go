package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Label is a key/value pair attached to measurements.
type Label struct {
	Key   string
	Value string
}

// Meter is a very small interface for emitting counters/histograms.
// Implementations may no-op or bridge to a metrics system.
type Meter interface {
	Counter(name string, value float64, labels ...Label)
	Histogram(name string, value float64, labels ...Label)
}

// NopMeter is a Meter that discards all measurements.
type NopMeter struct{}

func (NopMeter) Counter(name string, value float64, labels ...Label)   {}
func (NopMeter) Histogram(name string, value float64, labels ...Label) {}

// OrNopMeter returns m, or NopMeter when m is nil.
func OrNopMeter(m Meter) Meter {
	if m == nil {
		return NopMeter{}
	}
	return m
}

// OTelMeter records into an OpenTelemetry metric.Meter. Instruments are
// created on first use and cached by name.
type OTelMeter struct {
	m          metric.Meter
	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	// OnError receives instrument creation failures; may be nil.
	OnError func(error)
}

func NewOTelMeter(m metric.Meter) *OTelMeter {
	return &OTelMeter{
		m:          m,
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (o *OTelMeter) Counter(name string, value float64, labels ...Label) {
	o.mu.Lock()
	c, ok := o.counters[name]
	if !ok {
		var err error
		c, err = o.m.Float64Counter(name)
		if err != nil {
			o.mu.Unlock()
			o.fail(err)
			return
		}
		o.counters[name] = c
	}
	o.mu.Unlock()
	c.Add(context.Background(), value, metric.WithAttributes(attrs(labels)...))
}

func (o *OTelMeter) Histogram(name string, value float64, labels ...Label) {
	o.mu.Lock()
	h, ok := o.histograms[name]
	if !ok {
		var err error
		h, err = o.m.Float64Histogram(name)
		if err != nil {
			o.mu.Unlock()
			o.fail(err)
			return
		}
		o.histograms[name] = h
	}
	o.mu.Unlock()
	h.Record(context.Background(), value, metric.WithAttributes(attrs(labels)...))
}

func (o *OTelMeter) fail(err error) {
	if o.OnError != nil {
		o.OnError(err)
	}
}

func attrs(labels []Label) []attribute.KeyValue {
	kv := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		kv[i] = attribute.String(l.Key, l.Value)
	}
	return kv
}
