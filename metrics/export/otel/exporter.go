package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kurabu/authflow"
	"github.com/kurabu/authflow/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
	SessionCount() int
}

// latency is the pair of gauges standing in for one engine histogram. Bucket
// points carry an "le" attribute holding the upper bound.
type latency struct {
	id      authflow.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine metrics through observable instruments
// read by one callback per collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters     map[authflow.MetricID]metric.Int64ObservableCounter
	latencies    []latency
	auditDropped metric.Int64ObservableCounter
	sessions     metric.Int64ObservableGauge

	// le attribute per bucket, built once.
	bounds [8]metric.ObserveOption
}

func NewOTelExporter(meter metric.Meter, engine *authflow.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[authflow.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for i := range e.bounds {
		le := "+Inf"
		if i < len(internaldefs.HistogramUpperBounds) {
			le = strconv.FormatFloat(internaldefs.HistogramUpperBounds[i], 'g', -1, 64)
		}
		e.bounds[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}

	var observables []metric.Observable
	var err error

	for _, def := range internaldefs.CounterDefs {
		c, cerr := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if cerr != nil {
			return nil, fmt.Errorf("otel: counter %s: %w", def.Name, cerr)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		l := latency{id: def.ID}
		l.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s buckets: %w", def.Name, err)
		}
		l.count, err = meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s count: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, l)
		observables = append(observables, l.buckets, l.count)
	}

	e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("otel: %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.sessions, err = meter.Int64ObservableGauge(internaldefs.SessionsName,
		metric.WithDescription(internaldefs.SessionsHelp))
	if err != nil {
		return nil, fmt.Errorf("otel: %s: %w", internaldefs.SessionsName, err)
	}
	observables = append(observables, e.auditDropped, e.sessions)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	// A disabled Metrics yields empty maps; report nothing rather than zeros.
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 {
		return nil
	}

	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, l := range e.latencies {
		raw, ok := snap.Histograms[l.id]
		if !ok {
			continue
		}
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, n := range cum {
			o.ObserveInt64(l.buckets, int64(n), e.bounds[i])
		}
		o.ObserveInt64(l.count, int64(cum[len(cum)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	o.ObserveInt64(e.sessions, int64(e.source.SessionCount()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
