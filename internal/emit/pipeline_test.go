package emit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/observability"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/sink"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

type batch struct {
	dataset string
	set     model.EntitySet
}

type memSink struct {
	batches []batch
	err     error
	closes  int
}

func (m *memSink) Name() string { return "mem" }

func (m *memSink) Send(_ context.Context, dataset string, set model.EntitySet) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, batch{dataset, set})
	return nil
}

func (m *memSink) Close() error {
	m.closes++
	return nil
}

func records(n int) []model.Entity {
	out := make([]model.Entity, n)
	for i := range out {
		out[i] = model.NewEntity("x", model.KindEmployee, 0, model.Point{}, nil)
	}
	return out
}

func TestPipelineEmitsEntities(t *testing.T) {
	mem := &memSink{}
	metrics, err := observability.NewEmitterCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewEmitterCollector: %v", err)
	}
	p, err := New(Destination{Dataset: "people", Sink: mem}, Destination{}, nil, metrics)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.EmitEntities(context.Background(), time.Unix(0, 0), records(3)); err != nil {
		t.Fatalf("EmitEntities: %v", err)
	}
	if len(mem.batches) != 1 || mem.batches[0].dataset != "people" || len(mem.batches[0].set.Entities) != 3 {
		t.Fatalf("batches = %+v", mem.batches)
	}
	if got := testutil.ToFloat64(metrics.Records.WithLabelValues("people", "mem")); got != 3 {
		t.Fatalf("records metric = %v, want 3", got)
	}
}

func TestPipelineImpactsDisabled(t *testing.T) {
	mem := &memSink{}
	p, err := New(Destination{Dataset: "people", Sink: mem}, Destination{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ImpactsEnabled() {
		t.Fatalf("impacts should be disabled without a dataset")
	}
	if err := p.EmitImpacts(context.Background(), time.Unix(0, 0), records(2)); err != nil {
		t.Fatalf("EmitImpacts: %v", err)
	}
	if len(mem.batches) != 0 {
		t.Fatalf("impact batch emitted while disabled")
	}
}

func TestPipelineSkipsEmptyImpactBuffer(t *testing.T) {
	people, impacts := &memSink{}, &memSink{}
	p, err := New(Destination{Dataset: "people", Sink: people}, Destination{Dataset: "impacts", Sink: impacts}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.EmitImpacts(context.Background(), time.Unix(0, 0), nil); err != nil {
		t.Fatalf("EmitImpacts: %v", err)
	}
	if len(impacts.batches) != 0 {
		t.Fatalf("empty impact buffer uploaded")
	}
	if err := p.EmitImpacts(context.Background(), time.Unix(0, 0), records(1)); err != nil {
		t.Fatalf("EmitImpacts: %v", err)
	}
	if len(impacts.batches) != 1 || impacts.batches[0].dataset != "impacts" {
		t.Fatalf("impact batches = %+v", impacts.batches)
	}
}

func TestPipelineWrapsUploadError(t *testing.T) {
	mem := &memSink{err: &sink.UploadError{Status: 503, Body: "busy"}}
	p, err := New(Destination{Dataset: "people", Sink: mem}, Destination{}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = p.EmitEntities(context.Background(), time.Unix(0, 0), records(1))
	var uerr *sink.UploadError
	if !errors.As(err, &uerr) || uerr.Status != 503 {
		t.Fatalf("err = %v, want wrapped UploadError", err)
	}
}

func TestPipelineClosesSharedSinkOnce(t *testing.T) {
	mem := &memSink{}
	p, err := New(Destination{Dataset: "people", Sink: mem}, Destination{Dataset: "impacts", Sink: mem}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if mem.closes != 1 {
		t.Fatalf("closes = %d, want 1", mem.closes)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Destination{}, Destination{}, nil, nil); err == nil {
		t.Fatalf("expected error without entity destination")
	}
	if _, err := New(Destination{Dataset: "p", Sink: &memSink{}}, Destination{Dataset: "i"}, nil, nil); err == nil {
		t.Fatalf("expected error for impact dataset without sink")
	}
}
