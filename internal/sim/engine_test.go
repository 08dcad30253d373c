package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/venue-telemetry-sim/core"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/emit"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/observability"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/sink"
	"github.com/signalsfoundry/venue-telemetry-sim/kb"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
	"github.com/signalsfoundry/venue-telemetry-sim/timectrl"
)

type batch struct {
	dataset string
	set     model.EntitySet
}

type memSink struct {
	batches []batch
	err     error
}

func (m *memSink) Name() string { return "mem" }

func (m *memSink) Send(_ context.Context, dataset string, set model.EntitySet) error {
	if m.err != nil {
		return m.err
	}
	// The engine hands over fresh copies, but keep our own to be safe.
	cp := model.EntitySet{Entities: make([]model.Entity, len(set.Entities))}
	for i, e := range set.Entities {
		cp.Entities[i] = e.Clone()
	}
	m.batches = append(m.batches, batch{dataset, cp})
	return nil
}

func (m *memSink) Close() error { return nil }

func (m *memSink) count(dataset string) int {
	n := 0
	for _, b := range m.batches {
		if b.dataset == dataset {
			n++
		}
	}
	return n
}

func testConfig(t *testing.T, start, stop string, entities, days int) Config {
	t.Helper()
	window, err := timectrl.ParseWindow("2016-01-01", start, stop, time.UTC)
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	return Config{
		Population: kb.Config{Count: entities},
		Venue:      model.DefaultMetricVenue(),
		Motion:     core.DefaultMotionConfig(),
		Impacts:    core.DefaultImpactConfig(),
		Window:     window,
		Days:       days,
		Pacing:     timectrl.Accelerated,
		Seed:       101,
	}
}

func newTestEngine(t *testing.T, cfg Config, entities, impacts emit.Destination, opts ...Option) *Engine {
	t.Helper()
	p, err := emit.New(entities, impacts, nil, nil)
	if err != nil {
		t.Fatalf("emit.New: %v", err)
	}
	e, err := NewEngine(cfg, p, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestRunWithoutImpactDestinationEmitsNoImpacts(t *testing.T) {
	mem := &memSink{}
	cfg := testConfig(t, "06:00", "07:00", 5, 3)
	// Fire often so a missing guard would show up.
	cfg.Impacts.MinInterval, cfg.Impacts.MaxInterval = 30*time.Second, 30*time.Second

	e := newTestEngine(t, cfg, emit.Destination{Dataset: "people", Sink: mem}, emit.Destination{})
	stats, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 240 ticks per hour at 15 s, plus the day-start batch.
	if stats.Days != 3 || stats.Ticks != 3*240 || stats.Batches != 3*241 || stats.Impacts != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(mem.batches) != 3*241 {
		t.Fatalf("batches = %d, want %d", len(mem.batches), 3*241)
	}
	for _, b := range mem.batches {
		if b.dataset != "people" {
			t.Fatalf("unexpected dataset %q", b.dataset)
		}
		for _, ent := range b.set.Entities {
			if ent.Kind == model.KindImpact {
				t.Fatalf("impact record emitted without an impact destination")
			}
		}
	}
}

func TestRunSingleTickWithoutMovement(t *testing.T) {
	mem := &memSink{}
	cfg := testConfig(t, "06:00", "06:00:15", 1, 1)
	cfg.Motion.Weights = core.DirectionWeights{None: 1}

	e := newTestEngine(t, cfg, emit.Destination{Dataset: "people", Sink: mem}, emit.Destination{})
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(mem.batches) != 2 {
		t.Fatalf("batches = %d, want 2 (day start + one tick)", len(mem.batches))
	}
	initial := mem.batches[0].set.Entities[0]
	tick := mem.batches[1].set.Entities[0]

	if *tick.Position() != *initial.Position() {
		t.Fatalf("position moved from %+v to %+v", *initial.Position(), *tick.Position())
	}
	if want := cfg.Window.Start.UnixMilli() + 15000; tick.TimestampMs != want {
		t.Fatalf("timestamp = %d, want %d", tick.TimestampMs, want)
	}
	if initial.TimestampMs != cfg.Window.Start.UnixMilli() {
		t.Fatalf("day-start timestamp = %d, want %d", initial.TimestampMs, cfg.Window.Start.UnixMilli())
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	run := func() []batch {
		mem := &memSink{}
		cfg := testConfig(t, "06:00", "06:30", 10, 1)
		e := newTestEngine(t, cfg, emit.Destination{Dataset: "people", Sink: mem}, emit.Destination{Dataset: "impacts", Sink: mem})
		if _, err := e.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return mem.batches
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("batch counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if len(a[i].set.Entities) != len(b[i].set.Entities) {
			t.Fatalf("batch %d sizes differ", i)
		}
		for j := range a[i].set.Entities {
			ea, eb := a[i].set.Entities[j], b[i].set.Entities[j]
			if *ea.Position() != *eb.Position() || ea.TimestampMs != eb.TimestampMs {
				t.Fatalf("batch %d entity %d differs: %+v vs %+v", i, j, ea, eb)
			}
		}
	}
}

func TestRunFlushesImpactsAtDayEnd(t *testing.T) {
	people, impacts := &memSink{}, &memSink{}
	cfg := testConfig(t, "06:00", "06:10", 4, 2)
	cfg.Impacts.MinInterval, cfg.Impacts.MaxInterval = 30*time.Second, 30*time.Second

	reg := prometheus.NewRegistry()
	loop, err := observability.NewLoopCollector(reg)
	if err != nil {
		t.Fatalf("NewLoopCollector: %v", err)
	}

	e := newTestEngine(t, cfg,
		emit.Destination{Dataset: "people", Sink: people},
		emit.Destination{Dataset: "impacts", Sink: impacts},
		WithLoopMetrics(loop),
	)
	stats, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 06:00:30 through 06:10:00 every 30 s.
	if stats.Impacts != 2*20 {
		t.Fatalf("impacts = %d, want 40", stats.Impacts)
	}
	if len(impacts.batches) != 2 {
		t.Fatalf("impact batches = %d, want one per day", len(impacts.batches))
	}
	day1 := impacts.batches[0].set.Entities
	if len(day1) != 20 {
		t.Fatalf("day 1 impacts = %d, want 20", len(day1))
	}
	if day1[0].Identity != "1" || day1[19].Identity != "20" {
		t.Fatalf("impact ids %q..%q", day1[0].Identity, day1[19].Identity)
	}
	if impacts.batches[1].set.Entities[0].Identity != "21" {
		t.Fatalf("impact counter restarted: %q", impacts.batches[1].set.Entities[0].Identity)
	}
	for _, imp := range day1 {
		if imp.Kind != model.KindImpact || imp.Attr(model.AttrLevel) == nil {
			t.Fatalf("malformed impact: %+v", imp)
		}
	}
	if got := testutil.ToFloat64(loop.Impacts); got != 40 {
		t.Fatalf("impact metric = %v, want 40", got)
	}
	if got := testutil.ToFloat64(loop.Days); got != 2 {
		t.Fatalf("days metric = %v, want 2", got)
	}
	if got := testutil.ToFloat64(loop.Entities); got != 4 {
		t.Fatalf("entities metric = %v, want 4", got)
	}
}

func TestRunStopsOnUploadError(t *testing.T) {
	mem := &memSink{err: &sink.UploadError{Status: 500, Body: "down"}}
	cfg := testConfig(t, "06:00", "07:00", 2, 1)
	e := newTestEngine(t, cfg, emit.Destination{Dataset: "people", Sink: mem}, emit.Destination{})

	_, err := e.Run(context.Background())
	var uerr *sink.UploadError
	if !errors.As(err, &uerr) || uerr.Status != 500 {
		t.Fatalf("err = %v, want UploadError 500", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	mem := &memSink{}
	cfg := testConfig(t, "06:00", "18:00", 2, 1)
	e := newTestEngine(t, cfg, emit.Destination{Dataset: "people", Sink: mem}, emit.Destination{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if stats.Ticks != 0 || len(mem.batches) != 0 {
		t.Fatalf("cancelled run still ticked: %+v", stats)
	}
}

func TestRunStaysInsideVenueWithBounce(t *testing.T) {
	mem := &memSink{}
	cfg := testConfig(t, "06:00", "08:00", 20, 1)
	cfg.Motion.Edge = core.EdgeBounce
	cfg.Motion.MinSpeedKph, cfg.Motion.MaxSpeedKph = 10, 40

	e := newTestEngine(t, cfg, emit.Destination{Dataset: "people", Sink: mem}, emit.Destination{})
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	maxX := cfg.Venue.TopRight.X * 1000
	maxY := cfg.Venue.TopRight.Y * 1000
	for _, b := range mem.batches {
		for _, ent := range b.set.Entities {
			p := ent.Position()
			if p.X < 0 || p.X > maxX || p.Y < 0 || p.Y > maxY {
				t.Fatalf("entity %s outside venue: %+v", ent.Identity, *p)
			}
		}
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	p, err := emit.New(emit.Destination{Dataset: "people", Sink: &memSink{}}, emit.Destination{}, nil, nil)
	if err != nil {
		t.Fatalf("emit.New: %v", err)
	}
	cfg := testConfig(t, "06:00", "07:00", 1, 1)
	cfg.Venue.TopRight = cfg.Venue.BottomLeft
	if _, err := NewEngine(cfg, p); !errors.Is(err, model.ErrDegenerateVenue) {
		t.Fatalf("err = %v, want ErrDegenerateVenue", err)
	}
	if _, err := NewEngine(testConfig(t, "06:00", "07:00", 1, 1), nil); err == nil {
		t.Fatalf("expected error without a pipeline")
	}
}

func TestRunZeroEntitiesEmitsEmptyBatches(t *testing.T) {
	people, impacts := &memSink{}, &memSink{}
	cfg := testConfig(t, "06:00", "07:00", 0, 1)
	cfg.Impacts.MinInterval, cfg.Impacts.MaxInterval = 30*time.Second, 30*time.Second

	e := newTestEngine(t, cfg,
		emit.Destination{Dataset: "people", Sink: people},
		emit.Destination{Dataset: "impacts", Sink: impacts},
	)
	stats, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Batches != 241 || stats.Impacts != 0 {
		t.Fatalf("stats = %+v, want 241 batches and no impacts", stats)
	}
	if len(people.batches) != 241 {
		t.Fatalf("entity batches = %d, want 241", len(people.batches))
	}
	for i, b := range people.batches {
		if len(b.set.Entities) != 0 {
			t.Fatalf("batch %d has %d records, want 0", i, len(b.set.Entities))
		}
	}
	if len(impacts.batches) != 0 {
		t.Fatalf("impact batches = %d, want none", len(impacts.batches))
	}
}

func TestEngineTracksPopulationUntilClosed(t *testing.T) {
	reg := prometheus.NewRegistry()
	loop, err := observability.NewLoopCollector(reg)
	if err != nil {
		t.Fatalf("NewLoopCollector: %v", err)
	}
	e := newTestEngine(t, testConfig(t, "06:00", "07:00", 3, 1),
		emit.Destination{Dataset: "people", Sink: &memSink{}}, emit.Destination{},
		WithLoopMetrics(loop),
	)
	if got := testutil.ToFloat64(loop.Entities); got != 3 {
		t.Fatalf("entities metric after seeding = %v, want 3", got)
	}

	loop.Entities.Set(0)
	e.population.MoveAll(func(*model.Entity) {})
	if got := testutil.ToFloat64(loop.Entities); got != 3 {
		t.Fatalf("entities metric after move = %v, want 3", got)
	}

	e.Close()
	loop.Entities.Set(0)
	e.population.MoveAll(func(*model.Entity) {})
	if got := testutil.ToFloat64(loop.Entities); got != 0 {
		t.Fatalf("closed engine still updates metrics: %v", got)
	}
}
