// Package emit turns mapped snapshots into batches and hands them to sinks.
package emit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/venue-telemetry-sim/internal/logging"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/observability"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/sink"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Destination pairs a dataset name with the sink that receives it.
type Destination struct {
	Dataset string
	Sink    sink.Sink
}

func (d Destination) enabled() bool { return d.Dataset != "" && d.Sink != nil }

// Pipeline emits the population every tick and the impact buffer once per
// day. The impact destination is optional.
type Pipeline struct {
	entities Destination
	impacts  Destination

	log     logging.Logger
	metrics *observability.EmitterCollector
}

// New returns a pipeline. entities must be set; impacts may be the zero
// Destination, in which case no impact batch is ever emitted.
func New(entities, impacts Destination, log logging.Logger, metrics *observability.EmitterCollector) (*Pipeline, error) {
	if !entities.enabled() {
		return nil, fmt.Errorf("entity destination needs a dataset and a sink")
	}
	if impacts.Dataset != "" && impacts.Sink == nil {
		return nil, fmt.Errorf("impact dataset %q has no sink", impacts.Dataset)
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Pipeline{entities: entities, impacts: impacts, log: log, metrics: metrics}, nil
}

// ImpactsEnabled reports whether an impact destination is configured.
func (p *Pipeline) ImpactsEnabled() bool { return p.impacts.enabled() }

// EmitEntities sends one batch of mapped entity records stamped simTime.
func (p *Pipeline) EmitEntities(ctx context.Context, simTime time.Time, mapped []model.Entity) error {
	return p.emit(ctx, p.entities, simTime, mapped)
}

// EmitImpacts sends the day's buffered impacts. It is a no-op when impacts
// are disabled or the buffer is empty.
func (p *Pipeline) EmitImpacts(ctx context.Context, simTime time.Time, records []model.Entity) error {
	if !p.ImpactsEnabled() || len(records) == 0 {
		return nil
	}
	return p.emit(ctx, p.impacts, simTime, records)
}

func (p *Pipeline) emit(ctx context.Context, dst Destination, simTime time.Time, records []model.Entity) error {
	ctx, span := observability.StartSpan(ctx, "emit.batch", dst.Dataset,
		attribute.String("telemetry.sink", dst.Sink.Name()),
		attribute.Int("telemetry.records", len(records)),
		attribute.Int64("telemetry.sim_time_ms", simTime.UnixMilli()),
	)
	defer span.End()

	start := time.Now()
	err := dst.Sink.Send(ctx, dst.Dataset, model.EntitySet{Entities: records})
	elapsed := time.Since(start)
	p.metrics.ObserveBatch(dst.Dataset, dst.Sink.Name(), len(records), elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields := []logging.Field{
			logging.String("dataset", dst.Dataset),
			logging.String("sink", dst.Sink.Name()),
			logging.Time("sim_time", simTime),
			logging.Err(err),
		}
		var uerr *sink.UploadError
		if errors.As(err, &uerr) {
			fields = append(fields, logging.Int("status", uerr.Status), logging.String("body", uerr.Body))
		}
		p.log.Error(ctx, "batch emission failed", fields...)
		return fmt.Errorf("emit %s batch at %s: %w", dst.Dataset, simTime.Format(time.DateTime), err)
	}

	p.log.Debug(ctx, "batch emitted",
		logging.String("dataset", dst.Dataset),
		logging.String("sink", dst.Sink.Name()),
		logging.Int("records", len(records)),
		logging.Time("sim_time", simTime),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

// Close closes each distinct sink once.
func (p *Pipeline) Close() error {
	var errs []error
	closed := map[sink.Sink]bool{}
	for _, d := range []Destination{p.entities, p.impacts} {
		if d.Sink == nil || closed[d.Sink] {
			continue
		}
		closed[d.Sink] = true
		if err := d.Sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
