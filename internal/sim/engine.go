// Package sim owns one simulation run: the population, its motion, the day
// clock and the emission pipeline.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/signalsfoundry/venue-telemetry-sim/core"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/emit"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/logging"
	"github.com/signalsfoundry/venue-telemetry-sim/internal/observability"
	"github.com/signalsfoundry/venue-telemetry-sim/kb"
	"github.com/signalsfoundry/venue-telemetry-sim/model"
	"github.com/signalsfoundry/venue-telemetry-sim/timectrl"
)

// Config is everything a run needs besides its sinks.
type Config struct {
	Population kb.Config
	Venue      model.Venue
	Motion     core.MotionConfig
	Impacts    core.ImpactConfig

	Window timectrl.Window
	Days   int
	Pacing timectrl.Mode

	// Seed 0 derives a seed from the wall clock.
	Seed int64
}

// Stats summarizes a finished (or interrupted) run.
type Stats struct {
	Days    int
	Ticks   int
	Batches int
	Impacts int
}

// Engine runs the time-stepped loop. It is not safe for concurrent use.
type Engine struct {
	cfg  Config
	seed int64

	population *kb.Population
	coords     *core.CoordinateSystem
	motion     core.MotionModel
	impacts    *core.ImpactGenerator // nil when impacts are disabled
	clock      *timectrl.TimeController
	pacer      *timectrl.Pacer
	pipeline   *emit.Pipeline

	log  logging.Logger
	loop *observability.LoopCollector

	unsubscribe func()
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logging.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithLoopMetrics records loop metrics on c.
func WithLoopMetrics(c *observability.LoopCollector) Option {
	return func(e *Engine) { e.loop = c }
}

// WithPacer replaces the wall-clock pacer.
func WithPacer(p *timectrl.Pacer) Option {
	return func(e *Engine) {
		if p != nil {
			e.pacer = p
		}
	}
}

// NewEngine builds every component of the run. The impact generator is only
// created when the pipeline has an impact destination.
func NewEngine(cfg Config, pipeline *emit.Pipeline, opts ...Option) (*Engine, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("emission pipeline is required")
	}

	e := &Engine{
		cfg:      cfg,
		pipeline: pipeline,
		log:      logging.Noop(),
		pacer:    timectrl.NewPacer(cfg.Pacing, cfg.Motion.Period),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.seed = cfg.Seed
	if e.seed == 0 {
		e.seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(e.seed))

	var err error
	if e.coords, err = core.NewCoordinateSystem(cfg.Venue); err != nil {
		return nil, fmt.Errorf("venue: %w", err)
	}
	if e.motion, err = core.NewRandomWalkModel(cfg.Motion, e.coords, rng); err != nil {
		return nil, fmt.Errorf("motion: %w", err)
	}
	if pipeline.ImpactsEnabled() {
		if e.impacts, err = core.NewImpactGenerator(cfg.Impacts, rng); err != nil {
			return nil, fmt.Errorf("impacts: %w", err)
		}
	}
	if e.clock, err = timectrl.NewTimeController(cfg.Window, cfg.Motion.Period, cfg.Days); err != nil {
		return nil, fmt.Errorf("clock: %w", err)
	}

	e.population = kb.NewPopulation()
	e.unsubscribe = e.population.Subscribe(func(ev kb.Event) { e.loop.SetEntities(ev.Count) })
	if err := e.population.Seed(cfg.Population); err != nil {
		e.unsubscribe()
		return nil, fmt.Errorf("population: %w", err)
	}
	e.loop.SetEntities(e.population.Len())

	// Every tick moves the whole population before it is mapped.
	e.clock.AddListener(func(simTime time.Time) {
		e.population.MoveAll(func(ent *model.Entity) { e.motion.UpdatePosition(simTime, ent) })
	})

	return e, nil
}

// Close detaches the engine from its population. The pipeline is owned and
// closed by the caller.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// Seed returns the seed the run draws from.
func (e *Engine) Seed() int64 { return e.seed }

// Run executes every configured day. Each day emits the population once at
// the window start, then ticks until the stop time, then flushes the day's
// impacts. Cancellation is honoured between ticks and while pacing.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	e.log.Info(ctx, "simulation starting",
		logging.Int("entities", e.population.Len()),
		logging.Int("days", e.clock.Days()),
		logging.Int64("seed", e.seed),
		logging.String("coords", e.cfg.Venue.System.String()),
		logging.String("pacing", e.pacer.Mode.String()),
		logging.Bool("impacts", e.impacts != nil),
	)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := e.runDay(ctx, &stats); err != nil {
			return stats, err
		}
		more, err := e.clock.EndDay()
		if err != nil {
			return stats, err
		}
		if !more {
			break
		}
	}

	e.log.Info(ctx, "simulation finished",
		logging.Int("days", stats.Days),
		logging.Int("ticks", stats.Ticks),
		logging.Int("batches", stats.Batches),
		logging.Int("impacts", stats.Impacts),
	)
	return stats, nil
}

func (e *Engine) runDay(ctx context.Context, stats *Stats) error {
	dayStart, err := e.clock.BeginDay()
	if err != nil {
		return err
	}
	window := e.clock.Window()
	e.log.Info(ctx, "day starting",
		logging.Int("day", e.clock.Day()+1),
		logging.Time("start", window.Start),
		logging.Time("stop", window.Stop),
	)

	if e.impacts != nil {
		e.impacts.Reset(dayStart)
	}

	// Initial positions for the day, before anything moves.
	startMs := dayStart.UnixMilli()
	e.population.MoveAll(func(ent *model.Entity) { ent.TimestampMs = startMs })
	if err := e.pipeline.EmitEntities(ctx, dayStart, e.population.Transform(e.coords.MapEntity)); err != nil {
		return err
	}
	stats.Batches++

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		mark := e.pacer.Mark()
		simTime, ok := e.clock.Advance()
		if !ok {
			break
		}

		mapped := e.population.Transform(e.coords.MapEntity)

		if e.impacts != nil {
			if imp, fired := e.impacts.Check(simTime, mapped); fired {
				stats.Impacts++
				e.loop.IncImpacts()
				e.log.Debug(ctx, "impact",
					logging.Int64("id", imp.ID),
					logging.Int64("level", imp.Level),
					logging.Time("sim_time", simTime),
					logging.Time("next", e.impacts.Next()),
				)
			}
		}

		if err := e.pipeline.EmitEntities(ctx, simTime, mapped); err != nil {
			return err
		}
		stats.Ticks++
		stats.Batches++

		elapsed, slept, err := e.pacer.Wait(ctx, mark)
		e.loop.ObserveTick(simTime, elapsed, e.pacer.Period)
		if err != nil {
			return err
		}
		e.log.Debug(ctx, "tick",
			logging.Time("sim_time", simTime),
			logging.Duration("elapsed", elapsed),
			logging.Duration("delay", slept),
		)
	}

	if e.impacts != nil {
		final := e.clock.Now()
		pending := e.impacts.Pending()
		if err := e.pipeline.EmitImpacts(ctx, final, e.impacts.Flush()); err != nil {
			return err
		}
		if pending > 0 {
			stats.Batches++
		}
	}
	stats.Days++
	e.loop.IncDays()
	return nil
}
