package kb

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// EventType indicates what kind of change happened in the population.
type EventType int

const (
	EventEntityAdded EventType = iota
	EventPopulationMoved
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	// Identity is set for EventEntityAdded.
	Identity string
	// Count is the population size at the time of the event.
	Count int
}

// Config describes the initial population.
type Config struct {
	Count     int
	Kind      string
	Equipment string
	// Starting position in percent space.
	StartX, StartY float64
}

// Population is an in-memory, thread-safe store for the simulated entities.
// Entities keep insertion order, which is also the emission order.
type Population struct {
	mu sync.RWMutex

	entities []model.Entity
	index    map[string]int

	subs    map[int]func(Event)
	nextSub int
}

// NewPopulation constructs an empty population.
func NewPopulation() *Population {
	return &Population{
		index: make(map[string]int),
		subs:  make(map[int]func(Event)),
	}
}

// Seed adds cfg.Count entities with identities "1".."N", all at the start
// position with zeroed heading and confidence. Subscribers see one
// EventEntityAdded per entity.
func (p *Population) Seed(cfg Config) error {
	if cfg.Count < 0 {
		return fmt.Errorf("entity count must be non-negative, got %d", cfg.Count)
	}
	if cfg.StartX < 0 || cfg.StartX > 100 || cfg.StartY < 0 || cfg.StartY > 100 {
		return fmt.Errorf("start position (%v, %v) outside [0, 100]", cfg.StartX, cfg.StartY)
	}
	kind := cfg.Kind
	if kind == "" {
		kind = model.KindEmployee
	}

	attrs := []model.Attr{
		model.Int64Attr(model.AttrHeading, 0),
		model.Int64Attr(model.AttrConfidence, 0),
	}
	if cfg.Equipment != "" {
		attrs = append(attrs, model.StringAttr(model.AttrEquipment, cfg.Equipment))
	}

	for i := 1; i <= cfg.Count; i++ {
		e := model.NewEntity(strconv.Itoa(i), kind, 0, model.Point{X: cfg.StartX, Y: cfg.StartY}, attrs)
		if err := p.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Add appends an entity. It returns an error if the identity already exists.
func (p *Population) Add(e model.Entity) error {
	if len(e.Path) != 1 {
		return fmt.Errorf("entity %q must have exactly one path point, got %d", e.Identity, len(e.Path))
	}

	p.mu.Lock()
	if _, exists := p.index[e.Identity]; exists {
		p.mu.Unlock()
		return fmt.Errorf("entity with identity %q already exists", e.Identity)
	}
	p.index[e.Identity] = len(p.entities)
	p.entities = append(p.entities, e)
	event := Event{Type: EventEntityAdded, Identity: e.Identity, Count: len(p.entities)}
	subs := p.subscribers()
	p.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Len returns the number of entities.
func (p *Population) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entities)
}

// Transform applies fn to every entity under the read lock and returns the
// results in order. fn must not retain or mutate its argument.
func (p *Population) Transform(fn func(model.Entity) model.Entity) []model.Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Entity, len(p.entities))
	for i, e := range p.entities {
		out[i] = fn(e)
	}
	return out
}

// MoveAll mutates every entity in place, in order, then notifies subscribers.
func (p *Population) MoveAll(fn func(e *model.Entity)) {
	p.mu.Lock()
	for i := range p.entities {
		fn(&p.entities[i])
	}
	event := Event{Type: EventPopulationMoved, Count: len(p.entities)}
	subs := p.subscribers()
	p.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
}

// Subscribe registers a callback for population events. It returns an
// unsubscribe function; calling it more than once is a no-op.
func (p *Population) Subscribe(fn func(Event)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// subscribers copies the callbacks in registration order. Callers hold mu.
func (p *Population) subscribers() []func(Event) {
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), len(ids))
	for i, id := range ids {
		out[i] = p.subs[id]
	}
	return out
}
