package model

import (
	"encoding/json"
	"fmt"
)

// Well-known entity kinds.
const (
	KindEmployee = "employee"
	KindForklift = "forklift"
	KindImpact   = "impact"
)

// Well-known attribute keys.
const (
	AttrHeading    = "heading"
	AttrConfidence = "confidence"
	AttrEquipment  = "equip"
	AttrLevel      = "level"
	AttrIntensity  = "intensity"
)

// Point is a single position in the entity's working coordinate space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Entity is one simulated moving thing. Path always holds exactly one point:
// the current position, mutated in place on every tick.
type Entity struct {
	Identity    string  `json:"identity"`
	Kind        string  `json:"kind"`
	TimestampMs int64   `json:"timestamp-ms"`
	Path        []Point `json:"path"`
	Attrs       []Attr  `json:"attrs"`
}

// NewEntity builds an entity at the given position with copies of attrs.
func NewEntity(identity, kind string, timestampMs int64, pos Point, attrs []Attr) Entity {
	e := Entity{
		Identity:    identity,
		Kind:        kind,
		TimestampMs: timestampMs,
		Path:        []Point{pos},
		Attrs:       make([]Attr, len(attrs)),
	}
	for i, a := range attrs {
		e.Attrs[i] = a.Clone()
	}
	return e
}

// Position returns the entity's current point. It panics if the entity was
// built without a path, which NewEntity never does.
func (e *Entity) Position() *Point {
	return &e.Path[0]
}

// Attr returns the attribute stored under key, or nil.
func (e *Entity) Attr(key string) *Attr {
	for i := range e.Attrs {
		if e.Attrs[i].Key == key {
			return &e.Attrs[i]
		}
	}
	return nil
}

// Clone returns a deep copy so the caller can mutate it freely.
func (e Entity) Clone() Entity {
	out := e
	out.Path = append([]Point(nil), e.Path...)
	out.Attrs = make([]Attr, len(e.Attrs))
	for i, a := range e.Attrs {
		out.Attrs[i] = a.Clone()
	}
	return out
}

// EntitySet is the upload payload: an ordered batch of entity records.
type EntitySet struct {
	Entities []Entity `json:"entities"`
}

// Encode renders the set as compact JSON, or indented JSON when pretty is set.
func (s EntitySet) Encode(pretty bool) ([]byte, error) {
	if s.Entities == nil {
		s.Entities = []Entity{}
	}
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(s, "", "  ")
	} else {
		b, err = json.Marshal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("encode entity set: %w", err)
	}
	return b, nil
}
