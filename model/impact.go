package model

import "strconv"

// Impact is a discrete shock event attached to an entity's position at one
// point in time. IDs come from a run-wide counter, independent of entity
// identities.
type Impact struct {
	ID          int64
	TimestampMs int64
	Level       int64
	Intensity   string
	Position    Point
}

// Entity renders the impact as an entity record of kind "impact" so it can
// travel through the same emission pipeline as the population.
func (i Impact) Entity() Entity {
	return NewEntity(
		strconv.FormatInt(i.ID, 10),
		KindImpact,
		i.TimestampMs,
		i.Position,
		[]Attr{
			Int64Attr(AttrLevel, i.Level),
			StringAttr(AttrIntensity, i.Intensity),
		},
	)
}
