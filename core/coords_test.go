package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

func TestCoordinateSystem_MetricCorners(t *testing.T) {
	cs, err := NewCoordinateSystem(model.DefaultMetricVenue())
	if err != nil {
		t.Fatalf("NewCoordinateSystem: %v", err)
	}
	if cs.AxisMeters(AxisX) != 150 || cs.AxisMeters(AxisY) != 160 {
		t.Fatalf("axes = %v x %v, want 150 x 160", cs.AxisMeters(AxisX), cs.AxisMeters(AxisY))
	}

	tests := []struct {
		xPct, yPct float64
		wantX      float64
		wantY      float64
	}{
		{0, 0, 0, 0},
		{100, 100, 150000, 160000},
		{50, 25, 75000, 40000},
		// Truncated, not rounded: 0.0007% of 150 m is 1.05 mm.
		{0.0007, 0, 1, 0},
	}
	for _, tt := range tests {
		x, y := cs.MapPercent(tt.xPct, tt.yPct)
		if x != tt.wantX || y != tt.wantY {
			t.Fatalf("MapPercent(%v, %v) = (%v, %v), want (%v, %v)", tt.xPct, tt.yPct, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestCoordinateSystem_MetricOffsetVenue(t *testing.T) {
	venue := model.Venue{
		System:     model.CoordsXY,
		BottomLeft: model.Corner{X: 10, Y: 20},
		TopRight:   model.Corner{X: 30, Y: 60},
	}
	cs, err := NewCoordinateSystem(venue)
	if err != nil {
		t.Fatalf("NewCoordinateSystem: %v", err)
	}
	x, y := cs.MapPercent(50, 50)
	if x != 20000 || y != 40000 {
		t.Fatalf("centre = (%v, %v), want (20000, 40000)", x, y)
	}
}

func TestCoordinateSystem_GeodeticCorners(t *testing.T) {
	venue := model.DefaultGeodeticVenue()
	cs, err := NewCoordinateSystem(venue)
	if err != nil {
		t.Fatalf("NewCoordinateSystem: %v", err)
	}

	const tol = 1e-9
	x, y := cs.MapPercent(0, 0)
	if math.Abs(x-venue.BottomLeft.X) > tol || math.Abs(y-venue.BottomLeft.Y) > tol {
		t.Fatalf("bottom-left = (%v, %v), want (%v, %v)", x, y, venue.BottomLeft.X, venue.BottomLeft.Y)
	}

	x, y = cs.MapPercent(100, 100)
	if math.Abs(x-venue.TopRight.X) > 1e-6 || math.Abs(y-venue.TopRight.Y) > 1e-6 {
		t.Fatalf("top-right = (%v, %v), want (%v, %v)", x, y, venue.TopRight.X, venue.TopRight.Y)
	}

	// Roughly 2.2 km north-south and a little less east-west at 30N.
	if ns := cs.AxisMeters(AxisY); ns < 2200 || ns > 2250 {
		t.Fatalf("north-south axis = %v m", ns)
	}
	if ew := cs.AxisMeters(AxisX); ew >= cs.AxisMeters(AxisY) {
		t.Fatalf("east-west axis %v should be shorter than north-south %v at 30N", ew, cs.AxisMeters(AxisY))
	}
}

func TestCoordinateSystem_RejectsDegenerateVenue(t *testing.T) {
	venue := model.Venue{
		System:     model.CoordsXY,
		BottomLeft: model.Corner{X: 5, Y: 5},
		TopRight:   model.Corner{X: 5, Y: 10},
	}
	if _, err := NewCoordinateSystem(venue); err == nil {
		t.Fatalf("expected error for zero-width venue")
	}
}

func TestCoordinateSystem_MapEntityLeavesSourceAlone(t *testing.T) {
	cs, err := NewCoordinateSystem(model.DefaultMetricVenue())
	if err != nil {
		t.Fatalf("NewCoordinateSystem: %v", err)
	}
	src := model.NewEntity("7", model.KindForklift, 42, model.Point{X: 10, Y: 20}, []model.Attr{
		model.Int64Attr(model.AttrHeading, 90),
	})

	mapped := cs.MapAll([]model.Entity{src})
	if len(mapped) != 1 {
		t.Fatalf("MapAll len = %d", len(mapped))
	}
	if got := *mapped[0].Position(); got.X != 15000 || got.Y != 32000 {
		t.Fatalf("mapped position = %+v", got)
	}
	if got := *src.Position(); got.X != 10 || got.Y != 20 {
		t.Fatalf("source position mutated: %+v", got)
	}
	if mapped[0].Identity != "7" || mapped[0].TimestampMs != 42 || mapped[0].Attr(model.AttrHeading).Int64 != 90 {
		t.Fatalf("mapped entity lost fields: %+v", mapped[0])
	}
}
