package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

func TestGreatCircleDistance_Coincident(t *testing.T) {
	if d := GreatCircleDistance(30.01, -100.01, 30.01, -100.01); d != 0 {
		t.Fatalf("distance between coincident points = %v, want 0", d)
	}
}

func TestGreatCircleDistance_Symmetric(t *testing.T) {
	a := GreatCircleDistance(30.00, -100.02, 30.02, -100.00)
	b := GreatCircleDistance(30.02, -100.00, 30.00, -100.02)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", a, b)
	}
}

func TestGreatCircleDistance_OneDegreeOfLatitude(t *testing.T) {
	// One degree of arc on a 6378.1 km sphere.
	want := EarthRadiusM * math.Pi / 180.0
	got := GreatCircleDistance(10, 20, 11, 20)
	if math.Abs(got-want) > 0.5 {
		t.Fatalf("1 degree latitude = %.3f m, want %.3f m", got, want)
	}
}

func TestGreatCircleDistance_QuarterCircle(t *testing.T) {
	want := EarthRadiusM * math.Pi / 2
	got := GreatCircleDistance(0, 0, 0, 90)
	if math.Abs(got-want) > 1e-6*want {
		t.Fatalf("quarter circle = %.3f m, want %.3f m", got, want)
	}
}

func TestDegreesPerMeter_RecoversDeltas(t *testing.T) {
	bl := model.Corner{X: -100.02, Y: 30.00}
	tr := model.Corner{X: -100.00, Y: 30.02}

	latPerM, lonPerM := DegreesPerMeter(bl, tr)
	if latPerM <= 0 || lonPerM <= 0 {
		t.Fatalf("multipliers must be positive: lat=%v lon=%v", latPerM, lonPerM)
	}

	latDist := GreatCircleDistance(bl.Y, bl.X, tr.Y, bl.X)
	lonDist := GreatCircleDistance(bl.Y, bl.X, bl.Y, tr.X)
	if got := latDist * latPerM; math.Abs(got-0.02) > 1e-12 {
		t.Fatalf("latDist*latPerM = %v, want 0.02", got)
	}
	if got := lonDist * lonPerM; math.Abs(got-0.02) > 1e-12 {
		t.Fatalf("lonDist*lonPerM = %v, want 0.02", got)
	}
	// Longitude degrees shrink with cos(lat), so more of them fit in a metre.
	if lonPerM <= latPerM {
		t.Fatalf("expected lon deg/m (%v) > lat deg/m (%v) at 30N", lonPerM, latPerM)
	}
}
