package core

import (
	"math"

	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// EarthRadiusM is the spherical Earth radius used by all geodetic helpers
// (metres).
const EarthRadiusM = 6378100.0

// Vec3 is an Earth-centred cartesian vector in metres.
type Vec3 struct {
	X, Y, Z float64
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// sphericalToCartesian places a lat/long (degrees) on the surface of a sphere
// of radius r.
func sphericalToCartesian(latDeg, lonDeg, r float64) Vec3 {
	lat := degToRad(latDeg)
	lon := degToRad(lonDeg)
	rho := r * math.Cos(lat)
	return Vec3{
		X: rho * math.Cos(lon),
		Y: rho * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// GreatCircleDistance returns the distance in metres between two lat/long
// points (degrees) along the surface of the sphere. Inputs outside the valid
// lat/long ranges are not checked.
func GreatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p := sphericalToCartesian(lat1, lon1, EarthRadiusM)
	q := sphericalToCartesian(lat2, lon2, EarthRadiusM)

	cosTheta := p.Dot(q) / (EarthRadiusM * EarthRadiusM)
	// Rounding can push coincident points just past 1.
	if cosTheta > 1 {
		cosTheta = 1
	} else if cosTheta < -1 {
		cosTheta = -1
	}
	return EarthRadiusM * math.Acos(cosTheta)
}

// DegreesPerMeter returns the latitude and longitude degrees spanned by one
// metre along each venue axis, measured along the bottom edge. It is a local
// linear approximation and only holds for small venues.
func DegreesPerMeter(bottomLeft, topRight model.Corner) (latDegPerM, lonDegPerM float64) {
	latDist := GreatCircleDistance(bottomLeft.Y, bottomLeft.X, topRight.Y, bottomLeft.X)
	lonDist := GreatCircleDistance(bottomLeft.Y, bottomLeft.X, bottomLeft.Y, topRight.X)

	if latDist > 0 {
		latDegPerM = (topRight.Y - bottomLeft.Y) / latDist
	}
	if lonDist > 0 {
		lonDegPerM = (topRight.X - bottomLeft.X) / lonDist
	}
	return latDegPerM, lonDegPerM
}
