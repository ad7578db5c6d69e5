// Package geo measures great-circle distances on a spherical Earth.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit is a distance unit accepted in URLs.
type Unit string

// Units.
const (
	Miles      Unit = "mi"
	Kilometers Unit = "km"
)

// ParseUnit accepts "mi" or "km".
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(s)); u {
	case Miles, Kilometers:
		return u, nil
	}
	return "", fmt.Errorf("unknown distance unit %q, use mi or km", s)
}

// EarthRadius is the radius of the Earth in u.
func (u Unit) EarthRadius() float64 {
	if u == Miles {
		return 3963.2
	}
	return 6378.1
}

// Point is a position in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// ParsePoint parses "lat,lng".
func ParsePoint(s string) (Point, error) {
	rawLat, rawLng, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("point %q is not in the format lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude %q", rawLat)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(rawLng), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude %q", rawLng)
	}
	p := Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return Point{}, fmt.Errorf("point %q is out of range", s)
	}
	return p, nil
}

// FromCoordinates reads a GeoJSON [lng, lat] pair.
func FromCoordinates(coords []float64) (Point, bool) {
	if len(coords) != 2 {
		return Point{}, false
	}
	p := Point{Lat: coords[1], Lng: coords[0]}
	return p, p.Valid()
}

// Valid reports whether the latitude and longitude are in range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Angle returns the central angle between a and b in radians (haversine).
func Angle(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)
	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Distance returns the great-circle distance between a and b in u.
func Distance(a, b Point, u Unit) float64 {
	return Angle(a, b) * u.EarthRadius()
}

// Within reports whether p lies within radius (in u) of center.
func Within(center, p Point, radius float64, u Unit) bool {
	return Angle(center, p) <= radius/u.EarthRadius()
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
