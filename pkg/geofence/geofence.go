// Package geofence decodes GeoJSON polygon geometry and evaluates
// point-in-polygon containment for the manager's telemetry pipeline
// (spec.md §4.G). Decoding uses github.com/paulmach/go.geojson (an
// indirect dependency of the example pack's maglev manifest, pulled in
// directly here since no full GIS stack appears elsewhere in the pack).
// Containment itself is a hand-rolled ray-casting test: go.geojson only
// parses geometry, it does not implement any contains/intersects
// predicate, and no other example in the pack carries a geometry-query
// library (shapely's role in original_source has no Go analogue here).
package geofence

import (
	"encoding/json"
	"fmt"

	geojson "github.com/paulmach/go.geojson"
)

// Point is a (lon, lat) coordinate, matching GeoJSON's [lon, lat] axis
// order (original_source's shapely Point(lon, lat) uses the same order).
type Point struct {
	Lon float64
	Lat float64
}

// Polygon is a decoded GeoJSON polygon: one outer ring plus zero or more
// hole rings, each a closed loop of (lon, lat) points.
type Polygon struct {
	Outer []Point
	Holes [][]Point
}

// Decode parses raw GeoJSON geometry (a Polygon or MultiPolygon's first
// member) into a Polygon ready for Contains checks.
func Decode(data []byte) (Polygon, error) {
	var g geojson.Geometry
	if err := json.Unmarshal(data, &g); err != nil {
		return Polygon{}, fmt.Errorf("geofence: decode geometry: %w", err)
	}

	switch {
	case g.IsPolygon():
		return fromRings(g.Polygon), nil
	case g.IsMultiPolygon():
		if len(g.MultiPolygon) == 0 {
			return Polygon{}, fmt.Errorf("geofence: empty multipolygon")
		}
		return fromRings(g.MultiPolygon[0]), nil
	default:
		return Polygon{}, fmt.Errorf("geofence: unsupported geometry type %q", g.Type)
	}
}

func fromRings(rings [][][]float64) Polygon {
	p := Polygon{}
	for i, ring := range rings {
		pts := make([]Point, len(ring))
		for j, coord := range ring {
			pts[j] = Point{Lon: coord[0], Lat: coord[1]}
		}
		if i == 0 {
			p.Outer = pts
		} else {
			p.Holes = append(p.Holes, pts)
		}
	}
	return p
}

// Contains reports whether pt lies within the polygon: inside the outer
// ring and outside every hole. Uses the standard ray-casting
// (even-odd rule) point-in-polygon test.
func (p Polygon) Contains(pt Point) bool {
	if !ringContains(p.Outer, pt) {
		return false
	}
	for _, hole := range p.Holes {
		if ringContains(hole, pt) {
			return false
		}
	}
	return true
}

// ringContains implements the ray-casting test for a single closed ring:
// cast a ray in the +x direction from pt and count edge crossings; an
// odd count means pt is inside.
func ringContains(ring []Point, pt Point) bool {
	inside := false
	n := len(ring)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		crosses := (pi.Lat > pt.Lat) != (pj.Lat > pt.Lat)
		if !crosses {
			continue
		}
		xIntersect := (pj.Lon-pi.Lon)*(pt.Lat-pi.Lat)/(pj.Lat-pi.Lat) + pi.Lon
		if pt.Lon < xIntersect {
			inside = !inside
		}
	}
	return inside
}
