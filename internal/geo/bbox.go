// internal/geo/bbox.go
//
// Geographic bounding boxes for map extraction. The selector mirrors the
// draw-a-rectangle interaction: only the most recently entered rectangle is
// kept, and longitudes are normalized before anyone reads them back.

package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BoundingBox is a geographic rectangle in WGS84 degrees.
type BoundingBox struct {
	South float64
	North float64
	West  float64
	East  float64
}

// NormalizeLongitude maps any longitude into [-180, 180).
func NormalizeLongitude(lon float64) float64 {
	norm := math.Mod(lon+180, 360)
	if norm < 0 {
		norm += 360
	}
	return norm - 180
}

// Normalized returns a copy of the box with both longitudes normalized.
func (b BoundingBox) Normalized() BoundingBox {
	b.West = NormalizeLongitude(b.West)
	b.East = NormalizeLongitude(b.East)
	return b
}

// Validate checks that the box describes a usable extraction area.
// West/East may straddle the antimeridian, so only latitudes are ordered.
func (b BoundingBox) Validate() error {
	if b.South < -90 || b.South > 90 || b.North < -90 || b.North > 90 {
		return fmt.Errorf("geo: latitude out of range [-90, 90]: south=%g north=%g", b.South, b.North)
	}
	if b.South >= b.North {
		return fmt.Errorf("geo: south (%g) must be strictly less than north (%g)", b.South, b.North)
	}
	return nil
}

// String renders the box in the W,S,E,N order the OSM downloader expects.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(b.West), formatCoord(b.South), formatCoord(b.East), formatCoord(b.North))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseBoundingBox parses "south,north,west,east" as entered in the form.
func ParseBoundingBox(value string) (BoundingBox, error) {
	parts := strings.Split(strings.TrimSpace(value), ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("geo: expected south,north,west,east, got %q", value)
	}
	coords := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("geo: coordinate %d: %w", i+1, err)
		}
		coords[i] = v
	}
	box := BoundingBox{South: coords[0], North: coords[1], West: coords[2], East: coords[3]}
	if err := box.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return box.Normalized(), nil
}

// Selector keeps at most one active rectangle. Selecting a new rectangle
// discards the previous one.
type Selector struct {
	box      BoundingBox
	selected bool
}

// Select replaces any previous selection after validating and normalizing.
func (s *Selector) Select(box BoundingBox) error {
	if err := box.Validate(); err != nil {
		return err
	}
	s.box = box.Normalized()
	s.selected = true
	return nil
}

// Selection returns the active rectangle, if any.
func (s *Selector) Selection() (BoundingBox, bool) {
	if !s.selected {
		return BoundingBox{}, false
	}
	return s.box, true
}

// Clear drops the active selection.
func (s *Selector) Clear() {
	s.box = BoundingBox{}
	s.selected = false
}
