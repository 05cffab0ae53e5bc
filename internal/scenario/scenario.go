// internal/scenario/scenario.go
//
// Scenario configuration and the file-naming contract shared by every
// pipeline step. One Config is built per run from the form input and never
// mutated afterwards; every artifact name derives from BaseName.

package scenario

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/trafficlab/sumoforge/internal/geo"
)

// Config describes one scenario generation run.
type Config struct {
	// BaseName prefixes every generated file (e.g. "VeinsScenario").
	BaseName string
	// Box is the geographic area to extract from OpenStreetMap.
	Box geo.BoundingBox
	// DurationSeconds is the simulated time window [0, DurationSeconds].
	DurationSeconds int
	// VehicleCount is the number of vehicles to inject over the window.
	VehicleCount int
}

// Validate rejects configs that would crash or confuse the external tools.
// A zero vehicle count would otherwise divide the spawn period by zero.
func (c Config) Validate() error {
	name := strings.TrimSpace(c.BaseName)
	if name == "" {
		return fmt.Errorf("scenario: base filename is required")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("scenario: base filename %q must not contain path separators", name)
	}
	if c.DurationSeconds <= 0 {
		return fmt.Errorf("scenario: duration must be positive, got %d", c.DurationSeconds)
	}
	if c.VehicleCount <= 0 {
		return fmt.Errorf("scenario: vehicle count must be positive, got %d", c.VehicleCount)
	}
	return c.Box.Validate()
}

// SpawnPeriod is the seconds between vehicle departures handed to the trip
// generator. Only meaningful for validated configs.
func (c Config) SpawnPeriod() float64 {
	return float64(c.DurationSeconds) / float64(c.VehicleCount)
}

// SpawnPeriodArg formats the spawn period for the randomTrips command line,
// using the shortest representation that round-trips (3600/1000 -> "3.6").
func (c Config) SpawnPeriodArg() string {
	return strconv.FormatFloat(c.SpawnPeriod(), 'f', -1, 64)
}

// Artifacts resolves every artifact path for a scenario inside dir.
type Artifacts struct {
	dir  string
	base string
}

// NewArtifacts binds a base name to an output directory.
func NewArtifacts(dir, base string) Artifacts {
	return Artifacts{dir: dir, base: strings.TrimSpace(base)}
}

// Dir returns the output directory.
func (a Artifacts) Dir() string { return a.dir }

// Base returns the scenario base name.
func (a Artifacts) Base() string { return a.base }

func (a Artifacts) path(suffix string) string {
	return filepath.Join(a.dir, a.base+suffix)
}

// OSMFile is the canonical map extract consumed by the converters.
func (a Artifacts) OSMFile() string { return a.path(".osm") }

// NetFile is the converted road network.
func (a Artifacts) NetFile() string { return a.path(".net.xml") }

// PolyFile holds building/landuse polygons for visualization.
func (a Artifacts) PolyFile() string { return a.path(".poly.xml") }

// TripFile holds generated origin-destination pairs.
func (a Artifacts) TripFile() string { return a.path(".trip.xml") }

// RouteFile holds the routed trips.
func (a Artifacts) RouteFile() string { return a.path(".rou.xml") }

// RouteAltFile is duarouter's alternatives sidecar, removed at cleanup.
func (a Artifacts) RouteAltFile() string { return a.path(".rou.alt.xml") }

// LaunchFile is the Veins launch descriptor.
func (a Artifacts) LaunchFile() string { return a.path(".launchd.xml") }

// SumoConfigFile is the SUMO run configuration.
func (a Artifacts) SumoConfigFile() string { return a.path(".sumo.cfg") }

// OmnetConfigFile is the fixed-name OMNeT++ ini, written next to the rest.
func (a Artifacts) OmnetConfigFile() string { return filepath.Join(a.dir, "omnetpp.ini") }

// DownloadGlob matches the downloader's usual output name so it can be
// renamed to the canonical OSMFile. Fragile by nature; FallbackDownload
// covers older osmGet versions.
func (a Artifacts) DownloadGlob() string { return a.path("*_bbox.osm.xml") }

// FallbackDownload is the alternative downloader output name.
func (a Artifacts) FallbackDownload() string { return a.path(".osm.xml") }

// TempFiles lists intermediates deleted at the end of a successful run.
func (a Artifacts) TempFiles() []string {
	return []string{
		filepath.Join(a.dir, "routes.rou.xml"),
		a.RouteAltFile(),
		a.TripFile(),
	}
}
