// internal/sumo/install.go
//
// Locates a SUMO installation and the tool scripts the pipeline shells out
// to. SUMO_HOME wins; the configured fallback path is only consulted when
// the variable is unset.

package sumo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvHome is the environment variable naming the SUMO installation root.
const EnvHome = "SUMO_HOME"

// ErrNotFound reports that no SUMO installation could be located.
type ErrNotFound struct {
	Fallback string
}

func (e *ErrNotFound) Error() string {
	if strings.TrimSpace(e.Fallback) == "" {
		return fmt.Sprintf("sumo: %s is not set and no fallback path is configured", EnvHome)
	}
	return fmt.Sprintf("sumo: %s is not set and fallback %s does not exist", EnvHome, e.Fallback)
}

// Install is a resolved SUMO installation.
type Install struct {
	// Home is the installation root (what SUMO_HOME points at).
	Home string
	// Python runs SUMO's tool scripts (osmGet.py, randomTrips.py).
	Python string
}

// Locate resolves the SUMO installation root from the environment, falling
// back to the configured path when SUMO_HOME is unset. The lookup function
// is injectable for tests; pass nil for os.Getenv.
func Locate(fallback, python string, getenv func(string) string) (Install, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if strings.TrimSpace(python) == "" {
		python = "python3"
	}

	home := strings.TrimSpace(getenv(EnvHome))
	if home == "" {
		fallback = strings.TrimSpace(fallback)
		if fallback == "" {
			return Install{}, &ErrNotFound{}
		}
		if info, err := os.Stat(fallback); err != nil || !info.IsDir() {
			return Install{}, &ErrNotFound{Fallback: fallback}
		}
		home = fallback
	}

	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		return Install{}, fmt.Errorf("sumo: %s=%s is not an existing directory", EnvHome, home)
	}

	return Install{Home: home, Python: python}, nil
}

// ToolsDir returns the directory holding SUMO's Python tool scripts.
func (i Install) ToolsDir() string {
	return filepath.Join(i.Home, "tools")
}

// OSMGetScript returns the path to the OSM downloader script.
func (i Install) OSMGetScript() string {
	return filepath.Join(i.ToolsDir(), "osmGet.py")
}

// RandomTripsScript returns the path to the random trip generator script.
func (i Install) RandomTripsScript() string {
	return filepath.Join(i.ToolsDir(), "randomTrips.py")
}

// TypemapPath returns the polyconvert typemap shipped with SUMO.
func (i Install) TypemapPath() string {
	return filepath.Join(i.Home, "data", "typemap", "osmPolyconvert.typ.xml")
}
