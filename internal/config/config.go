// internal/config/config.go
//
// This package handles configuration and the .sumoforge directory structure.
// Every project that uses sumoforge gets a .sumoforge/ folder created in the
// directory the tool runs from.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SumoforgeDir is the name of the directory we create in each project
	SumoforgeDir = ".sumoforge"

	defaultPython          = "python3"
	defaultDuration        = 3600
	defaultVehicles        = 1000
	defaultStepTimeoutMins = 30
)

// PolygonFailurePolicy controls what happens when the optional polygon
// conversion step fails.
type PolygonFailurePolicy string

const (
	// PolygonWarn logs the failure and continues the pipeline.
	PolygonWarn PolygonFailurePolicy = "warn"
	// PolygonFail aborts the run like a mandatory step failure.
	PolygonFail PolygonFailurePolicy = "fail"
)

const defaultProjectConfigYAML = `# sumoforge project configuration
version: 1

sumo:
  # Used when the SUMO_HOME environment variable is not set.
  # Point this at your SUMO installation, e.g. /opt/sumo-1.22.0
  home_fallback: ""
  # Interpreter used to run SUMO's tool scripts (osmGet.py, randomTrips.py).
  python: python3

pipeline:
  # Upper bound for each external tool invocation, in minutes. 0 disables it.
  step_timeout_minutes: 30
  # warn: log polygon conversion failures and continue. fail: abort the run.
  polygon_failure: warn

defaults:
  duration_seconds: 3600
  vehicle_count: 1000
`

// SumoConfig locates the SUMO installation and tool interpreter.
type SumoConfig struct {
	HomeFallback string `yaml:"home_fallback,omitempty"`
	Python       string `yaml:"python,omitempty"`
}

// PipelineConfig captures pipeline behavior knobs.
type PipelineConfig struct {
	StepTimeoutMinutes int                  `yaml:"step_timeout_minutes"`
	PolygonFailure     PolygonFailurePolicy `yaml:"polygon_failure,omitempty"`
}

// DefaultsConfig seeds the generation form.
type DefaultsConfig struct {
	DurationSeconds int `yaml:"duration_seconds"`
	VehicleCount    int `yaml:"vehicle_count"`
}

// ProjectConfig models .sumoforge/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Sumo     SumoConfig     `yaml:"sumo"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Config holds the runtime configuration for sumoforge.
type Config struct {
	// ProjectDir is the directory where the user ran `sumoforge` from.
	// Generated scenario files land here.
	ProjectDir string

	// ForgeProjectDir is ProjectDir/.sumoforge
	ForgeProjectDir string

	Project ProjectConfig
}

// InitProjectDir creates the .sumoforge directory structure in the given
// project directory. Called when the TUI starts up.
//
// Structure created:
// .sumoforge/
// ├── logs/    <- Pipeline run logs
// └── config.yaml
func InitProjectDir(projectDir string) error {
	forgeDir := filepath.Join(projectDir, SumoforgeDir)

	if err := os.MkdirAll(filepath.Join(forgeDir, "logs"), 0755); err != nil {
		return err
	}

	return ensureProjectConfig(filepath.Join(forgeDir, "config.yaml"))
}

// NewConfig creates a Config populated from .sumoforge/config.yaml, applying
// defaults when the file is absent.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:      projectDir,
		ForgeProjectDir: filepath.Join(projectDir, SumoforgeDir),
		Project:         defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ForgeProjectDir, "logs")
}

// OutputDir returns where scenario artifacts are written.
func (c *Config) OutputDir() string {
	return c.ProjectDir
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ForgeProjectDir, "config.yaml")
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Sumo: SumoConfig{
			Python: defaultPython,
		},
		Pipeline: PipelineConfig{
			StepTimeoutMinutes: defaultStepTimeoutMins,
			PolygonFailure:     PolygonWarn,
		},
		Defaults: DefaultsConfig{
			DurationSeconds: defaultDuration,
			VehicleCount:    defaultVehicles,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Sumo.Python) == "" {
		pc.Sumo.Python = defaultPython
	}
	if pc.Pipeline.PolygonFailure == "" {
		pc.Pipeline.PolygonFailure = PolygonWarn
	}
	if pc.Defaults.DurationSeconds == 0 {
		pc.Defaults.DurationSeconds = defaultDuration
	}
	if pc.Defaults.VehicleCount == 0 {
		pc.Defaults.VehicleCount = defaultVehicles
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Sumo.HomeFallback = resolvePath(base, pc.Sumo.HomeFallback)
	pc.Sumo.Python = strings.TrimSpace(pc.Sumo.Python)
	pc.Pipeline.PolygonFailure = PolygonFailurePolicy(
		strings.ToLower(strings.TrimSpace(string(pc.Pipeline.PolygonFailure))))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Pipeline.PolygonFailure {
	case PolygonWarn, PolygonFail:
	default:
		return fmt.Errorf("pipeline.polygon_failure must be 'warn' or 'fail'")
	}
	if pc.Pipeline.StepTimeoutMinutes < 0 {
		return fmt.Errorf("pipeline.step_timeout_minutes must be >= 0")
	}
	if pc.Defaults.DurationSeconds < 0 {
		return fmt.Errorf("defaults.duration_seconds must be >= 0")
	}
	if pc.Defaults.VehicleCount < 0 {
		return fmt.Errorf("defaults.vehicle_count must be >= 0")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
