package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	forgeDir := filepath.Join(projectDir, SumoforgeDir)
	if err := os.MkdirAll(forgeDir, 0755); err != nil {
		t.Fatal(err)
	}
	c := &Config{ProjectDir: projectDir, ForgeProjectDir: forgeDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.Project.Sumo.Python != defaultPython {
		t.Fatalf("expected default python %q, got %q", defaultPython, c.Project.Sumo.Python)
	}
	if c.Project.Pipeline.PolygonFailure != PolygonWarn {
		t.Fatalf("expected default polygon policy warn, got %q", c.Project.Pipeline.PolygonFailure)
	}
	if c.Project.Defaults.DurationSeconds != defaultDuration {
		t.Fatalf("expected default duration %d, got %d", defaultDuration, c.Project.Defaults.DurationSeconds)
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	forgeDir := filepath.Join(projectDir, SumoforgeDir)
	if err := os.MkdirAll(forgeDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
sumo:
  home_fallback: opt/sumo-1.22.0
  python: python
pipeline:
  step_timeout_minutes: 5
  polygon_failure: FAIL
defaults:
  duration_seconds: 7200
  vehicle_count: 250
`)
	if err := os.WriteFile(filepath.Join(forgeDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c := &Config{ProjectDir: projectDir, ForgeProjectDir: forgeDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if !strings.HasPrefix(c.Project.Sumo.HomeFallback, projectDir) {
		t.Fatalf("expected relative fallback resolved against project dir, got %s", c.Project.Sumo.HomeFallback)
	}
	if c.Project.Sumo.Python != "python" {
		t.Fatalf("wrong python interpreter: %s", c.Project.Sumo.Python)
	}
	if c.Project.Pipeline.StepTimeoutMinutes != 5 {
		t.Fatalf("wrong step timeout: %d", c.Project.Pipeline.StepTimeoutMinutes)
	}
	if c.Project.Pipeline.PolygonFailure != PolygonFail {
		t.Fatalf("expected polygon policy normalized to fail, got %q", c.Project.Pipeline.PolygonFailure)
	}
	if c.Project.Defaults.DurationSeconds != 7200 || c.Project.Defaults.VehicleCount != 250 {
		t.Fatalf("form defaults not loaded: %+v", c.Project.Defaults)
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	projectDir := t.TempDir()
	forgeDir := filepath.Join(projectDir, SumoforgeDir)
	if err := os.MkdirAll(forgeDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
pipeline:
  polygon_failure: shrug
`)
	if err := os.WriteFile(filepath.Join(forgeDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c := &Config{ProjectDir: projectDir, ForgeProjectDir: forgeDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err == nil {
		t.Fatal("expected validation error for unknown polygon policy")
	}
}

func TestInitProjectDirSeedsConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitProjectDir(projectDir); err != nil {
		t.Fatalf("InitProjectDir: %v", err)
	}
	cfgPath := filepath.Join(projectDir, SumoforgeDir, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("seeded config missing: %v", err)
	}
	if !strings.Contains(string(data), "home_fallback") {
		t.Fatalf("seeded config lacks sumo section: %s", data)
	}
	if _, err := os.Stat(filepath.Join(projectDir, SumoforgeDir, "logs")); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}

	// Re-running must not clobber an existing config.
	if err := os.WriteFile(cfgPath, []byte("version: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := InitProjectDir(projectDir); err != nil {
		t.Fatalf("InitProjectDir second run: %v", err)
	}
	data, _ = os.ReadFile(cfgPath)
	if strings.Contains(string(data), "home_fallback") {
		t.Fatalf("existing config was overwritten")
	}
}
