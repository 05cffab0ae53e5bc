package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trafficlab/sumoforge/internal/config"
	"github.com/trafficlab/sumoforge/internal/pipeline"
	"github.com/trafficlab/sumoforge/internal/scenario"
)

type fakeRunner struct {
	active  bool
	lastScn scenario.Config
	calls   int
	outcome pipeline.Outcome
	err     error
}

func (f *fakeRunner) Run(_ context.Context, scn scenario.Config) (pipeline.Outcome, error) {
	f.calls++
	f.lastScn = scn
	return f.outcome, f.err
}

func (f *fakeRunner) Active() bool { return f.active }

func newTestApp(t *testing.T) (*App, *fakeRunner, string) {
	t.Helper()
	projectDir := t.TempDir()
	if err := config.InitProjectDir(projectDir); err != nil {
		t.Fatalf("init project dir: %v", err)
	}
	runner := &fakeRunner{outcome: pipeline.Outcome{OK: true}}
	app, err := NewApp(projectDir, WithRunner(runner))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app, runner, projectDir
}

func fillForm(app *App, base, duration, vehicles, s, n, w, e string) {
	app.inputs[fieldBaseName].SetValue(base)
	app.inputs[fieldDuration].SetValue(duration)
	app.inputs[fieldVehicles].SetValue(vehicles)
	app.inputs[fieldSouth].SetValue(s)
	app.inputs[fieldNorth].SetValue(n)
	app.inputs[fieldWest].SetValue(w)
	app.inputs[fieldEast].SetValue(e)
}

func TestBuildScenarioFromForm(t *testing.T) {
	app, _, _ := newTestApp(t)
	fillForm(app, "Downtown", "7200", "500", "34.0", "34.1", "-118.3", "-118.2")
	scn, err := app.buildScenario()
	if err != nil {
		t.Fatalf("buildScenario: %v", err)
	}
	if scn.BaseName != "Downtown" || scn.DurationSeconds != 7200 || scn.VehicleCount != 500 {
		t.Fatalf("unexpected scenario: %+v", scn)
	}
	if scn.Box.South != 34.0 || scn.Box.North != 34.1 {
		t.Fatalf("unexpected box: %+v", scn.Box)
	}
}

func TestBuildScenarioRequiresBoundsWithoutExtract(t *testing.T) {
	app, _, _ := newTestApp(t)
	fillForm(app, "Downtown", "3600", "100", "", "", "", "")
	if _, err := app.buildScenario(); err == nil {
		t.Fatal("expected a bounding box validation error")
	}
}

func TestBuildScenarioAllowsEmptyBoundsWithExistingExtract(t *testing.T) {
	app, _, projectDir := newTestApp(t)
	if err := os.WriteFile(filepath.Join(projectDir, "Downtown.osm"), []byte("<osm/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	fillForm(app, "Downtown", "3600", "100", "", "", "", "")
	scn, err := app.buildScenario()
	if err != nil {
		t.Fatalf("buildScenario: %v", err)
	}
	if err := scn.Box.Validate(); err != nil {
		t.Fatalf("placeholder box must be valid: %v", err)
	}
}

func TestBuildScenarioRejectsZeroVehicles(t *testing.T) {
	app, _, _ := newTestApp(t)
	fillForm(app, "Downtown", "3600", "0", "34.0", "34.1", "-118.3", "-118.2")
	if _, err := app.buildScenario(); err == nil {
		t.Fatal("expected vehicle count validation error")
	}
}

func TestStartGenerationRunsPipeline(t *testing.T) {
	app, runner, _ := newTestApp(t)
	fillForm(app, "Downtown", "3600", "100", "34.0", "34.1", "-118.3", "-118.2")
	if cmd := app.startGeneration(); cmd == nil {
		t.Fatal("expected a command to start listening for events")
	}
	if app.state != stateRunning {
		t.Fatalf("expected running state, got %d", app.state)
	}
	// Drain messages until the done message arrives.
	cmd := app.waitForEvent()
	for {
		msg := cmd()
		if msg == nil {
			t.Fatal("event channel closed before done message")
		}
		model, next := app.Update(msg)
		app = model.(*App)
		if app.state == stateDone {
			break
		}
		if next == nil {
			t.Fatal("update stopped listening before completion")
		}
		cmd = next
	}
	if runner.calls != 1 {
		t.Fatalf("expected one pipeline run, got %d", runner.calls)
	}
	if !app.outcome.OK {
		t.Fatalf("expected successful outcome: %+v", app.outcome)
	}
}

func TestStartGenerationRefusedWhileActive(t *testing.T) {
	app, runner, _ := newTestApp(t)
	runner.active = true
	fillForm(app, "Downtown", "3600", "100", "34.0", "34.1", "-118.3", "-118.2")
	if cmd := app.startGeneration(); cmd != nil {
		t.Fatal("expected no command while a run is active")
	}
	if runner.calls != 0 {
		t.Fatal("pipeline must not be invoked while active")
	}
	if !strings.Contains(app.formErr, "in progress") {
		t.Fatalf("expected re-entrancy message, got %q", app.formErr)
	}
}

func TestPipelineEventsAppendToLog(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.appendLogLine(pipeline.Event{Level: pipeline.LevelInfo, Message: "--- Map Data Setup ---"})
	app.appendLogLine(pipeline.Event{Level: pipeline.LevelWarn, Message: "typemap missing"})
	if len(app.logLines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(app.logLines))
	}
	if !strings.Contains(app.logLines[0], "Map Data Setup") {
		t.Fatalf("unexpected first line: %s", app.logLines[0])
	}
}

func TestResetFormAfterDone(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.state = stateDone
	app.outcome = pipeline.Outcome{OK: false, FailedStep: "build-network"}
	app.resetForm()
	if app.state != stateForm {
		t.Fatal("expected form state after reset")
	}
	if app.outcome.FailedStep != "" {
		t.Fatal("expected outcome cleared after reset")
	}
}
