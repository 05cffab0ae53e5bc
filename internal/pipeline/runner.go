package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/trafficlab/sumoforge/internal/config"
	"github.com/trafficlab/sumoforge/internal/scenario"
	"github.com/trafficlab/sumoforge/internal/sumo"
)

// ErrRunInProgress is returned when Run is called while a previous run is
// still active. Concurrent runs against the same base filename would trample
// each other's artifacts, so the runner never interleaves them.
var ErrRunInProgress = errors.New("pipeline: a run is already in progress")

// Locator resolves the SUMO installation for a run.
type Locator func() (sumo.Install, error)

// Option customizes the runner.
type Option func(*Runner)

// WithCommandRunner swaps the external command executor.
func WithCommandRunner(runner CommandRunner) Option {
	return func(r *Runner) {
		if runner != nil {
			r.runCmd = runner
		}
	}
}

// WithLocator swaps the SUMO installation resolver.
func WithLocator(locate Locator) Option {
	return func(r *Runner) {
		if locate != nil {
			r.locate = locate
		}
	}
}

// WithSink adds a progress event sink. Sinks are invoked in registration
// order, synchronously, before the next step starts.
func WithSink(sink Sink) Option {
	return func(r *Runner) {
		if sink != nil {
			r.sinks = append(r.sinks, sink)
		}
	}
}

// WithStepTimeout overrides the per-step timeout. Zero disables it.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.stepTimeout = d
	}
}

// Runner walks the fixed step sequence for one scenario at a time.
type Runner struct {
	outputDir     string
	stepTimeout   time.Duration
	polygonPolicy config.PolygonFailurePolicy
	locate        Locator
	runCmd        CommandRunner
	sinks         []Sink

	mu      sync.Mutex
	running bool
}

// NewRunner builds a runner from project configuration.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	fallback := cfg.Project.Sumo.HomeFallback
	python := cfg.Project.Sumo.Python
	r := &Runner{
		outputDir:     cfg.OutputDir(),
		stepTimeout:   time.Duration(cfg.Project.Pipeline.StepTimeoutMinutes) * time.Minute,
		polygonPolicy: cfg.Project.Pipeline.PolygonFailure,
		runCmd:        defaultCommandRunner,
		locate: func() (sumo.Install, error) {
			return sumo.Locate(fallback, python, nil)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Active reports whether a run is currently in flight.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// StepInfos returns the ordered step identities, for display.
func (r *Runner) StepInfos() []Info {
	steps := pipelineSteps()
	infos := make([]Info, len(steps))
	for i, st := range steps {
		infos[i] = st.info
	}
	return infos
}

// Run executes the pipeline for one scenario. It blocks until the run
// finishes or ctx is cancelled; callers wanting a responsive UI run it on
// their own goroutine. A second call while a run is active returns
// ErrRunInProgress. Step failures are reported through the Outcome, not the
// error return.
func (r *Runner) Run(ctx context.Context, scn scenario.Config) (outcome Outcome, err error) {
	if vErr := scn.Validate(); vErr != nil {
		return Outcome{}, vErr
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Outcome{}, ErrRunInProgress
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	rc := &runContext{
		ctx:    ctx,
		scn:    scn,
		art:    scenario.NewArtifacts(r.outputDir, scn.BaseName),
		runner: r,
	}

	var reports []StepReport
	defer func() {
		if rec := recover(); rec != nil {
			r.emit(Event{Level: LevelError, Message: fmt.Sprintf("Unexpected error: %v", rec)})
			outcome = Outcome{
				OK:         false,
				FailedStep: "internal",
				Err:        fmt.Errorf("pipeline: unexpected error: %v", rec),
				Steps:      reports,
			}
			err = nil
		}
	}()

	rc.log(LevelInfo, "Starting scenario generation for %q", scn.BaseName)

	for _, st := range pipelineSteps() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			rc.log(LevelError, "Run cancelled before %s", st.info.Name)
			return Outcome{OK: false, FailedStep: st.info.ID, Err: ctxErr, Steps: reports}, nil
		}

		rc.log(LevelInfo, "--- %s ---", st.info.Name)
		start := time.Now()
		res, runErr := st.run(rc)
		report := StepReport{
			ID:       st.info.ID,
			Name:     st.info.Name,
			Status:   res.Status,
			Message:  res.Message,
			Duration: time.Since(start),
		}
		if runErr != nil && report.Message == "" {
			report.Message = runErr.Error()
		}
		reports = append(reports, report)

		failed := runErr != nil || res.Status == StatusFailed
		if !failed {
			continue
		}
		if st.info.Optional && r.polygonPolicy != config.PolygonFail {
			rc.log(LevelWarn, "%s failed, continuing: %v", st.info.Name, runErr)
			continue
		}
		rc.log(LevelError, "%s failed, aborting run: %v", st.info.Name, runErr)
		return Outcome{OK: false, FailedStep: st.info.ID, Err: runErr, Steps: reports}, nil
	}

	rc.log(LevelInfo, "Process complete")
	rc.log(LevelInfo, "Veins launch file: %s", rc.art.LaunchFile())
	rc.log(LevelInfo, "SUMO config file: %s", rc.art.SumoConfigFile())
	return Outcome{
		OK:             true,
		Steps:          reports,
		LaunchFile:     rc.art.LaunchFile(),
		SumoConfigFile: rc.art.SumoConfigFile(),
	}, nil
}

func (r *Runner) emit(event Event) {
	for _, sink := range r.sinks {
		sink(event)
	}
}

// runContext carries per-run state into every step.
type runContext struct {
	ctx     context.Context
	scn     scenario.Config
	art     scenario.Artifacts
	install sumo.Install
	runner  *Runner
}

func (rc *runContext) log(level Level, format string, args ...any) {
	rc.runner.emit(Event{Level: level, Message: fmt.Sprintf(format, args...)})
}

// command runs one external tool with the per-step timeout applied, logging
// a truncated view of its combined output.
func (rc *runContext) command(desc, name string, args ...string) error {
	rc.log(LevelInfo, "Running %s: %s", desc, name)
	ctx := rc.ctx
	cancel := context.CancelFunc(func() {})
	if rc.runner.stepTimeout > 0 {
		ctx, cancel = context.WithTimeout(rc.ctx, rc.runner.stepTimeout)
	}
	defer cancel()

	out, err := rc.runner.runCmd(ctx, rc.art.Dir(), name, args...)
	if snippet, truncated := outputSnippet(out); snippet != "" {
		if truncated {
			rc.log(LevelInfo, "[output] %s…", snippet)
		} else {
			rc.log(LevelInfo, "[output] %s", snippet)
		}
	}
	if err != nil {
		rc.log(LevelError, "%s failed: %v", desc, err)
		return fmt.Errorf("pipeline: %s: %w", desc, err)
	}
	rc.log(LevelInfo, "%s finished successfully", desc)
	return nil
}

func pipelineSteps() []step {
	return []step{
		{info: Info{ID: "locate-runtime", Name: "Locate SUMO Runtime"}, run: stepLocateRuntime},
		{info: Info{ID: "fetch-map-data", Name: "Map Data Setup"}, run: stepFetchMapData},
		{info: Info{ID: "build-network", Name: "Convert Network"}, run: stepBuildNetwork},
		{info: Info{ID: "build-polygons", Name: "Generate Polygons", Optional: true}, run: stepBuildPolygons},
		{info: Info{ID: "generate-trips", Name: "Generate Random Trips"}, run: stepGenerateTrips},
		{info: Info{ID: "compute-routes", Name: "Compute Routes"}, run: stepComputeRoutes},
		{info: Info{ID: "write-configs", Name: "Write Configuration Files"}, run: stepWriteConfigs},
		{info: Info{ID: "cleanup", Name: "Clean Up"}, run: stepCleanup},
	}
}

func stepLocateRuntime(rc *runContext) (Result, error) {
	install, err := rc.runner.locate()
	if err != nil {
		return Result{Status: StatusFailed}, err
	}
	rc.install = install
	// The SUMO tool scripts consult SUMO_HOME themselves, so export the
	// resolved root for the child processes.
	if os.Getenv(sumo.EnvHome) == "" {
		_ = os.Setenv(sumo.EnvHome, install.Home)
	}
	rc.log(LevelInfo, "Found SUMO installation: %s", install.Home)
	return Result{Status: StatusCompleted, Message: install.Home}, nil
}

func stepFetchMapData(rc *runContext) (Result, error) {
	osmFile := rc.art.OSMFile()
	if fileExists(osmFile) {
		rc.log(LevelInfo, "Found existing map extract %s, skipping download", filepath.Base(osmFile))
		return Result{Status: StatusSkipped, Message: "existing map extract reused"}, nil
	}

	rc.log(LevelInfo, "No existing %s, downloading map data", filepath.Base(osmFile))
	err := rc.command("OSM download", rc.install.Python,
		rc.install.OSMGetScript(),
		"--bbox="+rc.scn.Box.String(),
		"-p", rc.art.Base(),
		"-d", rc.art.Dir(),
	)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}

	// osmGet names its output <prefix>_<area>_bbox.osm.xml on recent
	// versions and <prefix>.osm.xml on older ones. Glob matching is a
	// compatibility shim for a contract the downloader never versioned.
	matches, _ := filepath.Glob(rc.art.DownloadGlob())
	sort.Strings(matches)
	var downloaded string
	switch {
	case len(matches) > 0:
		downloaded = matches[0]
	case fileExists(rc.art.FallbackDownload()):
		downloaded = rc.art.FallbackDownload()
	default:
		return Result{Status: StatusFailed}, fmt.Errorf(
			"pipeline: download finished but no output matched %s or %s",
			filepath.Base(rc.art.DownloadGlob()), filepath.Base(rc.art.FallbackDownload()))
	}
	if err := os.Rename(downloaded, osmFile); err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("pipeline: rename download: %w", err)
	}
	rc.log(LevelInfo, "Renamed %s to %s", filepath.Base(downloaded), filepath.Base(osmFile))
	return Result{Status: StatusCompleted}, nil
}

func stepBuildNetwork(rc *runContext) (Result, error) {
	err := rc.command("netconvert", "netconvert",
		"--osm-files", rc.art.OSMFile(),
		"-o", rc.art.NetFile(),
		"--junctions.join",
		"--tls.guess-signals",
		"--tls.discard-simple",
		"--tls.join",
	)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}
	return Result{Status: StatusCompleted}, nil
}

func stepBuildPolygons(rc *runContext) (Result, error) {
	typemap := rc.install.TypemapPath()
	if !fileExists(typemap) {
		rc.log(LevelWarn, "Typemap %s not found, skipping polygon conversion", typemap)
		return Result{Status: StatusSkipped, Message: "typemap not found"}, nil
	}
	err := rc.command("polyconvert", "polyconvert",
		"--osm-files", rc.art.OSMFile(),
		"--type-file", typemap,
		"-o", rc.art.PolyFile(),
	)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}
	return Result{Status: StatusCompleted}, nil
}

func stepGenerateTrips(rc *runContext) (Result, error) {
	err := rc.command("random trip generation", rc.install.Python,
		rc.install.RandomTripsScript(),
		"-n", rc.art.NetFile(),
		"-o", rc.art.TripFile(),
		"-e", strconv.Itoa(rc.scn.DurationSeconds),
		"-p", rc.scn.SpawnPeriodArg(),
		"--validate",
	)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}
	return Result{Status: StatusCompleted}, nil
}

func stepComputeRoutes(rc *runContext) (Result, error) {
	err := rc.command("duarouter", "duarouter",
		"-n", rc.art.NetFile(),
		"-t", rc.art.TripFile(),
		"-o", rc.art.RouteFile(),
	)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}
	return Result{Status: StatusCompleted}, nil
}

func stepWriteConfigs(rc *runContext) (Result, error) {
	if err := WriteLaunchConfig(rc.art); err != nil {
		return Result{Status: StatusFailed}, err
	}
	rc.log(LevelInfo, "Created %s", filepath.Base(rc.art.LaunchFile()))
	if err := WriteOmnetConfig(rc.art, rc.scn.DurationSeconds); err != nil {
		return Result{Status: StatusFailed}, err
	}
	rc.log(LevelInfo, "Created omnetpp.ini")
	if err := WriteSumoConfig(rc.art, rc.scn.DurationSeconds); err != nil {
		return Result{Status: StatusFailed}, err
	}
	rc.log(LevelInfo, "Created %s", filepath.Base(rc.art.SumoConfigFile()))
	return Result{Status: StatusCompleted}, nil
}

// stepCleanup removes intermediates best-effort; a missing or undeletable
// file never fails the run.
func stepCleanup(rc *runContext) (Result, error) {
	removed := 0
	for _, path := range rc.art.TempFiles() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			rc.log(LevelWarn, "Could not remove %s: %v", filepath.Base(path), err)
			continue
		}
		removed++
		rc.log(LevelInfo, "Removed temp file %s", filepath.Base(path))
	}
	return Result{Status: StatusCompleted, Message: fmt.Sprintf("%d temp files removed", removed)}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
