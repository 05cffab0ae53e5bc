package pipeline

import "time"

// Status enumerates step outcomes.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Info describes a step's identity.
type Info struct {
	ID   string
	Name string
	// Optional steps may fail without aborting the run, subject to the
	// configured failure policy.
	Optional bool
}

// Result captures the outcome of a step execution.
type Result struct {
	Status  Status
	Message string
}

// step pairs an Info with its run function. The ordered step list is the
// whole pipeline definition; nothing is persisted.
type step struct {
	info Info
	run  func(*runContext) (Result, error)
}

// StepReport records one step's outcome for the final Outcome.
type StepReport struct {
	ID       string
	Name     string
	Status   Status
	Message  string
	Duration time.Duration
}

// Outcome is the terminal result of a pipeline run. FailedStep and Err are
// set when OK is false, so callers can report which step broke and why
// instead of a bare boolean.
type Outcome struct {
	OK         bool
	FailedStep string
	Err        error
	Steps      []StepReport

	// LaunchFile and SumoConfigFile are set on success.
	LaunchFile     string
	SumoConfigFile string
}

// Level grades event severity.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is one progress record. Events are delivered to sinks in order,
// before the next step starts.
type Event struct {
	Level   Level
	Message string
}

// Sink receives pipeline events. Sinks must not block for long; delivery is
// synchronous on the pipeline goroutine.
type Sink func(Event)
