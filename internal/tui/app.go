// internal/tui/app.go
//
// This is the main TUI for sumoforge. It uses bubbletea, which follows The
// Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// The pipeline runs on its own goroutine and streams events back through a
// channel; the Update loop never blocks on it.

package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trafficlab/sumoforge/internal/config"
	"github.com/trafficlab/sumoforge/internal/geo"
	"github.com/trafficlab/sumoforge/internal/logbook"
	"github.com/trafficlab/sumoforge/internal/pipeline"
	"github.com/trafficlab/sumoforge/internal/scenario"
)

// appState represents which "screen" we're on
type appState int

const (
	stateForm    appState = iota // Scenario parameter entry
	stateRunning                 // Pipeline in flight, log streaming
	stateDone                    // Terminal success/failure notice
)

// Form field indices, in focus order.
const (
	fieldBaseName = iota
	fieldDuration
	fieldVehicles
	fieldSouth
	fieldNorth
	fieldWest
	fieldEast
	fieldCount
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	logBoxStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// pipelineEventMsg wraps one progress event from the running pipeline.
type pipelineEventMsg struct {
	event pipeline.Event
}

// pipelineDoneMsg carries the terminal outcome of a run.
type pipelineDoneMsg struct {
	outcome pipeline.Outcome
	err     error
}

// eventForwarder bridges the pipeline's synchronous sink to the bubbletea
// message channel of whichever run is active.
type eventForwarder struct {
	mu sync.Mutex
	ch chan<- tea.Msg
}

func (f *eventForwarder) bind(ch chan<- tea.Msg) {
	f.mu.Lock()
	f.ch = ch
	f.mu.Unlock()
}

func (f *eventForwarder) emit(ev pipeline.Event) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	if ch != nil {
		ch <- pipelineEventMsg{event: ev}
	}
}

// Runner abstracts the pipeline for tests.
type Runner interface {
	Run(ctx context.Context, scn scenario.Config) (pipeline.Outcome, error)
	Active() bool
}

// AppOption customizes App construction for tests.
type AppOption func(*App)

// WithRunner overrides the pipeline runner.
func WithRunner(r Runner) AppOption {
	return func(a *App) {
		if r != nil {
			a.runner = r
		}
	}
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	logbook *logbook.Logbook
	runner  Runner
	forward *eventForwarder

	inputs  []textinput.Model
	focus   int
	formErr string

	spin     spinner.Model
	logView  viewport.Model
	logLines []string
	events   chan tea.Msg
	cancel   context.CancelFunc

	outcome pipeline.Outcome
	runErr  error

	width  int
	height int
}

// NewApp creates the App for a project directory.
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(cfg.LogsDir(), "pipeline.log")
	lb, err := logbook.New(logPath)
	if err != nil {
		return nil, err
	}
	forward := &eventForwarder{}
	runner := pipeline.NewRunner(cfg,
		pipeline.WithSink(forward.emit),
		pipeline.WithSink(logbookSink(lb)),
	)

	app := &App{
		state:   stateForm,
		config:  cfg,
		logbook: lb,
		runner:  runner,
		forward: forward,
		inputs:  buildFormInputs(cfg),
		spin:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		logView: viewport.New(80, 20),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.inputs[fieldBaseName].Focus()
	lb.Info("Session opened in %s", projectDir)
	return app, nil
}

func logbookSink(lb *logbook.Logbook) pipeline.Sink {
	return func(ev pipeline.Event) {
		switch ev.Level {
		case pipeline.LevelWarn:
			lb.Warn("%s", ev.Message)
		case pipeline.LevelError:
			lb.Error("%s", ev.Message)
		default:
			lb.Info("%s", ev.Message)
		}
	}
}

func buildFormInputs(cfg *config.Config) []textinput.Model {
	placeholders := [fieldCount]string{
		fieldBaseName: "VeinsScenario",
		fieldDuration: strconv.Itoa(cfg.Project.Defaults.DurationSeconds),
		fieldVehicles: strconv.Itoa(cfg.Project.Defaults.VehicleCount),
		fieldSouth:    "34.0400",
		fieldNorth:    "34.0700",
		fieldWest:     "-118.2700",
		fieldEast:     "-118.2200",
	}
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 64
		ti.Width = 24
		inputs[i] = ti
	}
	inputs[fieldBaseName].SetValue("VeinsScenario")
	inputs[fieldDuration].SetValue(strconv.Itoa(cfg.Project.Defaults.DurationSeconds))
	inputs[fieldVehicles].SetValue(strconv.Itoa(cfg.Project.Defaults.VehicleCount))
	return inputs
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.logView.Width = max(20, msg.Width-6)
		a.logView.Height = max(5, msg.Height-8)
		return a, nil

	case spinner.TickMsg:
		if a.state != stateRunning {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case pipelineEventMsg:
		a.appendLogLine(msg.event)
		return a, a.waitForEvent()

	case pipelineDoneMsg:
		a.outcome = msg.outcome
		a.runErr = msg.err
		a.state = stateDone
		a.cancel = nil
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, a.updateFocusedInput(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if a.cancel != nil {
			a.cancel()
		}
		return a, tea.Quit
	case "esc":
		switch a.state {
		case stateRunning:
			// Cancellation is best-effort: the in-flight tool is signalled
			// and the pipeline stops at the next step boundary.
			if a.cancel != nil {
				a.cancel()
			}
			return a, nil
		case stateDone:
			a.resetForm()
			return a, nil
		default:
			return a, tea.Quit
		}
	case "tab", "down":
		if a.state == stateForm {
			a.moveFocus(1)
			return a, nil
		}
	case "shift+tab", "up":
		if a.state == stateForm {
			a.moveFocus(-1)
			return a, nil
		}
	case "enter":
		switch a.state {
		case stateForm:
			if a.focus < fieldCount-1 {
				a.moveFocus(1)
				return a, nil
			}
			return a, a.startGeneration()
		case stateDone:
			a.resetForm()
			return a, nil
		}
	case "ctrl+g":
		if a.state == stateForm {
			return a, a.startGeneration()
		}
	}

	switch a.state {
	case stateForm:
		return a, a.updateFocusedInput(msg)
	case stateRunning, stateDone:
		var cmd tea.Cmd
		a.logView, cmd = a.logView.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) updateFocusedInput(msg tea.Msg) tea.Cmd {
	if a.state != stateForm {
		return nil
	}
	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return cmd
}

func (a *App) moveFocus(delta int) {
	a.inputs[a.focus].Blur()
	a.focus = (a.focus + delta + fieldCount) % fieldCount
	a.inputs[a.focus].Focus()
}

// startGeneration validates the form and launches the pipeline goroutine.
func (a *App) startGeneration() tea.Cmd {
	if a.runner.Active() {
		a.formErr = "a generation run is already in progress"
		return nil
	}
	scn, err := a.buildScenario()
	if err != nil {
		a.formErr = err.Error()
		return nil
	}
	a.formErr = ""
	a.logLines = nil
	a.logView.SetContent("")
	a.state = stateRunning

	events := make(chan tea.Msg, 64)
	a.events = events
	a.forward.bind(events)
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	runner := a.runner
	go func() {
		outcome, runErr := runner.Run(ctx, scn)
		events <- pipelineDoneMsg{outcome: outcome, err: runErr}
		close(events)
	}()
	return tea.Batch(a.waitForEvent(), a.spin.Tick)
}

// buildScenario assembles and validates the run configuration from the form.
// Empty bounding-box fields are only accepted when the map extract already
// exists, since no download will need them.
func (a *App) buildScenario() (scenario.Config, error) {
	base := strings.TrimSpace(a.inputs[fieldBaseName].Value())
	if base == "" {
		return scenario.Config{}, fmt.Errorf("base filename is required")
	}
	duration, err := strconv.Atoi(strings.TrimSpace(a.inputs[fieldDuration].Value()))
	if err != nil {
		return scenario.Config{}, fmt.Errorf("duration must be an integer: %v", err)
	}
	vehicles, err := strconv.Atoi(strings.TrimSpace(a.inputs[fieldVehicles].Value()))
	if err != nil {
		return scenario.Config{}, fmt.Errorf("vehicle count must be an integer: %v", err)
	}

	box, err := a.selectedBox(base)
	if err != nil {
		return scenario.Config{}, err
	}

	scn := scenario.Config{
		BaseName:        base,
		Box:             box,
		DurationSeconds: duration,
		VehicleCount:    vehicles,
	}
	if err := scn.Validate(); err != nil {
		return scenario.Config{}, err
	}
	return scn, nil
}

func (a *App) selectedBox(base string) (geo.BoundingBox, error) {
	raw := [4]string{
		a.inputs[fieldSouth].Value(),
		a.inputs[fieldNorth].Value(),
		a.inputs[fieldWest].Value(),
		a.inputs[fieldEast].Value(),
	}
	allEmpty := true
	for _, v := range raw {
		if strings.TrimSpace(v) != "" {
			allEmpty = false
		}
	}
	if allEmpty {
		osmPath := filepath.Join(a.config.OutputDir(), base+".osm")
		if fileExists(osmPath) {
			// Reusing an existing extract; the box is never sent anywhere,
			// the placeholder area just satisfies validation.
			return defaultBoundingBox(), nil
		}
		return geo.BoundingBox{}, fmt.Errorf("enter a bounding box (south/north/west/east) to download map data")
	}
	var sel geo.Selector
	box, err := geo.ParseBoundingBox(strings.Join([]string{raw[0], raw[1], raw[2], raw[3]}, ","))
	if err != nil {
		return geo.BoundingBox{}, err
	}
	if err := sel.Select(box); err != nil {
		return geo.BoundingBox{}, err
	}
	selected, _ := sel.Selection()
	return selected, nil
}

// defaultBoundingBox covers downtown Los Angeles, the map widget's historic
// default view.
func defaultBoundingBox() geo.BoundingBox {
	return geo.BoundingBox{South: 34.0322, North: 34.0722, West: -118.2637, East: -118.2237}
}

func (a *App) appendLogLine(ev pipeline.Event) {
	line := ev.Message
	switch ev.Level {
	case pipeline.LevelWarn:
		line = warnStyle.Render(line)
	case pipeline.LevelError:
		line = errorStyle.Render(line)
	}
	a.logLines = append(a.logLines, line)
	a.logView.SetContent(strings.Join(a.logLines, "\n"))
	a.logView.GotoBottom()
}

func (a *App) waitForEvent() tea.Cmd {
	ch := a.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (a *App) resetForm() {
	a.state = stateForm
	a.formErr = ""
	a.outcome = pipeline.Outcome{}
	a.runErr = nil
	a.events = nil
	a.forward.bind(nil)
}

// View renders the current state to a string.
func (a *App) View() string {
	header := titleStyle.Render("⬡ SUMOFORGE · Veins/SUMO Scenario Generator")
	var body string
	switch a.state {
	case stateForm:
		body = a.renderForm()
	case stateRunning:
		body = a.renderRunning()
	case stateDone:
		body = a.renderDone()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

var fieldLabels = [fieldCount]string{
	fieldBaseName: "Base filename",
	fieldDuration: "Duration (s)",
	fieldVehicles: "Vehicles",
	fieldSouth:    "South latitude",
	fieldNorth:    "North latitude",
	fieldWest:     "West longitude",
	fieldEast:     "East longitude",
}

func (a *App) renderForm() string {
	var rows []string
	for i, input := range a.inputs {
		label := labelStyle.Render(fmt.Sprintf("%-16s", fieldLabels[i]))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, label, input.View()))
	}
	rows = append(rows, "")
	if a.formErr != "" {
		rows = append(rows, errorStyle.Render(a.formErr))
	}
	rows = append(rows, dimStyle.Render("tab/enter=next field  ctrl+g=generate  esc=quit"))
	return strings.Join(rows, "\n")
}

func (a *App) renderRunning() string {
	status := fmt.Sprintf("%s Generating scenario files…", a.spin.View())
	log := logBoxStyle.Render(a.logView.View())
	hint := dimStyle.Render("esc=cancel run")
	return lipgloss.JoinVertical(lipgloss.Left, status, log, hint)
}

func (a *App) renderDone() string {
	var notice string
	if a.runErr != nil {
		notice = errorStyle.Render(fmt.Sprintf("✗ Could not start run: %v", a.runErr))
	} else if a.outcome.OK {
		notice = successStyle.Render("✓ All files generated successfully") + "\n" +
			labelStyle.Render("Veins launch file:  "+a.outcome.LaunchFile) + "\n" +
			labelStyle.Render("SUMO config file:   "+a.outcome.SumoConfigFile)
	} else {
		detail := ""
		if a.outcome.Err != nil {
			detail = a.outcome.Err.Error()
		}
		notice = errorStyle.Render(fmt.Sprintf("✗ Process failed at step %q", a.outcome.FailedStep)) + "\n" +
			labelStyle.Render(detail)
	}
	log := logBoxStyle.Render(a.logView.View())
	hint := dimStyle.Render("enter/esc=back to form  ctrl+c=quit")
	return lipgloss.JoinVertical(lipgloss.Left, notice, "", log, hint)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
