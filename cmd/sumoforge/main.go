// cmd/sumoforge/main.go
//
// Entry point for the sumoforge TUI. Scenario files are generated into the
// directory the tool runs from (or -dir), next to a .sumoforge/ folder
// holding config and logs.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/trafficlab/sumoforge/internal/config"
	"github.com/trafficlab/sumoforge/internal/tui"
)

func main() {
	dirFlag := flag.String("dir", "", "directory to generate scenario files in (default: current directory)")
	flag.Parse()

	workDir := *dirFlag
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
			os.Exit(1)
		}
		workDir = cwd
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitProjectDir(workDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .sumoforge directory: %v\n", err)
		os.Exit(1)
	}

	app, err := tui.NewApp(workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting sumoforge: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(), // Use alternate screen buffer (like vim does)
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
