package pipeline

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandRunner executes an external command in dir and returns its combined
// output. Injectable so tests can fake the SUMO toolchain.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// outputSnippet truncates tool output for the log stream. The full output is
// never persisted; 500 characters is enough to diagnose the usual failures.
const outputSnippetLimit = 500

func outputSnippet(out []byte) (string, bool) {
	if len(out) <= outputSnippetLimit {
		return string(out), false
	}
	return string(out[:outputSnippetLimit]), true
}
