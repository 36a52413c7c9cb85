package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Shell runs commands on some host, local or remote
type Shell interface {
	Run(ctx context.Context, command string) ([]byte, error)
	RunWithInput(ctx context.Context, command string, stdin io.Reader) error
}

// LocalRunner runs commands through /bin/sh on this machine
type LocalRunner struct{}

// Run executes command and returns its standard output
func (LocalRunner) Run(ctx context.Context, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, commandError(command, err, stderr.String())
	}
	return out, nil
}

// RunWithInput executes command feeding stdin
func (LocalRunner) RunWithInput(ctx context.Context, command string, stdin io.Reader) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return commandError(command, err, stderr.String())
	}
	return nil
}

func commandError(command string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("command %q failed: %w", command, err)
	}
	return fmt.Errorf("command %q failed: %w: %s", command, err, stderr)
}

// ShellQuote quotes s for a POSIX shell
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
