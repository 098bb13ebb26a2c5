package sysuser

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes host commands. Both the system account manager and the
// tunnel service manager go through it, so tests can swap in a fake and the
// production path gets a uniform timeout and optional sudo prefix.
type Runner interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, name string, args ...string) (string, error)
	// RunInput executes a command with the given string on stdin.
	RunInput(ctx context.Context, input, name string, args ...string) (string, error)
}

// ExecRunner runs commands on the local host. Every invocation gets a
// deadline: a hung external command must fail the calling operation rather
// than block its request forever.
type ExecRunner struct {
	Timeout time.Duration
	Sudo    bool
}

func NewExecRunner(timeout time.Duration, sudo bool) *ExecRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExecRunner{Timeout: timeout, Sudo: sudo}
}

func (r *ExecRunner) command(ctx context.Context, name string, args []string) *exec.Cmd {
	if r.Sudo {
		return exec.CommandContext(ctx, "sudo", append([]string{"-n", name}, args...)...)
	}
	return exec.CommandContext(ctx, name, args...)
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	out, err := r.command(ctx, name, args).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (r *ExecRunner) RunInput(ctx context.Context, input, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := r.command(ctx, name, args)
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}
