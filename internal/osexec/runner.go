// Package osexec is the real command runner behind the dt.Runner interface.
package osexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"dt-go/internal/dt"
)

// OSRunner executes commands on the host.
type OSRunner struct{}

func New() *OSRunner { return &OSRunner{} }

func (r *OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.run(ctx, nil, name, args...)
}

func (r *OSRunner) RunInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	return r.run(ctx, input, name, args...)
}

func (r *OSRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r *OSRunner) run(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(exitErr.Stderr))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Compile-time check that OSRunner implements dt.Runner.
var _ dt.Runner = (*OSRunner)(nil)
