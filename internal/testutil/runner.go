package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner serves scripted command output and records every invocation.
// Outputs are keyed by the command name followed by its arguments, e.g.
// "crontab -l".
type FakeRunner struct {
	mu      sync.Mutex
	Outputs map[string][]byte
	Errs    map[string]error
	Calls   []RunnerCall
}

// RunnerCall records one command invocation.
type RunnerCall struct {
	Name  string
	Args  []string
	Input []byte
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Outputs: make(map[string][]byte),
		Errs:    make(map[string]error),
	}
}

func key(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (r *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	return r.record(nil, name, args)
}

func (r *FakeRunner) RunInput(_ context.Context, input []byte, name string, args ...string) ([]byte, error) {
	return r.record(input, name, args)
}

func (r *FakeRunner) record(input []byte, name string, args []string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RunnerCall{Name: name, Args: args, Input: input})
	k := key(name, args)
	if err, ok := r.Errs[k]; ok {
		return nil, err
	}
	return r.Outputs[k], nil
}

// LookPath resolves every name unless an error is scripted under "lookpath <name>".
func (r *FakeRunner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.Errs["lookpath "+name]; ok {
		return "", err
	}
	return "/usr/bin/" + name, nil
}

// SetOutput scripts the output for a command line.
func (r *FakeRunner) SetOutput(line string, out []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outputs[line] = out
}

// SetError scripts a failure for a command line.
func (r *FakeRunner) SetError(line string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errs[line] = err
}

// LastInput returns the input bytes of the most recent call matching the
// command line, or an error when no such call happened.
func (r *FakeRunner) LastInput(line string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Calls) - 1; i >= 0; i-- {
		if key(r.Calls[i].Name, r.Calls[i].Args) == line {
			return r.Calls[i].Input, nil
		}
	}
	return nil, fmt.Errorf("no call recorded for %q", line)
}
