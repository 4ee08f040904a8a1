package dt

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Components return these wrapped;
// the CLI layer maps them to messages and exit codes with errors.Is.
var (
	// ErrLicenseInvalid means the validation endpoint rejected the key. Fatal.
	ErrLicenseInvalid = errors.New("license key is invalid")

	// ErrLicenseExpired means the license is past its term. Fatal.
	ErrLicenseExpired = errors.New("license has expired")

	// ErrLicenseRequired means no key is configured and none is cached.
	ErrLicenseRequired = errors.New("no license key configured")

	// ErrGraceExpired means the validation endpoint is unreachable and the
	// offline grace window since the last successful validation has elapsed.
	ErrGraceExpired = errors.New("license server unreachable and offline grace has elapsed")

	// ErrAlreadyRunning means another invocation holds the installation lock.
	ErrAlreadyRunning = errors.New("another operation is already running")

	// ErrNotInstalled means the installation directory holds no tracked repository.
	ErrNotInstalled = errors.New("no installation found")

	// ErrDependencyMissing means a required external tool is not on PATH.
	ErrDependencyMissing = errors.New("required dependency missing")
)

// StepError records which orchestration step failed. Completed steps are not
// rolled back; re-running the operation is the recovery path.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step string, err error) error {
	return &StepError{Step: step, Err: err}
}

func isNotInstalled(err error) bool { return errors.Is(err, ErrNotInstalled) }
