package dt

import "context"

// Locker serializes mutating operations on the installation across processes.
type Locker interface {
	// Acquire takes the exclusive lock, failing fast with ErrAlreadyRunning
	// when another invocation holds it. The returned release function is safe
	// to call more than once.
	Acquire() (release func(), err error)
}

// Sealer enforces the read-only-for-non-owners policy on the synced tree.
// Seal is idempotent: re-running on a sealed tree changes nothing.
type Sealer interface {
	Seal(root string) error
}

// Notifier delivers a user-visible notification. Delivery is best-effort;
// callers treat failures as warnings.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// ProfileEditor maintains the PATH entry block in the user's shell config.
// Both operations are idempotent; Remove backs up the file before editing.
type ProfileEditor interface {
	// EnsurePathEntry adds dir to PATH via the managed block.
	// Reports whether the file changed.
	EnsurePathEntry(dir string) (bool, error)

	// RemovePathEntry strips the managed block, writing a backup of the
	// original file first. Returns whether anything was removed and the
	// backup path when one was written.
	RemovePathEntry() (bool, string, error)
}

// Runner executes external commands. Abstracted so scheduler and notifier
// logic is testable without a real crontab or desktop session.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	RunInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

// Privilege is the capability under which filesystem-mutating steps run.
// The network side of an operation never goes through it, keeping the
// privileged surface limited to the steps that need it.
type Privilege interface {
	Mutate(op string, fn func() error) error
}

// ProcessPrivilege runs mutations with the rights of the current process.
type ProcessPrivilege struct{}

func (ProcessPrivilege) Mutate(op string, fn func() error) error { return fn() }
