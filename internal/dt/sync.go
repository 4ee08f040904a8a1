package dt

import "context"

// SyncOutcome describes what a content sync did to the installation.
type SyncOutcome int

const (
	// SyncFresh means the installation was cloned from scratch.
	SyncFresh SyncOutcome = iota
	// SyncUpdated means the installation was reset to a new remote head.
	SyncUpdated
	// SyncUpToDate means local and remote heads already matched.
	SyncUpToDate
)

func (o SyncOutcome) String() string {
	switch o {
	case SyncFresh:
		return "fresh"
	case SyncUpdated:
		return "updated"
	case SyncUpToDate:
		return "up-to-date"
	default:
		return "unknown"
	}
}

// SyncSpec identifies the remote content and the local installation directory.
type SyncSpec struct {
	URL       string
	Branch    string
	TargetDir string
}

// SyncResult reports the revision state after a sync or check.
type SyncResult struct {
	Outcome     SyncOutcome
	Revision    string
	OldRevision string // set for SyncUpdated

	// CommitSummary is the first line of the new head's commit message.
	CommitSummary string
}

// CheckResult reports update availability without mutating the installation.
type CheckResult struct {
	UpToDate       bool
	LocalRevision  string
	RemoteRevision string
	CommitSummary  string
}

// Syncer brings the installation directory into sync with the content remote.
//
// Sync is convergent: interrupted runs are recovered by running Sync again,
// which resets the working tree to the remote head regardless of local state.
type Syncer interface {
	// Sync clones the branch when TargetDir holds no repository, otherwise
	// fetches and hard-resets to the remote head. A failed fresh clone must
	// leave TargetDir absent.
	Sync(ctx context.Context, spec SyncSpec) (*SyncResult, error)

	// Check fetches and compares heads without touching the working tree.
	// Returns ErrNotInstalled when TargetDir holds no repository.
	Check(ctx context.Context, spec SyncSpec) (*CheckResult, error)

	// Head returns the current local revision, or ErrNotInstalled.
	Head(targetDir string) (string, error)

	// Remove deletes the installation directory.
	Remove(ctx context.Context, targetDir string) error
}
