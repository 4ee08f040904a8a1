package dt

import (
	"context"
	"errors"
	"fmt"
)

// UpdateMode selects what an update invocation is allowed to do. The modes
// are configuration, not separate code paths: one state machine serves all
// three.
type UpdateMode int

const (
	// ModeApply performs the update when one is available.
	ModeApply UpdateMode = iota
	// ModeCheck reports availability and makes no changes.
	ModeCheck
	// ModeNotify notifies on availability and makes no changes. This is the
	// unattended-background default: a scheduled run never silently mutates
	// a system the user has not asked to update now.
	ModeNotify
)

func (m UpdateMode) String() string {
	switch m {
	case ModeApply:
		return "apply"
	case ModeCheck:
		return "check"
	case ModeNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// UpdateState is a position in the updater state machine:
//
//	Idle → CheckingLicense → Fetching → {UpToDate | Applying → Sealing → Done} | Failed
type UpdateState int

const (
	StateIdle UpdateState = iota
	StateCheckingLicense
	StateFetching
	StateApplying
	StateSealing
	StateDone
	StateFailed
)

func (s UpdateState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingLicense:
		return "checking-license"
	case StateFetching:
		return "fetching"
	case StateApplying:
		return "applying"
	case StateSealing:
		return "sealing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UpdateReport is the outcome of one updater run.
type UpdateReport struct {
	State   UpdateState
	Mode    UpdateMode
	License *GateOutcome

	// Available is set when the remote head differs from the local one
	// (or the check could tell an update exists).
	Available bool
	// Applied is set when the installation actually moved to a new revision.
	Applied bool

	Sync  *SyncResult
	Check *CheckResult
}

// Update runs the updater state machine in the given mode.
// The returned report is non-nil even on error so callers can see where the
// machine stopped.
func (s *DTService) Update(ctx context.Context, plan Plan, mode UpdateMode) (*UpdateReport, error) {
	report := &UpdateReport{State: StateIdle, Mode: mode}

	report.State = StateCheckingLicense
	outcome, err := s.gate.Check(ctx, plan.LicenseKey, "update")
	if err != nil {
		report.State = StateFailed
		return report, stepErr("license", err)
	}
	report.License = outcome

	// All modes take the lock: even a read-only check must not interleave
	// with a writer mid-reset.
	release, err := s.locker.Acquire()
	if err != nil {
		report.State = StateFailed
		return report, stepErr("lock", err)
	}
	defer release()

	report.State = StateFetching
	s.logger.Info("checking for updates", "branch", plan.Sync.Branch, "mode", mode.String())

	if mode == ModeCheck || mode == ModeNotify {
		check, err := s.syncer.Check(ctx, plan.Sync)
		if err != nil {
			report.State = StateFailed
			return report, stepErr("fetch", err)
		}
		report.Check = check
		report.Available = !check.UpToDate
		report.State = StateDone

		if mode == ModeNotify && report.Available {
			s.notify(ctx, "Update available",
				fmt.Sprintf("A new revision is available: %s", check.CommitSummary))
		}
		return report, nil
	}

	res, err := s.syncer.Sync(ctx, plan.Sync)
	if err != nil {
		report.State = StateFailed
		return report, stepErr("sync", err)
	}
	report.Sync = res

	if res.Outcome == SyncUpToDate {
		// Nothing changed on disk, so no permission reset is needed.
		report.State = StateDone
		return report, nil
	}

	report.Available = true
	report.State = StateApplying
	s.logger.Info("update applied", "old", res.OldRevision, "new", res.Revision)

	report.State = StateSealing
	err = s.priv.Mutate("seal", func() error { return s.sealer.Seal(plan.Sync.TargetDir) })
	if err != nil {
		report.State = StateFailed
		return report, stepErr("seal", err)
	}

	report.Applied = true
	report.State = StateDone
	s.telemeter.Emit(plan.LicenseKey, "update-applied")
	s.notify(ctx, "Update installed",
		fmt.Sprintf("Now at %.12s: %s", res.Revision, res.CommitSummary))
	return report, nil
}

// ModeForInvocation resolves CLI flags and the configured unattended policy
// into an UpdateMode. Explicit flags always win; scheduled runs follow the
// policy ("notify" or "apply"), preserving both observed behaviors as
// configuration.
func ModeForInvocation(check, quiet, force, scheduled bool, policy string) (UpdateMode, error) {
	n := 0
	for _, f := range []bool{check, quiet, force} {
		if f {
			n++
		}
	}
	if n > 1 {
		return ModeApply, errors.New("--check, --quiet and --force are mutually exclusive")
	}
	switch {
	case check:
		return ModeCheck, nil
	case quiet:
		return ModeNotify, nil
	case force:
		return ModeApply, nil
	case scheduled:
		switch policy {
		case "apply":
			return ModeApply, nil
		case "", "notify":
			return ModeNotify, nil
		default:
			return ModeApply, fmt.Errorf("unknown update policy %q", policy)
		}
	default:
		return ModeApply, nil
	}
}
