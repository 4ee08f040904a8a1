// Package dt holds the domain model of the distribution tool: the component
// interfaces (sync, seal, links, schedule, lock, license) and the
// orchestration service that sequences them for install, update and
// uninstall. All OS and network effects live behind the interfaces so the
// orchestration contract is testable with fakes.
package dt

import (
	"context"
	"fmt"
)

// Plan carries the resolved configuration an orchestration run operates on.
// Passing it explicitly keeps the "current installation" out of global state
// so multiple installations (and tests) can coexist.
type Plan struct {
	Sync            SyncSpec
	Links           []Link
	Task            Task
	ScheduleEnabled bool
	BinDir          string // directory added to PATH
	LicenseKey      string
	Version         string
}

// Deps bundles the collaborators a DTService is wired with.
type Deps struct {
	Gate      *Gate
	Syncer    Syncer
	Sealer    Sealer
	Linker    Linker
	Registrar Registrar
	Locker    Locker
	Notifier  Notifier
	Profile   ProfileEditor
	Runner    Runner
	Telemeter Telemeter
	Logger    Logger
	Clock     Clock
	Privilege Privilege
}

// DTService is the orchestration layer that coordinates across all
// components to perform the high-level operations needed by the CLI.
type DTService struct {
	gate      *Gate
	syncer    Syncer
	sealer    Sealer
	linker    Linker
	registrar Registrar
	locker    Locker
	notifier  Notifier
	profile   ProfileEditor
	runner    Runner
	telemeter Telemeter
	logger    Logger
	clock     Clock
	priv      Privilege
}

func NewDTService(d Deps) *DTService {
	return &DTService{
		gate:      d.Gate,
		syncer:    d.Syncer,
		sealer:    d.Sealer,
		linker:    d.Linker,
		registrar: d.Registrar,
		locker:    d.Locker,
		notifier:  d.Notifier,
		profile:   d.Profile,
		runner:    d.Runner,
		telemeter: d.Telemeter,
		logger:    d.Logger,
		clock:     d.Clock,
		priv:      d.Privilege,
	}
}

// InstallReport summarizes a completed install.
type InstallReport struct {
	License *GateOutcome
	Sync    *SyncResult
	Links   map[string]LinkOutcome
	Task    bool // scheduled task registered
	Profile bool // PATH block written or updated
}

// Preflight verifies required external tools before anything is mutated.
func (s *DTService) Preflight(plan Plan) error {
	if plan.ScheduleEnabled {
		if _, err := s.runner.LookPath("crontab"); err != nil {
			return fmt.Errorf("%w: crontab (needed for scheduled updates)", ErrDependencyMissing)
		}
	}
	return nil
}

// Install runs the full install orchestration:
// preflight → license → sync → seal → links → schedule → PATH entry.
// A failing step aborts the remainder; completed steps are not rolled back,
// and re-running install is the recovery path since every step is idempotent.
func (s *DTService) Install(ctx context.Context, plan Plan) (*InstallReport, error) {
	report := &InstallReport{Links: make(map[string]LinkOutcome)}

	if err := s.Preflight(plan); err != nil {
		return report, stepErr("preflight", err)
	}

	s.telemeter.Emit(plan.LicenseKey, "install-start")

	outcome, err := s.gate.Check(ctx, plan.LicenseKey, "install")
	if err != nil {
		return report, stepErr("license", err)
	}
	report.License = outcome

	release, err := s.locker.Acquire()
	if err != nil {
		return report, stepErr("lock", err)
	}
	defer release()

	res, err := s.syncer.Sync(ctx, plan.Sync)
	if err != nil {
		return report, stepErr("sync", err)
	}
	report.Sync = res
	s.logger.Info("content synced", "outcome", res.Outcome.String(), "revision", res.Revision)

	if res.Outcome != SyncUpToDate {
		err = s.priv.Mutate("seal", func() error { return s.sealer.Seal(plan.Sync.TargetDir) })
		if err != nil {
			return report, stepErr("seal", err)
		}
	}

	for _, link := range plan.Links {
		lo, err := s.linker.Ensure(link)
		if err != nil {
			return report, stepErr("link "+link.Name, err)
		}
		report.Links[link.Name] = lo
		s.logger.Info("link ensured", "name", link.Name, "outcome", lo.String())
	}

	if plan.ScheduleEnabled {
		if err := s.registrar.Register(plan.Task); err != nil {
			return report, stepErr("schedule", err)
		}
		report.Task = true
	}

	changed, err := s.profile.EnsurePathEntry(plan.BinDir)
	if err != nil {
		return report, stepErr("shell profile", err)
	}
	report.Profile = changed

	s.telemeter.Emit(plan.LicenseKey, "install-complete")
	s.notify(ctx, "Installation complete",
		fmt.Sprintf("dt %s installed revision %.12s", plan.Version, res.Revision))
	return report, nil
}

// UninstallReport summarizes a completed uninstall.
type UninstallReport struct {
	TaskRemoved   bool
	LinksRemoved  []string
	DirRemoved    bool
	ProfileBackup string
}

// Uninstall reverses install: schedule → links → installation directory →
// PATH entry. The caller has already confirmed the operation. The license
// record is deliberately left in place.
func (s *DTService) Uninstall(ctx context.Context, plan Plan) (*UninstallReport, error) {
	report := &UninstallReport{}

	release, err := s.locker.Acquire()
	if err != nil {
		return report, stepErr("lock", err)
	}
	defer release()

	if err := s.registrar.Deregister(plan.Task.Label); err != nil {
		return report, stepErr("schedule", err)
	}
	report.TaskRemoved = true

	for _, link := range plan.Links {
		removed, err := s.linker.Remove(link, plan.Sync.TargetDir)
		if err != nil {
			return report, stepErr("link "+link.Name, err)
		}
		if removed {
			report.LinksRemoved = append(report.LinksRemoved, link.Name)
		}
	}

	err = s.priv.Mutate("remove", func() error {
		return s.syncer.Remove(ctx, plan.Sync.TargetDir)
	})
	if err != nil {
		return report, stepErr("remove", err)
	}
	report.DirRemoved = true

	removed, backup, err := s.profile.RemovePathEntry()
	if err != nil {
		return report, stepErr("shell profile", err)
	}
	if removed {
		report.ProfileBackup = backup
	}

	return report, nil
}

// StatusReport is a read-only snapshot of the deployment.
type StatusReport struct {
	Installed bool
	Revision  string
	License   *LicenseRecord
	Task      bool
	Links     map[string]bool
}

// Status inspects the installation without mutating anything.
func (s *DTService) Status(ctx context.Context, plan Plan) (*StatusReport, error) {
	report := &StatusReport{Links: make(map[string]bool)}

	rev, err := s.syncer.Head(plan.Sync.TargetDir)
	switch {
	case err == nil:
		report.Installed = true
		report.Revision = rev
	case isNotInstalled(err):
		// leave Installed false
	default:
		return nil, fmt.Errorf("reading installation revision: %w", err)
	}

	rec, err := s.gate.Record()
	if err != nil {
		return nil, fmt.Errorf("reading license record: %w", err)
	}
	report.License = rec

	registered, err := s.registrar.Registered(plan.Task.Label)
	if err != nil {
		return nil, fmt.Errorf("checking scheduled task: %w", err)
	}
	report.Task = registered

	for _, link := range plan.Links {
		ok, err := s.linker.Healthy(link)
		if err != nil {
			return nil, fmt.Errorf("checking link %s: %w", link.Name, err)
		}
		report.Links[link.Name] = ok
	}

	return report, nil
}

// notify delivers a best-effort notification; failure is only a warning.
func (s *DTService) notify(ctx context.Context, title, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, title, body); err != nil {
		s.logger.Warn("notification failed", "title", title, "error", err)
	}
}
