package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dt-go/internal/api"
	"dt-go/internal/config"
	"dt-go/internal/database"
	"dt-go/internal/dt"
	"dt-go/internal/gitsync"
	"dt-go/internal/license"
	"dt-go/internal/links"
	"dt-go/internal/lockfile"
	"dt-go/internal/notify"
	"dt-go/internal/osexec"
	"dt-go/internal/schedule"
	"dt-go/internal/seal"
	"dt-go/internal/shellcfg"
)

// Version is the build version, stamped via -ldflags at release time.
var Version = "dev"

// scheduleLabel identifies the crontab entry owned by dt.
const scheduleLabel = "auto-update"

// DTApp is the application layer between the CLI and DTService.
// It constructs all dependencies from config, exposes high-level operations,
// and manages the DB and log-file lifecycle on Close.
type DTApp struct {
	cfg     *config.Config
	db      dt.Database
	service *dt.DTService
	gate    *dt.Gate
	client  *api.Client
	plan    dt.Plan
	op      *UpdateOperation
	logFile *os.File
}

// Options tweaks app construction for particular invocations.
type Options struct {
	// Quiet suppresses stderr logging. Set for scheduled runs so cron does
	// not mail every log line.
	Quiet bool
}

// NewDTApp creates a fully wired DTApp from the given config.
// operation identifies the CLI command being run (e.g. "Install", "Update").
// The caller must call Close when done.
func NewDTApp(cfg *config.Config, operation string, opts Options) (*DTApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, opts.Quiet)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	runner := osexec.New()
	priv := dt.ProcessPrivilege{}

	client, err := api.NewClient(cfg.API.BaseURL, cfg.HostID, Version, cfg.API.Timeout(), log)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	store := license.NewFileStore(filepath.Join(cfg.BaseDir, "license.toml"))
	gate := dt.NewGate(client, store, dt.RealClock{}, log)

	registrar, err := schedule.NewFromConfig(cfg.Schedule, runner, log)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating schedule registrar: %w", err)
	}

	notifier, err := notify.NewFromConfig(cfg.Notify, runner)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating notifier: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	plan, err := buildPlan(cfg)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, err
	}

	svc := dt.NewDTService(dt.Deps{
		Gate:   gate,
		Syncer: gitsync.New(log, priv),
		Sealer: seal.New(seal.Policy{
			Owner:          cfg.Seal.Owner,
			Group:          cfg.Seal.Group,
			ExecExtensions: cfg.Seal.ExecExtensions,
		}, log),
		Linker:    links.New(dt.RealClock{}, log),
		Registrar: registrar,
		Locker:    lockfile.New(filepath.Join(cfg.BaseDir, "dt.lock")),
		Notifier:  notifier,
		Profile:   shellcfg.New(cfg.Shell.Profile, log),
		Runner:    runner,
		Telemeter: client,
		Logger:    log,
		Clock:     dt.RealClock{},
		Privilege: priv,
	})

	return &DTApp{
		cfg:     cfg,
		db:      db,
		service: svc,
		gate:    gate,
		client:  client,
		plan:    plan,
		op:      NewUpdateOperation(operation, ""),
		logFile: logFile,
	}, nil
}

// buildPlan resolves config (plus environment overrides) into the Plan every
// orchestration entry point receives. Environment variables:
//   - DT_REPO_URL, DT_REPO_BRANCH: override the content remote
//   - DT_LICENSE_KEY: license key for non-interactive installs
func buildPlan(cfg *config.Config) (dt.Plan, error) {
	spec := dt.SyncSpec{
		URL:       cfg.Repository.URL,
		Branch:    cfg.Repository.Branch,
		TargetDir: cfg.InstallRoot,
	}
	if v := os.Getenv("DT_REPO_URL"); v != "" {
		spec.URL = v
	}
	if v := os.Getenv("DT_REPO_BRANCH"); v != "" {
		spec.Branch = v
	}

	key := cfg.API.LicenseKey
	if v := os.Getenv("DT_LICENSE_KEY"); v != "" {
		key = v
	}

	var planLinks []dt.Link
	for _, lc := range cfg.Links {
		planLinks = append(planLinks, dt.Link{
			Name:   lc.Name,
			Path:   lc.Path,
			Target: filepath.Join(cfg.InstallRoot, lc.Target),
		})
	}

	trigger, err := schedule.TriggerFromConfig(cfg.Schedule)
	if err != nil {
		return dt.Plan{}, fmt.Errorf("resolving schedule trigger: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return dt.Plan{}, fmt.Errorf("resolving own executable: %w", err)
	}

	return dt.Plan{
		Sync:  spec,
		Links: planLinks,
		Task: dt.Task{
			Label:   scheduleLabel,
			Program: exe,
			Args:    []string{"update", "--scheduled"},
			LogPath: filepath.Join(cfg.LogDir, "scheduled.log"),
			Trigger: trigger,
		},
		ScheduleEnabled: cfg.Schedule.Type == "cron",
		BinDir:          filepath.Join(cfg.InstallRoot, "bin"),
		LicenseKey:      key,
		Version:         Version,
	}, nil
}

// persistOperation saves the operation to the database, giving it an
// auto-increment ID. This should only be called for mutating commands.
func (a *DTApp) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	rec, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = rec.ID
	return nil
}

// fail records the failure on the operation record before returning the error.
func (a *DTApp) fail(err error) error {
	a.op.Status = "error"
	a.op.Detail = err.Error()
	return err
}

// Install performs the full installation. licenseKey, when non-empty,
// overrides the configured/environment key; noSchedule skips the scheduled
// task registration.
func (a *DTApp) Install(ctx context.Context, licenseKey string, noSchedule bool) (*dt.InstallReport, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	plan := a.plan
	if licenseKey != "" {
		plan.LicenseKey = licenseKey
	}
	if noSchedule {
		plan.ScheduleEnabled = false
	}

	report, err := a.service.Install(ctx, plan)
	if report != nil && report.Sync != nil {
		a.op.OldRevision = report.Sync.OldRevision
		a.op.NewRevision = report.Sync.Revision
	}
	if err != nil {
		return report, a.fail(err)
	}
	return report, nil
}

// Update runs the updater in the given mode.
func (a *DTApp) Update(ctx context.Context, mode dt.UpdateMode) (*dt.UpdateReport, error) {
	if mode == dt.ModeApply {
		a.op.Parameters = mode.String()
		if err := a.persistOperation(); err != nil {
			return nil, err
		}
	}

	report, err := a.service.Update(ctx, a.plan, mode)
	if report != nil && report.Sync != nil {
		a.op.OldRevision = report.Sync.OldRevision
		a.op.NewRevision = report.Sync.Revision
	}
	if err != nil {
		return report, a.fail(err)
	}
	return report, nil
}

// Uninstall removes the installation. The caller has already confirmed.
func (a *DTApp) Uninstall(ctx context.Context) (*dt.UninstallReport, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	report, err := a.service.Uninstall(ctx, a.plan)
	if err != nil {
		return report, a.fail(err)
	}
	return report, nil
}

// Status inspects the installation without mutating it.
func (a *DTApp) Status(ctx context.Context) (*dt.StatusReport, error) {
	return a.service.Status(ctx, a.plan)
}

// History returns the most recent operations.
func (a *DTApp) History(limit int) ([]*dt.OperationRecord, error) {
	return a.db.ListOperations(limit)
}

// ActivateLicense validates the given key against the API and caches the
// result on success.
func (a *DTApp) ActivateLicense(ctx context.Context, key string) (*dt.GateOutcome, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	outcome, err := a.gate.Check(ctx, key, "activate")
	if err != nil {
		return nil, a.fail(err)
	}
	return outcome, nil
}

// LicenseRecord returns the cached license record, or nil when none exists.
func (a *DTApp) LicenseRecord() (*dt.LicenseRecord, error) {
	return a.gate.Record()
}

// Close finalizes the operation record and closes all resources.
func (a *DTApp) Close() error {
	var firstErr error

	// Terminal telemetry events (install-complete, update-applied) are
	// emitted just before the run ends; give them a moment to leave before
	// the process does. The outcome is still ignored.
	a.client.Drain(2 * time.Second)

	if a.op.Persisted() {
		err := a.db.FinishOperation(a.op.ID, a.op.Status, a.op.OldRevision, a.op.NewRevision, a.op.Detail)
		if err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
