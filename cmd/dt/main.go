package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dt-go/internal/app"
	"dt-go/internal/config"
	"dt-go/internal/dt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a DTApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Install", "Update").
func newApp(operation string, opts app.Options) (*app.DTApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewDTApp(cfg, operation, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// describe maps well-known errors to actionable messages for the user.
func describe(err error) error {
	switch {
	case errors.Is(err, dt.ErrAlreadyRunning):
		return errors.New("another dt operation is already running; wait for it to finish and retry")
	case errors.Is(err, dt.ErrLicenseRequired):
		return errors.New("a license key is required: pass --license, set DT_LICENSE_KEY, or run 'dt license activate'")
	case errors.Is(err, dt.ErrLicenseInvalid):
		return errors.New("the license key was rejected; check the key and try again")
	case errors.Is(err, dt.ErrLicenseExpired):
		return errors.New("the license has expired; renew it to keep receiving updates")
	case errors.Is(err, dt.ErrGraceExpired):
		return errors.New("the license server has been unreachable for more than 72 hours; connect to the network and retry")
	default:
		return err
	}
}

var rootCmd = &cobra.Command{
	Use:   "dt",
	Short: "Framework distribution tool",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()

		cfg := config.NewConfig(hostID, defaults["base_dir"], defaults["home_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:      %s\n", cfg.HostID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Install Root: %s\n", cfg.InstallRoot)
		fmt.Printf("Repository:   %s (%s)\n", cfg.Repository.URL, cfg.Repository.Branch)
		fmt.Printf("API:          %s\n", cfg.API.BaseURL)
		return nil
	},
}

// install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the framework",
	RunE: func(cmd *cobra.Command, args []string) error {
		licenseKey, _ := cmd.Flags().GetString("license")
		noSchedule, _ := cmd.Flags().GetBool("no-schedule")

		a, err := newApp("Install", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Install(cmd.Context(), licenseKey, noSchedule)
		if err != nil {
			return describe(err)
		}

		printLicense(report.License)
		fmt.Printf("Installed at revision %.12s\n", report.Sync.Revision)
		for name, outcome := range report.Links {
			fmt.Printf("Link %-10s %s\n", name, outcome)
		}
		if report.Task {
			fmt.Println("Scheduled automatic update check registered.")
		}
		if report.Profile {
			fmt.Println("Shell profile updated; open a new shell to pick up PATH.")
		}
		return nil
	},
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the framework",
	RunE: func(cmd *cobra.Command, args []string) error {
		check, _ := cmd.Flags().GetBool("check")
		quiet, _ := cmd.Flags().GetBool("quiet")
		force, _ := cmd.Flags().GetBool("force")
		scheduled, _ := cmd.Flags().GetBool("scheduled")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		mode, err := dt.ModeForInvocation(check, quiet, force, scheduled, cfg.Update.Policy)
		if err != nil {
			return err
		}

		a, err := app.NewDTApp(cfg, "Update", app.Options{Quiet: scheduled || quiet})
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		report, err := a.Update(cmd.Context(), mode)
		if err != nil {
			return describe(err)
		}

		switch mode {
		case dt.ModeCheck:
			if report.Available {
				fmt.Printf("Update available: %s\n", report.Check.CommitSummary)
			} else {
				fmt.Println("Up to date.")
			}
		case dt.ModeNotify:
			// Notification already sent when an update exists; stay quiet.
		case dt.ModeApply:
			if report.Applied {
				fmt.Printf("Updated to %.12s: %s\n", report.Sync.Revision, report.Sync.CommitSummary)
			} else {
				fmt.Println("Already up to date.")
			}
		}
		return nil
	},
}

// uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the framework",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		if !yes {
			ok, err := confirmUninstall()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		a, err := newApp("Uninstall", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Uninstall(cmd.Context())
		if err != nil {
			return describe(err)
		}

		fmt.Println("Framework removed.")
		if len(report.LinksRemoved) > 0 {
			fmt.Printf("Removed links: %s\n", strings.Join(report.LinksRemoved, ", "))
		}
		if report.ProfileBackup != "" {
			fmt.Printf("Shell profile cleaned; backup written to %s\n", report.ProfileBackup)
		}
		return nil
	},
}

// confirmUninstall prompts interactively; non-interactive runs must pass --yes.
func confirmUninstall() (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("refusing to uninstall without confirmation; pass --yes")
	}
	fmt.Print("This removes the installed framework, its links and the scheduled task. Proceed? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View installation status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetStatus", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		if report.Installed {
			fmt.Printf("Installed:  yes (revision %.12s)\n", report.Revision)
		} else {
			fmt.Println("Installed:  no")
		}
		if report.License != nil {
			fmt.Printf("License:    %s (last validated %s)\n",
				report.License.Status,
				report.License.LastValidatedAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("License:    not activated")
		}
		fmt.Printf("Scheduled:  %v\n", report.Task)
		for name, healthy := range report.Links {
			state := "ok"
			if !healthy {
				state = "broken"
			}
			fmt.Printf("Link %-10s %s\n", name, state)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			revisions := ""
			if op.NewRevision != "" {
				revisions = fmt.Sprintf("%.12s -> %.12s", op.OldRevision, op.NewRevision)
			}
			fmt.Printf("#%d  %-10s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				revisions,
			)
		}
		return nil
	},
}

// license command
var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Manage the license",
}

var licenseActivateCmd = &cobra.Command{
	Use:   "activate [KEY]",
	Short: "Validate and store a license key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) > 0 {
			key = args[0]
		} else {
			k, err := readKey()
			if err != nil {
				return err
			}
			key = k
		}

		a, err := newApp("ActivateLicense", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, err := a.ActivateLicense(cmd.Context(), key)
		if err != nil {
			return describe(err)
		}

		printLicense(outcome)
		return nil
	},
}

// readKey prompts for the license key without echoing it.
func readKey() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no license key given and stdin is not a terminal")
	}
	fmt.Print("License key: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading license key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", errors.New("empty license key")
	}
	return key, nil
}

var licenseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "View the cached license state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetLicense", app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.LicenseRecord()
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Println("No license activated.")
			return nil
		}

		fmt.Printf("Status:         %s\n", rec.Status)
		fmt.Printf("Last validated: %s\n", rec.LastValidatedAt.Format("2006-01-02 15:04:05"))
		if rec.DaysRemaining > 0 {
			fmt.Printf("Days remaining: %d\n", rec.DaysRemaining)
		}
		return nil
	},
}

func printLicense(o *dt.GateOutcome) {
	if o == nil {
		return
	}
	switch o.Verdict {
	case dt.VerdictTrial:
		fmt.Printf("License: trial, %d day(s) remaining\n", o.DaysRemaining)
	default:
		fmt.Println("License: valid")
	}
	if o.GraceUsed {
		fmt.Printf("Warning: license server unreachable, running on cached validation (%s of grace left)\n",
			o.GraceRemaining.Truncate(time.Minute))
	}
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	licenseCmd.AddCommand(licenseActivateCmd)
	licenseCmd.AddCommand(licenseStatusCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().String("license", "", "License key to validate during install")
	installCmd.Flags().Bool("no-schedule", false, "Skip registering the scheduled update check")
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().Bool("check", false, "Only check whether an update is available")
	updateCmd.Flags().Bool("quiet", false, "Check and notify, but do not apply")
	updateCmd.Flags().Bool("force", false, "Apply even when a scheduled policy would only notify")
	updateCmd.Flags().Bool("scheduled", false, "Mark this run as invoked by the scheduler")
	updateCmd.Flags().MarkHidden("scheduled")
	rootCmd.AddCommand(uninstallCmd)
	uninstallCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(licenseCmd)
}
