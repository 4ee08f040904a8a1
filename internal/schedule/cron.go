// Package schedule manages the recurring update task. The cron-backed
// registrar owns a marker-delimited block in the user crontab, edited as
// parsed lines so re-registration is idempotent and unrelated entries are
// never touched.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dt-go/internal/dt"
)

const runTimeout = 10 * time.Second

// CronRegistrar implements dt.Registrar on top of the crontab command.
type CronRegistrar struct {
	runner dt.Runner
	logger dt.Logger
}

func NewCronRegistrar(runner dt.Runner, logger dt.Logger) *CronRegistrar {
	return &CronRegistrar{runner: runner, logger: logger}
}

func beginMarker(label string) string { return "# >>> dt:" + label + " >>>" }
func endMarker(label string) string   { return "# <<< dt:" + label + " <<<" }

// Register installs the task, first removing any existing block with the
// same label so at most one registration exists afterward.
func (r *CronRegistrar) Register(task dt.Task) error {
	expr, err := task.Trigger.CronExpr()
	if err != nil {
		return fmt.Errorf("rendering trigger: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	lines := r.currentTab(ctx)
	lines, _ = stripBlock(lines, task.Label)

	command := task.Program
	if len(task.Args) > 0 {
		command += " " + strings.Join(task.Args, " ")
	}
	command += " >> " + task.LogPath + " 2>&1"

	lines = append(lines,
		beginMarker(task.Label),
		expr+" "+command,
		endMarker(task.Label),
	)

	if err := r.writeTab(ctx, lines); err != nil {
		return err
	}
	r.logger.Info("scheduled task registered", "label", task.Label, "trigger", expr)
	return nil
}

// Deregister removes the block with the label. A missing block is a no-op.
func (r *CronRegistrar) Deregister(label string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	lines := r.currentTab(ctx)
	stripped, found := stripBlock(lines, label)
	if !found {
		return nil
	}

	if err := r.writeTab(ctx, stripped); err != nil {
		return err
	}
	r.logger.Info("scheduled task removed", "label", label)
	return nil
}

// Registered reports whether a block with the label exists.
func (r *CronRegistrar) Registered(label string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	for _, line := range r.currentTab(ctx) {
		if line == beginMarker(label) {
			return true, nil
		}
	}
	return false, nil
}

// currentTab returns the current crontab as lines. crontab -l fails when the
// user has no crontab yet; that is an empty tab, not an error.
func (r *CronRegistrar) currentTab(ctx context.Context) []string {
	out, err := r.runner.Run(ctx, "crontab", "-l")
	if err != nil {
		r.logger.Debug("no existing crontab", "error", err)
		return nil
	}
	text := strings.TrimRight(string(out), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func (r *CronRegistrar) writeTab(ctx context.Context, lines []string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if _, err := r.runner.RunInput(ctx, []byte(content), "crontab", "-"); err != nil {
		return fmt.Errorf("writing crontab: %w", err)
	}
	return nil
}

// stripBlock removes the marker-delimited block for the label, matching
// marker lines exactly so similarly named labels are not caught.
func stripBlock(lines []string, label string) ([]string, bool) {
	begin, end := beginMarker(label), endMarker(label)
	var out []string
	found := false
	inBlock := false
	for _, line := range lines {
		switch {
		case line == begin:
			found = true
			inBlock = true
		case line == end:
			inBlock = false
		case !inBlock:
			out = append(out, line)
		}
	}
	return out, found
}

// Compile-time check that CronRegistrar implements dt.Registrar.
var _ dt.Registrar = (*CronRegistrar)(nil)
