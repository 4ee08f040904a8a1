// Package notify delivers best-effort desktop notifications. Failures are
// the caller's to log as warnings; they never fail an operation.
package notify

import (
	"context"
	"fmt"
	"runtime"

	"dt-go/internal/config"
	"dt-go/internal/dt"
)

// DesktopNotifier shells out to the platform notification command.
type DesktopNotifier struct {
	runner dt.Runner
}

func NewDesktopNotifier(runner dt.Runner) *DesktopNotifier {
	return &DesktopNotifier{runner: runner}
}

func (n *DesktopNotifier) Notify(ctx context.Context, title, body string) error {
	var err error
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		_, err = n.runner.Run(ctx, "osascript", "-e", script)
	default:
		_, err = n.runner.Run(ctx, "notify-send", title, body)
	}
	if err != nil {
		return fmt.Errorf("delivering notification: %w", err)
	}
	return nil
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }

// NewFromConfig creates a Notifier implementation based on the notify config type.
func NewFromConfig(cfg config.NotifyConfig, runner dt.Runner) (dt.Notifier, error) {
	switch cfg.Type {
	case "desktop":
		return NewDesktopNotifier(runner), nil
	case "none", "":
		return NopNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown notify type: %s", cfg.Type)
	}
}

// Compile-time checks against the domain interface.
var (
	_ dt.Notifier = (*DesktopNotifier)(nil)
	_ dt.Notifier = NopNotifier{}
)
