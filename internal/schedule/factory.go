package schedule

import (
	"fmt"
	"time"

	"dt-go/internal/config"
	"dt-go/internal/dt"
)

// NewFromConfig creates a Registrar implementation based on the schedule config type.
func NewFromConfig(cfg config.ScheduleConfig, runner dt.Runner, logger dt.Logger) (dt.Registrar, error) {
	switch cfg.Type {
	case "cron":
		return NewCronRegistrar(runner, logger), nil
	case "none", "":
		return NopRegistrar{}, nil
	default:
		return nil, fmt.Errorf("unknown schedule type: %s", cfg.Type)
	}
}

// TriggerFromConfig parses the configured trigger. Exactly one of daily and
// every must be set when scheduling is enabled.
func TriggerFromConfig(cfg config.ScheduleConfig) (dt.Trigger, error) {
	if cfg.Daily != "" && cfg.Every != "" {
		return dt.Trigger{}, fmt.Errorf("schedule config sets both daily and every")
	}
	if cfg.Every != "" {
		d, err := time.ParseDuration(cfg.Every)
		if err != nil {
			return dt.Trigger{}, fmt.Errorf("parsing schedule interval %q: %w", cfg.Every, err)
		}
		return dt.Trigger{Every: d}, nil
	}
	return dt.Trigger{Daily: cfg.Daily}, nil
}

// NopRegistrar is used when scheduling is disabled.
type NopRegistrar struct{}

func (NopRegistrar) Register(dt.Task) error            { return nil }
func (NopRegistrar) Deregister(string) error           { return nil }
func (NopRegistrar) Registered(string) (bool, error)   { return false, nil }
