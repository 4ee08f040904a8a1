package dt

import (
	"context"
	"fmt"
	"time"
)

// GracePeriod is how long operations may proceed offline, measured from the
// last successful validation. Offline runs never move that timestamp, so
// repeated offline runs cannot extend the window.
const GracePeriod = 72 * time.Hour

// Verdict is the discrete result of a license validation attempt.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictValid
	VerdictTrial
	VerdictExpired
	VerdictInvalid
	VerdictUnreachable
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictTrial:
		return "trial"
	case VerdictExpired:
		return "expired"
	case VerdictInvalid:
		return "invalid"
	case VerdictUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// ValidationResult is what the remote endpoint (or a fake) reports for a key.
type ValidationResult struct {
	Verdict       Verdict
	DaysRemaining int
}

// Validator checks a license key against the validation endpoint.
// It never returns a transport error: unreachability is a Verdict.
type Validator interface {
	Validate(ctx context.Context, key, action string) *ValidationResult
}

// Telemeter emits usage events. Implementations must be fire-and-forget:
// the caller never observes delivery success or failure.
type Telemeter interface {
	Emit(key, event string)
}

// LicenseRecord is the cached proof of entitlement. It is created on the
// first successful validation and only ever mutated, never silently deleted.
type LicenseRecord struct {
	Key             string    `toml:"key"`
	Status          string    `toml:"status"` // valid, trial, expired, invalid, unknown
	LastValidatedAt time.Time `toml:"last_validated_at"`
	DaysRemaining   int       `toml:"days_remaining,omitempty"`
}

// LicenseStore persists the LicenseRecord. Load returns (nil, nil) when no
// record exists yet.
type LicenseStore interface {
	Load() (*LicenseRecord, error)
	Save(rec *LicenseRecord) error
}

// GateOutcome describes how a license check passed.
type GateOutcome struct {
	Verdict       Verdict
	DaysRemaining int

	// GraceUsed is set when the check passed offline on a cached record.
	GraceUsed      bool
	GraceRemaining time.Duration
}

// Gate enforces the license contract in front of install and update.
type Gate struct {
	validator Validator
	store     LicenseStore
	clock     Clock
	logger    Logger
}

func NewGate(validator Validator, store LicenseStore, clock Clock, logger Logger) *Gate {
	return &Gate{validator: validator, store: store, clock: clock, logger: logger}
}

// Record returns the cached license record, if any.
func (g *Gate) Record() (*LicenseRecord, error) {
	return g.store.Load()
}

// Check validates the key for the given action ("install" or "update").
// An empty key falls back to the cached record's key.
//
// Valid/Trial persist the key and the validation time. Expired/Invalid fail
// the operation. Unreachable consults the cached record: a previously valid
// record within GracePeriod lets the operation proceed with a warning.
func (g *Gate) Check(ctx context.Context, key, action string) (*GateOutcome, error) {
	cached, err := g.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading license record: %w", err)
	}

	if key == "" {
		if cached == nil || cached.Key == "" {
			return nil, ErrLicenseRequired
		}
		key = cached.Key
	}

	res := g.validator.Validate(ctx, key, action)
	now := g.clock.Now()

	switch res.Verdict {
	case VerdictValid, VerdictTrial:
		rec := &LicenseRecord{
			Key:             key,
			Status:          res.Verdict.String(),
			LastValidatedAt: now,
			DaysRemaining:   res.DaysRemaining,
		}
		if err := g.store.Save(rec); err != nil {
			return nil, fmt.Errorf("saving license record: %w", err)
		}
		return &GateOutcome{Verdict: res.Verdict, DaysRemaining: res.DaysRemaining}, nil

	case VerdictInvalid, VerdictExpired:
		// Record the failed status but keep the key and the last successful
		// validation timestamp intact.
		rec := &LicenseRecord{Key: key, Status: res.Verdict.String()}
		if cached != nil {
			rec.LastValidatedAt = cached.LastValidatedAt
		}
		if err := g.store.Save(rec); err != nil {
			g.logger.Warn("saving license record failed", "error", err)
		}
		if res.Verdict == VerdictExpired {
			return nil, ErrLicenseExpired
		}
		return nil, ErrLicenseInvalid

	case VerdictUnreachable:
		if cached == nil || (cached.Status != "valid" && cached.Status != "trial") {
			return nil, fmt.Errorf("no previously validated license to fall back on: %w", ErrGraceExpired)
		}
		elapsed := now.Sub(cached.LastValidatedAt)
		if elapsed > GracePeriod {
			return nil, fmt.Errorf("last successful validation was %s ago: %w",
				elapsed.Truncate(time.Minute), ErrGraceExpired)
		}
		remaining := GracePeriod - elapsed
		g.logger.Warn("license server unreachable, proceeding on cached validation",
			"action", action, "grace_remaining", remaining.Truncate(time.Minute).String())
		return &GateOutcome{
			Verdict:        VerdictForStatus(cached.Status),
			DaysRemaining:  cached.DaysRemaining,
			GraceUsed:      true,
			GraceRemaining: remaining,
		}, nil
	}

	return nil, fmt.Errorf("unexpected validation verdict %q", res.Verdict)
}

// VerdictForStatus maps a persisted status string back to its Verdict.
func VerdictForStatus(status string) Verdict {
	switch status {
	case "valid":
		return VerdictValid
	case "trial":
		return VerdictTrial
	case "expired":
		return VerdictExpired
	case "invalid":
		return VerdictInvalid
	default:
		return VerdictUnknown
	}
}
