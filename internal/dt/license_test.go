package dt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dt-go/internal/dt"
	"dt-go/internal/testutil"
)

func TestGate_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("valid key is persisted with validation time", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := testutil.NewMemoryLicenseStore()
		validator := testutil.NewStubValidator(dt.VerdictValid, 0)

		gate := dt.NewGate(validator, store, clock, dt.NewNopLogger())

		outcome, err := gate.Check(ctx, "KEY-1", "install")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if outcome.Verdict != dt.VerdictValid {
			t.Errorf("Check() verdict = %v, want valid", outcome.Verdict)
		}

		rec, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if rec == nil {
			t.Fatal("no license record persisted")
		}
		if rec.Key != "KEY-1" {
			t.Errorf("record key = %q, want KEY-1", rec.Key)
		}
		if !rec.LastValidatedAt.Equal(clock.Now()) {
			t.Errorf("record last_validated_at = %v, want %v", rec.LastValidatedAt, clock.Now())
		}
	})

	t.Run("action tag reaches the validator unchanged", func(t *testing.T) {
		for _, action := range []string{"install", "update", "activate"} {
			validator := testutil.NewStubValidator(dt.VerdictValid, 0)
			gate := dt.NewGate(validator, testutil.NewMemoryLicenseStore(),
				testutil.FixedClock(), dt.NewNopLogger())

			if _, err := gate.Check(ctx, "KEY-1", action); err != nil {
				t.Fatalf("Check(%q) error = %v", action, err)
			}
			if len(validator.Calls) != 1 || validator.Calls[0].Action != action {
				t.Errorf("validator calls = %+v, want one with action %q", validator.Calls, action)
			}
		}
	})

	t.Run("trial reports days remaining", func(t *testing.T) {
		gate := dt.NewGate(testutil.NewStubValidator(dt.VerdictTrial, 14),
			testutil.NewMemoryLicenseStore(), testutil.FixedClock(), dt.NewNopLogger())

		outcome, err := gate.Check(ctx, "TRIAL-1", "install")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if outcome.Verdict != dt.VerdictTrial {
			t.Errorf("Check() verdict = %v, want trial", outcome.Verdict)
		}
		if outcome.DaysRemaining != 14 {
			t.Errorf("Check() days remaining = %d, want 14", outcome.DaysRemaining)
		}
	})

	t.Run("empty key falls back to cached record", func(t *testing.T) {
		store := testutil.NewMemoryLicenseStore()
		store.Save(&dt.LicenseRecord{Key: "CACHED-1", Status: "valid"})
		validator := testutil.NewStubValidator(dt.VerdictValid, 0)

		gate := dt.NewGate(validator, store, testutil.FixedClock(), dt.NewNopLogger())

		if _, err := gate.Check(ctx, "", "update"); err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if len(validator.Calls) != 1 || validator.Calls[0].Key != "CACHED-1" {
			t.Errorf("validator called with %+v, want cached key", validator.Calls)
		}
	})

	t.Run("no key and no record fails", func(t *testing.T) {
		gate := dt.NewGate(testutil.NewStubValidator(dt.VerdictValid, 0),
			testutil.NewMemoryLicenseStore(), testutil.FixedClock(), dt.NewNopLogger())

		_, err := gate.Check(ctx, "", "install")
		if !errors.Is(err, dt.ErrLicenseRequired) {
			t.Errorf("Check() error = %v, want ErrLicenseRequired", err)
		}
	})

	t.Run("expired key is fatal", func(t *testing.T) {
		store := testutil.NewMemoryLicenseStore()
		gate := dt.NewGate(testutil.NewStubValidator(dt.VerdictExpired, 0),
			store, testutil.FixedClock(), dt.NewNopLogger())

		_, err := gate.Check(ctx, "OLD-1", "update")
		if !errors.Is(err, dt.ErrLicenseExpired) {
			t.Fatalf("Check() error = %v, want ErrLicenseExpired", err)
		}

		rec, _ := store.Load()
		if rec == nil || rec.Status != "expired" {
			t.Errorf("record after expired check = %+v, want status expired", rec)
		}
	})

	t.Run("invalid key is fatal and keeps last validation time", func(t *testing.T) {
		clock := testutil.FixedClock()
		validated := clock.Now().Add(-24 * time.Hour)
		store := testutil.NewMemoryLicenseStore()
		store.Save(&dt.LicenseRecord{Key: "KEY-1", Status: "valid", LastValidatedAt: validated})

		gate := dt.NewGate(testutil.NewStubValidator(dt.VerdictInvalid, 0),
			store, clock, dt.NewNopLogger())

		_, err := gate.Check(ctx, "KEY-1", "update")
		if !errors.Is(err, dt.ErrLicenseInvalid) {
			t.Fatalf("Check() error = %v, want ErrLicenseInvalid", err)
		}

		rec, _ := store.Load()
		if !rec.LastValidatedAt.Equal(validated) {
			t.Errorf("last_validated_at moved to %v, want %v", rec.LastValidatedAt, validated)
		}
	})
}

func TestGate_Check_Offline(t *testing.T) {
	ctx := context.Background()

	// seed stores a record validated at the clock's current time.
	seed := func(clock *testutil.StubClock) *testutil.MemoryLicenseStore {
		store := testutil.NewMemoryLicenseStore()
		store.Save(&dt.LicenseRecord{Key: "KEY-1", Status: "valid", LastValidatedAt: clock.Now()})
		return store
	}

	t.Run("proceeds within the grace window", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := seed(clock)
		clock.Advance(71*time.Hour + 59*time.Minute)

		gate := dt.NewGate(testutil.NewStubValidator(dt.VerdictUnreachable, 0),
			store, clock, dt.NewNopLogger())

		outcome, err := gate.Check(ctx, "KEY-1", "update")
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !outcome.GraceUsed {
			t.Error("Check() GraceUsed = false, want true")
		}
		if outcome.GraceRemaining <= 0 {
			t.Errorf("Check() GraceRemaining = %v, want > 0", outcome.GraceRemaining)
		}
	})

	t.Run("fails past the grace window", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := seed(clock)
		clock.Advance(72*time.Hour + time.Minute)

		gate := dt.NewGate(testutil.NewStubValidator(dt.VerdictUnreachable, 0),
			store, clock, dt.NewNopLogger())

		_, err := gate.Check(ctx, "KEY-1", "update")
		if !errors.Is(err, dt.ErrGraceExpired) {
			t.Errorf("Check() error = %v, want ErrGraceExpired", err)
		}
	})

	t.Run("offline run does not extend the window", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := seed(clock)
		validator := testutil.NewStubValidator(dt.VerdictUnreachable, 0)
		gate := dt.NewGate(validator, store, clock, dt.NewNopLogger())

		clock.Advance(48 * time.Hour)
		if _, err := gate.Check(ctx, "KEY-1", "update"); err != nil {
			t.Fatalf("Check() within grace error = %v", err)
		}

		// Another 48h offline: 96h from the last successful validation.
		clock.Advance(48 * time.Hour)
		_, err := gate.Check(ctx, "KEY-1", "update")
		if !errors.Is(err, dt.ErrGraceExpired) {
			t.Errorf("Check() error = %v, want ErrGraceExpired", err)
		}
	})

	t.Run("no cached record means no grace", func(t *testing.T) {
		gate := dt.NewGate(testutil.NewStubValidator(dt.VerdictUnreachable, 0),
			testutil.NewMemoryLicenseStore(), testutil.FixedClock(), dt.NewNopLogger())

		_, err := gate.Check(ctx, "KEY-1", "install")
		if !errors.Is(err, dt.ErrGraceExpired) {
			t.Errorf("Check() error = %v, want ErrGraceExpired", err)
		}
	})

	t.Run("cached failure status gets no grace", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := testutil.NewMemoryLicenseStore()
		store.Save(&dt.LicenseRecord{Key: "KEY-1", Status: "expired", LastValidatedAt: clock.Now()})

		gate := dt.NewGate(testutil.NewStubValidator(dt.VerdictUnreachable, 0),
			store, clock, dt.NewNopLogger())

		_, err := gate.Check(ctx, "KEY-1", "update")
		if !errors.Is(err, dt.ErrGraceExpired) {
			t.Errorf("Check() error = %v, want ErrGraceExpired", err)
		}
	})
}
