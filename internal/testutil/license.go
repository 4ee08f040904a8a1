package testutil

import (
	"context"
	"sync"

	"dt-go/internal/dt"
)

// StubValidator returns a scripted validation result and records calls.
type StubValidator struct {
	mu     sync.Mutex
	Result *dt.ValidationResult
	Calls  []ValidateCall
}

// ValidateCall records one Validate invocation.
type ValidateCall struct {
	Key    string
	Action string
}

func NewStubValidator(verdict dt.Verdict, days int) *StubValidator {
	return &StubValidator{Result: &dt.ValidationResult{Verdict: verdict, DaysRemaining: days}}
}

func (v *StubValidator) Validate(_ context.Context, key, action string) *dt.ValidationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Calls = append(v.Calls, ValidateCall{Key: key, Action: action})
	return v.Result
}

// SetResult changes the scripted result for subsequent calls.
func (v *StubValidator) SetResult(verdict dt.Verdict, days int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Result = &dt.ValidationResult{Verdict: verdict, DaysRemaining: days}
}

// MemoryLicenseStore keeps the license record in memory.
type MemoryLicenseStore struct {
	mu  sync.Mutex
	rec *dt.LicenseRecord
}

func NewMemoryLicenseStore() *MemoryLicenseStore {
	return &MemoryLicenseStore{}
}

func (s *MemoryLicenseStore) Load() (*dt.LicenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, nil
	}
	cp := *s.rec
	return &cp, nil
}

func (s *MemoryLicenseStore) Save(rec *dt.LicenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.rec = &cp
	return nil
}

// RecorderTelemeter records emitted events.
type RecorderTelemeter struct {
	mu     sync.Mutex
	Events []string
}

func NewRecorderTelemeter() *RecorderTelemeter {
	return &RecorderTelemeter{}
}

func (t *RecorderTelemeter) Emit(key, event string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Events = append(t.Events, event)
}

// Emitted returns a copy of the recorded event names.
func (t *RecorderTelemeter) Emitted() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.Events...)
}
