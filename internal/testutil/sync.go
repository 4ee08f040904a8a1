package testutil

import (
	"context"
	"sync"

	"dt-go/internal/dt"
)

// StubSyncer returns scripted results and records calls.
type StubSyncer struct {
	mu sync.Mutex

	SyncResult  *dt.SyncResult
	SyncErr     error
	CheckResult *dt.CheckResult
	CheckErr    error
	HeadRev     string
	HeadErr     error
	RemoveErr   error

	SyncCalls   int
	CheckCalls  int
	RemoveCalls int
}

func NewStubSyncer() *StubSyncer {
	return &StubSyncer{
		SyncResult: &dt.SyncResult{
			Outcome:       dt.SyncFresh,
			Revision:      "abcdef1234567890",
			CommitSummary: "initial import",
		},
		CheckResult: &dt.CheckResult{UpToDate: true},
		HeadRev:     "abcdef1234567890",
	}
}

func (s *StubSyncer) Sync(_ context.Context, _ dt.SyncSpec) (*dt.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SyncCalls++
	if s.SyncErr != nil {
		return nil, s.SyncErr
	}
	return s.SyncResult, nil
}

func (s *StubSyncer) Check(_ context.Context, _ dt.SyncSpec) (*dt.CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CheckCalls++
	if s.CheckErr != nil {
		return nil, s.CheckErr
	}
	return s.CheckResult, nil
}

func (s *StubSyncer) Head(_ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HeadErr != nil {
		return "", s.HeadErr
	}
	return s.HeadRev, nil
}

func (s *StubSyncer) Remove(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RemoveCalls++
	return s.RemoveErr
}

// RecorderSealer records Seal calls.
type RecorderSealer struct {
	mu    sync.Mutex
	Err   error
	Roots []string
}

func NewRecorderSealer() *RecorderSealer {
	return &RecorderSealer{}
}

func (s *RecorderSealer) Seal(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Roots = append(s.Roots, root)
	return s.Err
}

// SealCalls returns how many times Seal was invoked.
func (s *RecorderSealer) SealCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Roots)
}

// StubLinker returns a scripted outcome and records the links it saw.
type StubLinker struct {
	mu      sync.Mutex
	Outcome dt.LinkOutcome
	Err     error
	Ensured []dt.Link
	Removed []dt.Link
}

func NewStubLinker() *StubLinker {
	return &StubLinker{Outcome: dt.LinkCreated}
}

func (l *StubLinker) Ensure(link dt.Link) (dt.LinkOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return 0, l.Err
	}
	l.Ensured = append(l.Ensured, link)
	return l.Outcome, nil
}

func (l *StubLinker) Remove(link dt.Link, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return false, l.Err
	}
	l.Removed = append(l.Removed, link)
	return true, nil
}

func (l *StubLinker) Healthy(_ dt.Link) (bool, error) {
	return true, nil
}
