package testutil

import (
	"context"
	"sync"

	"dt-go/internal/dt"
)

// MemoryRegistrar keeps registered tasks in memory.
type MemoryRegistrar struct {
	mu    sync.Mutex
	tasks map[string]dt.Task
	Err   error
}

func NewMemoryRegistrar() *MemoryRegistrar {
	return &MemoryRegistrar{tasks: make(map[string]dt.Task)}
}

func (r *MemoryRegistrar) Register(task dt.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.tasks[task.Label] = task
	return nil
}

func (r *MemoryRegistrar) Deregister(label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	delete(r.tasks, label)
	return nil
}

func (r *MemoryRegistrar) Registered(label string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[label]
	return ok, nil
}

// Task returns the registered task for a label, if any.
func (r *MemoryRegistrar) Task(label string) (dt.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[label]
	return t, ok
}

// RecorderNotifier records notifications.
type RecorderNotifier struct {
	mu            sync.Mutex
	Err           error
	Notifications []Notification
}

// Notification is one recorded Notify call.
type Notification struct {
	Title string
	Body  string
}

func NewRecorderNotifier() *RecorderNotifier {
	return &RecorderNotifier{}
}

func (n *RecorderNotifier) Notify(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Notifications = append(n.Notifications, Notification{Title: title, Body: body})
	return nil
}

// Sent returns a copy of the recorded notifications.
func (n *RecorderNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.Notifications...)
}

// NopLocker always grants the lock.
type NopLocker struct{}

func (NopLocker) Acquire() (func(), error) { return func() {}, nil }

// HeldLocker simulates a lock held by another process.
type HeldLocker struct{}

func (HeldLocker) Acquire() (func(), error) { return nil, dt.ErrAlreadyRunning }

// MemoryProfile is an in-memory ProfileEditor.
type MemoryProfile struct {
	mu     sync.Mutex
	Dir    string
	Backup string
}

func NewMemoryProfile() *MemoryProfile {
	return &MemoryProfile{}
}

func (p *MemoryProfile) EnsurePathEntry(dir string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Dir == dir {
		return false, nil
	}
	p.Dir = dir
	return true, nil
}

func (p *MemoryProfile) RemovePathEntry() (bool, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Dir == "" {
		return false, "", nil
	}
	p.Dir = ""
	p.Backup = "/tmp/profile.backup"
	return true, p.Backup, nil
}
