package dt

import "time"

// OperationRecord is one row of the update log: a single CLI invocation that
// may have mutated the installation.
type OperationRecord struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "success" or "error"

	// Revision pair for operations that moved the installation.
	OldRevision string
	NewRevision string
	Detail      string
}

// Database stores the operation history.
type Database interface {
	// CreateOperation inserts a new in-progress operation and returns it
	// with its assigned ID.
	CreateOperation(operation, parameters string) (*OperationRecord, error)

	// FinishOperation records the outcome of an operation.
	FinishOperation(id int64, status, oldRevision, newRevision, detail string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*OperationRecord, error)

	Close() error
}
