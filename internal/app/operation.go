package app

// UpdateOperation tracks a CLI operation that may mutate the installation.
// Operations are created in memory with ID=0. Only mutating commands persist
// them (giving them an auto-increment ID from the database).
type UpdateOperation struct {
	ID          int64
	Operation   string
	Parameters  string
	Status      string // "success" or "error"
	OldRevision string
	NewRevision string
	Detail      string
}

// NewUpdateOperation creates a new in-memory update operation.
func NewUpdateOperation(operation, parameters string) *UpdateOperation {
	return &UpdateOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *UpdateOperation) Persisted() bool {
	return op.ID != 0
}
