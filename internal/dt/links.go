package dt

// Link maps a logical name to a symlink path and its intended target.
type Link struct {
	Name   string
	Path   string // where the symlink lives
	Target string // absolute path under the installation root
}

// LinkOutcome describes what Ensure did for a link.
type LinkOutcome int

const (
	// LinkCreated means no entry existed and the symlink was created.
	LinkCreated LinkOutcome = iota
	// LinkUnchanged means the symlink already pointed at the target.
	LinkUnchanged
	// LinkReplaced means a stale symlink was unlinked and re-created.
	LinkReplaced
	// LinkDisplaced means a real file or directory occupied the path and was
	// renamed aside before the symlink was created. User data is never deleted.
	LinkDisplaced
)

func (o LinkOutcome) String() string {
	switch o {
	case LinkCreated:
		return "created"
	case LinkUnchanged:
		return "unchanged"
	case LinkReplaced:
		return "replaced"
	case LinkDisplaced:
		return "displaced"
	default:
		return "unknown"
	}
}

// Linker maintains the installation's symlink set.
type Linker interface {
	// Ensure makes the symlink at link.Path point at link.Target.
	Ensure(link Link) (LinkOutcome, error)

	// Remove deletes the symlink only when it points inside installRoot,
	// so an unrelated link at the same path is left alone.
	// Returns whether anything was removed.
	Remove(link Link, installRoot string) (bool, error)

	// Healthy reports whether the symlink exists and points at link.Target.
	Healthy(link Link) (bool, error)
}
