package nuts

import "errors"

var (
	// Store errors.
	ErrStoreUnavailable = errors.New("nuts: store unavailable")

	// Registry errors.
	ErrUnknownJob       = errors.New("nuts: unknown job")
	ErrUnknownWorkflow  = errors.New("nuts: unknown workflow")
	ErrDuplicateName    = errors.New("nuts: duplicate name")
	ErrInvalidSchedule  = errors.New("nuts: invalid schedule expression")
	ErrCyclicDependency = errors.New("nuts: cyclic dependency")

	// Lookup errors.
	ErrNotFound = errors.New("nuts: not found")

	// Configuration errors.
	ErrInvalidConfig = errors.New("nuts: invalid config")
)
