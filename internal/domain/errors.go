package domain

import "errors"

// Startup error taxonomy. Fatal errors abort before the window appears
// functional; everything else is logged or surfaced as observable state.
var (
	// ErrWindowNotFound means the main window was not declared in the static
	// window configuration. Fatal, not recoverable at runtime.
	ErrWindowNotFound = errors.New("main window not found in window configuration")

	// ErrCapabilityInit wraps a required capability's init failure. Fatal.
	ErrCapabilityInit = errors.New("capability initialization failed")

	// ErrCapabilityNotRegistered is returned when the UI layer asks for a
	// capability outside the registration set.
	ErrCapabilityNotRegistered = errors.New("capability not registered")

	// ErrRegistryFrozen is returned on registration attempts after startup.
	ErrRegistryFrozen = errors.New("capability registry is frozen")

	// ErrCompanionSpawn wraps a backend spawn failure. Non-fatal to the shell;
	// the companion state becomes Failed instead.
	ErrCompanionSpawn = errors.New("companion process spawn failed")

	// ErrShutdownTimeout means the companion ignored SIGTERM past the bound
	// and forced termination was escalated.
	ErrShutdownTimeout = errors.New("companion did not exit within shutdown timeout")

	// ErrIntegrityMismatch means the companion executable's digest does not
	// match the pinned manifest. Spawning is refused.
	ErrIntegrityMismatch = errors.New("companion executable integrity mismatch")
)
