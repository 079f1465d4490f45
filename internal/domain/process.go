package domain

import "context"

// CommandSpec describes a process to spawn.
type CommandSpec struct {
	Command string
	Args    []string
	Dir     string
	Env     map[string]string // appended to the parent environment
}

// ExitStatus is the terminal result of a spawned process.
type ExitStatus struct {
	Code int
	Err  error // non-nil when Wait failed for reasons other than exit code
}

// ProcessHandle is a started process owned by the caller. Exactly one owner
// may hold a handle; for the companion that owner is the supervisor.
type ProcessHandle interface {
	// PID returns the OS process ID.
	PID() int

	// Terminate sends SIGTERM.
	Terminate() error

	// Kill sends SIGKILL.
	Kill() error

	// Done is closed after the process exits; Exit is valid afterwards.
	Done() <-chan struct{}

	// Exit returns the exit status. Only meaningful after Done is closed.
	Exit() ExitStatus
}

// Spawner starts OS processes. Spawn is asynchronous: it returns once the
// process has started, not when it is ready.
type Spawner interface {
	Spawn(ctx context.Context, spec CommandSpec) (ProcessHandle, error)
}
