package domain

import "context"

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// Terminate asks a process to exit gracefully (SIGTERM).
	Terminate(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// Delete removes a file or directory recursively.
	Delete(path string) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// LaunchRegistry persists the current launch for cross-run orphan detection.
// Implementation: JSON file in the data directory, flock-guarded.
type LaunchRegistry interface {
	// Register saves the current launch's PIDs.
	Register(record LaunchRecord) error

	// Get returns the persisted launch, or nil if none exists.
	Get() (*LaunchRecord, error)

	// UpdateHeartbeat refreshes the liveness timestamp.
	UpdateHeartbeat(launchID string) error

	// Clear removes the record (normal shutdown path).
	Clear() error

	// Path returns the registry file path (for tests and status output).
	Path() string
}

// Window is the single long-lived UI surface owned by the launcher.
// The toolkit behind it is an external collaborator; only the contract the
// launcher needs is modeled here.
type Window interface {
	// SetTitle sets the window title. Cosmetic: failures are logged, never fatal.
	SetTitle(title string) error

	// Run shows the window and blocks until it is closed.
	Run()

	// Closed is closed (the channel) once the window has been closed.
	Closed() <-chan struct{}

	// Close programmatically closes the window.
	Close()
}

// WindowProvider resolves windows declared in the static configuration.
type WindowProvider interface {
	// MainWindow returns the main window or ErrWindowNotFound if it was not
	// declared.
	MainWindow() (Window, error)
}

// Notifier delivers desktop notifications to the user.
type Notifier interface {
	Notify(title, body string) error
}

// KeyProvider abstracts the source of encryption keys for the secret store.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// SecretStore provides encrypted persistent storage for the session token the
// backend authenticates against, plus launch history.
type SecretStore interface {
	// GetSecret retrieves a secret by key. Missing secrets return "" with a
	// nil error.
	GetSecret(key string) (string, error)

	// SetSecret stores a secret.
	SetSecret(key, value string) error

	// AppendLaunchHistory records a finished launch.
	AppendLaunchHistory(entry LaunchHistoryEntry) error

	// RecentLaunches returns the most recent launches, newest first.
	RecentLaunches(limit int) ([]LaunchHistoryEntry, error)

	// Close releases resources (database connection).
	Close() error
}

// IntegrityVerifier checks the companion executable against a pinned digest
// before it is allowed to spawn.
type IntegrityVerifier interface {
	// Verify returns ErrIntegrityMismatch when the executable's SHA-256 does
	// not match the expected digest.
	Verify(ctx context.Context, path, wantHexDigest string) error

	// Digest computes the executable's SHA-256 hex digest.
	Digest(ctx context.Context, path string) (string, error)
}
