package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/regia-app/launcher/internal/domain"
)

const launchRecordName = "launch.json"

// FileLaunchRegistry implements domain.LaunchRegistry using a JSON file.
// The record survives launcher crashes so the next run can reap an orphaned
// companion process.
type FileLaunchRegistry struct {
	path string
}

// NewFileLaunchRegistry creates a launch registry in the data directory.
func NewFileLaunchRegistry(dataDir string) domain.LaunchRegistry {
	return &FileLaunchRegistry{path: filepath.Join(dataDir, launchRecordName)}
}

// NewFileLaunchRegistryWithPath creates a registry at a specific path (for testing).
func NewFileLaunchRegistryWithPath(path string) domain.LaunchRegistry {
	return &FileLaunchRegistry{path: path}
}

// Path returns the registry file path.
func (r *FileLaunchRegistry) Path() string {
	return r.path
}

// Register saves the current launch's PIDs.
func (r *FileLaunchRegistry) Register(record domain.LaunchRecord) error {
	// File lock guards against a racing stale launcher instance
	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	if record.Version == 0 {
		record.Version = 1
	}
	if record.LastHeartbeat == 0 {
		record.LastHeartbeat = time.Now().Unix()
	}

	return r.atomicWrite(&record)
}

// Get returns the persisted launch, or nil if none exists.
func (r *FileLaunchRegistry) Get() (*domain.LaunchRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var record domain.LaunchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

// UpdateHeartbeat refreshes the liveness timestamp for the given launch.
func (r *FileLaunchRegistry) UpdateHeartbeat(launchID string) error {
	record, err := r.Get()
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("no launch registered")
	}
	if record.LaunchID != launchID {
		return fmt.Errorf("launch %s is not the registered launch", launchID)
	}

	record.LastHeartbeat = time.Now().Unix()
	return r.atomicWrite(record)
}

// Clear removes the record (normal shutdown path).
func (r *FileLaunchRegistry) Clear() error {
	err := os.Remove(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// atomicWrite writes the record to file atomically (write + rename).
func (r *FileLaunchRegistry) atomicWrite(record *domain.LaunchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return err
	}

	// Temp file unique per process to avoid a race with a stale instance
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileLaunchRegistry implements domain.LaunchRegistry.
var _ domain.LaunchRegistry = (*FileLaunchRegistry)(nil)
