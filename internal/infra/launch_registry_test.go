package infra

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regia-app/launcher/internal/domain"
)

func testRegistry(t *testing.T) domain.LaunchRegistry {
	t.Helper()
	return NewFileLaunchRegistryWithPath(filepath.Join(t.TempDir(), "launch.json"))
}

// TestFileLaunchRegistry_RegisterAndGet verifies the round trip.
func TestFileLaunchRegistry_RegisterAndGet(t *testing.T) {
	registry := testRegistry(t)

	require.NoError(t, registry.Register(domain.LaunchRecord{
		LaunchID:      "launch-1",
		LauncherPID:   100,
		CompanionPID:  200,
		CompanionName: "backend",
		StartedAt:     1700000000,
	}))

	record, err := registry.Get()
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, 1, record.Version, "version defaults to 1")
	assert.Equal(t, "launch-1", record.LaunchID)
	assert.Equal(t, 100, record.LauncherPID)
	assert.Equal(t, 200, record.CompanionPID)
	assert.Equal(t, "backend", record.CompanionName)
	assert.NotZero(t, record.LastHeartbeat, "first heartbeat is stamped on register")
}

// TestFileLaunchRegistry_GetMissing verifies a missing file is nil, not an error.
func TestFileLaunchRegistry_GetMissing(t *testing.T) {
	registry := testRegistry(t)

	record, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, record)
}

// TestFileLaunchRegistry_UpdateHeartbeat verifies heartbeat refresh and the
// launch ID guard.
func TestFileLaunchRegistry_UpdateHeartbeat(t *testing.T) {
	registry := testRegistry(t)

	require.NoError(t, registry.Register(domain.LaunchRecord{
		LaunchID:      "launch-1",
		LastHeartbeat: 1,
	}))

	require.NoError(t, registry.UpdateHeartbeat("launch-1"))

	record, err := registry.Get()
	require.NoError(t, err)
	assert.Greater(t, record.LastHeartbeat, int64(1))

	// A different launch cannot refresh this record.
	assert.Error(t, registry.UpdateHeartbeat("someone-else"))
}

// TestFileLaunchRegistry_Clear verifies removal and that clearing twice is fine.
func TestFileLaunchRegistry_Clear(t *testing.T) {
	registry := testRegistry(t)

	require.NoError(t, registry.Register(domain.LaunchRecord{LaunchID: "launch-1"}))
	require.NoError(t, registry.Clear())

	record, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, registry.Clear())
}

// TestFileLaunchRegistry_RegisterOverwrites verifies a new launch replaces
// the previous record.
func TestFileLaunchRegistry_RegisterOverwrites(t *testing.T) {
	registry := testRegistry(t)

	require.NoError(t, registry.Register(domain.LaunchRecord{LaunchID: "old", CompanionPID: 1}))
	require.NoError(t, registry.Register(domain.LaunchRecord{LaunchID: "new", CompanionPID: 2}))

	record, err := registry.Get()
	require.NoError(t, err)
	assert.Equal(t, "new", record.LaunchID)
	assert.Equal(t, 2, record.CompanionPID)
}
