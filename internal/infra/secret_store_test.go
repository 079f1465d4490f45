package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regia-app/launcher/internal/domain"
)

// newTestStore creates an encrypted store in a temp directory.
func newTestStore(t *testing.T) (*EncryptedStore, string, []byte) {
	t.Helper()
	dataDir := t.TempDir()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedStore(dataDir, key)
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })
	return store, dataDir, key
}

// TestEncryptedStore_SecretRoundTrip verifies set/get and overwrite.
func TestEncryptedStore_SecretRoundTrip(t *testing.T) {
	store, _, _ := newTestStore(t)

	require.NoError(t, store.SetSecret(SessionTokenKey, "token-1"))

	got, err := store.GetSecret(SessionTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "token-1", got)

	require.NoError(t, store.SetSecret(SessionTokenKey, "token-2"))
	got, err = store.GetSecret(SessionTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "token-2", got)
}

// TestEncryptedStore_MissingSecret verifies a missing secret is empty, not an
// error.
func TestEncryptedStore_MissingSecret(t *testing.T) {
	store, _, _ := newTestStore(t)

	got, err := store.GetSecret("never-set")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestEncryptedStore_SecretSurvivesReopen verifies persistence across
// launcher runs with the same key.
func TestEncryptedStore_SecretSurvivesReopen(t *testing.T) {
	store, dataDir, key := newTestStore(t)
	require.NoError(t, store.SetSecret(SessionTokenKey, "persisted"))
	require.NoError(t, store.Close())

	reopened, err := NewEncryptedStore(dataDir, key)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSecret(SessionTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}

// TestEncryptedStore_WrongKeyRejected verifies the database is unreadable
// without the original key.
func TestEncryptedStore_WrongKeyRejected(t *testing.T) {
	store, dataDir, _ := newTestStore(t)
	require.NoError(t, store.SetSecret(SessionTokenKey, "secret"))
	require.NoError(t, store.Close())

	wrongKey, err := GenerateKey()
	require.NoError(t, err)

	reopened, err := NewEncryptedStore(dataDir, wrongKey)
	if err == nil {
		defer reopened.Close()
		_, err = reopened.GetSecret(SessionTokenKey)
	}
	assert.Error(t, err)
}

// TestEncryptedStore_LaunchHistory verifies history ordering and the limit.
func TestEncryptedStore_LaunchHistory(t *testing.T) {
	store, _, _ := newTestStore(t)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendLaunchHistory(domain.LaunchHistoryEntry{
			LaunchID:   string(rune('a' + i)),
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			EndedAt:    base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			FinalState: domain.StateStopped,
			ExitCode:   0,
		}))
	}

	entries, err := store.RecentLaunches(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "c", entries[0].LaunchID)
	assert.Equal(t, "b", entries[1].LaunchID)
	assert.Equal(t, domain.StateStopped, entries[0].FinalState)
	assert.True(t, entries[0].EndedAt.After(entries[0].StartedAt))
}
