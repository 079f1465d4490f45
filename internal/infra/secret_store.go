package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/regia-app/launcher/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const storeDBName = "store.db"

// SessionTokenKey names the secret the backend authenticates against. The
// token is generated once per install and handed to the companion via env.
const SessionTokenKey = "session_token"

// EncryptedStore implements domain.SecretStore using a SQLCipher encrypted
// SQLite database. It holds the backend session token and launch history.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedStore opens (or creates) the encrypted store.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// Verify encryption works by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates the schema if it doesn't exist.
func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS launch_history (
		launch_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		final_state TEXT NOT NULL,
		exit_code INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetSecret retrieves a secret by key. A missing secret is not an error:
// it returns "" so callers can mint and store one.
func (s *EncryptedStore) GetSecret(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSecret stores a secret.
func (s *EncryptedStore) SetSecret(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO secrets (key, value, created_at)
		VALUES (?, ?, ?)`,
		key, value, time.Now().Unix(),
	)
	return err
}

// AppendLaunchHistory records a finished launch.
func (s *EncryptedStore) AppendLaunchHistory(entry domain.LaunchHistoryEntry) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO launch_history (launch_id, started_at, ended_at, final_state, exit_code)
		VALUES (?, ?, ?, ?, ?)`,
		entry.LaunchID, entry.StartedAt.Unix(), entry.EndedAt.Unix(), string(entry.FinalState), entry.ExitCode,
	)
	return err
}

// RecentLaunches returns the most recent launches, newest first.
func (s *EncryptedStore) RecentLaunches(limit int) ([]domain.LaunchHistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT launch_id, started_at, ended_at, final_state, exit_code
		FROM launch_history ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LaunchHistoryEntry
	for rows.Next() {
		var entry domain.LaunchHistoryEntry
		var started, ended int64
		var state string
		if err := rows.Scan(&entry.LaunchID, &started, &ended, &state, &entry.ExitCode); err != nil {
			return nil, err
		}
		entry.StartedAt = time.Unix(started, 0)
		entry.EndedAt = time.Unix(ended, 0)
		entry.FinalState = domain.CompanionState(state)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	return s.db.Close()
}

// Ensure EncryptedStore implements domain.SecretStore.
var _ domain.SecretStore = (*EncryptedStore)(nil)
