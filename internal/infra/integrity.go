package infra

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/regia-app/launcher/internal/domain"
)

// SHA256Verifier implements domain.IntegrityVerifier.
type SHA256Verifier struct{}

// NewIntegrityVerifier creates a SHA-256 based verifier.
func NewIntegrityVerifier() domain.IntegrityVerifier {
	return &SHA256Verifier{}
}

// Digest computes the executable's SHA-256 hex digest.
func (v *SHA256Verifier) Digest(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify returns domain.ErrIntegrityMismatch when the executable's SHA-256
// does not match the expected digest.
func (v *SHA256Verifier) Verify(ctx context.Context, path, wantHexDigest string) error {
	got, err := v.Digest(ctx, path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, wantHexDigest) {
		return fmt.Errorf("%w: got %s, want %s", domain.ErrIntegrityMismatch, got, wantHexDigest)
	}
	return nil
}

// Ensure SHA256Verifier implements domain.IntegrityVerifier.
var _ domain.IntegrityVerifier = (*SHA256Verifier)(nil)

// ExecutableWatcher observes the companion executable on disk and invokes a
// callback when it is rewritten, so the launcher can re-verify integrity and
// warn the user.
type ExecutableWatcher struct {
	path     string
	onChange func()
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
}

// NewExecutableWatcher creates a watcher for the given executable path.
func NewExecutableWatcher(path string, onChange func(), logger *zap.Logger) *ExecutableWatcher {
	return &ExecutableWatcher{
		path:     path,
		onChange: onChange,
		logger:   logger,
	}
}

// Start begins watching. It watches the parent directory because editors and
// installers replace binaries via rename, which drops a watch on the file
// itself.
func (w *ExecutableWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.watcher = watcher

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go w.run(ctx)
	return nil
}

func (w *ExecutableWatcher) run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.logger.Warn("companion executable changed on disk",
					zap.String("path", w.path),
					zap.String("op", event.Op.String()))
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("executable watch error", zap.Error(err))
		}
	}
}
