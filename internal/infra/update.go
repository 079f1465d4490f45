package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// UpdateInfo describes the outcome of a backend update check.
type UpdateInfo struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
}

// UpdateChecker checks for and stages new backend releases. It never touches
// a running backend: a staged update takes effect on the next launch.
type UpdateChecker struct {
	downloader     *GitHubDownloader
	currentVersion string
	logger         *zap.Logger
}

// NewUpdateChecker creates an update checker.
func NewUpdateChecker(downloader *GitHubDownloader, currentVersion string, logger *zap.Logger) *UpdateChecker {
	return &UpdateChecker{
		downloader:     downloader,
		currentVersion: currentVersion,
		logger:         logger,
	}
}

// Check queries the latest backend release and compares versions.
func (u *UpdateChecker) Check(ctx context.Context) (*UpdateInfo, error) {
	latest, err := u.downloader.GetLatestVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check latest release: %w", err)
	}

	info := &UpdateInfo{
		CurrentVersion: u.currentVersion,
		LatestVersion:  latest,
		Available:      isNewerVersion(latest, u.currentVersion),
	}

	u.logger.Info("backend update check",
		zap.String("current", info.CurrentVersion),
		zap.String("latest", info.LatestVersion),
		zap.Bool("available", info.Available))

	return info, nil
}

// Stage downloads the latest backend into the staging directory and returns
// the staged executable path.
func (u *UpdateChecker) Stage(ctx context.Context, dataDir, backendName string) (string, error) {
	stagingDir := filepath.Join(dataDir, "staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	destPath := filepath.Join(stagingDir, backendName)
	if err := u.downloader.DownloadBackend(ctx, destPath); err != nil {
		return "", err
	}

	u.logger.Info("backend update staged", zap.String("path", destPath))
	return destPath, nil
}

// isNewerVersion compares two dotted version strings, returns true if
// candidate > current. Splits by "." and compares each part numerically.
func isNewerVersion(candidate, current string) bool {
	if current == "" {
		return true
	}

	candidateParts := strings.Split(strings.TrimPrefix(candidate, "v"), ".")
	currentParts := strings.Split(strings.TrimPrefix(current, "v"), ".")

	maxLen := len(candidateParts)
	if len(currentParts) > maxLen {
		maxLen = len(currentParts)
	}

	for i := 0; i < maxLen; i++ {
		var candidateNum, currentNum int

		if i < len(candidateParts) {
			candidateNum, _ = strconv.Atoi(candidateParts[i])
		}
		if i < len(currentParts) {
			currentNum, _ = strconv.Atoi(currentParts[i])
		}

		if candidateNum > currentNum {
			return true
		}
		if candidateNum < currentNum {
			return false
		}
	}

	return false
}
