package infra

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	githubAPIURL  = "https://api.github.com/repos/%s/%s/releases/latest"
	githubTimeout = 30 * time.Second
	// checksumsAssetName is the release asset listing per-file SHA-256 sums.
	checksumsAssetName = "checksums.txt"
)

// GitHubRelease represents a GitHub release response.
type GitHubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []GitHubAsset `json:"assets"`
}

// GitHubAsset represents a release asset.
type GitHubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// GitHubDownloader fetches backend release archives from GitHub releases.
type GitHubDownloader struct {
	client  *http.Client
	apiBase string
	owner   string
	repo    string
}

// NewGitHubDownloader creates a downloader for the configured repository.
func NewGitHubDownloader(owner, repo string) *GitHubDownloader {
	return &GitHubDownloader{
		client:  &http.Client{Timeout: githubTimeout},
		apiBase: githubAPIURL,
		owner:   owner,
		repo:    repo,
	}
}

// NewGitHubDownloaderWithBase creates a downloader against a custom API URL
// format string (for testing against httptest servers).
func NewGitHubDownloaderWithBase(apiBase, owner, repo string) *GitHubDownloader {
	return &GitHubDownloader{
		client:  &http.Client{Timeout: githubTimeout},
		apiBase: apiBase,
		owner:   owner,
		repo:    repo,
	}
}

// GetLatestRelease fetches the latest release info from GitHub.
func (d *GitHubDownloader) GetLatestRelease(ctx context.Context) (*GitHubRelease, error) {
	url := fmt.Sprintf(d.apiBase, d.owner, d.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "regia-launcher")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to parse release: %w", err)
	}

	return &release, nil
}

// GetLatestVersion returns the version string of the latest release.
func (d *GitHubDownloader) GetLatestVersion(ctx context.Context) (string, error) {
	release, err := d.GetLatestRelease(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(release.TagName, "v"), nil
}

// findAsset finds the backend archive for the current platform.
func (d *GitHubDownloader) findAsset(release *GitHubRelease) (*GitHubAsset, error) {
	goos := runtime.GOOS
	arch := runtime.GOARCH

	for i := range release.Assets {
		asset := &release.Assets[i]
		if strings.Contains(asset.Name, goos) && strings.Contains(asset.Name, arch) {
			return asset, nil
		}
	}

	return nil, fmt.Errorf("no asset found for %s/%s", goos, arch)
}

// findChecksums returns the checksums asset, or nil if the release has none.
func (d *GitHubDownloader) findChecksums(release *GitHubRelease) *GitHubAsset {
	for i := range release.Assets {
		if release.Assets[i].Name == checksumsAssetName {
			return &release.Assets[i]
		}
	}
	return nil
}

// DownloadBackend downloads the latest backend release, verifies it against
// the release's checksums asset when present, and extracts the backend
// executable to destPath.
func (d *GitHubDownloader) DownloadBackend(ctx context.Context, destPath string) error {
	release, err := d.GetLatestRelease(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest release: %w", err)
	}

	asset, err := d.findAsset(release)
	if err != nil {
		return fmt.Errorf("failed to find asset: %w", err)
	}

	archivePath, err := d.downloadAsset(ctx, asset)
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	if sums := d.findChecksums(release); sums != nil {
		if err := d.verifyChecksum(ctx, sums, asset.Name, archivePath); err != nil {
			return err
		}
	}

	if err := d.extractBinary(archivePath, destPath); err != nil {
		return fmt.Errorf("failed to extract binary: %w", err)
	}

	if err := os.Chmod(destPath, 0755); err != nil {
		return fmt.Errorf("failed to chmod: %w", err)
	}

	return nil
}

// downloadAsset streams an asset to a temp file and returns its path.
func (d *GitHubDownloader) downloadAsset(ctx context.Context, asset *GitHubAsset) (string, error) {
	dlCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "regia-download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write download: %w", err)
	}
	tmpFile.Close()

	return tmpPath, nil
}

// verifyChecksum downloads the checksums asset and confirms the archive's
// SHA-256 matches its listed entry.
func (d *GitHubDownloader) verifyChecksum(ctx context.Context, sums *GitHubAsset, assetName, archivePath string) error {
	sumsPath, err := d.downloadAsset(ctx, sums)
	if err != nil {
		return fmt.Errorf("failed to download checksums: %w", err)
	}
	defer os.Remove(sumsPath)

	want, err := lookupChecksum(sumsPath, assetName)
	if err != nil {
		return err
	}

	verifier := NewIntegrityVerifier()
	got, err := verifier.Digest(ctx, archivePath)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", assetName, got, want)
	}
	return nil
}

// lookupChecksum parses a "sha256  filename" style sums file.
func lookupChecksum(sumsPath, assetName string) (string, error) {
	f, err := os.Open(sumsPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		if filepath.Base(fields[1]) == assetName {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no checksum entry for %s", assetName)
}

// extractBinary extracts the backend binary from a tar.gz archive.
func (d *GitHubDownloader) extractBinary(archivePath, destPath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	wantName := filepath.Base(destPath)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if header.Typeflag == tar.TypeReg &&
			(header.Name == wantName || strings.HasSuffix(header.Name, "/"+wantName)) {

			if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
				return err
			}

			outFile, err := os.Create(destPath)
			if err != nil {
				return err
			}
			defer outFile.Close()

			if _, err := io.Copy(outFile, tr); err != nil {
				return err
			}

			return nil
		}
	}

	return fmt.Errorf("%s not found in archive", wantName)
}
