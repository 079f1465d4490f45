package infra

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeArchive builds a tar.gz containing a single executable entry.
func makeArchive(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     0755,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return buf.Bytes()
}

// releaseServer serves a fake GitHub release API plus its assets.
func releaseServer(t *testing.T, tag string, assets map[string][]byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/repos/regia-app/regia-backend/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		release := GitHubRelease{TagName: tag}
		for name := range assets {
			release.Assets = append(release.Assets, GitHubAsset{
				Name:               name,
				BrowserDownloadURL: server.URL + "/assets/" + name,
			})
		}
		_ = json.NewEncoder(w).Encode(release)
	})
	mux.HandleFunc("/assets/", func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		body, ok := assets[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testDownloader(server *httptest.Server) *GitHubDownloader {
	return NewGitHubDownloaderWithBase(server.URL+"/repos/%s/%s/releases/latest",
		"regia-app", "regia-backend")
}

// TestGitHubDownloader_GetLatestVersion verifies tag parsing.
func TestGitHubDownloader_GetLatestVersion(t *testing.T) {
	server := releaseServer(t, "v1.4.0", nil)
	d := testDownloader(server)

	version, err := d.GetLatestVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", version)
}

// TestGitHubDownloader_DownloadBackend verifies download, checksum
// verification and extraction end to end.
func TestGitHubDownloader_DownloadBackend(t *testing.T) {
	binary := []byte("#!/bin/sh\necho backend\n")
	assetName := fmt.Sprintf("regia-backend_1.4.0_%s_%s.tar.gz", runtime.GOOS, runtime.GOARCH)
	archive := makeArchive(t, "regia-backend", binary)

	sum := sha256.Sum256(archive)
	checksums := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), assetName)

	server := releaseServer(t, "v1.4.0", map[string][]byte{
		assetName:      archive,
		"checksums.txt": []byte(checksums),
	})
	d := testDownloader(server)

	destPath := filepath.Join(t.TempDir(), "regia-backend")
	require.NoError(t, d.DownloadBackend(context.Background(), destPath))

	got, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, binary, got)

	info, err := os.Stat(destPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

// TestGitHubDownloader_ChecksumMismatch verifies corrupted downloads are
// rejected before extraction.
func TestGitHubDownloader_ChecksumMismatch(t *testing.T) {
	assetName := fmt.Sprintf("regia-backend_1.4.0_%s_%s.tar.gz", runtime.GOOS, runtime.GOARCH)
	archive := makeArchive(t, "regia-backend", []byte("payload"))
	checksums := fmt.Sprintf("%064d  %s\n", 0, assetName)

	server := releaseServer(t, "v1.4.0", map[string][]byte{
		assetName:      archive,
		"checksums.txt": []byte(checksums),
	})
	d := testDownloader(server)

	destPath := filepath.Join(t.TempDir(), "regia-backend")
	err := d.DownloadBackend(context.Background(), destPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.NoFileExists(t, destPath)
}

// TestGitHubDownloader_NoPlatformAsset verifies a helpful error when the
// release has nothing for this OS/arch.
func TestGitHubDownloader_NoPlatformAsset(t *testing.T) {
	server := releaseServer(t, "v1.4.0", map[string][]byte{
		"regia-backend_1.4.0_plan9_mips.tar.gz": []byte("nope"),
	})
	d := testDownloader(server)

	err := d.DownloadBackend(context.Background(), filepath.Join(t.TempDir(), "regia-backend"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), runtime.GOOS)
}

// TestLookupChecksum verifies sums file parsing.
func TestLookupChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksums.txt")
	content := "abc123  dist/regia-backend_linux_amd64.tar.gz\ndef456  regia-backend_darwin_arm64.tar.gz\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	// Paths in the sums file are matched by basename.
	sum, err := lookupChecksum(path, "regia-backend_linux_amd64.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sum)

	_, err = lookupChecksum(path, "missing.tar.gz")
	assert.Error(t, err)
}
