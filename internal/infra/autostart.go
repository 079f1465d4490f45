package infra

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"text/template"
)

// Launch-at-login plist template (user LaunchAgent / system LaunchDaemon).
// The launcher is a UI app, so no KeepAlive: launchd starts it once at login
// and the user owns its lifetime after that.
const autostartTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>run</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Interactive</string>
</dict>
</plist>`

type autostartPlist struct {
	Label          string
	ExecutablePath string
	LogPath        string
	ErrorLogPath   string
}

// AutostartManager installs and removes the launch-at-login plist.
type AutostartManager struct {
	paths *Paths
}

// NewAutostartManager creates an autostart manager for the detected paths.
func NewAutostartManager(paths *Paths) *AutostartManager {
	return &AutostartManager{paths: paths}
}

// IsInstalled checks if the autostart plist exists.
func (m *AutostartManager) IsInstalled() bool {
	_, err := os.Stat(m.paths.AutostartPath)
	return err == nil
}

// Install writes and loads the plist pointing at execPath.
func (m *AutostartManager) Install(execPath string) error {
	content, err := m.render(execPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.paths.AutostartDir, 0755); err != nil {
		return fmt.Errorf("failed to create autostart directory: %w", err)
	}

	if err := os.WriteFile(m.paths.AutostartPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write plist: %w", err)
	}

	// Best effort: launchctl may be unavailable outside macOS sessions
	_ = exec.Command("launchctl", "load", m.paths.AutostartPath).Run()
	return nil
}

// Uninstall unloads and removes the plist.
func (m *AutostartManager) Uninstall() error {
	_ = exec.Command("launchctl", "unload", m.paths.AutostartPath).Run()

	err := os.Remove(m.paths.AutostartPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// NeedsUpdate checks if the plist exists but points at a different executable.
func (m *AutostartManager) NeedsUpdate(execPath string) bool {
	existing, err := os.ReadFile(m.paths.AutostartPath)
	if err != nil {
		return false
	}
	want, err := m.render(execPath)
	if err != nil {
		return false
	}
	return !bytes.Equal(existing, want)
}

// PlistPath returns the plist location (for status output).
func (m *AutostartManager) PlistPath() string {
	return m.paths.AutostartPath
}

func (m *AutostartManager) render(execPath string) ([]byte, error) {
	tmpl, err := template.New("plist").Parse(autostartTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	cfg := autostartPlist{
		Label:          AutostartLabel,
		ExecutablePath: execPath,
		LogPath:        m.paths.LogPath,
		ErrorLogPath:   m.paths.ErrorLogPath,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to render plist: %w", err)
	}
	return buf.Bytes(), nil
}
