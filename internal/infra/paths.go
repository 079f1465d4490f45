// Package infra implements infrastructure concerns (process, filesystem, registry).
package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the launcher.
type ExecMode string

const (
	// ExecModeUser stores state under the user's home directory.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem stores state under system paths (root installs).
	ExecModeSystem ExecMode = "system"
)

// AutostartLabel is the launchd label used for launch-at-login.
const AutostartLabel = "com.regia.launcher"

// Paths holds filesystem locations derived from the execution mode.
type Paths struct {
	Mode          ExecMode
	DataDir       string // config, registry, encrypted store, staging
	ConfigPath    string
	LogPath       string
	ErrorLogPath  string
	AutostartDir  string
	AutostartPath string
	IsRoot        bool
}

// DetectPaths determines filesystem locations based on effective UID.
func DetectPaths() *Paths {
	if os.Geteuid() == 0 {
		dataDir := "/var/lib/regia"
		return &Paths{
			Mode:          ExecModeSystem,
			DataDir:       dataDir,
			ConfigPath:    filepath.Join(dataDir, "config.toml"),
			LogPath:       filepath.Join(dataDir, "regia.log"),
			ErrorLogPath:  filepath.Join(dataDir, "regia.error.log"),
			AutostartDir:  "/Library/LaunchDaemons",
			AutostartPath: "/Library/LaunchDaemons/" + AutostartLabel + ".plist",
			IsRoot:        true,
		}
	}

	home := RealUserHome()
	dataDir := filepath.Join(home, ".regia")
	return &Paths{
		Mode:          ExecModeUser,
		DataDir:       dataDir,
		ConfigPath:    filepath.Join(dataDir, "config.toml"),
		LogPath:       filepath.Join(dataDir, "regia.log"),
		ErrorLogPath:  filepath.Join(dataDir, "regia.error.log"),
		AutostartDir:  filepath.Join(home, "Library", "LaunchAgents"),
		AutostartPath: filepath.Join(home, "Library", "LaunchAgents", AutostartLabel+".plist"),
		IsRoot:        false,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user"
	default:
		return "unknown"
	}
}

// RealUserHome returns the real user's home directory, even when running
// under sudo. Under sudo, os.UserHomeDir() returns root's home, so SUDO_USER
// is used to find the invoking user.
func RealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
