// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// ProductTitle is the window title set by the launcher after setup.
const ProductTitle = "Regia - Document Intelligence"

// CapabilityID identifies one of the host-granted capabilities the UI layer
// may invoke. The set is a closed enumeration; anything else is rejected at
// config validation time.
type CapabilityID string

const (
	CapabilityShell        CapabilityID = "shell"
	CapabilityHTTP         CapabilityID = "http"
	CapabilityProcess      CapabilityID = "process"
	CapabilityOS           CapabilityID = "os"
	CapabilityNotification CapabilityID = "notification"
)

// KnownCapabilities lists every capability the launcher can grant, in the
// canonical registration order.
var KnownCapabilities = []CapabilityID{
	CapabilityShell,
	CapabilityHTTP,
	CapabilityProcess,
	CapabilityOS,
	CapabilityNotification,
}

// IsKnownCapability reports whether id names a capability the launcher knows.
func IsKnownCapability(id CapabilityID) bool {
	for _, known := range KnownCapabilities {
		if id == known {
			return true
		}
	}
	return false
}

// CompanionState is the lifecycle state of the backend companion process.
type CompanionState string

const (
	StateNotStarted   CompanionState = "not_started"
	StateStarting     CompanionState = "starting"
	StateRunning      CompanionState = "running"
	StateShuttingDown CompanionState = "shutting_down"
	StateStopped      CompanionState = "stopped"
	StateFailed       CompanionState = "failed"
)

// CompanionInfo is a snapshot of the supervised backend process.
type CompanionInfo struct {
	LaunchID      string
	PID           int
	State         CompanionState
	ExitCode      int    // valid once state is Stopped or Failed after an exit
	FailureReason string // set when state is Failed
	ReadyPort     int    // local port the backend becomes reachable on
	StartedAt     time.Time
}

// StateChange records a single companion state transition. Delivered to
// subscribers so the UI layer can reflect backend availability.
type StateChange struct {
	From CompanionState
	To   CompanionState
	Info CompanionInfo
	At   time.Time
}

// LaunchRecord stores the current launch for cross-run orphan detection.
// Persisted to a file so a crashed launcher's backend can be reaped on the
// next start.
type LaunchRecord struct {
	Version       int    `json:"version"`
	LaunchID      string `json:"launch_id"`
	LauncherPID   int    `json:"launcher_pid"`
	CompanionPID  int    `json:"companion_pid"`
	CompanionName string `json:"companion_name"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	AppVersion    string `json:"app_version,omitempty"`
}

// LaunchHistoryEntry is one row of the persisted launch history, kept in the
// encrypted store for the status command.
type LaunchHistoryEntry struct {
	LaunchID   string
	StartedAt  time.Time
	EndedAt    time.Time
	FinalState CompanionState
	ExitCode   int
}

// HostInfo is the surface the "os" capability exposes to the UI layer.
type HostInfo struct {
	Hostname      string
	Platform      string
	OS            string
	Arch          string
	Uptime        uint64
	TotalMemoryMB uint64
	UsedMemoryMB  uint64
}
