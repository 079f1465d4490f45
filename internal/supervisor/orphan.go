package supervisor

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/regia-app/launcher/internal/domain"
)

// OrphanSweeper kills companion processes left behind by a previous launcher
// that died without running its shutdown path.
type OrphanSweeper struct {
	pm       domain.ProcessManager
	registry domain.LaunchRegistry
	logger   *zap.Logger
}

// NewOrphanSweeper creates a sweeper over the persisted launch record.
func NewOrphanSweeper(pm domain.ProcessManager, registry domain.LaunchRegistry, logger *zap.Logger) *OrphanSweeper {
	return &OrphanSweeper{pm: pm, registry: registry, logger: logger}
}

// Sweep reads the launch record and reaps any orphaned companion. A record
// whose launcher PID is still this process, or whose companion PID no longer
// matches the expected executable name, is only cleared.
func (o *OrphanSweeper) Sweep(companionName string) error {
	record, err := o.registry.Get()
	if err != nil {
		return fmt.Errorf("failed to read launch record: %w", err)
	}
	if record == nil {
		return nil
	}

	if record.LauncherPID == os.Getpid() {
		// Our own record, nothing stale to reap.
		return nil
	}

	o.logger.Info("found stale launch record",
		zap.String("launch_id", record.LaunchID),
		zap.Int("launcher_pid", record.LauncherPID),
		zap.Int("companion_pid", record.CompanionPID))

	if o.pm.IsRunning(record.CompanionPID) && o.matchesName(record.CompanionPID, companionName) {
		o.logger.Warn("killing orphaned companion",
			zap.Int("pid", record.CompanionPID),
			zap.String("name", companionName))
		if err := o.pm.Kill(record.CompanionPID); err != nil {
			return fmt.Errorf("failed to kill orphaned companion %d: %w", record.CompanionPID, err)
		}
	}

	if err := o.registry.Clear(); err != nil {
		return fmt.Errorf("failed to clear stale launch record: %w", err)
	}
	return nil
}

// matchesName guards against PID reuse: the recorded PID must still belong
// to a process with the companion's executable name.
func (o *OrphanSweeper) matchesName(pid int, name string) bool {
	pids, err := o.pm.FindByName(name)
	if err != nil {
		o.logger.Warn("failed to look up processes by name", zap.Error(err))
		return false
	}
	for _, p := range pids {
		if p == pid {
			return true
		}
	}
	return false
}
