package capability

import (
	"context"
	"fmt"
	"sync"

	"github.com/regia-app/launcher/internal/domain"
)

// Process grants the UI layer process control: spawn, liveness, kill. The
// companion process is exempt from this surface - it is owned exclusively by
// the supervisor, and the supervisor marks its PID protected here.
type Process struct {
	pm       domain.ProcessManager
	spawner  domain.Spawner
	required bool

	mu        sync.RWMutex
	protected map[int]bool
}

// NewProcess creates the process capability.
func NewProcess(pm domain.ProcessManager, spawner domain.Spawner, required bool) *Process {
	return &Process{
		pm:        pm,
		spawner:   spawner,
		required:  required,
		protected: make(map[int]bool),
	}
}

func (p *Process) ID() domain.CapabilityID { return domain.CapabilityProcess }
func (p *Process) Name() string            { return "Process control" }
func (p *Process) Required() bool          { return p.required }

func (p *Process) Init(ctx context.Context) error {
	if p.pm == nil || p.spawner == nil {
		return fmt.Errorf("process manager or spawner not configured")
	}
	return nil
}

func (p *Process) Close() error { return nil }

// Spawner exposes the spawner for the supervisor wiring. The supervisor is
// the sole owner of the companion handle it gets back.
func (p *Process) Spawner() domain.Spawner {
	return p.spawner
}

// Protect marks a PID as off-limits to the UI-facing kill surface.
func (p *Process) Protect(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.protected[pid] = true
}

// Unprotect removes the protection, once the supervisor has reaped the PID.
func (p *Process) Unprotect(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.protected, pid)
}

// Spawn starts a process on behalf of the UI layer.
func (p *Process) Spawn(ctx context.Context, spec domain.CommandSpec) (domain.ProcessHandle, error) {
	return p.spawner.Spawn(ctx, spec)
}

// IsRunning checks liveness of a PID.
func (p *Process) IsRunning(pid int) bool {
	return p.pm.IsRunning(pid)
}

// Kill terminates a UI-owned process. Refuses the supervised companion.
func (p *Process) Kill(pid int) error {
	p.mu.RLock()
	isProtected := p.protected[pid]
	p.mu.RUnlock()

	if isProtected {
		return fmt.Errorf("pid %d is the supervised backend and cannot be killed through the process capability", pid)
	}
	return p.pm.Kill(pid)
}

// Ensure Process implements Descriptor.
var _ Descriptor = (*Process)(nil)
