// Package supervisor owns the companion backend process: spawn, liveness,
// readiness, and guaranteed termination when the application window closes.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/regia-app/launcher/internal/domain"
)

// Config holds companion process configuration.
type Config struct {
	Command           string
	Args              []string
	WorkDir           string
	Env               map[string]string
	Port              int
	ReadinessTimeout  time.Duration
	ShutdownTimeout   time.Duration
	LivenessInterval  time.Duration
	HeartbeatInterval time.Duration
}

// ReadinessProber blocks until the backend is reachable or ctx ends.
type ReadinessProber interface {
	WaitReady(ctx context.Context) error
}

// Supervisor drives the companion through its lifecycle:
// NotStarted -> Starting -> Running -> ShuttingDown -> Stopped, with Failed
// reachable from Starting and Running. It is the sole owner of the process
// handle; no other component may terminate or restart the companion.
type Supervisor struct {
	cfg      Config
	spawner  domain.Spawner
	registry domain.LaunchRegistry
	prober   ReadinessProber
	logger   *zap.Logger
	launchID string
	version  string

	// onSpawn/onReap let the process capability shield the companion PID
	// from the UI-facing kill surface.
	onSpawn func(pid int)
	onReap  func(pid int)

	// pm backs the liveness tick. Nil disables the tick; the wait on the
	// process handle still detects exits.
	pm domain.ProcessManager

	mu     sync.RWMutex
	state  domain.CompanionState
	info   domain.CompanionInfo
	handle domain.ProcessHandle
	subs   []chan domain.StateChange
}

// Option configures optional supervisor hooks.
type Option func(*Supervisor)

// WithSpawnHooks installs PID protection callbacks.
func WithSpawnHooks(onSpawn, onReap func(pid int)) Option {
	return func(s *Supervisor) {
		s.onSpawn = onSpawn
		s.onReap = onReap
	}
}

// WithVersion records the launcher version in the launch record.
func WithVersion(version string) Option {
	return func(s *Supervisor) { s.version = version }
}

// WithLivenessCheck enables the periodic PID liveness tick. It catches the
// rare case where the process is gone but the wait has not surfaced it, such
// as an external SIGKILL racing a descriptor leak.
func WithLivenessCheck(pm domain.ProcessManager) Option {
	return func(s *Supervisor) { s.pm = pm }
}

// New creates a supervisor in the NotStarted state.
func New(
	cfg Config,
	spawner domain.Spawner,
	registry domain.LaunchRegistry,
	prober ReadinessProber,
	launchID string,
	logger *zap.Logger,
	opts ...Option,
) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		spawner:  spawner,
		registry: registry,
		prober:   prober,
		launchID: launchID,
		logger:   logger,
		state:    domain.StateNotStarted,
		info: domain.CompanionInfo{
			LaunchID:  launchID,
			State:     domain.StateNotStarted,
			ExitCode:  -1,
			ReadyPort: cfg.Port,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current companion state.
func (s *Supervisor) State() domain.CompanionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info returns a snapshot of the companion.
func (s *Supervisor) Info() domain.CompanionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Subscribe returns a channel of state transitions. Slow subscribers drop
// events rather than block the supervisor. The channel is closed once the
// machine reaches a terminal state, so range loops over it terminate.
func (s *Supervisor) Subscribe() <-chan domain.StateChange {
	ch := make(chan domain.StateChange, 16)
	s.mu.Lock()
	if IsTerminal(s.state) {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// validTransitions is the companion state machine.
var validTransitions = map[domain.CompanionState][]domain.CompanionState{
	domain.StateNotStarted:   {domain.StateStarting, domain.StateFailed},
	domain.StateStarting:     {domain.StateRunning, domain.StateShuttingDown, domain.StateFailed},
	domain.StateRunning:      {domain.StateShuttingDown, domain.StateFailed},
	domain.StateShuttingDown: {domain.StateStopped},
}

// transition moves the state machine, ignoring moves the machine forbids.
func (s *Supervisor) transition(to domain.CompanionState, reason string) bool {
	s.mu.Lock()

	allowed := false
	for _, next := range validTransitions[s.state] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		from := s.state
		s.mu.Unlock()
		s.logger.Debug("ignoring invalid companion transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return false
	}

	from := s.state
	s.state = to
	s.info.State = to
	if to == domain.StateFailed {
		s.info.FailureReason = reason
	}

	change := domain.StateChange{
		From: from,
		To:   to,
		Info: s.info,
		At:   time.Now(),
	}
	subs := make([]chan domain.StateChange, len(s.subs))
	copy(subs, s.subs)
	if IsTerminal(to) {
		// Terminal states have no outgoing transitions; detach subscribers
		// so the final event is also the last one.
		s.subs = nil
	}
	s.mu.Unlock()

	s.logger.Info("companion state changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
		zap.Int("pid", change.Info.PID))

	for _, ch := range subs {
		select {
		case ch <- change:
		default:
			// Subscriber is not draining; dropping beats blocking shutdown
		}
		if IsTerminal(to) {
			close(ch)
		}
	}
	return true
}

// Start spawns the companion. Spawn failure moves the machine to Failed and
// returns ErrCompanionSpawn; the shell stays up in degraded mode.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.transition(domain.StateStarting, "spawn requested") {
		return fmt.Errorf("companion already started")
	}

	env := make(map[string]string, len(s.cfg.Env)+1)
	for k, v := range s.cfg.Env {
		env[k] = v
	}
	env["REGIA_PORT"] = fmt.Sprintf("%d", s.cfg.Port)

	handle, err := s.spawner.Spawn(ctx, domain.CommandSpec{
		Command: s.cfg.Command,
		Args:    s.cfg.Args,
		Dir:     s.cfg.WorkDir,
		Env:     env,
	})
	if err != nil {
		s.transition(domain.StateFailed, fmt.Sprintf("spawn: %v", err))
		return fmt.Errorf("%w: %v", domain.ErrCompanionSpawn, err)
	}

	s.mu.Lock()
	s.handle = handle
	s.info.PID = handle.PID()
	s.info.StartedAt = time.Now()
	s.mu.Unlock()

	if s.onSpawn != nil {
		s.onSpawn(handle.PID())
	}

	record := domain.LaunchRecord{
		LaunchID:      s.launchID,
		LauncherPID:   s.processPID(),
		CompanionPID:  handle.PID(),
		CompanionName: filepath.Base(s.cfg.Command),
		StartedAt:     time.Now().Unix(),
		AppVersion:    s.version,
	}
	if err := s.registry.Register(record); err != nil {
		s.logger.Warn("failed to register launch record", zap.Error(err))
	}

	s.logger.Info("companion spawned",
		zap.String("command", s.cfg.Command),
		zap.Int("pid", handle.PID()),
		zap.Int("port", s.cfg.Port))

	return nil
}

// Run supervises until ctx is canceled or the companion is gone.
// This blocks; call it in its own goroutine after Start.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.RLock()
	handle := s.handle
	s.mu.RUnlock()

	if handle == nil {
		return fmt.Errorf("companion was not started")
	}

	readyCh := make(chan error, 1)
	probeCtx, cancelProbe := context.WithTimeout(ctx, s.cfg.ReadinessTimeout)
	defer cancelProbe()
	go func() {
		readyCh <- s.prober.WaitReady(probeCtx)
	}()

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	var livenessC <-chan time.Time
	if s.pm != nil && s.cfg.LivenessInterval > 0 {
		liveness := time.NewTicker(s.cfg.LivenessInterval)
		defer liveness.Stop()
		livenessC = liveness.C
	}

	for {
		select {
		case <-ctx.Done():
			return s.Stop(context.Background())

		case err := <-readyCh:
			readyCh = nil // one-shot
			if err != nil {
				if s.State() == domain.StateStarting {
					s.transition(domain.StateFailed, fmt.Sprintf("backend not ready within %s: %v", s.cfg.ReadinessTimeout, err))
					// An unready backend is still a live process; reap it.
					if killErr := handle.Kill(); killErr != nil {
						s.logger.Warn("failed to kill unready backend", zap.Error(killErr))
					}
					<-handle.Done()
					s.reap()
					return nil
				}
				continue
			}
			s.transition(domain.StateRunning, "health endpoint reachable")

		case <-handle.Done():
			exit := handle.Exit()
			s.mu.Lock()
			s.info.ExitCode = exit.Code
			s.mu.Unlock()

			if s.State() == domain.StateShuttingDown {
				s.transition(domain.StateStopped, "terminated on shutdown")
			} else {
				reason := fmt.Sprintf("exited unexpectedly with code %d", exit.Code)
				if exit.Err != nil {
					reason = fmt.Sprintf("wait failed: %v", exit.Err)
				}
				s.transition(domain.StateFailed, reason)
			}
			s.reap()
			return nil

		case <-livenessC:
			if s.State() != domain.StateRunning {
				continue
			}
			if pid := handle.PID(); !s.pm.IsRunning(pid) {
				s.transition(domain.StateFailed,
					fmt.Sprintf("pid %d no longer running", pid))
				s.reap()
				return nil
			}

		case <-heartbeat.C:
			if err := s.registry.UpdateHeartbeat(s.launchID); err != nil {
				s.logger.Warn("failed to update heartbeat", zap.Error(err))
			}
		}
	}
}

// Stop terminates the companion: SIGTERM, bounded wait, then SIGKILL. It
// always leaves the machine in Stopped (or already-terminal Failed).
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.RLock()
	handle := s.handle
	state := s.state
	s.mu.RUnlock()

	if handle == nil || state == domain.StateStopped || state == domain.StateFailed {
		return nil
	}

	s.transition(domain.StateShuttingDown, "window closed")

	if err := handle.Terminate(); err != nil {
		s.logger.Warn("failed to send SIGTERM", zap.Error(err))
	}

	var escalated error
	select {
	case <-handle.Done():
		s.logger.Info("companion exited gracefully")

	case <-time.After(s.cfg.ShutdownTimeout):
		s.logger.Warn("forcing companion termination",
			zap.Duration("timeout", s.cfg.ShutdownTimeout))
		escalated = domain.ErrShutdownTimeout
		if err := handle.Kill(); err != nil {
			s.logger.Error("failed to kill companion", zap.Error(err))
		}
		<-handle.Done()

	case <-ctx.Done():
		if err := handle.Kill(); err != nil {
			s.logger.Error("failed to kill companion", zap.Error(err))
		}
		<-handle.Done()
	}

	exit := handle.Exit()
	s.mu.Lock()
	s.info.ExitCode = exit.Code
	s.mu.Unlock()

	s.transition(domain.StateStopped, "shutdown complete")
	s.reap()
	return escalated
}

// reap clears the launch record and releases PID protection.
func (s *Supervisor) reap() {
	if err := s.registry.Clear(); err != nil {
		s.logger.Warn("failed to clear launch record", zap.Error(err))
	}
	if s.onReap != nil {
		s.mu.RLock()
		pid := s.info.PID
		s.mu.RUnlock()
		if pid != 0 {
			s.onReap(pid)
		}
	}
}

func (s *Supervisor) processPID() int {
	// The launcher's own PID; recorded so a stale record is recognizable.
	return os.Getpid()
}

// Fail moves the machine to Failed from outside the run loop. Used when
// preconditions (executable integrity) refuse the spawn.
func (s *Supervisor) Fail(reason string) {
	if s.State() == domain.StateNotStarted {
		s.transition(domain.StateFailed, reason)
	}
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(state domain.CompanionState) bool {
	return state == domain.StateStopped || state == domain.StateFailed
}
