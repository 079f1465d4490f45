// Package launcher orchestrates startup: capability registration, window
// resolution, session token provisioning and companion supervision.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/regia-app/launcher/internal/capability"
	"github.com/regia-app/launcher/internal/config"
	"github.com/regia-app/launcher/internal/domain"
	"github.com/regia-app/launcher/internal/infra"
	"github.com/regia-app/launcher/internal/supervisor"
)

// Deps are the collaborators the launcher wires together. Everything here is
// an interface or a config value so tests can substitute fakes.
type Deps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Windows   domain.WindowProvider
	Notifier  domain.Notifier
	Store     domain.SecretStore
	LaunchReg domain.LaunchRegistry
	PM        domain.ProcessManager
	FS        domain.FileSystemManager
	Spawner   domain.Spawner
	Verifier  domain.IntegrityVerifier
	Version   string
}

// Launcher owns the application lifecycle from process start to window close.
type Launcher struct {
	deps     Deps
	logger   *zap.Logger
	registry *capability.Registry
	proc     *capability.Process
	sup      *supervisor.Supervisor
	window   domain.Window
	watcher  *infra.ExecutableWatcher
	launchID string
	started  time.Time
}

// New creates a launcher. Call Startup before Window/Shutdown.
func New(deps Deps) *Launcher {
	return &Launcher{
		deps:     deps,
		logger:   deps.Logger,
		registry: capability.NewRegistry(),
		launchID: uuid.NewString(),
	}
}

// LaunchID identifies this run in the launch registry and history.
func (l *Launcher) LaunchID() string { return l.launchID }

// Window returns the resolved main window. Valid after Startup.
func (l *Launcher) Window() domain.Window { return l.window }

// Supervisor returns the companion supervisor, or nil when supervision is
// disabled (variant 1).
func (l *Launcher) Supervisor() *supervisor.Supervisor { return l.sup }

// Registry returns the frozen capability registry. Valid after Startup.
func (l *Launcher) Registry() *capability.Registry { return l.registry }

// Startup performs the full boot sequence. A returned error means the
// process should exit; a degraded-but-usable state (companion failed to
// spawn) returns nil with the failure observable through the supervisor.
func (l *Launcher) Startup(ctx context.Context) error {
	l.started = time.Now()

	if err := l.registerCapabilities(); err != nil {
		return err
	}
	if err := l.registry.InitAll(ctx, l.logger); err != nil {
		return err
	}

	token, err := l.ensureSessionToken()
	if err != nil {
		return err
	}

	window, err := l.deps.Windows.MainWindow()
	if err != nil {
		return fmt.Errorf("failed to resolve main window: %w", err)
	}
	l.window = window

	if err := window.SetTitle(domain.ProductTitle); err != nil {
		// Cosmetic only; the launch continues with the default title.
		l.logger.Warn("failed to set window title", zap.Error(err))
	}

	if !l.deps.Config.SupervisionEnabled() {
		l.logger.Info("no backend configured, running as plain shell")
		return nil
	}

	return l.startCompanion(ctx, token)
}

// registerCapabilities builds descriptors for the enabled set, in config
// order, and registers them. The registry is frozen by InitAll afterwards.
func (l *Launcher) registerCapabilities() error {
	cfg := l.deps.Config

	for _, id := range cfg.EnabledCapabilities() {
		var d capability.Descriptor
		switch id {
		case domain.CapabilityShell:
			d = capability.NewShell(&capability.RealCommandRunner{},
				cfg.Capabilities.Shell.AllowedCommands, cfg.IsRequired(id))
		case domain.CapabilityHTTP:
			d = capability.NewHTTP(cfg.Capabilities.HTTP.Timeout.Std(),
				cfg.Capabilities.HTTP.AllowedHosts, cfg.IsRequired(id))
		case domain.CapabilityProcess:
			l.proc = capability.NewProcess(l.deps.PM, l.deps.Spawner, cfg.IsRequired(id))
			d = l.proc
		case domain.CapabilityOS:
			d = capability.NewOSInfo(cfg.IsRequired(id))
		case domain.CapabilityNotification:
			d = capability.NewNotification(l.deps.Notifier, cfg.IsRequired(id))
		default:
			return fmt.Errorf("unknown capability %q", id)
		}
		if err := l.registry.Register(d); err != nil {
			return fmt.Errorf("failed to register capability %q: %w", id, err)
		}
	}
	return nil
}

// ensureSessionToken returns the persisted session token, minting one on
// first launch. The companion reads it from REGIA_SESSION_TOKEN and rejects
// requests that do not carry it.
func (l *Launcher) ensureSessionToken() (string, error) {
	token, err := l.deps.Store.GetSecret(infra.SessionTokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	if token != "" {
		return token, nil
	}

	token = uuid.NewString()
	if err := l.deps.Store.SetSecret(infra.SessionTokenKey, token); err != nil {
		return "", fmt.Errorf("failed to persist session token: %w", err)
	}
	l.logger.Info("minted new session token")
	return token, nil
}

// startCompanion sweeps orphans, verifies the executable, spawns the backend
// and launches the supervision loop. Spawn failure is degraded mode, not a
// startup error.
func (l *Launcher) startCompanion(ctx context.Context, token string) error {
	cfg := l.deps.Config
	command := l.deps.FS.ExpandHome(cfg.Backend.Command)
	workDir := l.deps.FS.ExpandHome(cfg.Backend.WorkDir)
	companionName := filepath.Base(command)

	sweeper := supervisor.NewOrphanSweeper(l.deps.PM, l.deps.LaunchReg, l.logger)
	if err := sweeper.Sweep(companionName); err != nil {
		l.logger.Warn("orphan sweep failed", zap.Error(err))
	}

	env := map[string]string{
		"REGIA_SESSION_TOKEN": token,
	}

	l.sup = supervisor.New(
		supervisor.Config{
			Command:           command,
			Args:              cfg.Backend.Args,
			WorkDir:           workDir,
			Env:               env,
			Port:              cfg.Backend.Port,
			ReadinessTimeout:  cfg.Backend.ReadinessTimeout.Std(),
			ShutdownTimeout:   cfg.Backend.ShutdownTimeout.Std(),
			LivenessInterval:  cfg.Backend.LivenessInterval.Std(),
			HeartbeatInterval: cfg.Backend.HeartbeatInterval.Std(),
		},
		l.deps.Spawner,
		l.deps.LaunchReg,
		supervisor.NewHealthProber(cfg.Backend.Port, cfg.Backend.HealthPath, l.logger),
		l.launchID,
		l.logger.Named("supervisor"),
		supervisor.WithSpawnHooks(l.proc.Protect, l.proc.Unprotect),
		supervisor.WithVersion(l.deps.Version),
		supervisor.WithLivenessCheck(l.deps.PM),
	)

	changes := l.sup.Subscribe()
	go l.observeCompanion(changes)

	if err := l.verifyExecutable(ctx, command); err != nil {
		l.sup.Fail(err.Error())
		l.logger.Error("refusing to spawn backend", zap.Error(err))
		return nil
	}

	if err := l.sup.Start(ctx); err != nil {
		if errors.Is(err, domain.ErrCompanionSpawn) {
			l.logger.Error("backend failed to spawn, continuing degraded", zap.Error(err))
			return nil
		}
		return err
	}

	go func() {
		if err := l.sup.Run(ctx); err != nil {
			l.logger.Error("supervision loop exited with error", zap.Error(err))
		}
	}()

	if cfg.Backend.WatchExecutable {
		l.watcher = infra.NewExecutableWatcher(command, func() {
			l.logger.Warn("backend executable changed on disk",
				zap.String("path", command))
			l.notify("Regia", "The backend executable changed on disk. Restart to pick it up.")
		}, l.logger)
		if err := l.watcher.Start(ctx); err != nil {
			l.logger.Warn("failed to watch backend executable", zap.Error(err))
		}
	}

	return nil
}

// verifyExecutable checks the pinned digest when one is configured.
func (l *Launcher) verifyExecutable(ctx context.Context, command string) error {
	cfg := l.deps.Config
	if cfg.Backend.Checksum == "" {
		return nil
	}

	err := l.deps.Verifier.Verify(ctx, command, cfg.Backend.Checksum)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrIntegrityMismatch) && cfg.Backend.AllowUnverified {
		l.logger.Warn("backend checksum mismatch, allowed by config", zap.Error(err))
		return nil
	}
	return err
}

// observeCompanion surfaces state changes to the user and records finished
// launches in history.
func (l *Launcher) observeCompanion(changes <-chan domain.StateChange) {
	for change := range changes {
		switch change.To {
		case domain.StateFailed:
			l.notify("Regia backend unavailable", change.Info.FailureReason)
			l.recordHistory(change)
		case domain.StateStopped:
			l.recordHistory(change)
		}
	}
}

func (l *Launcher) recordHistory(change domain.StateChange) {
	entry := domain.LaunchHistoryEntry{
		LaunchID:   l.launchID,
		StartedAt:  l.started,
		EndedAt:    change.At,
		FinalState: change.To,
		ExitCode:   change.Info.ExitCode,
	}
	if err := l.deps.Store.AppendLaunchHistory(entry); err != nil {
		l.logger.Warn("failed to record launch history", zap.Error(err))
	}
}

func (l *Launcher) notify(title, body string) {
	if l.deps.Notifier == nil {
		return
	}
	if err := l.deps.Notifier.Notify(title, body); err != nil {
		l.logger.Warn("failed to deliver notification", zap.Error(err))
	}
}

// Shutdown stops the companion (graceful then forced) and closes the
// capability set. Safe to call when supervision never started.
func (l *Launcher) Shutdown(ctx context.Context) {
	if l.sup != nil && !supervisor.IsTerminal(l.sup.State()) {
		if err := l.sup.Stop(ctx); err != nil {
			l.logger.Warn("companion shutdown escalated", zap.Error(err))
		}
	}
	l.registry.CloseAll(l.logger)
	l.logger.Info("launcher shut down",
		zap.Duration("uptime", time.Since(l.started)))
}
