// Package main is the CLI entry point for the Regia launcher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/regia-app/launcher/internal/config"
	"github.com/regia-app/launcher/internal/domain"
	"github.com/regia-app/launcher/internal/infra"
	"github.com/regia-app/launcher/internal/launcher"
	"github.com/regia-app/launcher/internal/supervisor"
	"github.com/regia-app/launcher/internal/ui"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "regia",
	Short: "Regia - document intelligence desktop launcher",
	Long: `regia is the desktop shell for Regia. It opens the application window,
grants the UI its capability set and, when a backend is configured,
spawns and supervises the companion process for the life of the window.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the application window and supervise the backend",
	Long: `Opens the main window and registers the configured capability set.
When backend.command is set, the companion process is spawned alongside
the window and terminated (SIGTERM, then SIGKILL) when the window closes.`,
	RunE: runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show launcher and backend state",
	Long:  `Shows whether a launch is active, the backend PID, and recent launch history.`,
	RunE:  runStatus,
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List the capability set the UI would be granted",
	Long:  `Resolves the configuration and prints each capability with its required flag.`,
	RunE:  runCapabilities,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a newer backend release",
	Long: `Queries the configured GitHub repository for the latest backend release.
With --stage, downloads and verifies it into the staging directory; the
staged backend takes effect on the next launch.`,
	RunE: runUpdate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath     string
	headless       bool
	stageUpdate    bool
	backendVersion string
	jsonOutput     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: <data dir>/config.toml)")
	runCmd.Flags().BoolVar(&headless, "headless", false, "Run without a display (lifecycle only)")
	updateCmd.Flags().BoolVar(&stageUpdate, "stage", false, "Download and stage the latest backend")
	updateCmd.Flags().StringVar(&backendVersion, "current", "", "Current backend version to compare against")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves paths, ensures the data directory and loads config.
func loadConfig() (*config.Config, *infra.Paths, error) {
	paths := infra.DetectPaths()
	if err := os.MkdirAll(paths.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := configPath
	if path == "" {
		path = paths.ConfigPath
	}

	cfg, err := config.Load(path, paths.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, paths, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(cfg, paths)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting regia launcher",
		zap.String("version", Version),
		zap.String("mode", string(paths.Mode)),
		zap.Bool("supervision", cfg.SupervisionEnabled()))

	// Encrypted store: session token and launch history.
	keyProvider := infra.NewFileKeyProvider(cfg.DataDir)
	key, err := infra.EnsureKey(keyProvider)
	if err != nil {
		return fmt.Errorf("failed to obtain store key: %w", err)
	}
	store, err := infra.NewEncryptedStore(cfg.DataDir, key)
	if err != nil {
		return fmt.Errorf("failed to open encrypted store: %w", err)
	}
	defer store.Close()

	var (
		windows  domain.WindowProvider
		notifier domain.Notifier
	)
	if headless {
		windows = ui.NewHeadlessProvider(cfg.MainWindow() != nil)
		notifier = ui.NewLogNotifier(logger)
	} else {
		provider := ui.NewFyneProvider(cfg.Windows)
		windows = provider
		notifier = ui.NewFyneNotifier(provider.App())
	}

	l := launcher.New(launcher.Deps{
		Config:    cfg,
		Logger:    logger,
		Windows:   windows,
		Notifier:  notifier,
		Store:     store,
		LaunchReg: infra.NewFileLaunchRegistry(cfg.DataDir),
		PM:        infra.NewProcessManager(),
		FS:        infra.NewFileSystemManager(),
		Spawner:   infra.NewOSSpawner(logger),
		Verifier:  infra.NewIntegrityVerifier(),
		Version:   Version,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := l.Startup(ctx); err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}

	window := l.Window()

	// Signals close the window; the window close path owns shutdown.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, closing window", zap.String("signal", sig.String()))
			window.Close()
		case <-window.Closed():
		}
	}()

	// Reflect companion state in the window body.
	if sup := l.Supervisor(); sup != nil {
		if fw, ok := window.(*ui.FyneWindow); ok {
			go reflectState(fw, sup)
		}
	}

	installAutostart(cfg, paths, logger)

	window.Run()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		cfg.Backend.ShutdownTimeout.Std()+5*time.Second)
	defer cancelShutdown()
	l.Shutdown(shutdownCtx)

	return nil
}

// reflectState mirrors supervisor transitions into the window status line.
func reflectState(w *ui.FyneWindow, sup *supervisor.Supervisor) {
	w.SetStatus(statusText(sup.Info()))
	for change := range sup.Subscribe() {
		w.SetStatus(statusText(change.Info))
	}
}

func statusText(info domain.CompanionInfo) string {
	switch info.State {
	case domain.StateStarting:
		return "Backend starting..."
	case domain.StateRunning:
		return fmt.Sprintf("Backend running (pid %d, port %d)", info.PID, info.ReadyPort)
	case domain.StateShuttingDown:
		return "Backend shutting down..."
	case domain.StateStopped:
		return "Backend stopped"
	case domain.StateFailed:
		return fmt.Sprintf("Backend unavailable: %s", info.FailureReason)
	default:
		return "No backend configured"
	}
}

// installAutostart keeps the launch-at-login plist in sync with the config.
func installAutostart(cfg *config.Config, paths *infra.Paths, logger *zap.Logger) {
	mgr := infra.NewAutostartManager(paths)

	if !cfg.Autostart {
		if mgr.IsInstalled() {
			if err := mgr.Uninstall(); err != nil {
				logger.Warn("failed to remove autostart entry", zap.Error(err))
			}
		}
		return
	}

	execPath, err := os.Executable()
	if err != nil {
		logger.Warn("failed to resolve executable path", zap.Error(err))
		return
	}
	if mgr.IsInstalled() && !mgr.NeedsUpdate(execPath) {
		return
	}
	if err := mgr.Install(execPath); err != nil {
		logger.Warn("failed to install autostart entry", zap.Error(err))
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileLaunchRegistry(cfg.DataDir)

	fmt.Println("\n=== Regia Status ===")
	fmt.Printf("Mode: %s\n", paths.Mode)
	fmt.Printf("Data dir: %s\n", cfg.DataDir)

	record, err := registry.Get()
	if err != nil {
		return fmt.Errorf("failed to read launch record: %w", err)
	}

	if record == nil {
		fmt.Println("Status: NOT RUNNING")
	} else {
		launcherAlive := pm.IsRunning(record.LauncherPID)
		companionAlive := record.CompanionPID != 0 && pm.IsRunning(record.CompanionPID)

		switch {
		case launcherAlive && companionAlive:
			fmt.Println("Status: RUNNING")
			fmt.Printf("Launcher PID: %d\n", record.LauncherPID)
			fmt.Printf("Backend PID: %d (%s)\n", record.CompanionPID, record.CompanionName)
		case launcherAlive:
			fmt.Println("Status: RUNNING (no backend)")
			fmt.Printf("Launcher PID: %d\n", record.LauncherPID)
		default:
			fmt.Println("Status: STALE RECORD (launcher is gone)")
			fmt.Println("The next launch will clean this up.")
		}

		if record.LastHeartbeat > 0 {
			lastBeat := time.Unix(record.LastHeartbeat, 0)
			fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
		}
	}

	// Recent launches from the encrypted store.
	keyProvider := infra.NewFileKeyProvider(cfg.DataDir)
	if keyProvider.KeyExists() {
		key, err := infra.EnsureKey(keyProvider)
		if err == nil {
			if store, err := infra.NewEncryptedStore(cfg.DataDir, key); err == nil {
				defer store.Close()
				if entries, err := store.RecentLaunches(5); err == nil && len(entries) > 0 {
					fmt.Println("\nRecent launches:")
					for _, e := range entries {
						fmt.Printf("  %s  %-13s exit=%d  (%s)\n",
							e.EndedAt.Format("2006-01-02 15:04"),
							e.FinalState, e.ExitCode,
							e.EndedAt.Sub(e.StartedAt).Round(time.Second))
					}
				}
			}
		}
	}

	fmt.Println("====================")
	return nil
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("\n=== Capability Set ===")
	if cfg.SupervisionEnabled() {
		fmt.Printf("Variant: companion-backed (%s)\n", filepath.Base(cfg.Backend.Command))
	} else {
		fmt.Println("Variant: plain shell (no backend)")
	}
	fmt.Println()

	for _, id := range cfg.EnabledCapabilities() {
		marker := "optional"
		if cfg.IsRequired(id) {
			marker = "required"
		}
		fmt.Printf("  [%s] %s\n", marker, id)
	}
	fmt.Println("======================")
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	downloader := infra.NewGitHubDownloader(cfg.Update.GithubOwner, cfg.Update.GithubRepo)
	checker := infra.NewUpdateChecker(downloader, backendVersion, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	info, err := checker.Check(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Current: %s\n", displayVersion(info.CurrentVersion))
	fmt.Printf("Latest:  %s\n", info.LatestVersion)

	if !info.Available {
		fmt.Println("Backend is up to date.")
		return nil
	}

	if !stageUpdate {
		fmt.Println("Update available. Run with --stage to download it.")
		return nil
	}

	backendName := "regia-backend"
	if cfg.Backend.Command != "" {
		backendName = filepath.Base(cfg.Backend.Command)
	}

	staged, err := checker.Stage(ctx, cfg.DataDir, backendName)
	if err != nil {
		return err
	}
	fmt.Printf("Staged %s to %s\n", info.LatestVersion, staged)
	fmt.Println("The staged backend takes effect on the next launch.")
	return nil
}

func displayVersion(v string) string {
	if v == "" {
		return "(unknown)"
	}
	return v
}

func createLogger(cfg *config.Config, paths *infra.Paths) *zap.Logger {
	zapCfg := zap.NewProductionConfig()

	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = paths.LogPath
	}
	zapCfg.OutputPaths = []string{logPath}
	zapCfg.ErrorOutputPaths = []string{paths.ErrorLogPath}
	zapCfg.EncoderConfig.TimeKey = "time"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("regia %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
