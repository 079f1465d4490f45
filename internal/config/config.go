// Package config loads launcher configuration from a TOML file with an
// environment variable overlay (prefix REGIA_).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/regia-app/launcher/internal/domain"
)

// envPrefix is the prefix for environment overrides, e.g. REGIA_BACKEND_COMMAND.
// Field keys come from envconfig's struct nesting; an unprefixed variable
// (BACKEND_COMMAND) is never honored.
const envPrefix = "regia"

// Duration wraps time.Duration so it parses from TOML strings ("30s") and
// from environment variables alike.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// WindowDecl statically declares a window. The launcher only ever resolves
// the one named "main"; a config without it is a fatal startup error.
type WindowDecl struct {
	Name   string  `toml:"name"`
	Title  string  `toml:"title"`
	Width  float32 `toml:"width"`
	Height float32 `toml:"height"`
}

// Capabilities configures the capability registration set. The enabled set is
// write-once at startup; each entry widens the UI's privilege surface and must
// be deliberately chosen.
type Capabilities struct {
	Enabled  []string `toml:"enabled"`
	Required []string `toml:"required"`

	Shell ShellCapabilityConfig `toml:"shell"`
	HTTP  HTTPCapabilityConfig  `toml:"http"`
}

// ShellCapabilityConfig restricts what the shell capability may execute.
// An empty allowlist permits any command (variant 1 default).
type ShellCapabilityConfig struct {
	AllowedCommands []string `toml:"allowed_commands" split_words:"true"`
}

// HTTPCapabilityConfig restricts the http capability's reachable hosts.
type HTTPCapabilityConfig struct {
	AllowedHosts []string `toml:"allowed_hosts" split_words:"true"`
	Timeout      Duration `toml:"timeout"`
}

// Backend configures the companion process. An empty Command disables
// supervision entirely (variant 1: plain shell, no companion).
type Backend struct {
	Command           string   `toml:"command"`
	Args              []string `toml:"args"`
	WorkDir           string   `toml:"work_dir" split_words:"true"`
	Port              int      `toml:"port"`
	HealthPath        string   `toml:"health_path" split_words:"true"`
	ReadinessTimeout  Duration `toml:"readiness_timeout" split_words:"true"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout" split_words:"true"`
	LivenessInterval  Duration `toml:"liveness_interval" split_words:"true"`
	HeartbeatInterval Duration `toml:"heartbeat_interval" split_words:"true"`

	// Checksum pins the executable's SHA-256 (hex). Empty disables the check.
	Checksum        string `toml:"checksum"`
	AllowUnverified bool   `toml:"allow_unverified" split_words:"true"`
	WatchExecutable bool   `toml:"watch_executable" split_words:"true"`
}

// Update configures the backend release update check.
type Update struct {
	GithubOwner string `toml:"github_owner" split_words:"true"`
	GithubRepo  string `toml:"github_repo" split_words:"true"`
}

// Log configures zap output.
type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// Config is the root launcher configuration.
type Config struct {
	DataDir      string       `toml:"data_dir" split_words:"true"`
	Autostart    bool         `toml:"autostart"`
	Windows      []WindowDecl `toml:"windows"`
	Capabilities Capabilities `toml:"capabilities"`
	Backend      Backend      `toml:"backend"`
	Update       Update       `toml:"update"`
	Log          Log          `toml:"log"`
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		DataDir: dataDir,
		Windows: []WindowDecl{
			{Name: "main", Title: domain.ProductTitle, Width: 1200, Height: 800},
		},
		Capabilities: Capabilities{
			Required: []string{string(domain.CapabilityProcess)},
			HTTP:     HTTPCapabilityConfig{Timeout: Duration(30 * time.Second)},
		},
		Backend: Backend{
			Port:              8742,
			HealthPath:        "/health",
			ReadinessTimeout:  Duration(30 * time.Second),
			ShutdownTimeout:   Duration(10 * time.Second),
			LivenessInterval:  Duration(2 * time.Second),
			HeartbeatInterval: Duration(30 * time.Second),
			WatchExecutable:   true,
		},
		Update: Update{
			GithubOwner: "regia-app",
			GithubRepo:  "regia-backend",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the TOML file at path (missing file is fine: defaults apply),
// applies REGIA_* environment overrides, fills variant-dependent defaults and
// validates the result.
func Load(path, dataDir string) (*Config, error) {
	cfg := Default(dataDir)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.applyVariantDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyVariantDefaults fills the capability set when the config did not pick
// one. Variant 1 (no companion) grants the full set; variant 2 drops "os",
// which nothing in the companion-backed UI uses, and keeps "notification" so
// backend failures stay user-visible.
func (c *Config) applyVariantDefaults() {
	if len(c.Capabilities.Enabled) > 0 {
		return
	}
	if c.Backend.Command == "" {
		for _, id := range domain.KnownCapabilities {
			c.Capabilities.Enabled = append(c.Capabilities.Enabled, string(id))
		}
		return
	}
	c.Capabilities.Enabled = []string{
		string(domain.CapabilityShell),
		string(domain.CapabilityHTTP),
		string(domain.CapabilityProcess),
		string(domain.CapabilityNotification),
	}
}

// Validate rejects configurations the launcher cannot honor.
func (c *Config) Validate() error {
	enabled := make(map[string]bool, len(c.Capabilities.Enabled))
	for _, name := range c.Capabilities.Enabled {
		if !domain.IsKnownCapability(domain.CapabilityID(name)) {
			return fmt.Errorf("unknown capability %q in enabled set", name)
		}
		if enabled[name] {
			return fmt.Errorf("capability %q enabled twice", name)
		}
		enabled[name] = true
	}

	for _, name := range c.Capabilities.Required {
		if !domain.IsKnownCapability(domain.CapabilityID(name)) {
			return fmt.Errorf("unknown capability %q in required set", name)
		}
		if !enabled[name] {
			return fmt.Errorf("required capability %q is not in the enabled set", name)
		}
	}

	if c.Backend.Command != "" {
		if !enabled[string(domain.CapabilityProcess)] {
			return fmt.Errorf("backend supervision needs the %q capability enabled", domain.CapabilityProcess)
		}
		if c.Backend.Port <= 0 || c.Backend.Port > 65535 {
			return fmt.Errorf("invalid backend port %d", c.Backend.Port)
		}
		if c.Backend.ShutdownTimeout <= 0 {
			return fmt.Errorf("backend shutdown_timeout must be positive")
		}
		if c.Backend.ReadinessTimeout <= 0 {
			return fmt.Errorf("backend readiness_timeout must be positive")
		}
	}

	if len(c.Windows) == 0 {
		return fmt.Errorf("no windows declared")
	}
	return nil
}

// EnabledCapabilities returns the enabled set as typed IDs, in config order.
func (c *Config) EnabledCapabilities() []domain.CapabilityID {
	ids := make([]domain.CapabilityID, 0, len(c.Capabilities.Enabled))
	for _, name := range c.Capabilities.Enabled {
		ids = append(ids, domain.CapabilityID(name))
	}
	return ids
}

// IsRequired reports whether a capability's init failure is fatal.
func (c *Config) IsRequired(id domain.CapabilityID) bool {
	for _, name := range c.Capabilities.Required {
		if name == string(id) {
			return true
		}
	}
	return false
}

// SupervisionEnabled reports whether a companion process is configured
// (variant 2).
func (c *Config) SupervisionEnabled() bool {
	return c.Backend.Command != ""
}

// MainWindow returns the declaration named "main", or nil.
func (c *Config) MainWindow() *WindowDecl {
	for i := range c.Windows {
		if c.Windows[i].Name == "main" {
			return &c.Windows[i]
		}
	}
	return nil
}
