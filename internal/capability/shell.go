package capability

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/regia-app/launcher/internal/domain"
)

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands.
type RealCommandRunner struct{}

// Run executes a command and waits for it to complete.
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Output executes a command and returns its stdout.
func (r *RealCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Shell grants the UI layer command execution, optionally restricted to an
// allowlist of command basenames. An empty allowlist permits any command.
type Shell struct {
	runner   CommandRunner
	allowed  map[string]bool
	required bool
}

// NewShell creates the shell capability.
func NewShell(runner CommandRunner, allowedCommands []string, required bool) *Shell {
	allowed := make(map[string]bool, len(allowedCommands))
	for _, name := range allowedCommands {
		allowed[name] = true
	}
	return &Shell{runner: runner, allowed: allowed, required: required}
}

func (s *Shell) ID() domain.CapabilityID { return domain.CapabilityShell }
func (s *Shell) Name() string            { return "Shell execution" }
func (s *Shell) Required() bool          { return s.required }

// Init validates the runner is usable.
func (s *Shell) Init(ctx context.Context) error {
	if s.runner == nil {
		return fmt.Errorf("no command runner configured")
	}
	return nil
}

func (s *Shell) Close() error { return nil }

// Exec runs a command on behalf of the UI layer.
func (s *Shell) Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	if len(s.allowed) > 0 && !s.allowed[filepath.Base(name)] {
		return nil, fmt.Errorf("command %q is not in the shell allowlist", name)
	}
	return s.runner.Output(ctx, name, args...)
}

// Ensure Shell implements Descriptor.
var _ Descriptor = (*Shell)(nil)
