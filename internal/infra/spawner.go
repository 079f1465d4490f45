package infra

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/regia-app/launcher/internal/domain"
)

// OSSpawner implements domain.Spawner using os/exec. Child stdout/stderr are
// streamed into the launcher log.
type OSSpawner struct {
	logger *zap.Logger
}

// NewOSSpawner creates a spawner that logs child output through logger.
func NewOSSpawner(logger *zap.Logger) domain.Spawner {
	return &OSSpawner{logger: logger}
}

// Spawn starts the process described by spec. The returned handle's Done
// channel closes when the process exits.
func (s *OSSpawner) Spawn(ctx context.Context, spec domain.CommandSpec) (domain.ProcessHandle, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)

	// Context cancellation must not bypass the graceful termination ladder;
	// the default Cancel sends SIGKILL.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}

	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}

	if len(spec.Env) > 0 {
		env := os.Environ()
		for key, value := range spec.Env {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}
		cmd.Env = env
	}

	childLog := s.logger.Named("companion")
	cmd.Stdout = &zapio.Writer{Log: childLog, Level: zap.InfoLevel}
	cmd.Stderr = &zapio.Writer{Log: childLog, Level: zap.WarnLevel}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Command, err)
	}

	h := &osHandle{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go h.wait()

	return h, nil
}

type osHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu   sync.Mutex
	exit domain.ExitStatus
}

func (h *osHandle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	if h.cmd.ProcessState != nil {
		h.exit.Code = h.cmd.ProcessState.ExitCode()
	} else {
		h.exit.Code = -1
	}
	if err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			h.exit.Err = err
		}
	}
	h.mu.Unlock()

	close(h.done)
}

func (h *osHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *osHandle) Terminate() error {
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

func (h *osHandle) Kill() error {
	return h.cmd.Process.Kill()
}

func (h *osHandle) Done() <-chan struct{} {
	return h.done
}

func (h *osHandle) Exit() domain.ExitStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exit
}

// Ensure OSSpawner implements domain.Spawner.
var _ domain.Spawner = (*OSSpawner)(nil)
