package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner is a test double for CommandRunner.
type recordingRunner struct {
	lastName string
	lastArgs []string
	out      []byte
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) error {
	r.lastName = name
	r.lastArgs = args
	return nil
}

func (r *recordingRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.lastName = name
	r.lastArgs = args
	return r.out, nil
}

// TestShell_EmptyAllowlistPermitsAll verifies variant 1 semantics.
func TestShell_EmptyAllowlistPermitsAll(t *testing.T) {
	runner := &recordingRunner{out: []byte("ok")}
	s := NewShell(runner, nil, false)

	out, err := s.Exec(context.Background(), "/bin/echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
	assert.Equal(t, "/bin/echo", runner.lastName)
	assert.Equal(t, []string{"hello"}, runner.lastArgs)
}

// TestShell_AllowlistMatchesBasename verifies the allowlist compares command
// basenames, not full paths.
func TestShell_AllowlistMatchesBasename(t *testing.T) {
	runner := &recordingRunner{}
	s := NewShell(runner, []string{"echo"}, false)

	_, err := s.Exec(context.Background(), "/usr/bin/echo")
	assert.NoError(t, err)

	_, err = s.Exec(context.Background(), "/usr/bin/rm", "-rf", "/")
	assert.Error(t, err)
	assert.Empty(t, runner.lastArgs, "blocked command must not reach the runner")
}

// TestShell_InitWithoutRunner verifies Init rejects a nil runner.
func TestShell_InitWithoutRunner(t *testing.T) {
	s := NewShell(nil, nil, true)
	assert.Error(t, s.Init(context.Background()))
}
