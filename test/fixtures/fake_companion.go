// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
)

// cooperativeScript exits promptly on SIGTERM, like a well-behaved backend.
const cooperativeScript = `#!/bin/sh
trap 'exit 0' TERM
while true; do sleep 0.1; done
`

// stubbornScript ignores SIGTERM so only SIGKILL stops it.
const stubbornScript = `#!/bin/sh
trap '' TERM
while true; do sleep 0.1; done
`

// crashingScript exits on its own with a non-zero code.
const crashingScript = `#!/bin/sh
sleep 0.2
exit 7
`

// FakeCompanion writes executable scripts that stand in for the backend
// process in lifecycle tests.
type FakeCompanion struct {
	Dir string
}

// NewFakeCompanion creates a generator rooted at dir.
func NewFakeCompanion(dir string) *FakeCompanion {
	return &FakeCompanion{Dir: dir}
}

// Cooperative writes a backend that honors SIGTERM.
func (f *FakeCompanion) Cooperative() (string, error) {
	return f.write("backend-cooperative", cooperativeScript)
}

// Stubborn writes a backend that ignores SIGTERM.
func (f *FakeCompanion) Stubborn() (string, error) {
	return f.write("backend-stubborn", stubbornScript)
}

// Crashing writes a backend that exits with code 7 shortly after start.
func (f *FakeCompanion) Crashing() (string, error) {
	return f.write("backend-crashing", crashingScript)
}

func (f *FakeCompanion) write(name, content string) (string, error) {
	path := filepath.Join(f.Dir, name)
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		return "", fmt.Errorf("failed to write fake companion %s: %w", name, err)
	}
	return path, nil
}
