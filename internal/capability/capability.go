// Package capability implements the host-granted capability set the UI layer
// is permitted to invoke. The set is a closed enumeration resolved at startup;
// each descriptor is validated before use and the registry freezes before the
// window is shown.
package capability

import (
	"context"

	"github.com/regia-app/launcher/internal/domain"
)

// Descriptor is the strategy interface for one capability. Implementations
// wrap an external collaborator (process spawner, HTTP client, notifier) and
// expose a fixed operation surface to the UI layer.
type Descriptor interface {
	// ID returns the capability identifier ("shell", "http", ...).
	ID() domain.CapabilityID

	// Name returns a human-readable name for display.
	Name() string

	// Required reports whether an init failure aborts startup. Optional
	// capabilities degrade-and-warn instead.
	Required() bool

	// Init validates the capability's collaborators before the window shows.
	Init(ctx context.Context) error

	// Close releases any resources on shutdown.
	Close() error
}
