package capability

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/regia-app/launcher/internal/domain"
)

// Registry holds the capability registration set. Registration order is
// preserved; the set is write-once: after Freeze, lookups work but
// registration fails. Nothing outside the set is reachable from the UI layer.
type Registry struct {
	mu      sync.RWMutex
	ordered []Descriptor
	byID    map[domain.CapabilityID]Descriptor
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[domain.CapabilityID]Descriptor),
	}
}

// Register adds a descriptor. Fails after Freeze, on duplicates, and on IDs
// outside the closed enumeration.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("cannot register %q: %w", d.ID(), domain.ErrRegistryFrozen)
	}
	if !domain.IsKnownCapability(d.ID()) {
		return fmt.Errorf("unknown capability %q", d.ID())
	}
	if _, exists := r.byID[d.ID()]; exists {
		return fmt.Errorf("capability %q registered twice", d.ID())
	}

	r.byID[d.ID()] = d
	r.ordered = append(r.ordered, d)
	return nil
}

// Freeze makes the set immutable. Called once startup registration is done.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get returns a registered descriptor or ErrCapabilityNotRegistered.
func (r *Registry) Get(id domain.CapabilityID) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, domain.ErrCapabilityNotRegistered)
	}
	return d, nil
}

// Has reports whether a capability is in the registration set.
func (r *Registry) Has(id domain.CapabilityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// IDs returns the registered capability IDs in registration order.
func (r *Registry) IDs() []domain.CapabilityID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]domain.CapabilityID, 0, len(r.ordered))
	for _, d := range r.ordered {
		ids = append(ids, d.ID())
	}
	return ids
}

// All returns the registered descriptors in registration order.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// InitAll initializes every descriptor in registration order, then freezes
// the set. A required capability's failure is fatal; optional ones are logged
// and the shell continues degraded.
func (r *Registry) InitAll(ctx context.Context, logger *zap.Logger) error {
	for _, d := range r.All() {
		if err := d.Init(ctx); err != nil {
			if d.Required() {
				return fmt.Errorf("%w: %s: %v", domain.ErrCapabilityInit, d.ID(), err)
			}
			logger.Warn("optional capability unavailable, continuing degraded",
				zap.String("capability", string(d.ID())),
				zap.Error(err))
			continue
		}
		logger.Info("capability registered", zap.String("capability", string(d.ID())))
	}

	r.Freeze()
	return nil
}

// CloseAll releases every descriptor's resources in reverse order.
func (r *Registry) CloseAll(logger *zap.Logger) {
	all := r.All()
	for i := len(all) - 1; i >= 0; i-- {
		if err := all[i].Close(); err != nil {
			logger.Warn("capability close failed",
				zap.String("capability", string(all[i].ID())),
				zap.Error(err))
		}
	}
}
