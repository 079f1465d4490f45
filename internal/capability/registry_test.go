package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regia-app/launcher/internal/domain"
)

// fakeCapability is a test double for Descriptor.
type fakeCapability struct {
	id       domain.CapabilityID
	required bool
	initErr  error
	inited   bool
	closed   int
	closeSeq *[]domain.CapabilityID
}

func (f *fakeCapability) ID() domain.CapabilityID { return f.id }
func (f *fakeCapability) Name() string            { return string(f.id) }
func (f *fakeCapability) Required() bool          { return f.required }

func (f *fakeCapability) Init(ctx context.Context) error {
	f.inited = true
	return f.initErr
}

func (f *fakeCapability) Close() error {
	f.closed++
	if f.closeSeq != nil {
		*f.closeSeq = append(*f.closeSeq, f.id)
	}
	return nil
}

// TestRegistry_RegisterPreservesOrder verifies registration order is kept.
func TestRegistry_RegisterPreservesOrder(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&fakeCapability{id: domain.CapabilityHTTP}))
	require.NoError(t, r.Register(&fakeCapability{id: domain.CapabilityShell}))
	require.NoError(t, r.Register(&fakeCapability{id: domain.CapabilityOS}))

	assert.Equal(t, []domain.CapabilityID{
		domain.CapabilityHTTP,
		domain.CapabilityShell,
		domain.CapabilityOS,
	}, r.IDs())
}

// TestRegistry_RejectsUnknownID verifies IDs outside the closed set fail.
func TestRegistry_RejectsUnknownID(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&fakeCapability{id: "telepathy"})
	assert.Error(t, err)
}

// TestRegistry_RejectsDuplicate verifies double registration fails.
func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeCapability{id: domain.CapabilityShell}))

	err := r.Register(&fakeCapability{id: domain.CapabilityShell})
	assert.Error(t, err)
}

// TestRegistry_FrozenRejectsRegistration verifies the set is write-once.
func TestRegistry_FrozenRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeCapability{id: domain.CapabilityShell}))
	r.Freeze()

	err := r.Register(&fakeCapability{id: domain.CapabilityHTTP})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRegistryFrozen))

	// Lookups still work after freezing.
	d, err := r.Get(domain.CapabilityShell)
	require.NoError(t, err)
	assert.Equal(t, domain.CapabilityShell, d.ID())
}

// TestRegistry_GetUnregistered verifies unregistered capabilities are
// unreachable and identified by the sentinel error.
func TestRegistry_GetUnregistered(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeCapability{id: domain.CapabilityShell}))

	_, err := r.Get(domain.CapabilityHTTP)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapabilityNotRegistered))
	assert.False(t, r.Has(domain.CapabilityHTTP))
}

// TestRegistry_InitAll_RequiredFailureIsFatal verifies a required capability
// failing to initialize aborts startup.
func TestRegistry_InitAll_RequiredFailureIsFatal(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeCapability{
		id:       domain.CapabilityProcess,
		required: true,
		initErr:  errors.New("boom"),
	}))

	err := r.InitAll(context.Background(), zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapabilityInit))
}

// TestRegistry_InitAll_OptionalFailureContinues verifies optional failures
// degrade instead of aborting, and that InitAll freezes the set.
func TestRegistry_InitAll_OptionalFailureContinues(t *testing.T) {
	r := NewRegistry()
	broken := &fakeCapability{id: domain.CapabilityNotification, initErr: errors.New("no display")}
	healthy := &fakeCapability{id: domain.CapabilityShell}
	require.NoError(t, r.Register(broken))
	require.NoError(t, r.Register(healthy))

	require.NoError(t, r.InitAll(context.Background(), zap.NewNop()))

	assert.True(t, broken.inited)
	assert.True(t, healthy.inited)

	err := r.Register(&fakeCapability{id: domain.CapabilityHTTP})
	assert.True(t, errors.Is(err, domain.ErrRegistryFrozen))
}

// TestRegistry_CloseAll_ReverseOrder verifies teardown runs in reverse
// registration order.
func TestRegistry_CloseAll_ReverseOrder(t *testing.T) {
	r := NewRegistry()
	var seq []domain.CapabilityID
	first := &fakeCapability{id: domain.CapabilityShell, closeSeq: &seq}
	second := &fakeCapability{id: domain.CapabilityHTTP, closeSeq: &seq}
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	r.CloseAll(zap.NewNop())

	assert.Equal(t, []domain.CapabilityID{domain.CapabilityHTTP, domain.CapabilityShell}, seq)
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, second.closed)
}
