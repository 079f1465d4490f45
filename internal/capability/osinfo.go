package capability

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/regia-app/launcher/internal/domain"
)

// OSInfo grants the UI layer read-only host queries.
type OSInfo struct {
	required bool
}

// NewOSInfo creates the os capability.
func NewOSInfo(required bool) *OSInfo {
	return &OSInfo{required: required}
}

func (o *OSInfo) ID() domain.CapabilityID { return domain.CapabilityOS }
func (o *OSInfo) Name() string            { return "OS info queries" }
func (o *OSInfo) Required() bool          { return o.required }

// Init probes the host once so a broken platform surfaces at startup instead
// of on first UI use.
func (o *OSInfo) Init(ctx context.Context) error {
	if _, err := host.InfoWithContext(ctx); err != nil {
		return fmt.Errorf("host info unavailable: %w", err)
	}
	return nil
}

func (o *OSInfo) Close() error { return nil }

// Info returns the host snapshot exposed to the UI layer.
func (o *OSInfo) Info(ctx context.Context) (*domain.HostInfo, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}

	info := &domain.HostInfo{
		Hostname: hi.Hostname,
		Platform: hi.Platform,
		OS:       hi.OS,
		Arch:     runtime.GOARCH,
		Uptime:   hi.Uptime,
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemoryMB = vm.Total / (1024 * 1024)
		info.UsedMemoryMB = vm.Used / (1024 * 1024)
	}

	return info, nil
}

// Ensure OSInfo implements Descriptor.
var _ Descriptor = (*OSInfo)(nil)
