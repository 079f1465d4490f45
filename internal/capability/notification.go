package capability

import (
	"context"
	"fmt"

	"github.com/regia-app/launcher/internal/domain"
)

// Notification grants the UI layer desktop notifications, delivered through
// the window toolkit's notifier.
type Notification struct {
	notifier domain.Notifier
	required bool
}

// NewNotification creates the notification capability.
func NewNotification(notifier domain.Notifier, required bool) *Notification {
	return &Notification{notifier: notifier, required: required}
}

func (n *Notification) ID() domain.CapabilityID { return domain.CapabilityNotification }
func (n *Notification) Name() string            { return "Desktop notifications" }
func (n *Notification) Required() bool          { return n.required }

func (n *Notification) Init(ctx context.Context) error {
	if n.notifier == nil {
		return fmt.Errorf("no notifier configured")
	}
	return nil
}

func (n *Notification) Close() error { return nil }

// Notify delivers a notification on behalf of the UI layer.
func (n *Notification) Notify(title, body string) error {
	return n.notifier.Notify(title, body)
}

// Ensure Notification implements Descriptor.
var _ Descriptor = (*Notification)(nil)
