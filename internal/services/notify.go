package services

import (
	"log/slog"

	"github.com/chatrelay/relay/backend/internal/models"
)

// Unicaster delivers a payload to a single connection.
type Unicaster interface {
	Unicast(connID string, payload any)
}

// Notifier sends mention alerts to the connected clients named in a message.
// Mentioned users who are not connected are skipped; there is no outbox.
type Notifier struct {
	registry    *Registry
	out         Unicaster
	defaultIcon string
}

// NewNotifier creates a Notifier. defaultIcon is used for push alerts when
// the sender has no avatar.
func NewNotifier(registry *Registry, out Unicaster, defaultIcon string) *Notifier {
	return &Notifier{registry: registry, out: out, defaultIcon: defaultIcon}
}

// Notify alerts every joined connection whose username is in mentioned.
// Each connection gets one notification however often it was mentioned,
// plus a push payload if it enabled notifications. It returns the number of
// connections notified.
func (n *Notifier) Notify(mentioned []string, msg models.Message) int {
	if len(mentioned) == 0 {
		return 0
	}
	targets := make(map[string]struct{}, len(mentioned))
	for _, name := range mentioned {
		targets[name] = struct{}{}
	}

	var push *models.PushNotificationPayload
	notified := 0
	for _, c := range n.registry.Joined() {
		if _, ok := targets[c.Username]; !ok {
			continue
		}
		n.out.Unicast(c.ConnID, models.NewNotification(msg))
		if c.NotificationsEnabled {
			if push == nil {
				p := models.NewPushNotification(msg, n.iconFor(msg.Username))
				push = &p
			}
			n.out.Unicast(c.ConnID, *push)
		}
		notified++
	}
	if notified > 0 {
		slog.Debug("mention notifications sent", "messageId", msg.ID, "from", msg.Username, "clients", notified)
	}
	return notified
}

// iconFor picks the sender's avatar if a connection with that name has one.
func (n *Notifier) iconFor(sender string) string {
	for _, c := range n.registry.Joined() {
		if c.Username == sender && c.Avatar != "" {
			return c.Avatar
		}
	}
	return n.defaultIcon
}
