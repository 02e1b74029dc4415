//go:build linux

package notify

import (
	"github.com/godbus/dbus/v5"
)

const (
	notificationsName  = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod       = notificationsName + ".Notify"
	closeMethod        = notificationsName + ".CloseNotification"
	capabilitiesMethod = notificationsName + ".GetCapabilities"
)

// busNotifier talks to the session notification daemon.
type busNotifier struct {
	obj dbus.BusObject
	// body is false when the daemon only renders summaries.
	body bool
}

// New connects to the session notification daemon. Without a session bus
// it returns Discard.
func New() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return Discard(), nil //nolint:nilerr // no session bus means no notifications
	}

	n := &busNotifier{obj: conn.Object(notificationsName, notificationsPath), body: true}
	var caps []string
	if err := n.obj.Call(capabilitiesMethod, 0).Store(&caps); err == nil {
		n.body = hasCapability(caps, "body")
	}
	return n, nil
}

func hasCapability(caps []string, want string) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}

// hints builds the freedesktop hint map for n.
func hints(n Notification) map[string]dbus.Variant {
	h := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(n.Urgency)),
		"desktop-entry": dbus.MakeVariant(appName),
	}
	if n.Category != "" {
		h["category"] = dbus.MakeVariant(n.Category)
	}
	if n.Transient {
		h["transient"] = dbus.MakeVariant(true)
	}
	return h
}

func (b *busNotifier) Notify(n Notification) (uint32, error) {
	summary, body := n.Title, n.Body
	if !b.body && body != "" {
		summary += ": " + body
		body = ""
	}

	var id uint32
	err := b.obj.Call(notifyMethod, 0,
		appName, n.ReplacesID, n.Icon, summary, body,
		[]string{}, hints(n), n.Timeout,
	).Store(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (b *busNotifier) Close(id uint32) error {
	return b.obj.Call(closeMethod, 0, id).Err
}
