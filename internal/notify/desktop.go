package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsNotify = notificationsName + ".Notify"
)

// caller is the part of dbus.BusObject the notifier needs.
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DesktopNotifier posts deployment results to the desktop notification
// service on the session bus. Successive notifications replace each other.
type DesktopNotifier struct {
	appName string
	timeout time.Duration
	logger  *slog.Logger

	conn *dbus.Conn
	obj  caller

	mu     sync.Mutex
	lastID uint32
}

// NewDesktopNotifier connects to the session bus. A negative timeout lets
// the server pick the expiry.
func NewDesktopNotifier(appName string, timeout time.Duration) (*DesktopNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	n := newDesktopNotifier(appName, timeout, conn.Object(notificationsName, notificationsPath))
	n.conn = conn
	return n, nil
}

func newDesktopNotifier(appName string, timeout time.Duration, obj caller) *DesktopNotifier {
	return &DesktopNotifier{
		appName: appName,
		timeout: timeout,
		logger:  slog.Default().With("component", "notify"),
		obj:     obj,
	}
}

// SetLogger replaces the notifier's logger.
func (n *DesktopNotifier) SetLogger(logger *slog.Logger) {
	if logger != nil {
		n.logger = logger
	}
}

// Notify shows a notification and returns its server id.
func (n *DesktopNotifier) Notify(summary, body string) (uint32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	expire := int32(-1)
	if n.timeout >= 0 {
		expire = int32(n.timeout / time.Millisecond)
	}

	call := n.obj.Call(notificationsNotify, 0,
		n.appName,
		n.lastID,
		"",
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		expire,
	)
	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	n.lastID = id
	return id, nil
}

// Message returns the notification text for ev. Only deployment events
// produce one.
func Message(ev Event) (summary, body string, ok bool) {
	switch ev.Kind {
	case DeployStart:
		return "Deploying", "Rebuilding input schemas", true
	case DeploySuccess:
		return "Deployment finished", "Input schemas are ready", true
	case DeployFailure:
		return "Deployment failed", "Check the log for details", true
	}
	return "", "", false
}

// Handle posts ev when it has a message. Failures are logged.
func (n *DesktopNotifier) Handle(ev Event) {
	summary, body, ok := Message(ev)
	if !ok {
		return
	}
	if _, err := n.Notify(summary, body); err != nil {
		n.logger.Warn("desktop notification failed", "kind", ev.Kind.String(), "error", err)
	}
}

// Attach routes the bridge's deployment events to the desktop.
func (n *DesktopNotifier) Attach(b *Bridge) {
	for _, k := range []Kind{DeployStart, DeploySuccess, DeployFailure} {
		b.Handle(k, n.Handle)
	}
}

// Close releases the bus connection.
func (n *DesktopNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
