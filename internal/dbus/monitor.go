package dbus

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundpin/internal/catalog"
	"github.com/jmylchreest/soundpin/internal/model"
)

const (
	notificationsInterface = "org.freedesktop.Notifications"
	notifyMember           = "Notify"
)

// PlayHandler is called with the play request derived from an observed
// notification.
type PlayHandler func(req model.PlayRequest)

// Monitor passively observes D-Bus notification traffic without claiming ownership.
// This allows running alongside a notification daemon (like dunst) and
// playing the sounds it names.
type Monitor struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	catalog *catalog.Catalog

	onPlay PlayHandler
}

// NewMonitor creates a new notification monitor. Sound hints are looked up
// in cat.
func NewMonitor(cat *catalog.Catalog, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:  logger,
		catalog: cat,
	}
}

// SetPlayHandler sets the callback for notifications that carry a sound.
func (m *Monitor) SetPlayHandler(handler PlayHandler) {
	m.onPlay = handler
}

// Start begins monitoring D-Bus for notification traffic.
// It uses a private connection, since a monitoring connection can no
// longer be used for anything else.
func (m *Monitor) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m.conn = conn

	rules := []string{
		"type='method_call',interface='" + notificationsInterface + "',member='" + notifyMember + "'",
	}

	// BecomeMonitor has no return value - just check for error
	err = conn.BusObject().Call(
		"org.freedesktop.DBus.Monitoring.BecomeMonitor",
		0,
		rules,
		uint32(0),
	).Err

	if err != nil {
		// BecomeMonitor might not be available (older D-Bus versions)
		// Fall back to eavesdropping via match rules
		m.logger.Warn("BecomeMonitor not available, trying AddMatch", "error", err)
		return m.startWithAddMatch()
	}

	m.logger.Info("started D-Bus monitor using BecomeMonitor")

	go m.processMessages()

	return nil
}

// startWithAddMatch uses the older AddMatch API for eavesdropping.
func (m *Monitor) startWithAddMatch() error {
	matchRule := "type='method_call',interface='" + notificationsInterface + "',member='" + notifyMember + "',eavesdrop='true'"

	err := m.conn.BusObject().Call(
		"org.freedesktop.DBus.AddMatch",
		0,
		matchRule,
	).Err

	if err != nil {
		return fmt.Errorf("failed to add match rule (eavesdrop may require permissions): %w", err)
	}

	m.logger.Info("started D-Bus monitor using AddMatch with eavesdrop")

	go m.processMessages()

	return nil
}

// processMessages reads and processes D-Bus messages.
func (m *Monitor) processMessages() {
	ch := make(chan *dbus.Message, 100)
	m.conn.Eavesdrop(ch)

	for msg := range ch {
		if msg.Type != dbus.TypeMethodCall {
			continue
		}
		if msg.Headers[dbus.FieldInterface].Value() != notificationsInterface {
			continue
		}
		if msg.Headers[dbus.FieldMember].Value() != notifyMember {
			continue
		}

		n, err := parseNotify(msg.Body)
		if err != nil {
			m.logger.Warn("malformed Notify call", "error", err)
			continue
		}
		m.handleNotification(n)
	}
}

// parseNotify decodes the body of a Notify call:
// Notify(app_name, replaces_id, app_icon, summary, body, actions, hints, expire_timeout)
func parseNotify(body []any) (*DBusNotification, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("expected 8 arguments, got %d", len(body))
	}

	n := &DBusNotification{}

	var ok bool
	if n.AppName, ok = body[0].(string); !ok {
		return nil, fmt.Errorf("invalid app_name type %T", body[0])
	}
	if n.ReplacesID, ok = body[1].(uint32); !ok {
		return nil, fmt.Errorf("invalid replaces_id type %T", body[1])
	}
	if n.AppIcon, ok = body[2].(string); !ok {
		return nil, fmt.Errorf("invalid app_icon type %T", body[2])
	}
	if n.Summary, ok = body[3].(string); !ok {
		return nil, fmt.Errorf("invalid summary type %T", body[3])
	}
	if n.Body, ok = body[4].(string); !ok {
		return nil, fmt.Errorf("invalid body type %T", body[4])
	}
	if actions, ok := body[5].([]string); ok {
		n.Actions = actions
	}
	if hints, ok := body[6].(map[string]dbus.Variant); ok {
		n.Hints = hints
	}
	if timeout, ok := body[7].(int32); ok {
		n.ExpireTimeout = timeout
	}

	return n, nil
}

// handleNotification turns a notification's sound hints into a play request.
func (m *Monitor) handleNotification(n *DBusNotification) {
	req, ok := m.playRequest(n)
	if !ok {
		return
	}

	m.logger.Debug("captured notification sound",
		"app", n.AppName,
		"summary", n.Summary,
		"sound", req.Sound,
		"pin", string(req.Pin))

	if m.onPlay != nil {
		m.onPlay(req)
	}
}

// playRequest derives a play request from the notification's hints.
// sound-file wins over sound-name. A sound-file must lie inside the sounds
// directory; a sound-name is looked up with or without an extension.
func (m *Monitor) playRequest(n *DBusNotification) (model.PlayRequest, bool) {
	if n.SuppressSound() {
		m.logger.Debug("notification suppresses sound", "app", n.AppName)
		return model.PlayRequest{}, false
	}

	sound := ""
	if file := n.SoundFile(); file != "" {
		id, ok := m.fileID(file)
		if !ok {
			m.logger.Debug("sound-file outside sounds directory", "app", n.AppName, "sound_file", file)
			return model.PlayRequest{}, false
		}
		sound = id
	} else if name := n.SoundName(); name != "" {
		id, ok := m.catalog.Find(name)
		if !ok {
			m.logger.Debug("no sound for sound-name", "app", n.AppName, "sound_name", name)
			return model.PlayRequest{}, false
		}
		sound = id
	}

	if sound == "" {
		return model.PlayRequest{}, false
	}

	return model.PlayRequest{
		Sound: sound,
		Delay: n.Delay(),
		Pin:   n.Pin(),
	}, true
}

// fileID maps a sound-file hint (a path or file:// URI) to a catalog identifier.
func (m *Monitor) fileID(file string) (string, bool) {
	file = strings.TrimPrefix(file, "file://")
	if !filepath.IsAbs(file) {
		return filepath.ToSlash(file), true
	}

	rel, err := filepath.Rel(m.catalog.Dir(), file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Stop stops the monitor.
func (m *Monitor) Stop() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}
