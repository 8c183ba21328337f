package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/soundpin/internal/model"
)

const (
	// DBusInterface is the soundpin interface name.
	DBusInterface = "io.github.jmylchreest.Soundpin"
	// DBusPath is the soundpin object path.
	DBusPath = "/io/github/jmylchreest/Soundpin"
	// DBusBusName is the bus name to claim.
	DBusBusName = "io.github.jmylchreest.Soundpin"
)

// Receiver consumes inbound notifications.
type Receiver interface {
	Receive(notification string, payload []byte)
	StatusJSON() (string, error)
}

// Service exports the soundpin interface on the session bus. Each method
// hands its payload to the receiver and returns immediately.
type Service struct {
	conn     *dbus.Conn
	logger   *slog.Logger
	receiver Receiver

	mu      sync.Mutex
	running bool
}

// NewService creates a new Service delivering to receiver.
func NewService(receiver Receiver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		receiver: receiver,
	}
}

// Start connects to the session bus and exports the service.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("service already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: DBusPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DBusInterface,
				Methods: serviceMethods(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), DBusPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken, is soundpind already running?", DBusBusName)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus service started", "interface", DBusInterface, "path", DBusPath)
	return nil
}

// Stop releases the bus name.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(DBusBusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		// Don't close the connection as it's shared (SessionBus)
	}

	s.logger.Info("D-Bus service stopped")
	return nil
}

// Configure delivers a CONFIG payload.
// D-Bus method: Configure(s) -> nothing
func (s *Service) Configure(payload string) *dbus.Error {
	s.logger.Debug("Configure called")
	s.receiver.Receive(model.NotificationConfig, []byte(payload))
	return nil
}

// PlaySound delivers a PLAY_SOUND payload.
// D-Bus method: PlaySound(s) -> nothing
func (s *Service) PlaySound(payload string) *dbus.Error {
	s.logger.Debug("PlaySound called", "payload", payload)
	s.receiver.Receive(model.NotificationPlay, []byte(payload))
	return nil
}

// StopSound delivers a STOP_SOUND payload.
// D-Bus method: StopSound(s) -> nothing
func (s *Service) StopSound(payload string) *dbus.Error {
	s.logger.Debug("StopSound called", "payload", payload)
	s.receiver.Receive(model.NotificationStop, []byte(payload))
	return nil
}

// Status returns the daemon status as JSON.
// D-Bus method: Status() -> s
func (s *Service) Status() (string, *dbus.Error) {
	status, err := s.receiver.StatusJSON()
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return status, nil
}

// serviceMethods returns the D-Bus method introspection data.
func serviceMethods() []introspect.Method {
	payloadIn := []introspect.Arg{{Name: "payload", Type: "s", Direction: "in"}}
	return []introspect.Method{
		{Name: "Configure", Args: payloadIn},
		{Name: "PlaySound", Args: payloadIn},
		{Name: "StopSound", Args: payloadIn},
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "status", Type: "s", Direction: "out"},
			},
		},
	}
}
