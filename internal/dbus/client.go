package dbus

import (
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/soundpin/internal/config"
	"github.com/jmylchreest/soundpin/internal/model"
)

// Client calls a running soundpind over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewClient connects to the session bus.
func NewClient() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(DBusBusName, DBusPath),
	}, nil
}

// Close closes the client's connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Configure sends cfg as the daemon's configuration. The daemon ignores it
// if it is already configured.
func (c *Client) Configure(cfg *config.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return c.call("Configure", string(data))
}

// Play asks the daemon to play req.
func (c *Client) Play(req model.PlayRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode play request: %w", err)
	}
	return c.call("PlaySound", string(data))
}

// Stop asks the daemon to stop the playback bound to req.Pin.
func (c *Client) Stop(req model.StopRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode stop request: %w", err)
	}
	return c.call("StopSound", string(data))
}

// Status returns the daemon's status JSON.
func (c *Client) Status() (string, error) {
	var status string
	if err := c.obj.Call(DBusInterface+".Status", 0).Store(&status); err != nil {
		return "", fmt.Errorf("failed to query soundpind: %w", err)
	}
	return status, nil
}

func (c *Client) call(method, payload string) error {
	if err := c.obj.Call(DBusInterface+"."+method, 0, payload).Err; err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	return nil
}
