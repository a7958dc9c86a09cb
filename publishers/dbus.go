package publishers

import (
	"github.com/godbus/dbus/v5"

	"github.com/scoboslor/player2/models"
)

const (
	DefaultDBusPath = "/org/scoboslor/player2"
	DefaultDBusName = "org.scoboslor.player2.Lyrics"
)

// DBusPublisher emits one signal per event with the line index and text.
type DBusPublisher struct {
	conn *dbus.Conn
	path dbus.ObjectPath
	name string
}

type DBusPublisherOptions struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

func NewDBusPublisher(conn *dbus.Conn, opt *DBusPublisherOptions) *DBusPublisher {
	path, name := opt.Path, opt.Name
	if path == "" {
		path = DefaultDBusPath
	}
	if name == "" {
		name = DefaultDBusName
	}
	return &DBusPublisher{
		conn: conn,
		path: dbus.ObjectPath(path),
		name: name,
	}
}

func (*DBusPublisher) ID() string {
	return DBusPublisherID
}

func (p *DBusPublisher) Publish(e *models.Event) error {
	txt, ok := Text(e)
	if !ok {
		return nil
	}
	return p.conn.Emit(p.path, p.name, int32(e.Index), txt)
}

func (*DBusPublisher) Exit() error {
	return nil // the connection is owned by the caller
}
