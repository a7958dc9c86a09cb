package publishers

import (
	"github.com/scoboslor/player2/models"
)

const (
	FilePublisherID      = "file"
	HTTPPublisherID      = "http"
	WebSocketPublisherID = "websocket"
	DBusPublisherID      = "dbus"
)

// Control characters written by text sinks in place of a line.
const (
	ETX = "\x03" // inactive state
	EOT = "\x04" // daemon exit
)

type Publisher interface {
	ID() string
	Publish(*models.Event) error
	Exit() error
}

// Text renders an event for sinks that only carry plain text. Lyrics
// replacement events have no text form and report false.
func Text(e *models.Event) (string, bool) {
	switch e.Kind {
	case models.EventLine, models.EventTitle:
		return e.Text, true
	case models.EventClear:
		return ETX, true
	case models.EventExit:
		return EOT, true
	}
	return "", false
}
