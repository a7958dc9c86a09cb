package models

type EventKind int

const (
	// EventLine carries the text of the newly active line.
	EventLine EventKind = iota
	// EventTitle announces the playing track before lyrics are known.
	EventTitle
	// EventLyrics replaces the displayed document; consumers scroll to the top.
	EventLyrics
	// EventClear tells consumers we're in inactive state.
	EventClear
	// EventExit is the last event a publisher receives.
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventTitle:
		return "title"
	case EventLyrics:
		return "lyrics"
	case EventClear:
		return "clear"
	case EventExit:
		return "exit"
	}
	return "unknown"
}

type Event struct {
	Kind  EventKind
	Text  string
	Index int
	Track *Track
	Lines int
}
