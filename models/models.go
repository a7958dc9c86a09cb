package models

import (
	"strings"
)

type PlaybackStatus int

const (
	PlaybackStatusUnknown PlaybackStatus = iota
	PlaybackStatusPlaying
	PlaybackStatusPaused
	PlaybackStatusStopped
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackStatusPlaying:
		return "playing"
	case PlaybackStatusPaused:
		return "paused"
	case PlaybackStatusStopped:
		return "stopped"
	}
	return "unknown"
}

// Track identifies a playable item.
type Track struct {
	ID         string
	Artist     string // primary artist
	Title      string
	Album      string
	DurationMs int
	URL        string
	Lyrics     string // LRC text embedded by the player, if any
}

func (t *Track) Valid() bool {
	return t != nil && t.Title != "" && t.Artist != ""
}

// Same reports whether t and o refer to the same item. Identifiers win when
// both sides carry one.
func (t *Track) Same(o *Track) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.ID != "" && o.ID != "" {
		return t.ID == o.ID
	}
	return strings.EqualFold(t.Artist, o.Artist) && strings.EqualFold(t.Title, o.Title)
}

func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

type PlaybackState struct {
	Track    *Track
	Next     *Track // head of the upcoming queue
	Position int    // milli
	Status   PlaybackStatus
}

func (p *PlaybackState) Clone() PlaybackState {
	return PlaybackState{
		Track:    p.Track.Clone(),
		Next:     p.Next.Clone(),
		Position: p.Position,
		Status:   p.Status,
	}
}
