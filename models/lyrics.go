package models

import (
	"sort"
)

const (
	SyncTypeLine = "LINE_SYNCED"

	// Placeholder stands in for lines without text so a beat marker still renders.
	Placeholder = "♪"

	// FinalLineSpan is how long the last line stays active.
	FinalLineSpan = 5000
)

type Line struct {
	Words   string
	StartMs int // inclusive
	EndMs   int // exclusive
	Tag     string
}

type Document struct {
	Lines    []*Line
	Error    bool
	SyncType string
}

func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Lines)
}

func (d *Document) Get(index int) string {
	if d == nil || index < 0 || index >= len(d.Lines) {
		return ""
	}
	return d.Lines[index].Words
}

// IndexOf returns the active line for position shifted by offset.
func (d *Document) IndexOf(position int, offset int) int {
	if d == nil {
		return -1
	}
	return ResolveActiveLine(d.Lines, position-offset)
}

// Ended reports whether position is past the end of the final line.
func (d *Document) Ended(position int, offset int) bool {
	if d.Len() == 0 {
		return true
	}
	return position-offset >= d.Lines[len(d.Lines)-1].EndMs
}

// ResolveActiveLine returns the index of the line whose [StartMs, EndMs)
// interval contains progress, or -1. Lines must be sorted by StartMs.
func ResolveActiveLine(lines []*Line, progress int) int {
	i := sort.Search(len(lines), func(i int) bool { return lines[i].StartMs > progress }) - 1
	if i < 0 {
		return -1
	}
	if progress >= lines[i].EndMs {
		return -1
	}
	return i
}
