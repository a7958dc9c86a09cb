package utils

import (
	"strings"

	"github.com/scoboslor/player2/models"
)

func FormatTrack(t *models.Track) string {
	if t == nil || t.Title == "" {
		return "<nil>"
	}
	return t.Title + " - " + t.Artist
}

// CacheKey is the lookup key shared by the lyrics cache and the lookup
// service: artist and title text, case-insensitive.
func CacheKey(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
}

func TrackKey(t *models.Track) string {
	return CacheKey(t.Artist, t.Title)
}

var splitters = []string{"(", "（", "[", "［", "【", "〖", "＜", "〈", "《", " - ", "―", "—", " feat.", " ft.", " ver."}

// StripTitle cuts version and featuring decorations off a title.
func StripTitle(title string) string {
	min := len(title)
	for _, sep := range splitters {
		if i := strings.Index(title, sep); i > 0 && i < min {
			min = i
		}
	}
	return strings.TrimSpace(title[:min])
}
