package utils

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/scoboslor/player2/models"
)

// [mm:ss], [mm:ss.x], [mm:ss.xx], [mm:ss.xxx]; some encoders write ':' before the fraction
var timeTag = regexp.MustCompile(`\[(\d+):(\d{2})(?:[.:](\d{1,3}))?\]`)

const zeroTag = "00:00.00"

// ParseLrc converts line-synced LRC text into a document whose first line
// starts at zero. Lines without a valid time tag are skipped. Only the first
// tag of a line is used for timing.
func ParseLrc(lrc string) *models.Document {
	doc := &models.Document{
		Lines:    []*models.Line{},
		SyncType: models.SyncTypeLine,
	}
	for raw := range strings.SplitSeq(lrc, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		m := timeTag.FindStringSubmatchIndex(raw)
		if m == nil {
			continue
		}
		start, ok := parseTag(raw[m[2]:m[3]], raw[m[4]:m[5]], group(raw, m, 3))
		if !ok {
			continue
		}
		words := strings.TrimSpace(timeTag.ReplaceAllString(raw, ""))
		if words == "" {
			words = models.Placeholder
		}
		doc.Lines = append(doc.Lines, &models.Line{
			Words:   words,
			StartMs: start,
			Tag:     raw[m[0]+1 : m[1]-1],
		})
	}
	if len(doc.Lines) == 0 {
		return doc
	}
	slices.SortStableFunc(doc.Lines, func(a, b *models.Line) int { return a.StartMs - b.StartMs })
	if doc.Lines[0].StartMs != 0 {
		doc.Lines = slices.Insert(doc.Lines, 0, &models.Line{
			Words: models.Placeholder,
			Tag:   zeroTag,
		})
	}
	for i, line := range doc.Lines {
		if i+1 < len(doc.Lines) {
			line.EndMs = doc.Lines[i+1].StartMs
		} else {
			line.EndMs = line.StartMs + models.FinalLineSpan
		}
	}
	return doc
}

func group(s string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return s[m[2*i]:m[2*i+1]]
}

// parseTag converts tag groups to milliseconds. The fraction is right-padded
// to three digits, so ".5" and ".50" both mean 500ms.
func parseTag(min, sec, frac string) (int, bool) {
	m, err := strconv.Atoi(min)
	if err != nil {
		return 0, false
	}
	s, err := strconv.Atoi(sec)
	if err != nil {
		return 0, false
	}
	f := 0
	if frac != "" {
		f, err = strconv.Atoi(frac + strings.Repeat("0", 3-len(frac)))
		if err != nil {
			return 0, false
		}
	}
	return m*60_000 + s*1000 + f, true
}

// FormatPosition renders milliseconds as mm:ss.xxx.
func FormatPosition(ms int) string {
	return fmt.Sprintf("%02d:%02d.%03d", ms/60_000, ms/1000%60, ms%1000)
}
