package utils

import (
	"strings"
	"testing"
)

func TestMatcher(t *testing.T) {
	m := NewMatcher([]string{"he", "she", "hers", "作词", "ads.example"})
	tests := []struct {
		in   string
		want int
	}{
		{"ushers", 1},
		{"ahishers", 3},
		{"his", -1},
		{"作词 : someone", 0},
		{"作曲 : someone", -1},
		{"https://ads.example/spot.mp3", 8},
		{"", -1},
	}
	for _, tt := range tests {
		if got := m.Index(tt.in); got != tt.want {
			t.Errorf("Index(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if got := m.Contains(tt.in); got != (tt.want != -1) {
			t.Errorf("Contains(%q) = %v", tt.in, got)
		}
	}
}

func TestMatcherFailLinks(t *testing.T) {
	// "abcd" fails over to "bcx" after reading "abc"
	m := NewMatcher([]string{"abcd", "bcx"})
	if got := m.Index("zabcx"); got != 2 {
		t.Errorf("Index = %d, want 2", got)
	}
	if got := m.Index("abcabcd"); got != 3 {
		t.Errorf("Index = %d, want 3", got)
	}
}

func TestMatcherEmpty(t *testing.T) {
	var m *Matcher
	if m.Contains("anything") {
		t.Error("nil matcher matched")
	}
	if NewMatcher([]string{"", ""}) != nil {
		t.Error("empty patterns should build no matcher")
	}
	if NewMatcher(nil).Contains("x") {
		t.Error("matcher without patterns matched")
	}
}

func TestMatcherAgreesWithContains(t *testing.T) {
	patterns := []string{"feat.", "ver.", "（", "Live"}
	m := NewMatcher(patterns)
	for _, in := range []string{"春日影 (MyGo!!!!! ver.)", "Song feat. Guest", "歌（Live）", "plain", "feat"} {
		want := false
		for _, p := range patterns {
			want = want || strings.Contains(in, p)
		}
		if got := m.Contains(in); got != want {
			t.Errorf("Contains(%q) = %v, want %v", in, got, want)
		}
	}
}

func BenchmarkMatcher(b *testing.B) {
	m := NewMatcher(splitters)
	title := "春日影 (MyGo!!!!! ver.)"
	var idx int
	for b.Loop() {
		idx = m.Index(title)
	}
	if strings.TrimSpace(title[:idx]) != "春日影" {
		b.Fail()
	}
}
