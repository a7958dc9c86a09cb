package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scoboslor/player2/models"
)

var track = &models.Track{
	ID:         "spotify:track:1",
	Title:      "春日影",
	Artist:     "CRYCHIC",
	DurationMs: 4*60_000 + 18_000,
}

func TestLRCLIB(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "synced lyrics",
			status: http.StatusOK,
			body:   `{"trackName":"春日影","artistName":"CRYCHIC","syncedLyrics":"[00:12.00]Hello world","plainLyrics":"Hello world","duration":258}`,
			want:   "[00:12.00]Hello world",
		},
		{
			name:    "plain only",
			status:  http.StatusOK,
			body:    `{"syncedLyrics":"","plainLyrics":"Just plain text"}`,
			wantErr: ErrNoLyrics,
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    `{"code":404,"name":"TrackNotFound","message":"Failed to find specified track"}`,
			wantErr: ErrNoLyrics,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `internal server error`,
			wantErr: ErrNetworkFailure,
		},
		{
			name:    "malformed json",
			status:  http.StatusOK,
			body:    `{"syncedLyrics":`,
			wantErr: ErrParseFailure,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			wantErr: ErrRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/get" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("User-Agent") != "player2" {
					t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewLRCLIBProvider(&Options{BaseURL: srv.URL})
			got, err := p.Lookup(context.Background(), track)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLRCLIBQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("artist_name"); got != "The Beatles" {
			t.Errorf("artist_name = %q", got)
		}
		if got := q.Get("track_name"); got != "Let It Be" {
			t.Errorf("track_name = %q", got)
		}
		if got := q.Get("duration"); got != "243" {
			t.Errorf("duration = %q", got)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewLRCLIBProvider(&Options{BaseURL: srv.URL})
	p.Lookup(context.Background(), &models.Track{Artist: "The Beatles", Title: "Let It Be", DurationMs: 243_200})
}

func TestLRCLIBRetriesStrippedTitle(t *testing.T) {
	var titles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("track_name")
		titles = append(titles, title)
		if title != "Song" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"syncedLyrics":"[00:01.00]la"}`))
	}))
	defer srv.Close()

	p := NewLRCLIBProvider(&Options{BaseURL: srv.URL})
	got, err := p.Lookup(context.Background(), &models.Track{Artist: "A", Title: "Song (Remastered)"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "[00:01.00]la" {
		t.Errorf("got %q", got)
	}
	if len(titles) != 2 || titles[0] != "Song (Remastered)" {
		t.Errorf("unexpected requests %q", titles)
	}
}

func TestNCM(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/get/web", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"songs":[
			{"id":1,"name":"Other","duration":258000,"artists":[{"name":"CRYCHIC"}]},
			{"id":2,"name":"春日影","duration":300000,"artists":[{"name":"CRYCHIC"}]},
			{"id":3,"name":"春日影","duration":257500,"artists":[{"name":"クライシック","alias":["CRYCHIC"]}]}
		]}}`)
	})
	mux.HandleFunc("/song/lyric", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("id"); id != "3" {
			t.Errorf("fetched lyrics of song %s", id)
		}
		fmt.Fprint(w, `{"lrc":{"lyric":"[00:00.00]ok"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewNCMProvider(&Options{BaseURL: srv.URL})
	got, err := p.Lookup(context.Background(), track)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[00:00.00]ok" {
		t.Errorf("got %q", got)
	}
}

func TestNCMNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"songs":[]}}`)
	}))
	defer srv.Close()

	p := NewNCMProvider(&Options{BaseURL: srv.URL})
	if _, err := p.Lookup(context.Background(), track); !errors.Is(err, ErrNoLyrics) {
		t.Errorf("err = %v, want ErrNoLyrics", err)
	}
}

func TestEmbedded(t *testing.T) {
	p := NewEmbeddedProvider()
	if _, err := p.Lookup(context.Background(), track); !errors.Is(err, ErrNoLyrics) {
		t.Errorf("err = %v", err)
	}
	got, err := p.Lookup(context.Background(), &models.Track{Lyrics: "[00:00.00]x"})
	if err != nil || got != "[00:00.00]x" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestCandidateMatch(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"exact", Candidate{Titles: []string{"春日影"}, Artists: []string{"CRYCHIC"}, Duration: 258 * time.Second}, true},
		{"stripped title", Candidate{Titles: []string{"春日影 (MyGo!!!!! ver.)"}, Artists: []string{"CRYCHIC"}}, true},
		{"wrong artist", Candidate{Titles: []string{"春日影"}, Artists: []string{"MyGO!!!!!"}}, false},
		{"duration off", Candidate{Titles: []string{"春日影"}, Artists: []string{"CRYCHIC"}, Duration: 250 * time.Second}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Match(track); got != tt.want {
			t.Errorf("%s: Match = %v, want %v", tt.name, got, tt.want)
		}
	}
}

type stubProvider struct {
	id    string
	lrc   string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubProvider) ID() string { return s.id }

func (s *stubProvider) Lookup(ctx context.Context, _ *models.Track) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.lrc, s.err
}

func TestChainFallback(t *testing.T) {
	a := &stubProvider{id: "a", err: ErrNoLyrics}
	b := &stubProvider{id: "b", lrc: "[00:00.00]b"}
	c := &stubProvider{id: "c", lrc: "[00:00.00]c"}
	got, err := NewChain(FetchModeFallback, a, b, c).Lookup(context.Background(), track)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[00:00.00]b" {
		t.Errorf("got %q", got)
	}
	if c.calls.Load() != 0 {
		t.Error("providers after a hit must not be asked")
	}
}

func TestChainNotFoundOnlyWhenAllAgree(t *testing.T) {
	a := &stubProvider{id: "a", err: ErrNoLyrics}
	b := &stubProvider{id: "b", err: ErrNetworkFailure}
	_, err := NewChain(FetchModeFallback, a, b).Lookup(context.Background(), track)
	if errors.Is(err, ErrNoLyrics) || !errors.Is(err, ErrNetworkFailure) {
		t.Errorf("err = %v, want a network failure", err)
	}

	_, err = NewChain(FetchModeFallback, a, &stubProvider{id: "c", err: ErrNoLyrics}).Lookup(context.Background(), track)
	if !errors.Is(err, ErrNoLyrics) {
		t.Errorf("err = %v, want ErrNoLyrics", err)
	}

	_, err = NewChain(FetchModeFallback).Lookup(context.Background(), track)
	if !errors.Is(err, ErrNoLyrics) {
		t.Errorf("empty chain err = %v", err)
	}
}

func TestChainFastest(t *testing.T) {
	slow := &stubProvider{id: "slow", lrc: "[00:00.00]slow", delay: time.Second}
	fast := &stubProvider{id: "fast", lrc: "[00:00.00]fast"}
	got, err := NewChain(FetchModeFastest, slow, fast).Lookup(context.Background(), track)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[00:00.00]fast" {
		t.Errorf("got %q", got)
	}
}

func TestChainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := &stubProvider{id: "slow", lrc: "x", delay: time.Second}
	for _, mode := range []FetchMode{FetchModeFallback, FetchModeFastest} {
		_, err := NewChain(mode, slow).Lookup(ctx, track)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("mode %d: err = %v, want context.Canceled", mode, err)
		}
	}
}

func TestKugou(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/search/song", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"info":[
			{"hash":"H0","songname":"春日影","singername":"CRYCHIC","duration":300},
			{"hash":"H1","songname":"春日影 (Live)","songname_original":"春日影","singername":"CRYCHIC","duration":258}
		]}}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if hash := r.URL.Query().Get("hash"); hash != "H1" {
			t.Errorf("searched lyrics of %s", hash)
		}
		fmt.Fprint(w, `{"candidates":[{"id":"1","accesskey":"a"},{"id":"2","accesskey":"b"}]}`)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		lrc := "[00:00.00]纯音乐，请欣赏"
		if r.URL.Query().Get("id") == "2" {
			lrc = "[00:00.00]ok"
		}
		fmt.Fprintf(w, `{"content":%q}`, base64.StdEncoding.EncodeToString([]byte(lrc)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewKugouProvider(&Options{BaseURL: srv.URL})
	got, err := p.Lookup(context.Background(), track)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[00:00.00]ok" {
		t.Errorf("got %q", got)
	}
}

func TestKugouInstrumentalOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/search/song", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"info":[{"hash":"H1","songname":"春日影","singername":"CRYCHIC","duration":258}]}}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"id":"1","accesskey":"a"}]}`)
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"content":%q}`, base64.StdEncoding.EncodeToString([]byte("[00:00.00]纯音乐，请欣赏")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewKugouProvider(&Options{BaseURL: srv.URL})
	if _, err := p.Lookup(context.Background(), track); !errors.Is(err, ErrNoLyrics) {
		t.Errorf("err = %v, want ErrNoLyrics", err)
	}
}

func TestKuwo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/searchMusicBykeyWord", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"abslist":[
			{"DC_TARGETID":"6","ARTIST":"Someone","NAME":"春日影","DURATION":"258"},
			{"DC_TARGETID":"7","ARTIST":"MyGO&CRYCHIC","NAME":"春日影","DURATION":"257"}
		]}`)
	})
	mux.HandleFunc("/openapi/v1/www/lyric/getlyric", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("musicId"); id != "7" {
			t.Errorf("fetched lyrics of %s", id)
		}
		fmt.Fprint(w, `{"data":{"lrclist":[
			{"time":"0.0","lineLyric":"春日影 - CRYCHIC"},
			{"time":"1.5","lineLyric":"first"},
			{"time":"3.25","lineLyric":"second"},
			{"time":"3.25","lineLyric":" second (tr) "}
		]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewKuwoProvider(&Options{BaseURL: srv.URL})
	got, err := p.Lookup(context.Background(), track)
	if err != nil {
		t.Fatal(err)
	}
	if want := "[00:01.500]first\n[00:03.250]second (tr)\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatLrcListDropsTrailingCredit(t *testing.T) {
	got := formatLrcList([]*KuwoLrcLine{
		{TimeSec: 0, LineLyric: "header"},
		{TimeSec: 1, LineLyric: "a"},
		{TimeSec: 1, LineLyric: "a'"},
		{TimeSec: 2, LineLyric: "b"},
		{TimeSec: 2, LineLyric: "b'"},
		{TimeSec: 9, LineLyric: "credit"},
	})
	if want := "[00:01.000]a'\n[00:02.000]b'\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMXM(t *testing.T) {
	var tokenCalls, searchCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token.get", func(w http.ResponseWriter, r *http.Request) {
		n := tokenCalls.Add(1)
		fmt.Fprintf(w, `{"message":{"header":{"status_code":200},"body":{"user_token":"tok%d"}}}`, n)
	})
	mux.HandleFunc("/track.search", func(w http.ResponseWriter, r *http.Request) {
		if searchCalls.Add(1) == 1 {
			fmt.Fprint(w, `{"message":{"header":{"status_code":401,"hint":"renew"},"body":""}}`)
			return
		}
		if tok := r.URL.Query().Get("usertoken"); tok != "tok2" {
			t.Errorf("search used token %q after renewal", tok)
		}
		fmt.Fprint(w, `{"message":{"header":{"status_code":200},"body":{"track_list":[
			{"track":{"commontrack_id":4,"artist_id":9,"artist_name":"クライシック","track_name":"春日影","has_subtitles":0,"track_length":258}},
			{"track":{"commontrack_id":5,"artist_id":9,"artist_name":"クライシック","track_name":"春日影","has_subtitles":1,"track_length":258}}
		]}}}`)
	})
	mux.HandleFunc("/artist.get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"header":{"status_code":200},"body":{"artist":{"artist_alias_list":[{"artist_alias":"CRYCHIC"}]}}}}`)
	})
	mux.HandleFunc("/track.subtitle.get", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("commontrack_id"); id != "5" {
			t.Errorf("fetched subtitle of %s", id)
		}
		fmt.Fprint(w, `{"message":{"header":{"status_code":200},"body":{"subtitle":{"subtitle_body":"[00:00.00]ok"}}}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewMXMProvider(&Options{BaseURL: srv.URL})
	got, err := p.Lookup(context.Background(), track)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[00:00.00]ok" {
		t.Errorf("got %q", got)
	}
	if n := tokenCalls.Load(); n != 2 {
		t.Errorf("token fetched %d times, want 2", n)
	}
}

func TestMXMNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token.get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"header":{"status_code":200},"body":{"user_token":"tok"}}}`)
	})
	mux.HandleFunc("/track.search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"header":{"status_code":404},"body":""}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewMXMProvider(&Options{BaseURL: srv.URL})
	if _, err := p.Lookup(context.Background(), track); !errors.Is(err, ErrNoLyrics) {
		t.Errorf("err = %v, want ErrNoLyrics", err)
	}
}
