package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/utils"
)

const LRCLIBBaseURL = "https://lrclib.net/api"

type LRCLIBProvider struct {
	base
}

type LRCLIBResponse struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	SyncedLyrics string  `json:"syncedLyrics"`
	PlainLyrics  string  `json:"plainLyrics"`
	Instrumental bool    `json:"instrumental"`
	Duration     float64 `json:"duration"`
}

func NewLRCLIBProvider(opt *Options) *LRCLIBProvider {
	return &LRCLIBProvider{base: newBase(opt, LRCLIBBaseURL)}
}

func (*LRCLIBProvider) ID() string {
	return LRCLIBProviderID
}

func (p *LRCLIBProvider) Lookup(ctx context.Context, t *models.Track) (string, error) {
	lrc, err := p.lookup(ctx, t.Artist, t.Title, t.DurationMs)
	if !errors.Is(err, ErrNoLyrics) {
		return lrc, err
	}
	if alt := utils.StripTitle(t.Title); alt != "" && alt != t.Title {
		return p.lookup(ctx, t.Artist, alt, t.DurationMs)
	}
	return "", err
}

func (p *LRCLIBProvider) lookup(ctx context.Context, artist, title string, durationMs int) (string, error) {
	q := url.Values{}
	q.Set("artist_name", artist)
	q.Set("track_name", title)
	if durationMs > 0 {
		q.Set("duration", strconv.Itoa((durationMs+500)/1000))
	}
	resp, err := p.get(ctx, p.baseURL+"/get?"+q.Encode(), "User-Agent", "player2")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNoLyrics
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: lrclib returned status %d", ErrNetworkFailure, resp.StatusCode)
	}
	body := LRCLIBResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	if body.SyncedLyrics == "" {
		return "", ErrNoLyrics
	}
	return body.SyncedLyrics, nil
}
