package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/scoboslor/player2/models"
)

const (
	MXMBaseURL = "https://apic-desktop.musixmatch.com/ws/1.1"

	mxmAppID = "web-desktop-app-v1.0"
)

// MXMProvider talks to the Musixmatch desktop API. The user token is fetched
// on first use and renewed when the API asks for it.
type MXMProvider struct {
	base
	mu    sync.Mutex
	token string
}

type MXMTrack struct {
	Track struct {
		ID           int    `json:"commontrack_id"`
		ArtistID     int    `json:"artist_id"`
		ArtistName   string `json:"artist_name"`
		TrackName    string `json:"track_name"`
		HasSubtitles int    `json:"has_subtitles"`
		TrackLength  int    `json:"track_length"` // sec
	} `json:"track"`
}

type MXMResponseHeader struct {
	StatusCode int    `json:"status_code"`
	Hint       string `json:"hint"`
}

type MXMBaseResponse struct {
	Message struct {
		Header MXMResponseHeader `json:"header"`
		Body   json.RawMessage   `json:"body"`
	} `json:"message"`
}

type MXMTokenGetResponseBody struct {
	UserToken string `json:"user_token"`
}

type MXMTrackSearchResponseBody struct {
	TrackList []*MXMTrack `json:"track_list"`
}

type MXMSubtitleGetResponseBody struct {
	Subtitle struct {
		SubtitleBody string `json:"subtitle_body"`
	} `json:"subtitle"`
}

type MXMArtistGetResponseBody struct {
	Artist struct {
		ArtistAliasList []*struct {
			ArtistAlias string `json:"artist_alias"`
		} `json:"artist_alias_list"`
	} `json:"artist"`
}

func NewMXMProvider(opt *Options) *MXMProvider {
	return &MXMProvider{base: newBase(opt, MXMBaseURL)}
}

func (*MXMProvider) ID() string {
	return MXMProviderID
}

func (p *MXMProvider) Lookup(ctx context.Context, t *models.Track) (string, error) {
	q := url.Values{}
	q.Set("page_size", "10")
	q.Set("page", "1")
	q.Set("q", t.Title+" "+t.Artist)
	b, err := p.getBody(ctx, "/track.search", q)
	if err != nil {
		return "", err
	}
	body := MXMTrackSearchResponseBody{}
	err = json.Unmarshal(b, &body)
	if err != nil {
		return "", ErrParseFailure
	}
	aliases := map[int][]string{}
	lastErr := ErrNoLyrics
	for _, track := range body.TrackList {
		tr := &track.Track
		if tr.HasSubtitles == 0 {
			continue
		}
		artists, ok := aliases[tr.ArtistID]
		if !ok {
			artists, err = p.artistNames(ctx, tr.ArtistID, tr.ArtistName)
			if err != nil {
				return "", err
			}
			aliases[tr.ArtistID] = artists
		}
		candidate := &Candidate{
			Titles:   []string{tr.TrackName},
			Artists:  artists,
			Duration: time.Duration(tr.TrackLength) * time.Second,
		}
		if !candidate.Match(t) {
			continue
		}
		lrc, err := p.subtitle(ctx, tr.ID)
		if err == nil {
			return lrc, nil
		}
		if isCanceled(err) {
			return "", err
		}
		if !errors.Is(err, ErrNoLyrics) {
			lastErr = err
		}
	}
	return "", lastErr
}

// artistNames returns the artist name with its aliases. Only cancellation
// is reported; a failed alias lookup falls back to the plain name.
func (p *MXMProvider) artistNames(ctx context.Context, id int, name string) ([]string, error) {
	names := []string{name}
	q := url.Values{}
	q.Set("artist_id", strconv.Itoa(id))
	b, err := p.getBody(ctx, "/artist.get", q)
	if err != nil {
		if isCanceled(err) {
			return nil, err
		}
		return names, nil
	}
	body := MXMArtistGetResponseBody{}
	if json.Unmarshal(b, &body) == nil {
		for _, a := range body.Artist.ArtistAliasList {
			names = append(names, a.ArtistAlias)
		}
	}
	return names, nil
}

func (p *MXMProvider) subtitle(ctx context.Context, id int) (string, error) {
	q := url.Values{}
	q.Set("commontrack_id", strconv.Itoa(id))
	b, err := p.getBody(ctx, "/track.subtitle.get", q)
	if err != nil {
		return "", err
	}
	body := MXMSubtitleGetResponseBody{}
	err = json.Unmarshal(b, &body)
	if err != nil {
		return "", ErrParseFailure
	}
	if body.Subtitle.SubtitleBody == "" {
		return "", ErrNoLyrics
	}
	return body.Subtitle.SubtitleBody, nil
}

func (p *MXMProvider) userToken(ctx context.Context, renew bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && !renew {
		return p.token, nil
	}
	resp, err := p.get(ctx, p.baseURL+"/token.get?app_id="+mxmAppID, "Cookie", "AWSELB=unknown")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := MXMBaseResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	if body.Message.Header.StatusCode != 200 {
		return "", ErrRateLimit
	}
	token := MXMTokenGetResponseBody{}
	if json.Unmarshal(body.Message.Body, &token) != nil || token.UserToken == "" {
		return "", ErrParseFailure
	}
	p.token = token.UserToken
	return p.token, nil
}

// getBody calls endpoint and returns the message body, renewing the token
// once when the API answers with a captcha or renew hint.
func (p *MXMProvider) getBody(ctx context.Context, endpoint string, q url.Values) (json.RawMessage, error) {
	for attempt := range 2 {
		token, err := p.userToken(ctx, attempt > 0)
		if err != nil {
			return nil, err
		}
		q.Set("app_id", mxmAppID)
		q.Set("usertoken", token)
		resp, err := p.get(ctx, p.baseURL+endpoint+"?"+q.Encode(), "Cookie", "AWSELB=unknown")
		if err != nil {
			return nil, err
		}
		body := MXMBaseResponse{}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			return nil, ErrParseFailure
		}
		header := body.Message.Header
		if header.Hint == "captcha" || header.Hint == "renew" {
			continue
		}
		switch header.StatusCode {
		case 200:
			return body.Message.Body, nil
		case 404:
			return nil, ErrNoLyrics
		}
		return nil, fmt.Errorf("%w: musixmatch returned status %d", ErrNetworkFailure, header.StatusCode)
	}
	return nil, ErrRateLimit
}
