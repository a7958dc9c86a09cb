package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/scoboslor/player2/models"
)

const NCMBaseURL = "https://music.163.com/api"

type NCMProvider struct {
	base
}

type NCMSong struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Alias    []string `json:"alias"`
	Duration int64    `json:"duration"` // milli
	Artists  []*struct {
		Name  string   `json:"name"`
		Alias []string `json:"alias"`
	} `json:"artists"`
}

type NCMSearchResponse struct {
	Result struct {
		Songs []*NCMSong `json:"songs"`
	} `json:"result"`
}

type NCMGetResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

func NewNCMProvider(opt *Options) *NCMProvider {
	return &NCMProvider{base: newBase(opt, NCMBaseURL)}
}

func (*NCMProvider) ID() string {
	return NCMProviderID
}

func (s *NCMSong) candidate() *Candidate {
	c := &Candidate{
		Titles:   append([]string{s.Name}, s.Alias...),
		Duration: time.Duration(s.Duration) * time.Millisecond,
	}
	for _, a := range s.Artists {
		c.Artists = append(c.Artists, a.Name)
		c.Artists = append(c.Artists, a.Alias...)
	}
	return c
}

func (p *NCMProvider) Lookup(ctx context.Context, t *models.Track) (string, error) {
	resp, err := p.get(ctx, p.baseURL+"/search/get/web?limit=30&type=1&s="+queryStr(t))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := NCMSearchResponse{}
	// duplicated `alias` fields are tolerated by encoding/json, the last one wins
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	lastErr := ErrNoLyrics
	for _, song := range body.Result.Songs {
		if !song.candidate().Match(t) {
			continue
		}
		lrc, err := p.lyric(ctx, song.ID)
		if err != nil {
			if isCanceled(err) {
				return "", err
			}
			if !errors.Is(err, ErrNoLyrics) {
				lastErr = err
			}
			continue
		}
		return lrc, nil
	}
	return "", lastErr
}

func (p *NCMProvider) lyric(ctx context.Context, id int) (string, error) {
	resp, err := p.get(ctx, p.baseURL+"/song/lyric?lv=1&id="+strconv.Itoa(id))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := NCMGetResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	if body.Lrc.Lyric == "" {
		return "", ErrNoLyrics
	}
	return body.Lrc.Lyric, nil
}
