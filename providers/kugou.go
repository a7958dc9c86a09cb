package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/scoboslor/player2/models"
)

const (
	KugouSearchURL = "http://msearchcdn.kugou.com"
	KugouBaseURL   = "http://lyrics.kugou.com"

	kugouInstrumental = "纯音乐，请欣赏"
)

// KugouProvider searches songs on one host and downloads lyrics from
// another. Options.BaseURL replaces both.
type KugouProvider struct {
	base
	searchURL string
}

type KugouSong struct {
	Hash              string `json:"hash"`
	SongName          string `json:"songname"`
	OtherName         string `json:"othername"`
	SongNameOriginal  string `json:"songname_original"`
	OtherNameOriginal string `json:"othername_original"`
	SingerName        string `json:"singername"`
	Duration          int    `json:"duration"` // sec
}

type KugouSongSearchResponse struct {
	Data struct {
		Info []*KugouSong `json:"info"`
	} `json:"data"`
}

type KugouCandidate struct {
	ID        string `json:"id"`
	Accesskey string `json:"accesskey"`
}

type KugouLyricsSearchResponse struct {
	Candidates []*KugouCandidate `json:"candidates"`
}

type KugouLyricsDownloadResponse struct {
	Content string `json:"content"`
}

func NewKugouProvider(opt *Options) *KugouProvider {
	p := &KugouProvider{base: newBase(opt, KugouBaseURL), searchURL: KugouSearchURL}
	if opt != nil && opt.BaseURL != "" {
		p.searchURL = p.baseURL
	}
	return p
}

func (*KugouProvider) ID() string {
	return KugouProviderID
}

func (s *KugouSong) candidate() *Candidate {
	return &Candidate{
		Titles:   []string{s.SongName, s.SongNameOriginal, s.OtherName, s.OtherNameOriginal},
		Artists:  strings.Split(s.SingerName, "、"),
		Duration: time.Duration(s.Duration) * time.Second,
	}
}

func (p *KugouProvider) Lookup(ctx context.Context, t *models.Track) (string, error) {
	resp, err := p.get(ctx, p.searchURL+"/api/v3/search/song?keyword="+queryStr(t))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := KugouSongSearchResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	lastErr := ErrNoLyrics
	for _, song := range body.Data.Info {
		if !song.candidate().Match(t) {
			continue
		}
		lrc, err := p.lyrics(ctx, song.Hash)
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

func (p *KugouProvider) lyrics(ctx context.Context, hash string) (string, error) {
	resp, err := p.get(ctx, p.baseURL+"/search?ver=1&man=yes&client=pc&hash="+url.QueryEscape(hash))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := KugouLyricsSearchResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	for _, candidate := range body.Candidates {
		lrc, err := p.download(ctx, candidate)
		if err != nil {
			if isCanceled(err) {
				return "", err
			}
			continue
		}
		if strings.Contains(lrc, kugouInstrumental) {
			continue
		}
		return lrc, nil
	}
	return "", ErrNoLyrics
}

func (p *KugouProvider) download(ctx context.Context, c *KugouCandidate) (string, error) {
	q := url.Values{}
	q.Set("ver", "1")
	q.Set("client", "pc")
	q.Set("id", c.ID)
	q.Set("accesskey", c.Accesskey)
	q.Set("fmt", "lrc")
	q.Set("charset", "utf8")
	resp, err := p.get(ctx, p.baseURL+"/download?"+q.Encode())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := KugouLyricsDownloadResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	buf, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil || len(buf) == 0 {
		return "", ErrParseFailure
	}
	return string(buf), nil
}
