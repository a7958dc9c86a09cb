package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/utils"
)

const KuwoBaseURL = "https://kuwo.cn"

type KuwoProvider struct {
	base
}

type KuwoAbs struct {
	ID        string `json:"DC_TARGETID"`
	Artist    string `json:"ARTIST"`
	AArtist   string `json:"AARTIST"`
	FArtist   string `json:"FARTIST"`
	Name      string `json:"NAME"`
	Alias     string `json:"ALIAS"`
	SongName  string `json:"SONGNAME"`
	FSongName string `json:"FSONGNAME"`
	Duration  int    `json:"DURATION,string"` // sec
}

type KuwoSearchResponse struct {
	AbsList []*KuwoAbs `json:"abslist"`
}

type KuwoLrcLine struct {
	TimeSec   float64 `json:"time,string"`
	LineLyric string  `json:"lineLyric"`
}

type KuwoGetResponse struct {
	Data struct {
		LrcList []*KuwoLrcLine `json:"lrclist"`
	} `json:"data"`
}

func NewKuwoProvider(opt *Options) *KuwoProvider {
	return &KuwoProvider{base: newBase(opt, KuwoBaseURL)}
}

func (*KuwoProvider) ID() string {
	return KuwoProviderID
}

func (a *KuwoAbs) candidate() *Candidate {
	c := &Candidate{
		Titles:   []string{a.Name, a.Alias, a.SongName, a.FSongName},
		Duration: time.Duration(a.Duration) * time.Second,
	}
	for _, s := range []string{a.Artist, a.AArtist, a.FArtist} {
		for name := range strings.SplitSeq(s, "&") {
			if name = strings.TrimSpace(name); name != "" {
				c.Artists = append(c.Artists, name)
			}
		}
	}
	return c
}

// formatLrcList renders kuwo's timed lines as LRC text. The first entry is
// the title header. A line sharing the previous timestamp is a translation
// and replaces the original; when that happens more than once the trailing
// line is an untimed credit and is dropped.
func formatLrcList(lrcList []*KuwoLrcLine) string {
	type line struct {
		ms   int
		text string
	}
	lines := []line{}
	repCnt := 0
	prevTime := -1.0
	for i, lrc := range lrcList {
		if i == 0 {
			continue
		}
		l := line{ms: int(lrc.TimeSec * 1000), text: strings.TrimSpace(lrc.LineLyric)}
		if lrc.TimeSec == prevTime {
			lines[len(lines)-1] = l
			repCnt++
		} else {
			lines = append(lines, l)
		}
		prevTime = lrc.TimeSec
	}
	if repCnt > 1 {
		lines = lines[:len(lines)-1]
	}
	var sb strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&sb, "[%s]%s\n", utils.FormatPosition(l.ms), l.text)
	}
	return sb.String()
}

func (p *KuwoProvider) Lookup(ctx context.Context, t *models.Track) (string, error) {
	resp, err := p.get(ctx, p.baseURL+"/search/searchMusicBykeyWord?vipver=1&client=kt&ft=music&cluster=0&strategy=2012&encoding=utf8&rformat=json&mobi=1&issubtitle=1&pn=0&rn=20&all="+queryStr(t))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := KuwoSearchResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	lastErr := ErrNoLyrics
	for _, abs := range body.AbsList {
		if !abs.candidate().Match(t) {
			continue
		}
		lrc, err := p.lyric(ctx, abs.ID)
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

func (p *KuwoProvider) lyric(ctx context.Context, id string) (string, error) {
	resp, err := p.get(ctx, p.baseURL+"/openapi/v1/www/lyric/getlyric?musicId="+url.QueryEscape(id))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := KuwoGetResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return "", ErrParseFailure
	}
	if len(body.Data.LrcList) < 2 {
		return "", ErrNoLyrics
	}
	lrc := formatLrcList(body.Data.LrcList)
	if lrc == "" {
		return "", ErrNoLyrics
	}
	return lrc, nil
}
