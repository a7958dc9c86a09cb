package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/utils"

	"golang.org/x/time/rate"
)

const (
	LRCLIBProviderID   = "lrclib"
	NCMProviderID      = "ncm"
	KugouProviderID    = "kugou"
	KuwoProviderID     = "kuwo"
	MXMProviderID      = "mxm"
	EmbeddedProviderID = "embedded"
)

var (
	ErrNetworkFailure = errors.New("network failure")
	ErrParseFailure   = errors.New("parse failure")
	ErrNoLyrics       = errors.New("no lyrics found")
	ErrRateLimit      = errors.New("rate limited")
)

// Provider looks up line-synced LRC text for a track. A confirmed absence is
// reported as ErrNoLyrics; anything else is transient.
type Provider interface {
	ID() string
	Lookup(context.Context, *models.Track) (string, error)
}

type Options struct {
	BaseURL   string
	Client    *http.Client
	RateLimit float64 // requests per second, 0 disables pacing
}

type base struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newBase(opt *Options, defaultURL string) base {
	b := base{
		baseURL: defaultURL,
		client:  http.DefaultClient,
	}
	if opt == nil {
		return b
	}
	if opt.BaseURL != "" {
		b.baseURL = strings.TrimSuffix(opt.BaseURL, "/")
	}
	if opt.Client != nil {
		b.client = opt.Client
	}
	if opt.RateLimit > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opt.RateLimit), 1)
	}
	return b
}

func queryStr(t *models.Track) string {
	return url.QueryEscape(t.Title + " " + t.Artist)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (b *base) get(ctx context.Context, url string, headers ...string) (*http.Response, error) {
	var resp *http.Response
	var err error
	slog.Debug("http get", "url", url)
	for range 3 {
		if b.limiter != nil {
			if err = b.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, ErrRateLimit
			}
		}
		req, rerr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if rerr != nil {
			return nil, rerr
		}
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		resp, err = b.client.Do(req)
		if err != nil {
			if isCanceled(err) || ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, ErrRateLimit
		}
		break
	}
	if err != nil {
		return nil, ErrNetworkFailure
	}
	return resp, nil
}

// Candidate is a search hit that still needs to be matched against the track.
type Candidate struct {
	Titles   []string
	Artists  []string
	Duration time.Duration
}

// Match checks title, artist and a duration within two seconds.
func (c *Candidate) Match(t *models.Track) bool {
	altTitle := utils.StripTitle(t.Title)
	titleMatched := false
	for _, title := range c.Titles {
		if strings.EqualFold(title, t.Title) || strings.EqualFold(utils.StripTitle(title), altTitle) {
			titleMatched = true
			break
		}
	}
	if !titleMatched {
		return false
	}
	artistMatched := false
	for _, a := range c.Artists {
		if strings.EqualFold(a, t.Artist) {
			artistMatched = true
			break
		}
	}
	if !artistMatched {
		return false
	}
	if t.DurationMs > 0 && c.Duration > 0 {
		d := time.Duration(t.DurationMs)*time.Millisecond - c.Duration
		if d.Abs() > 2*time.Second {
			return false
		}
	}
	return true
}
