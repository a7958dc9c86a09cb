package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/utils"
)

type FetchMode int

const (
	FetchModeFallback FetchMode = iota
	FetchModeFastest
)

// Chain asks several providers for the same track. It reports ErrNoLyrics
// only when every provider confirmed the absence, so a transient failure in
// one of them keeps the result out of negative caches.
type Chain struct {
	providers []Provider
	mode      FetchMode
}

func NewChain(mode FetchMode, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		mode:      mode,
	}
}

func (c *Chain) Len() int {
	return len(c.providers)
}

func (c *Chain) Lookup(ctx context.Context, t *models.Track) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrNoLyrics
	}
	switch c.mode {
	case FetchModeFastest:
		return c.fetchFastest(ctx, t)
	default:
		return c.fetchFallback(ctx, t)
	}
}

func (c *Chain) fetchFallback(ctx context.Context, t *models.Track) (string, error) {
	trackname := utils.FormatTrack(t)
	var lastErr error
	for _, prov := range c.providers {
		slog.Info("fetching lyrics", "track", trackname, "source", prov.ID())
		lrc, err := prov.Lookup(ctx, t)
		if err == nil {
			return lrc, nil
		}
		if isCanceled(err) {
			return "", err
		}
		if !errors.Is(err, ErrNoLyrics) {
			slog.Warn(err.Error(), "track", trackname, "source", prov.ID())
			lastErr = fmt.Errorf("%s: %w", prov.ID(), err)
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoLyrics
}

type result struct {
	lrc string
	err error
	id  string
}

func (c *Chain) fetchFastest(ctx context.Context, t *models.Track) (string, error) {
	trackname := utils.FormatTrack(t)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wg := sync.WaitGroup{}
	resultCh := make(chan result, len(c.providers))
	for _, prov := range c.providers {
		slog.Info("fetching lyrics", "track", trackname, "source", prov.ID())
		wg.Go(func() {
			lrc, err := prov.Lookup(ctx, t)
			resultCh <- result{lrc: lrc, err: err, id: prov.ID()}
		})
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()
	var lastErr error
	for r := range resultCh {
		if r.err == nil {
			return r.lrc, nil
		}
		if isCanceled(r.err) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if !errors.Is(r.err, ErrNoLyrics) {
			slog.Warn(r.err.Error(), "track", trackname, "source", r.id)
			lastErr = fmt.Errorf("%s: %w", r.id, r.err)
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoLyrics
}
