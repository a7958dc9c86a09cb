// Package session keeps the lyrics of the currently playing track: it looks
// them up on track changes, prefetches the next queued item shortly before
// the current one ends, and discards results superseded by a newer track.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/providers"
	"github.com/scoboslor/player2/utils"
)

const DefaultPrefetchThreshold = 10 * time.Second

// Lookup fetches LRC text for a track. ErrNoLyrics from the providers
// package marks a confirmed absence.
type Lookup interface {
	Lookup(context.Context, *models.Track) (string, error)
}

type State struct {
	Track      *models.Track
	Next       *models.Track
	Document   *models.Document // nil when there are no lyrics
	ActiveLine int
	Loading    bool
}

type Update struct {
	State
	// ScrollToTop is set once, on the update that replaces the document.
	ScrollToTop bool
}

type Options struct {
	Lookup            Lookup
	Cache             *Cache
	Updates           chan<- Update
	FetchTimeout      time.Duration
	PrefetchThreshold time.Duration
}

type Manager struct {
	lookup            Lookup
	cache             *Cache
	updates           chan<- Update
	fetchTimeout      time.Duration
	prefetchThreshold time.Duration

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu             sync.Mutex
	state          State
	generation     int
	cancelFetching context.CancelFunc
	prefetched     string
	closed         bool
}

func NewManager(opt *Options) *Manager {
	cache := opt.Cache
	if cache == nil {
		cache = NewCache()
	}
	threshold := opt.PrefetchThreshold
	if threshold <= 0 {
		threshold = DefaultPrefetchThreshold
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		lookup:            opt.Lookup,
		cache:             cache,
		updates:           opt.Updates,
		fetchTimeout:      opt.FetchTimeout,
		prefetchThreshold: threshold,
		ctx:               ctx,
		stop:              stop,
		state:             State{ActiveLine: -1},
	}
}

// OnTrackChanged switches the session to track. A nil track means nothing is
// playing.
func (m *Manager) OnTrackChanged(track *models.Track, next *models.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeTrack(track)
	m.state.Next = next.Clone()
}

// OnProgress resolves the active line at progress and prefetches next when
// the current track is about to end. It returns the active line index or -1.
func (m *Manager) OnProgress(track *models.Track, progress int, next *models.Track) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !track.Same(m.state.Track) {
		slog.Debug("track changed on progress", "track", utils.FormatTrack(track))
		m.changeTrack(track)
	}
	m.state.Next = next.Clone()
	m.state.ActiveLine = m.state.Document.IndexOf(progress, 0)

	if track.Valid() && next.Valid() && track.DurationMs > 0 && !next.Same(track) {
		remaining := time.Duration(track.DurationMs-progress) * time.Millisecond
		key := utils.TrackKey(next)
		if remaining < m.prefetchThreshold && key != m.prefetched {
			m.prefetched = key
			m.prefetch(next.Clone())
		}
	}
	return m.state.ActiveLine
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Wait blocks until every in-flight lookup has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.generation++
	if m.cancelFetching != nil {
		m.cancelFetching()
		m.cancelFetching = nil
	}
	m.mu.Unlock()
	m.stop()
	m.wg.Wait()
}

func (m *Manager) changeTrack(track *models.Track) {
	if m.cancelFetching != nil {
		m.cancelFetching()
		m.cancelFetching = nil
	}
	m.generation++
	m.prefetched = ""
	m.state = State{Track: track.Clone(), ActiveLine: -1}
	if !track.Valid() {
		m.publish(nil)
		return
	}
	trackname := utils.FormatTrack(track)
	if doc, ok := m.cache.Get(utils.TrackKey(track)); ok {
		slog.Info("got cache", "track", trackname)
		m.publish(doc)
		return
	}
	if m.closed || m.lookup == nil {
		m.publish(nil)
		return
	}
	m.state.Loading = true
	m.emit(false)

	ctx, cancel := m.fetchContext()
	m.cancelFetching = cancel
	gen := m.generation
	t := track.Clone()
	m.wg.Go(func() {
		defer cancel()
		doc, err := m.fetch(ctx, t)
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.generation {
			slog.Debug("request discarded", "track", trackname)
			return
		}
		m.cancelFetching = nil
		switch {
		case err == nil:
			slog.Info("got lyrics", "track", trackname, "lines", doc.Len())
			m.publish(doc)
		case errors.Is(err, context.Canceled):
			slog.Debug("fetch canceled", "track", trackname)
		case errors.Is(err, providers.ErrNoLyrics):
			slog.Info("no lyrics available", "track", trackname)
			m.publish(nil)
		default:
			slog.Warn("failed to fetch lyrics", "track", trackname, "error", err)
			m.publish(nil)
		}
	})
}

func (m *Manager) prefetch(next *models.Track) {
	trackname := utils.FormatTrack(next)
	if _, ok := m.cache.Get(utils.TrackKey(next)); ok || m.closed || m.lookup == nil {
		return
	}
	slog.Info("prefetching lyrics", "track", trackname)
	m.wg.Go(func() {
		ctx, cancel := m.fetchContext()
		defer cancel()
		_, err := m.fetch(ctx, next)
		if err != nil && !errors.Is(err, providers.ErrNoLyrics) {
			slog.Warn("prefetch failed", "track", trackname, "error", err)
		}
	})
}

// fetch looks the track up and caches the outcome. Transient failures are
// not cached so a later replay may succeed.
func (m *Manager) fetch(ctx context.Context, t *models.Track) (*models.Document, error) {
	key := utils.TrackKey(t)
	lrc, err := m.lookup.Lookup(ctx, t)
	if err != nil {
		if errors.Is(err, providers.ErrNoLyrics) {
			m.cache.Set(key, nil)
		}
		return nil, err
	}
	doc := utils.ParseLrc(lrc)
	m.cache.Set(key, doc)
	return doc, nil
}

func (m *Manager) fetchContext() (context.Context, context.CancelFunc) {
	if m.fetchTimeout > 0 {
		return context.WithTimeout(m.ctx, m.fetchTimeout)
	}
	return context.WithCancel(m.ctx)
}

func (m *Manager) publish(doc *models.Document) {
	m.state.Document = doc
	m.state.Loading = false
	m.state.ActiveLine = -1
	if doc.Len() > 0 {
		m.state.ActiveLine = 0
	}
	m.emit(true)
}

// emit runs under m.mu so updates leave in publish order.
func (m *Manager) emit(scroll bool) {
	if m.updates == nil || m.closed {
		return
	}
	m.updates <- Update{State: m.snapshot(), ScrollToTop: scroll}
}

func (m *Manager) snapshot() State {
	s := m.state
	s.Track = s.Track.Clone()
	s.Next = s.Next.Clone()
	return s
}
