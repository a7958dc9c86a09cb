package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/publishers"
	"github.com/scoboslor/player2/session"
	"github.com/scoboslor/player2/utils"
)

const tickInterval = 100 * time.Millisecond

type PublisherEntry struct {
	publishers.Publisher
	mu        sync.Mutex
	closed    bool
	ch        chan *models.Event
	done      chan struct{}
	Offset    int
	SentIndex int
}

func NewPublisherEntry(publisher publishers.Publisher, offset int) *PublisherEntry {
	p := &PublisherEntry{
		Publisher: publisher,
		ch:        make(chan *models.Event, 16),
		done:      make(chan struct{}),
		Offset:    offset,
		SentIndex: -1,
	}
	go func() {
		defer close(p.done)
		for e := range p.ch {
			err := p.Publisher.Publish(e)
			if err != nil {
				slog.Error("failed to send", "error", err, "publisher", p.ID(), "event", e.Kind)
			}
		}
	}()
	return p
}

// Send drops the event when the publisher is lagging or has exited.
func (p *PublisherEntry) Send(e *models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- e:
	default:
	}
}

// Deliver queues an event that must not be dropped.
func (p *PublisherEntry) Deliver(e *models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.ch <- e
}

// Clear tells publishers that we're in inactive state.
func (p *PublisherEntry) Clear() {
	p.Deliver(&models.Event{Kind: models.EventClear, Index: -1})
}

func (p *PublisherEntry) Exit() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()
	<-p.done
	if err := p.Publisher.Publish(&models.Event{Kind: models.EventExit, Index: -1}); err != nil {
		slog.Warn("failed to send exit", "error", err, "publisher", p.ID())
	}
	if err := p.Publisher.Exit(); err != nil {
		slog.Warn("failed to close publisher", "error", err, "publisher", p.ID())
	}
}

// Session is the part of session.Manager the controller drives.
type Session interface {
	OnTrackChanged(track *models.Track, next *models.Track)
	OnProgress(track *models.Track, progress int, next *models.Track) int
}

type Controller struct {
	statesCh     <-chan models.PlaybackState
	updates      <-chan session.Update
	session      Session
	publishers   []*PublisherEntry
	showTitle    bool
	filters      *utils.Matcher
	urlBlacklist *utils.Matcher

	mu            sync.Mutex
	state         models.PlaybackState
	document      *models.Document
	position      int
	cancelTicking context.CancelFunc
	wg            sync.WaitGroup
}

type ControllerOptions struct {
	StatesCh     <-chan models.PlaybackState
	Updates      <-chan session.Update
	Session      Session
	Publishers   []*PublisherEntry
	ShowTitle    bool
	Filters      []string
	URLBlacklist []string
}

func NewController(opt *ControllerOptions) *Controller {
	return &Controller{
		statesCh:     opt.StatesCh,
		updates:      opt.Updates,
		session:      opt.Session,
		publishers:   opt.Publishers,
		showTitle:    opt.ShowTitle,
		filters:      utils.NewMatcher(opt.Filters),
		urlBlacklist: utils.NewMatcher(opt.URLBlacklist),
	}
}

func (c *Controller) timedSend(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if ctx.Err() != nil || c.document.Len() == 0 {
				c.mu.Unlock()
				return
			}
			c.position += int(tickInterval / time.Millisecond)
			allDone := true
			for _, p := range c.publishers {
				if !c.document.Ended(c.position, p.Offset) {
					allDone = false
				}
				idx := c.document.IndexOf(c.position, p.Offset)
				if idx == p.SentIndex {
					continue
				}
				p.SentIndex = idx
				if idx == -1 {
					p.Send(&models.Event{Kind: models.EventClear, Index: -1, Track: c.state.Track})
					continue
				}
				p.Send(&models.Event{Kind: models.EventLine, Text: c.document.Get(idx), Index: idx, Track: c.state.Track})
			}
			c.mu.Unlock()
			if allDone {
				return
			}
		}
	}
}

// startTicking replaces the running ticker. Callers hold c.mu.
func (c *Controller) startTicking() {
	c.stopTicking()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelTicking = cancel
	c.wg.Go(func() { c.timedSend(ctx) })
}

func (c *Controller) stopTicking() {
	if c.cancelTicking != nil {
		c.cancelTicking()
		c.cancelTicking = nil
	}
}

func (c *Controller) resetAll() {
	c.stopTicking()
	c.position = 0
	c.document = nil
	for _, p := range c.publishers {
		p.SentIndex = -1
		p.Clear()
	}
}

// setDocument installs doc with filtered lines replaced by the placeholder,
// which keeps the line intervals contiguous.
func (c *Controller) setDocument(doc *models.Document) {
	if doc == nil || c.filters == nil {
		c.document = doc
		return
	}
	filtered := &models.Document{
		Lines:    make([]*models.Line, len(doc.Lines)),
		Error:    doc.Error,
		SyncType: doc.SyncType,
	}
	for i, line := range doc.Lines {
		if c.filters.Contains(line.Words) {
			l := *line
			l.Words = models.Placeholder
			line = &l
		}
		filtered.Lines[i] = line
	}
	c.document = filtered
}

func (c *Controller) blacklisted(t *models.Track) bool {
	return t != nil && t.URL != "" && c.urlBlacklist.Contains(t.URL)
}

// process folds a playback state into the controller and forwards it to the
// session. The session is called without holding c.mu.
func (c *Controller) process(state models.PlaybackState) {
	slog.Debug("process", "track", utils.FormatTrack(state.Track), "position", state.Position, "status", state.Status)
	c.mu.Lock()
	prev := c.state
	c.state = state.Clone()

	var changed, active bool
	switch {
	case state.Status == models.PlaybackStatusUnknown && state.Track == nil:
		slog.Info("backend reset")
		c.resetAll()
		changed = !prev.Track.Same(nil)
	case !state.Track.Same(prev.Track):
		changed = true
		c.resetAll()
		if !state.Track.Valid() {
			slog.Info("invalid metadata")
			break
		}
		if c.blacklisted(state.Track) {
			slog.Info("blacklisted", "url", state.Track.URL)
			break
		}
		active = true
		trackStr := utils.FormatTrack(state.Track)
		slog.Info("playback changed", "track", trackStr)
		if c.showTitle {
			for _, p := range c.publishers {
				p.Send(&models.Event{Kind: models.EventTitle, Text: trackStr, Index: -1, Track: c.state.Track})
			}
		}
	case state.Status != prev.Status:
		active = state.Track.Valid() && !c.blacklisted(state.Track)
		if !active {
			c.stopTicking()
			break
		}
		if state.Status == models.PlaybackStatusPlaying {
			slog.Info("playback started")
			for _, p := range c.publishers {
				if idx := c.document.IndexOf(state.Position, p.Offset); idx != -1 {
					p.SentIndex = idx
					p.Send(&models.Event{Kind: models.EventLine, Text: c.document.Get(idx), Index: idx, Track: c.state.Track})
				} else if c.showTitle && state.Track.Valid() {
					p.Send(&models.Event{Kind: models.EventTitle, Text: utils.FormatTrack(state.Track), Index: -1, Track: c.state.Track})
				}
			}
			if c.document.Len() > 0 {
				c.startTicking()
			}
		} else {
			slog.Info("playback stopped")
			c.stopTicking()
			for _, p := range c.publishers {
				p.Clear()
			}
		}
	default:
		active = state.Track.Valid() && !c.blacklisted(state.Track)
	}
	if changed || state.Position != prev.Position {
		c.position = state.Position
	}
	c.mu.Unlock()

	if changed && !active {
		c.session.OnTrackChanged(nil, nil)
		return
	}
	if changed {
		c.session.OnTrackChanged(state.Track, state.Next)
		return
	}
	if active {
		c.session.OnProgress(state.Track, state.Position, state.Next)
	}
}

// apply installs a session update. Updates for a track other than the one
// playing are stale and skipped.
func (c *Controller) apply(u session.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !u.ScrollToTop {
		return
	}
	if u.Track == nil || !u.Track.Same(c.state.Track) || !c.state.Track.Valid() {
		return
	}
	trackStr := utils.FormatTrack(u.Track)
	c.setDocument(u.Document)
	c.stopTicking()
	for _, p := range c.publishers {
		p.SentIndex = -1
		p.Deliver(&models.Event{Kind: models.EventLyrics, Index: -1, Track: u.Track, Lines: c.document.Len()})
	}
	if c.document.Len() == 0 {
		slog.Debug("nothing to show", "track", trackStr)
		return
	}
	slog.Info("showing lyrics", "track", trackStr, "lines", c.document.Len())
	if c.state.Status == models.PlaybackStatusPlaying {
		c.startTicking()
	}
}

// Serve runs until both the states and update channels are closed.
func (c *Controller) Serve() {
	var wg sync.WaitGroup
	if c.updates != nil {
		wg.Go(func() {
			for u := range c.updates {
				c.apply(u)
			}
		})
	}
	for state := range c.statesCh {
		c.process(state)
	}
	wg.Wait()
}

// Exit stops the ticker and closes every publisher. Call it after Serve has
// returned.
func (c *Controller) Exit() {
	c.mu.Lock()
	c.stopTicking()
	c.mu.Unlock()
	c.wg.Wait()
	for _, p := range c.publishers {
		p.Exit()
	}
}
