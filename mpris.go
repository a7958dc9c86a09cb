package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/scoboslor/player2/models"
)

const (
	mprisPath      = "/org/mpris/MediaPlayer2"
	mprisPrefix    = "org.mpris.MediaPlayer2."
	playerIface    = "org.mpris.MediaPlayer2.Player"
	trackListIface = "org.mpris.MediaPlayer2.TrackList"
	propsIface     = "org.freedesktop.DBus.Properties"

	debounceDelay = 20 * time.Millisecond
)

// MPRIS observes desktop players over the session bus and emits playback
// states: one per signal batch and one per poll tick while playing.
type MPRIS struct {
	statesCh      chan<- models.PlaybackState
	conn          *dbus.Conn
	player        string
	interval      time.Duration
	mu            sync.Mutex
	state         models.PlaybackState
	focus         dbus.BusObject
	cancelChecker context.CancelFunc
	debouncer     *time.Timer
	signals       chan *dbus.Signal
	closed        bool
	quit          chan struct{}
	// wg tracks every goroutine that sends on statesCh.
	wg sync.WaitGroup
}

type MPRISOptions struct {
	StatesCh chan<- models.PlaybackState
	Conn     *dbus.Conn
	// Player restricts observation to bus names containing it.
	Player       string
	PollInterval time.Duration
}

func NewMPRIS(opt *MPRISOptions) *MPRIS {
	interval := opt.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &MPRIS{
		statesCh: opt.StatesCh,
		conn:     opt.Conn,
		player:   opt.Player,
		interval: interval,
		quit:     make(chan struct{}),
	}
}

func (m *MPRIS) Serve() error {
	m.mu.Lock()
	m.spawnChecker()
	m.mu.Unlock()
	return m.listenSignals()
}

// spawnChecker starts a checker unless Exit has run. Callers hold m.mu.
func (m *MPRIS) spawnChecker() {
	if m.closed {
		return
	}
	m.wg.Go(m.startChecker)
}

func (m *MPRIS) listenSignals() error {
	err := m.conn.AddMatchSignal(
		dbus.WithMatchPathNamespace(mprisPath),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return fmt.Errorf("failed to add match signal: %w", err)
	}
	err = m.conn.AddMatchSignal(
		dbus.WithMatchPathNamespace(mprisPath),
		dbus.WithMatchInterface(playerIface),
		dbus.WithMatchMember("Seeked"),
	)
	if err != nil {
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.signals = make(chan *dbus.Signal, 8)
	m.conn.Signal(m.signals)
	m.mu.Unlock()
	for {
		var signal *dbus.Signal
		select {
		case <-m.quit:
			return nil
		case signal = <-m.signals:
		}
		if !m.accepts(signal.Sender) {
			continue
		}
		m.mu.Lock()
		switch signal.Name {
		case propsIface + ".PropertiesChanged":
			m.onPropertiesChanged(signal)
		case playerIface + ".Seeked":
			m.onSeeked(signal)
		}
		m.debounce(m.state.Clone())
		m.mu.Unlock()
	}
}

// debounce sends state after a short quiet period, since some players need
// more than one signal to fully update metadata. Callers hold m.mu.
func (m *MPRIS) debounce(state models.PlaybackState) {
	if m.closed {
		return
	}
	if m.debouncer != nil && m.debouncer.Stop() {
		m.wg.Done()
	}
	m.wg.Add(1)
	m.debouncer = time.AfterFunc(debounceDelay, func() {
		defer m.wg.Done()
		m.statesCh <- state
	})
}

// accepts reports whether a signal from sender belongs to the observed
// player. Senders are unique names, so they are resolved to owners lazily.
func (m *MPRIS) accepts(sender string) bool {
	if m.player == "" {
		return true
	}
	m.mu.Lock()
	focus := m.focus
	m.mu.Unlock()
	if focus == nil {
		return false
	}
	var owner string
	err := m.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, focus.Destination()).Store(&owner)
	return err == nil && owner == sender
}

func (m *MPRIS) getBackends() []dbus.BusObject {
	var names []string
	err := m.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil
	}
	var backends []dbus.BusObject
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		if m.player != "" && !strings.Contains(name, m.player) {
			continue
		}
		backends = append(backends, m.conn.Object(name, mprisPath))
	}
	return backends
}

func (m *MPRIS) updatePosition(obj dbus.BusObject) {
	var position int64
	err := obj.Call(propsIface+".Get", 0, playerIface, "Position").Store(&position)
	if err != nil {
		slog.Warn("failed to get position", "error", err, "player", obj.Destination())
		m.mu.Lock()
		if m.cancelChecker != nil {
			m.cancelChecker()
			m.cancelChecker = nil
		}
		m.focus = nil
		m.mu.Unlock()
		m.statesCh <- models.PlaybackState{}
		return
	}
	next := nextTrack(obj)
	m.mu.Lock()
	m.state.Position = int(position / 1000)
	m.state.Next = next
	state := m.state.Clone()
	m.mu.Unlock()
	m.statesCh <- state
}

func (m *MPRIS) startChecker() {
	var focus dbus.BusObject
	var state models.PlaybackState
	for _, backend := range m.getBackends() {
		call := backend.Call(propsIface+".GetAll", 0, playerIface)
		if call.Err != nil || len(call.Body) == 0 {
			continue
		}
		props, ok := call.Body[0].(map[string]dbus.Variant)
		if !ok {
			continue
		}
		state = parseProperties(props)
		if state.Status != models.PlaybackStatusPlaying {
			continue
		}
		focus = backend
		break
	}
	if focus == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return
	}
	if m.cancelChecker != nil {
		m.cancelChecker()
	}
	m.cancelChecker = cancel
	m.focus = focus
	m.state = state
	m.mu.Unlock()
	slog.Info("observing player", "player", focus.Destination())

	m.updatePosition(focus)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.updatePosition(focus)
		}
	}
}

func (m *MPRIS) onPropertiesChanged(signal *dbus.Signal) {
	if len(signal.Body) < 2 {
		return
	}
	p, ok := signal.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	if md, ok := p["Metadata"]; ok {
		if meta, ok := md.Value().(map[string]dbus.Variant); ok {
			m.state.Track = parseMetadata(meta)
		}
	}
	if ps, ok := p["PlaybackStatus"]; ok {
		var playbackStatus string
		ps.Store(&playbackStatus)
		m.state.Status = parsePlaybackStatus(playbackStatus)
		if m.cancelChecker != nil {
			m.cancelChecker()
			m.cancelChecker = nil
		}
		if m.state.Status == models.PlaybackStatusPlaying {
			go m.startChecker()
		}
	}
}

func (m *MPRIS) onSeeked(signal *dbus.Signal) {
	if len(signal.Body) == 0 {
		return
	}
	if position, ok := signal.Body[0].(int64); ok {
		m.state.Position = int(position / 1000)
	}
}

// Exit stops observing and returns once nothing can send on statesCh, so
// the caller may close it afterwards.
func (m *MPRIS) Exit() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.quit)
	if m.cancelChecker != nil {
		m.cancelChecker()
		m.cancelChecker = nil
	}
	if m.debouncer != nil && m.debouncer.Stop() {
		m.wg.Done()
	}
	if m.signals != nil {
		m.conn.RemoveSignal(m.signals)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// nextTrack reads the queue head through the optional TrackList interface.
func nextTrack(obj dbus.BusObject) *models.Track {
	var tracks []dbus.ObjectPath
	err := obj.Call(propsIface+".Get", 0, trackListIface, "Tracks").Store(&tracks)
	if err != nil || len(tracks) == 0 {
		return nil
	}
	var current dbus.ObjectPath
	var meta map[string]dbus.Variant
	err = obj.Call(propsIface+".Get", 0, playerIface, "Metadata").Store(&meta)
	if err == nil {
		if v, ok := meta["mpris:trackid"]; ok {
			current, _ = v.Value().(dbus.ObjectPath)
		}
	}
	next := tracks[0]
	for i, id := range tracks {
		if id == current {
			if i+1 >= len(tracks) {
				return nil
			}
			next = tracks[i+1]
			break
		}
	}
	var metas []map[string]dbus.Variant
	err = obj.Call(trackListIface+".GetTracksMetadata", 0, []dbus.ObjectPath{next}).Store(&metas)
	if err != nil || len(metas) == 0 {
		return nil
	}
	return parseMetadata(metas[0])
}

func parsePlaybackStatus(ps string) models.PlaybackStatus {
	switch ps {
	case "Playing":
		return models.PlaybackStatusPlaying
	case "Paused":
		return models.PlaybackStatusPaused
	case "Stopped":
		return models.PlaybackStatusStopped
	}
	return models.PlaybackStatusUnknown
}

func parseMetadata(m map[string]dbus.Variant) *models.Track {
	t := &models.Track{}
	if id, ok := m["mpris:trackid"]; ok {
		switch v := id.Value().(type) {
		case dbus.ObjectPath:
			t.ID = string(v)
		case string:
			t.ID = v
		}
	}
	if title, ok := m["xesam:title"]; ok {
		s, _ := title.Value().(string)
		t.Title = strings.TrimSpace(s)
	}
	if artists, ok := m["xesam:artist"]; ok {
		if a, ok := artists.Value().([]string); ok && len(a) > 0 {
			t.Artist = strings.TrimSpace(a[0])
		}
	}
	if album, ok := m["xesam:album"]; ok {
		s, _ := album.Value().(string)
		t.Album = strings.TrimSpace(s)
	}
	if text, ok := m["xesam:asText"]; ok {
		t.Lyrics, _ = text.Value().(string)
	}
	if url, ok := m["xesam:url"]; ok {
		t.URL, _ = url.Value().(string)
	}
	if length, ok := m["mpris:length"]; ok {
		switch v := length.Value().(type) {
		case int64:
			t.DurationMs = int(v / 1000)
		case uint64:
			t.DurationMs = int(v / 1000)
		}
	}
	return t
}

func parseProperties(p map[string]dbus.Variant) models.PlaybackState {
	state := models.PlaybackState{}
	if metadata, ok := p["Metadata"]; ok {
		if meta, ok := metadata.Value().(map[string]dbus.Variant); ok {
			state.Track = parseMetadata(meta)
		}
	}
	if position, ok := p["Position"]; ok {
		if v, ok := position.Value().(int64); ok {
			state.Position = int(v / 1000)
		}
	}
	if playbackStatus, ok := p["PlaybackStatus"]; ok {
		s, _ := playbackStatus.Value().(string)
		state.Status = parsePlaybackStatus(s)
	}
	return state
}
