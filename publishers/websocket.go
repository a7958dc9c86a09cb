package publishers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/scoboslor/player2/models"
)

type WebSocketPublisherClient struct {
	send chan *Payload
	conn *websocket.Conn
}

// WebSocketPublisher pushes every event as JSON to connected clients and
// serves the latest state at /state.
type WebSocketPublisher struct {
	mu      sync.Mutex
	closed  bool
	clients map[*WebSocketPublisherClient]struct{}
	last    *Payload
	state   Payload
	handler http.Handler
	server  *http.Server
}

type WebSocketPublisherOptions struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func NewWebSocketPublisher(opt *WebSocketPublisherOptions) (*WebSocketPublisher, error) {
	p := newWebSocketPublisher(opt)
	ln, err := net.Listen("tcp", opt.Address)
	if err != nil {
		return nil, err
	}
	p.server = &http.Server{Handler: p.handler}
	go func() {
		err := p.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("websocket server stopped", "error", err, "address", opt.Address)
		}
	}()
	slog.Info("websocket publisher listening", "address", ln.Addr().String())
	return p, nil
}

func newWebSocketPublisher(opt *WebSocketPublisherOptions) *WebSocketPublisher {
	p := &WebSocketPublisher{
		clients: make(map[*WebSocketPublisherClient]struct{}),
		state:   Payload{Kind: models.EventClear.String(), Index: -1},
	}

	router := mux.NewRouter()
	router.HandleFunc("/state", p.stateFunc).Methods(http.MethodGet)
	router.HandleFunc("/", p.indexFunc)

	origins := opt.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet},
	})
	p.handler = c.Handler(router)
	return p
}

func (*WebSocketPublisher) ID() string {
	return WebSocketPublisherID
}

func (p *WebSocketPublisher) Handler() http.Handler {
	return p.handler
}

func (p *WebSocketPublisher) indexFunc(w http.ResponseWriter, r *http.Request) {
	upgrader := &websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
		Error:       func(http.ResponseWriter, *http.Request, int, error) {},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.stateFunc(w, r)
		return
	}

	c := &WebSocketPublisherClient{
		send: make(chan *Payload, 4),
		conn: conn,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.clients[c] = struct{}{}
	last := p.last
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.clients, c)
		p.mu.Unlock()
		conn.Close()
	}()

	// detect the peer going away
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	if last != nil {
		err = conn.WriteJSON(last)
		if err != nil {
			return
		}
	}
	for payload := range c.send {
		err = conn.WriteJSON(payload)
		if err != nil {
			return
		}
		if payload.Kind == models.EventExit.String() {
			break
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (p *WebSocketPublisher) stateFunc(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&state)
}

func (p *WebSocketPublisher) Publish(e *models.Event) error {
	payload := NewPayload(e)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.last = payload
	p.apply(payload)
	exit := payload.Kind == models.EventExit.String()
	// slow clients miss lines rather than stall the controller
	for c := range p.clients {
		select {
		case c.send <- payload:
		default:
			if !exit {
				continue
			}
			// the exit payload replaces the oldest queued one
			select {
			case <-c.send:
			default:
			}
			c.send <- payload
		}
	}
	return nil
}

// apply folds an event into the state served at /state.
func (p *WebSocketPublisher) apply(payload *Payload) {
	s := &p.state
	s.Kind = payload.Kind
	switch payload.Kind {
	case models.EventLyrics.String():
		s.Artist, s.Title, s.Album = payload.Artist, payload.Title, payload.Album
		s.Lines = payload.Lines
		s.Text, s.Index = "", -1
	case models.EventTitle.String():
		s.Artist, s.Title, s.Album = payload.Artist, payload.Title, payload.Album
		s.Text = payload.Text
	case models.EventLine.String():
		s.Text, s.Index = payload.Text, payload.Index
	case models.EventClear.String(), models.EventExit.String():
		s.Text, s.Index = "", -1
	}
	s.ScrollToTop = false
}

// Exit ends every client stream and stops the server.
func (p *WebSocketPublisher) Exit() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for c := range p.clients {
		close(c.send)
	}
	clear(p.clients)
	p.mu.Unlock()
	if p.server == nil {
		return nil
	}
	return p.server.Close()
}
