package publishers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scoboslor/player2/models"
)

// Payload is the JSON body sent by the http publisher and pushed by the
// websocket publisher.
type Payload struct {
	Kind   string `json:"kind"`
	Text   string `json:"text,omitempty"`
	Index  int    `json:"index"`
	Artist string `json:"artist,omitempty"`
	Title  string `json:"title,omitempty"`
	Album  string `json:"album,omitempty"`
	Lines  int    `json:"lines,omitempty"`
	// ScrollToTop is set when the displayed document was replaced.
	ScrollToTop bool `json:"scroll_to_top,omitempty"`
}

func NewPayload(e *models.Event) *Payload {
	p := &Payload{
		Kind:        e.Kind.String(),
		Text:        e.Text,
		Index:       e.Index,
		Lines:       e.Lines,
		ScrollToTop: e.Kind == models.EventLyrics,
	}
	if e.Track != nil {
		p.Artist = e.Track.Artist
		p.Title = e.Track.Title
		p.Album = e.Track.Album
	}
	return p
}

type HTTPPublisher struct {
	method string
	url    string
	client *http.Client
}

type HTTPPublisherOptions struct {
	Method string `yaml:"method"`
	URL    string `yaml:"url"`
	// Timeout in milliseconds.
	Timeout int `yaml:"timeout"`
}

func NewHTTPPublisher(opt *HTTPPublisherOptions) *HTTPPublisher {
	method := opt.Method
	if method == "" {
		method = http.MethodPost
	}
	timeout := 5 * time.Second
	if opt.Timeout > 0 {
		timeout = time.Duration(opt.Timeout) * time.Millisecond
	}
	return &HTTPPublisher{
		method: method,
		url:    opt.URL,
		client: &http.Client{Timeout: timeout},
	}
}

func (*HTTPPublisher) ID() string {
	return HTTPPublisherID
}

func (p *HTTPPublisher) Publish(e *models.Event) error {
	body, err := json.Marshal(NewPayload(e))
	if err != nil {
		return err
	}
	r, err := http.NewRequest(p.method, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(r)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", p.method, p.url, resp.StatusCode)
	}
	return nil
}

func (*HTTPPublisher) Exit() error {
	return nil
}
