package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/scoboslor/player2/providers"
	"github.com/scoboslor/player2/publishers"
	"github.com/scoboslor/player2/session"
)

func TestParseConfigDefaults(t *testing.T) {
	config, err := ParseConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if config.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %v", config.LogLevel)
	}
	if config.FetchMode != providers.FetchModeFallback {
		t.Errorf("fetch mode = %v", config.FetchMode)
	}
	if config.PollInterval != time.Second {
		t.Errorf("poll interval = %v", config.PollInterval)
	}
	if config.PrefetchThreshold != session.DefaultPrefetchThreshold {
		t.Errorf("prefetch threshold = %v", config.PrefetchThreshold)
	}
	if config.RateLimit != defaultRateLimit {
		t.Errorf("rate limit = %v", config.RateLimit)
	}
	if len(config.Providers) != 1 || config.Providers[0].ID() != providers.LRCLIBProviderID {
		t.Errorf("default providers = %v", config.Providers)
	}
}

func TestParseConfig(t *testing.T) {
	buf := []byte(`
log_level: warn
fetch_mode: fastest
fetch_timeout: 3000
poll_interval: 500
prefetch_threshold: 15000
show_title: true
player: spotify
rate_limit: 0
filters: ["作词", "作曲"]
url_blacklist: ["ads.example"]
providers:
  - id: ncm
  - id: lrclib
    base_url: http://localhost:3000/api
  - id: unknown
publishers:
  - id: websocket
    offset: -200
    options:
      address: 127.0.0.1:0
`)
	config, err := parseConfig(buf)
	if err != nil {
		t.Fatal(err)
	}
	if config.LogLevel != slog.LevelWarn || config.FetchMode != providers.FetchModeFastest {
		t.Errorf("level %v mode %v", config.LogLevel, config.FetchMode)
	}
	if config.FetchTimeout != 3*time.Second || config.PollInterval != 500*time.Millisecond {
		t.Errorf("timeout %v interval %v", config.FetchTimeout, config.PollInterval)
	}
	if config.PrefetchThreshold != 15*time.Second {
		t.Errorf("prefetch threshold = %v", config.PrefetchThreshold)
	}
	if !config.ShowTitle || config.Player != "spotify" || config.RateLimit != 0 {
		t.Errorf("show_title %v player %q rate %v", config.ShowTitle, config.Player, config.RateLimit)
	}
	if len(config.Filters) != 2 || len(config.URLBlacklist) != 1 {
		t.Errorf("filters %v blacklist %v", config.Filters, config.URLBlacklist)
	}
	if len(config.Providers) != 2 {
		t.Fatalf("unknown providers should be skipped, got %d", len(config.Providers))
	}
	if config.Providers[0].ID() != providers.NCMProviderID || config.Providers[1].ID() != providers.LRCLIBProviderID {
		t.Errorf("providers out of order")
	}
	if len(config.Publishers) != 1 || config.Publishers[0].Offset != -200 {
		t.Fatalf("publishers = %+v", config.Publishers)
	}
}

func TestParseConfigErrors(t *testing.T) {
	for _, buf := range []string{
		"log_level: loud",
		"fetch_mode: slowest",
		"fetch_timeout: -1",
		"providers: 3",
	} {
		if _, err := parseConfig([]byte(buf)); err == nil {
			t.Errorf("parseConfig(%q) succeeded", buf)
		}
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("PLAYER2_LOG_LEVEL", "debug")
	t.Setenv("PLAYER2_FETCH_TIMEOUT", "1500")
	t.Setenv("PLAYER2_PREFETCH_THRESHOLD", "20000")
	t.Setenv("PLAYER2_PLAYER", "mpv")
	config, err := parseConfig([]byte("log_level: error\nplayer: spotify\n"))
	if err != nil {
		t.Fatal(err)
	}
	if config.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", config.LogLevel)
	}
	if config.FetchTimeout != 1500*time.Millisecond || config.PrefetchThreshold != 20*time.Second {
		t.Errorf("timeout %v threshold %v", config.FetchTimeout, config.PrefetchThreshold)
	}
	if config.Player != "mpv" {
		t.Errorf("player = %q", config.Player)
	}
}

func TestCreatePublisher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	config, err := parseConfig(fmt.Appendf(nil, `
publishers:
  - id: file
    options:
      path: %s
      format: "%%s\n"
  - id: dbus
  - id: carrier-pigeon
`, path))
	if err != nil {
		t.Fatal(err)
	}
	p, err := CreatePublisher(config.Publishers[0], nil)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Exit()
	if p.ID() != publishers.FilePublisherID {
		t.Errorf("id = %s", p.ID())
	}
	if _, err := CreatePublisher(config.Publishers[1], nil); err == nil {
		t.Error("dbus publisher without a connection should fail")
	}
	if _, err := CreatePublisher(config.Publishers[2], nil); err == nil {
		t.Error("unknown publisher should fail")
	}
}

func TestNewChainPutsEmbeddedFirst(t *testing.T) {
	config, err := parseConfig([]byte("providers: [{id: lrclib}, {id: embedded}]"))
	if err != nil {
		t.Fatal(err)
	}
	if n := newChain(config).Len(); n != 2 {
		t.Errorf("chain has %d providers, want 2", n)
	}
}

func TestCreateProviderKnowsEverySource(t *testing.T) {
	for _, id := range []string{
		providers.LRCLIBProviderID,
		providers.NCMProviderID,
		providers.KugouProviderID,
		providers.KuwoProviderID,
		providers.MXMProviderID,
		providers.EmbeddedProviderID,
	} {
		p, err := CreateProvider(&rawProvider{ID: id}, defaultRateLimit)
		if err != nil {
			t.Errorf("CreateProvider(%s): %v", id, err)
			continue
		}
		if p.ID() != id {
			t.Errorf("CreateProvider(%s) built %s", id, p.ID())
		}
	}
}
