package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/kelseyhightower/envconfig"
	"go.yaml.in/yaml/v4"

	"github.com/scoboslor/player2/providers"
	"github.com/scoboslor/player2/publishers"
	"github.com/scoboslor/player2/session"
)

const (
	defaultPollInterval = 1000
	defaultRateLimit    = 2
	envPrefix           = "PLAYER2"
)

type rawProvider struct {
	ID      string `yaml:"id"`
	BaseURL string `yaml:"base_url"`
}

type rawPublisher struct {
	ID      string    `yaml:"id"`
	Offset  int       `yaml:"offset"`
	Options yaml.Node `yaml:"options"`
}

type rawConfig struct {
	LogLevel          string          `yaml:"log_level"`
	FetchMode         string          `yaml:"fetch_mode"`
	FetchTimeout      int             `yaml:"fetch_timeout"`
	PollInterval      int             `yaml:"poll_interval"`
	PrefetchThreshold int             `yaml:"prefetch_threshold"`
	ShowTitle         bool            `yaml:"show_title"`
	Player            string          `yaml:"player"`
	RateLimit         *float64        `yaml:"rate_limit"`
	Filters           []string        `yaml:"filters"`
	URLBlacklist      []string        `yaml:"url_blacklist"`
	Providers         []*rawProvider  `yaml:"providers"`
	Publishers        []*rawPublisher `yaml:"publishers"`
}

// envOverrides are read from PLAYER2_* variables and win over the file.
type envOverrides struct {
	LogLevel          *string `envconfig:"LOG_LEVEL"`
	FetchTimeout      *int    `envconfig:"FETCH_TIMEOUT"`
	PrefetchThreshold *int    `envconfig:"PREFETCH_THRESHOLD"`
	Player            *string `envconfig:"PLAYER"`
}

func CreateProvider(p *rawProvider, rateLimit float64) (providers.Provider, error) {
	opt := &providers.Options{BaseURL: p.BaseURL, RateLimit: rateLimit}
	var provider providers.Provider
	switch p.ID {
	case providers.LRCLIBProviderID:
		provider = providers.NewLRCLIBProvider(opt)
	case providers.NCMProviderID:
		provider = providers.NewNCMProvider(opt)
	case providers.KugouProviderID:
		provider = providers.NewKugouProvider(opt)
	case providers.KuwoProviderID:
		provider = providers.NewKuwoProvider(opt)
	case providers.MXMProviderID:
		provider = providers.NewMXMProvider(opt)
	case providers.EmbeddedProviderID:
		provider = providers.NewEmbeddedProvider()
	default:
		return nil, fmt.Errorf("unknown provider %q", p.ID)
	}
	return provider, nil
}

// CreatePublisher builds a publisher. conn is only used by the dbus
// publisher and may be nil otherwise.
func CreatePublisher(p *rawPublisher, conn *dbus.Conn) (publishers.Publisher, error) {
	switch p.ID {
	case publishers.FilePublisherID:
		opt := &publishers.FilePublisherOptions{}
		err := p.Options.Decode(opt)
		if err != nil {
			return nil, err
		}
		return publishers.NewFilePublisher(opt)
	case publishers.HTTPPublisherID:
		opt := &publishers.HTTPPublisherOptions{}
		err := p.Options.Decode(opt)
		if err != nil {
			return nil, err
		}
		return publishers.NewHTTPPublisher(opt), nil
	case publishers.WebSocketPublisherID:
		opt := &publishers.WebSocketPublisherOptions{}
		err := p.Options.Decode(opt)
		if err != nil {
			return nil, err
		}
		return publishers.NewWebSocketPublisher(opt)
	case publishers.DBusPublisherID:
		if conn == nil {
			return nil, errors.New("dbus publisher needs a session bus connection")
		}
		opt := &publishers.DBusPublisherOptions{}
		err := p.Options.Decode(opt)
		if err != nil {
			return nil, err
		}
		return publishers.NewDBusPublisher(conn, opt), nil
	}
	return nil, fmt.Errorf("unknown publisher %q", p.ID)
}

type Config struct {
	LogLevel          slog.Level
	FetchMode         providers.FetchMode
	FetchTimeout      time.Duration
	PollInterval      time.Duration
	PrefetchThreshold time.Duration
	ShowTitle         bool
	Player            string
	RateLimit         float64
	Filters           []string
	URLBlacklist      []string
	Providers         []providers.Provider
	Publishers        []*rawPublisher
}

// ParseConfig reads the YAML file at path. A missing file yields the
// defaults.
func ParseConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return parseConfig(buf)
}

func parseConfig(buf []byte) (*Config, error) {
	var raw rawConfig
	err := yaml.Unmarshal(buf, &raw)
	if err != nil {
		return nil, err
	}

	var env envOverrides
	err = envconfig.Process(envPrefix, &env)
	if err != nil {
		return nil, err
	}
	if env.LogLevel != nil {
		raw.LogLevel = *env.LogLevel
	}
	if env.FetchTimeout != nil {
		raw.FetchTimeout = *env.FetchTimeout
	}
	if env.PrefetchThreshold != nil {
		raw.PrefetchThreshold = *env.PrefetchThreshold
	}
	if env.Player != nil {
		raw.Player = *env.Player
	}

	rateLimit := float64(defaultRateLimit)
	if raw.RateLimit != nil {
		rateLimit = *raw.RateLimit
	}
	if len(raw.Providers) == 0 {
		raw.Providers = []*rawProvider{{ID: providers.LRCLIBProviderID}}
	}
	provs := make([]providers.Provider, 0, len(raw.Providers))
	for _, p := range raw.Providers {
		provider, err := CreateProvider(p, rateLimit)
		if err != nil {
			slog.Warn("skipping provider", "error", err)
			continue
		}
		provs = append(provs, provider)
	}

	var fetchMode providers.FetchMode
	switch raw.FetchMode {
	case "fallback", "":
		fetchMode = providers.FetchModeFallback
	case "fastest":
		fetchMode = providers.FetchModeFastest
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", raw.FetchMode)
	}

	logLevel, err := parseLogLevel(raw.LogLevel)
	if err != nil {
		return nil, err
	}

	pollInterval := raw.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	prefetchThreshold := time.Duration(raw.PrefetchThreshold) * time.Millisecond
	if prefetchThreshold <= 0 {
		prefetchThreshold = session.DefaultPrefetchThreshold
	}
	if raw.FetchTimeout < 0 {
		return nil, fmt.Errorf("negative fetch timeout %d", raw.FetchTimeout)
	}

	config := &Config{
		LogLevel:          logLevel,
		FetchMode:         fetchMode,
		FetchTimeout:      time.Duration(raw.FetchTimeout) * time.Millisecond,
		PollInterval:      time.Duration(pollInterval) * time.Millisecond,
		PrefetchThreshold: prefetchThreshold,
		ShowTitle:         raw.ShowTitle,
		Player:            raw.Player,
		RateLimit:         rateLimit,
		Filters:           raw.Filters,
		URLBlacklist:      raw.URLBlacklist,
		Providers:         provs,
		Publishers:        raw.Publishers,
	}

	return config, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
