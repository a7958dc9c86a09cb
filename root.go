package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/scoboslor/player2/models"
	"github.com/scoboslor/player2/providers"
	"github.com/scoboslor/player2/session"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "player2",
	Short: "synchronized lyrics for desktop music players",
	Long: `player2 follows the active MPRIS player, looks up line-synced lyrics for the
playing track and publishes the active line to files, pipes, HTTP endpoints,
websocket clients and D-Bus.

when run without a subcommand, it starts the daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/player2/config.yaml)")
	rootCmd.AddCommand(parseCmd, lookupCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*Config, error) {
	path := configPath
	if path == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user config directory: %w", err)
		}
		path = filepath.Join(userConfigDir, "player2", "config.yaml")
	}
	config, err := ParseConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	slog.SetLogLoggerLevel(config.LogLevel)
	return config, nil
}

// newChain puts player-embedded lyrics ahead of the configured providers.
func newChain(config *Config) *providers.Chain {
	provs := []providers.Provider{providers.NewEmbeddedProvider()}
	for _, p := range config.Providers {
		if p.ID() == providers.EmbeddedProviderID {
			continue
		}
		provs = append(provs, p)
	}
	return providers.NewChain(config.FetchMode, provs...)
}

func runDaemon() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	pubs := make([]*PublisherEntry, 0, len(config.Publishers))
	for _, p := range config.Publishers {
		publisher, err := CreatePublisher(p, conn)
		if err != nil {
			slog.Error("skipping publisher", "error", err, "publisher", p.ID)
			continue
		}
		pubs = append(pubs, NewPublisherEntry(publisher, p.Offset))
	}

	statesCh := make(chan models.PlaybackState, 8)
	updates := make(chan session.Update, 8)
	manager := session.NewManager(&session.Options{
		Lookup:            newChain(config),
		Cache:             session.NewCache(),
		Updates:           updates,
		FetchTimeout:      config.FetchTimeout,
		PrefetchThreshold: config.PrefetchThreshold,
	})
	controller := NewController(&ControllerOptions{
		StatesCh:     statesCh,
		Updates:      updates,
		Session:      manager,
		Publishers:   pubs,
		ShowTitle:    config.ShowTitle,
		Filters:      config.Filters,
		URLBlacklist: config.URLBlacklist,
	})
	mpris := NewMPRIS(&MPRISOptions{
		StatesCh:     statesCh,
		Conn:         conn,
		Player:       config.Player,
		PollInterval: config.PollInterval,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- mpris.Serve() }()
	served := make(chan struct{})
	go func() {
		defer close(served)
		controller.Serve()
	}()

	sCh := make(chan os.Signal, 1)
	signal.Notify(sCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sCh:
		slog.Info("shutting down", "signal", sig.String())
	case err = <-errCh:
		slog.Error("player observer stopped", "error", err)
	}
	// Each channel is closed once its senders are gone.
	mpris.Exit()
	close(statesCh)
	manager.Close()
	close(updates)
	<-served
	controller.Exit()
	return err
}
