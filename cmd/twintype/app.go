package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dgnsrekt/twintype/internal/browser"
	"github.com/dgnsrekt/twintype/internal/cdpcontrol"
	"github.com/dgnsrekt/twintype/internal/config"
	"github.com/dgnsrekt/twintype/internal/gateway"
	"github.com/dgnsrekt/twintype/internal/notify"
	"github.com/dgnsrekt/twintype/internal/panel"
	"github.com/dgnsrekt/twintype/internal/provider"
	"github.com/dgnsrekt/twintype/internal/relay"
	"github.com/dgnsrekt/twintype/internal/storage"
	"github.com/dgnsrekt/twintype/internal/types"
	"github.com/dgnsrekt/twintype/internal/watcher"
)

// app is everything between the browser and the outer surfaces.
type app struct {
	cfg      *config.Config
	launcher *browser.Launcher
	profiles *provider.FileWatcher
	client   *cdpcontrol.Client
	gw       *gateway.Gateway
	store    *storage.Local
	broker   *relay.Broker
	relay    *relay.Relay
	panel    *panel.Panel

	runDone chan struct{}
}

// startApp connects to the browser and brings the panel up. wrap, when set,
// decorates the relay sink the panel reports to.
func startApp(ctx context.Context, cfg *config.Config, wrap func(panel.Sink) panel.Sink) (*app, error) {
	a := &app{cfg: cfg, runDone: make(chan struct{})}

	if cfg.LaunchBrowser {
		urls, err := startupURLs(cfg.StartupFile)
		if err != nil {
			return nil, err
		}
		a.launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURLs:  urls,
			ProfileDir: cfg.ProfileDir,
		})
		if err := a.launcher.Launch(ctx); err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	}

	registry := provider.NewRegistry()
	a.profiles = provider.NewFileWatcher(cfg.ProfilesFile, registry)
	if err := a.profiles.Start(ctx); err != nil {
		slog.Warn("provider overrides not watched", "path", cfg.ProfilesFile, "error", err)
	}

	a.client = cdpcontrol.NewClient(cfg.CDPURL(), cfg.EvalTimeout(), registry, watcher.Options{})
	if err := a.client.Connect(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect CDP at %s: %w", cfg.CDPURL(), err)
	}
	a.gw = gateway.New(a.client, 0)

	store, err := storage.Open(cfg.StateFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}
	a.store = store

	var fwd relay.Forwarder
	if cfg.NTFYEndpoint != "" {
		fwd = &notify.Forwarder{
			Client:   &http.Client{Timeout: 10 * time.Second},
			Endpoint: cfg.NTFYEndpoint,
			MinLevel: types.Level(cfg.NTFYMinLevel),
		}
	}
	a.broker = relay.NewBroker()
	a.relay = relay.New(a.broker, fwd)
	a.relay.Start(a.gw)

	var sink panel.Sink = a.relay
	if wrap != nil {
		sink = wrap(sink)
	}
	a.panel = panel.New(a.gw, a.store, sink, panel.Options{})
	if err := a.panel.Open(ctx); err != nil {
		slog.Warn("panel open incomplete", "error", err)
	}
	go func() {
		defer close(a.runDone)
		if err := a.panel.Run(ctx); err != nil {
			slog.Error("panel run failed", "error", err)
		}
	}()

	slog.Info("twintype started",
		"cdp_url", cfg.CDPURL(),
		"state_file", store.Path(),
		"profiles_file", cfg.ProfilesFile,
		"ntfy", cfg.NTFYEndpoint != "",
	)
	return a, nil
}

// Close tears down in reverse start order. The context given to startApp
// must already be cancelled for the panel loop to exit.
func (a *app) Close() {
	if a.panel != nil {
		a.panel.Close()
		<-a.runDone
	}
	if a.relay != nil {
		a.relay.Stop()
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			slog.Debug("cdp client close failed", "error", err)
		}
	}
	if a.profiles != nil {
		a.profiles.Stop()
	}
	if a.launcher != nil {
		a.launcher.Stop()
	}
}

func startupURLs(path string) ([]string, error) {
	sc, err := config.LoadStartup(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.DefaultStartupURLs(), nil
	}
	if err != nil {
		return nil, err
	}
	return sc.URLs(), nil
}
