// Package main is the entry point for the soundpind sound daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/jmylchreest/soundpin/internal/catalog"
	"github.com/jmylchreest/soundpin/internal/config"
	"github.com/jmylchreest/soundpin/internal/daemon"
	"github.com/jmylchreest/soundpin/internal/dbus"
	"github.com/jmylchreest/soundpin/internal/logging"
	"github.com/jmylchreest/soundpin/internal/model"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to the config file (default ~/.config/soundpin/soundpind.toml)")
	waitConfig := flag.Bool("wait-config", false, "Do not load the config file at startup; wait for Configure over D-Bus or for the config file to be written")
	monitorMode := flag.Bool("monitor", false, "Also play the sounds named by freedesktop notifications (works alongside another notification daemon)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("soundpind version", version)
		os.Exit(0)
	}

	logs := logging.New(os.Stderr)
	slog.SetDefault(logs.Logger)
	logger := logs.Component("soundpind")

	if err := run(logs, *configPath, *waitConfig, *monitorMode); err != nil {
		logger.Error("soundpind failed", "error", err)
		os.Exit(1)
	}
}

func run(logs *logging.Logger, configPath string, waitConfig, monitorMode bool) error {
	logger := logs.Component("soundpind")
	logger.Info("starting soundpind", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		dispatcher *daemon.Dispatcher
		monitor    atomic.Pointer[dbus.Monitor]
	)
	dispatcher = daemon.NewDispatcher(ctx, daemon.DispatcherOptions{
		Logs: logs,
		OnConfigured: func(cfg *config.Config) {
			if !monitorMode {
				return
			}
			m := dbus.NewMonitor(catalog.New(cfg.SoundsDir), logs.Component("monitor"))
			m.SetPlayHandler(func(req model.PlayRequest) {
				dispatcher.Play(req)
			})
			if err := m.Start(); err != nil {
				logger.Warn("failed to start notification monitor", "error", err)
				return
			}
			monitor.Store(m)
		},
	})
	defer dispatcher.Close()

	service := dbus.NewService(dispatcher, logs.Component("dbus"))
	if err := service.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus service: %w", err)
	}
	defer func() { _ = service.Stop() }()

	var watcher *daemon.ConfigWatcher
	if waitConfig {
		var err error
		watcher, err = daemon.NewConfigWatcher(configPath, nil, logs.Component("config"))
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		watcher.SetLoadCallback(func(cfg *config.Config) {
			dispatcher.Configure(cfg)
			// Only the first configuration is ever applied.
			go watcher.Stop()
		})
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		logger.Info("waiting for configuration", "path", watcher.Path())
	} else {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dispatcher.Configure(cfg)
	}

	logger.Info("soundpind ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	cancel()
	if watcher != nil {
		watcher.Stop()
	}
	if m := monitor.Load(); m != nil {
		if err := m.Stop(); err != nil {
			logger.Warn("error stopping monitor", "error", err)
		}
	}

	logger.Info("soundpind stopped")
	return nil
}
