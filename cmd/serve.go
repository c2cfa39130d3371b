package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/marketsearch/pkg/api"
	"github.com/rubiojr/marketsearch/pkg/cache"
	"github.com/rubiojr/marketsearch/pkg/log"
	"github.com/rubiojr/marketsearch/pkg/realtime"
	"github.com/urfave/cli/v3"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the search API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (overrides config listen)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// serve runs the HTTP API until interrupted. Edits to the configuration
// file, or SIGHUP, rebuild the search pipeline without dropping the cache.
func serve(ctx context.Context, configPath, listen string) error {
	logger := log.ForService("serve")

	cfg, err := loadValidConfig(configPath)
	if err != nil {
		return err
	}
	if listen == "" {
		listen = cfg.Listen
	}

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("failed to close cache: %v", err)
		}
	}()

	hub := realtime.NewHub(64)
	service, err := newSearchService(cfg, store, hub.Publish)
	if err != nil {
		return err
	}

	server := api.NewServer(service, hub, cfg.Debounce.Duration)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           api.CorsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on http://%s", listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	reload := func(reason string) {
		if err := reloadConfiguration(configPath, store, hub, server); err != nil {
			logger.Errorf("failed to reload configuration (%s): %v", reason, err)
			return
		}
		logger.Infof("configuration reloaded (%s)", reason)
	}

	// Set up filesystem watcher for config file
	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
		}
		events, watchErrors = watcher.Events, watcher.Errors
	}

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown()
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reload("SIGHUP")
				continue
			}
			logger.Infof("shutting down")
			return shutdown()
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Editors often replace the file instead of writing it in place.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file was removed and not replaced, keeping current configuration")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload("file " + event.Op.String())
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}

// reloadConfiguration rebuilds the search service from configPath and
// swaps it into server. The cache store is kept, but emptied when the module
// set or its endpoints changed so results of disabled modules are not
// served from it. A changed cache_dir or cache_ttl needs a restart.
func reloadConfiguration(configPath string, store cache.Store, hub *realtime.Hub, server *api.Server) error {
	cfg, err := loadValidConfig(configPath)
	if err != nil {
		return err
	}
	service, err := newSearchService(cfg, store, hub.Publish)
	if err != nil {
		return err
	}

	previous := server.Service()
	server.Reload(service, cfg.Debounce.Duration)

	if previous != nil && !previous.Registry().Equal(service.Registry()) {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clearing cache after module change: %w", err)
		}
		log.ForService("serve").Infof("modules changed, search cache cleared")
	}
	return nil
}
