package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/getlantern/systray"

	"github.com/ibeckermayer/credify/internal/app"
	"github.com/ibeckermayer/credify/internal/auth"
	"github.com/ibeckermayer/credify/internal/config"
	"github.com/ibeckermayer/credify/internal/logging"
	"github.com/ibeckermayer/credify/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "credify:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, path, exists, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	if !exists {
		if err := cfg.Save(path); err != nil {
			logger.Warn("could not save default config", "error", err)
		} else {
			logger.Info("created default config", "path", path)
		}
	}

	lock, err := app.AcquireLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		return fmt.Errorf("cookie store path: %w", err)
	}
	authManager := auth.NewManager(auth.NewCookieStore(cookiePath), cfg.Browser.UserDataDir, logger.With("component", "auth"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, path, authManager, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("credify starting")

	done := make(chan error, 1)
	go func() {
		err := a.Run(ctx)
		done <- err
		systray.Quit()
	}()

	// Run systray (blocks until Quit)
	systray.Run(tray.OnReady(ctx, a, path, logger), tray.OnExit(logger))
	cancel()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, app.ErrBrowserClosed) {
			return nil
		}
		return err
	}
	return nil
}
