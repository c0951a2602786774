package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/credify/internal/browser"
	"github.com/ibeckermayer/credify/internal/content"
	"github.com/ibeckermayer/credify/internal/inject"
	"github.com/ibeckermayer/credify/internal/ipc"
)

// ErrBrowserClosed is returned by Run when the user closes the browser.
var ErrBrowserClosed = errors.New("browser closed")

// Run starts the browser tab and every context, and blocks until ctx ends
// or the browser goes away.
func (a *App) Run(ctx context.Context) error {
	cfg := a.getSnapshot().config

	ctx, cancel := context.WithCancel(ctx)
	if err := a.router.Start(ctx); err != nil {
		cancel()
		return err
	}
	defer a.router.Wait()
	defer cancel()

	session, err := browser.NewSession(ctx, browser.SessionOptions{
		Headless:    cfg.Browser.Headless,
		UserDataDir: cfg.Browser.UserDataDir,
		Cookies:     a.authManager.Cookies(),
		Logger:      a.logger.With("component", "browser"),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	tabID := session.TabID()
	agent := content.New(ctx, content.Options{
		TabID:    tabID,
		Surface:  session,
		Renderer: session,
		Analyzer: a.pipeline,
		Cache:    a.slot,
		Sender:   a.router,
		Inject: inject.Options{
			ItemPolicy: cfg.Engine.ItemPolicy(),
			BarPolicy:  cfg.Engine.BarPolicy(),
		},
		Debounce: cfg.Engine.Debounce(),
		Settle:   cfg.Engine.Settle(),
		Logger:   a.logger.With("component", "content"),
	})
	defer agent.Stop()

	unregister, err := a.router.Register(ctx, agent.ID(), agent.Handle)
	if err != nil {
		return err
	}
	defer unregister()

	a.mu.Lock()
	a.agent, a.tabID = agent, tabID
	a.mu.Unlock()

	session.SetHandlers(browser.Handlers{
		DocumentReplaced: func(url string) {
			agent.DocumentReplaced()
			a.router.TabUpdated(tabID, url)
		},
		URLChanged: func(url string) { a.router.TabUpdated(tabID, url) },
		Mutated:    agent.Watcher().Notify,
		Activate:   agent.ActivateAsync,
		Dismiss:    agent.DismissAsync,
	})

	if err := session.Navigate(ctx, cfg.Browser.StartURL); err != nil {
		return err
	}

	if interval := cfg.Engine.RescanInterval(); interval > 0 {
		if err := a.scheduler.AddRescanJob(interval, func(ctx context.Context) error {
			agent.Watcher().Rescan(ctx)
			return nil
		}); err != nil {
			return err
		}
	}
	if err := a.scheduler.AddPruneJob(a.PruneExchanges); err != nil {
		return err
	}
	a.scheduler.Start(ctx)
	defer func() { <-a.scheduler.Stop().Done() }()

	srv, err := ipc.NewServer(ctx, cfg.IPC.SocketPath, a, a.logger)
	if err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	srv.Serve()
	defer srv.Close()

	a.logger.Info("credify running", "tab_id", tabID, "start_url", cfg.Browser.StartURL, "socket", cfg.IPC.SocketPath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-session.Done():
			if ctx.Err() != nil {
				return nil
			}
			return ErrBrowserClosed
		}
	})
	g.Go(func() error {
		if err := a.PruneExchanges(gctx); err != nil {
			a.logger.Warn("initial prune failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}
