// Package app wires the background, content and popup contexts to a live
// browser tab and the persistence layer.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/analysis/gateway"
	"github.com/ibeckermayer/credify/internal/auth"
	"github.com/ibeckermayer/credify/internal/cache"
	"github.com/ibeckermayer/credify/internal/config"
	"github.com/ibeckermayer/credify/internal/content"
	"github.com/ibeckermayer/credify/internal/inject"
	"github.com/ibeckermayer/credify/internal/ipc"
	"github.com/ibeckermayer/credify/internal/popup"
	"github.com/ibeckermayer/credify/internal/router"
	"github.com/ibeckermayer/credify/internal/scheduler"
	"github.com/ibeckermayer/credify/internal/store"
)

// App holds the application state.
type App struct {
	configPath  string
	logger      *slog.Logger
	authManager *auth.Manager
	store       *store.Store
	exchanges   *store.Exchanges
	slot        *cache.Slot
	router      *router.Router
	pipeline    *analysis.Pipeline
	popup       *popup.Popup
	scheduler   *scheduler.Scheduler
	startedAt   time.Time

	mu      sync.RWMutex
	config  *config.Config
	gateway *gateway.Client
	agent   *content.Agent
	tabID   string
}

// snapshot holds fields that may be replaced by ReloadConfig or Run.
type snapshot struct {
	config  *config.Config
	gateway *gateway.Client
	agent   *content.Agent
	tabID   string
}

func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{config: a.config, gateway: a.gateway, agent: a.agent, tabID: a.tabID}
}

// New opens the store and builds every context except the browser tab,
// which Run attaches.
func New(ctx context.Context, cfg *config.Config, configPath string, authManager *auth.Manager, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st, err := store.New(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	slot := cache.Open(ctx, st, logger.With("component", "cache"))

	exchanges := store.NewExchanges(cfg.Storage.ExchangeDir)
	gw := newGateway(cfg, exchanges, logger)
	pipeline := analysis.NewPipeline(gw, analysis.PipelineOptions{
		BeginDate: cfg.Service.BeginDate,
		EndDate:   cfg.Service.EndDate,
		Logger:    logger.With("component", "analysis"),
	})
	r := router.New(slot, router.Options{Host: cfg.Browser.Host, Logger: logger.With("component", "router")})

	sched, err := scheduler.New("", logger.With("component", "scheduler"))
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		configPath:  configPath,
		logger:      logger,
		authManager: authManager,
		store:       st,
		exchanges:   exchanges,
		slot:        slot,
		router:      r,
		pipeline:    pipeline,
		popup:       popup.New(r, popup.Options{Host: cfg.Browser.Host, Logger: logger.With("component", "popup")}),
		scheduler:   sched,
		startedAt:   time.Now(),
		config:      cfg,
		gateway:     gw,
	}, nil
}

func newGateway(cfg *config.Config, rec gateway.Recorder, logger *slog.Logger) *gateway.Client {
	return gateway.New(cfg.Service.Endpoint, gateway.Options{
		Recorder: rec,
		Logger:   logger.With("component", "gateway"),
	})
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// Router is the background context.
func (a *App) Router() *router.Router { return a.router }

// Popup is the popup context shared by the tray and the IPC server.
func (a *App) Popup() *popup.Popup { return a.popup }

// Cached returns the result in the cache slot.
func (a *App) Cached() (analysis.Result, bool) { return a.slot.Get() }

// Exchanges is the debug record of service calls.
func (a *App) Exchanges() *store.Exchanges { return a.exchanges }

// Status summarises the daemon for the IPC status call.
func (a *App) Status(ctx context.Context) ipc.StatusResponse {
	s := a.getSnapshot()
	resp := ipc.StatusResponse{
		PID:          os.Getpid(),
		StartedAt:    a.startedAt,
		TabID:        s.tabID,
		Endpoint:     s.gateway.Endpoint(),
		DatabasePath: s.config.Storage.DatabasePath,
	}
	if s.tabID != "" {
		resp.URL, _ = a.router.ActiveURL(s.tabID)
		resp.Label = a.popup.Current(s.tabID).Label
	}

	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.gateway.Health(healthCtx); err != nil {
		resp.ServiceError = err.Error()
	} else {
		resp.ServiceHealthy = true
	}

	if s.agent != nil {
		for _, st := range s.agent.Controller().Snapshot() {
			switch st {
			case inject.Injected:
				resp.Injected++
			case inject.Pending:
				resp.Pending++
			case inject.Failed:
				resp.Failed++
			}
		}
	}
	return resp
}

// CheckCurrent runs the popup check against the active tab.
func (a *App) CheckCurrent(ctx context.Context) popup.Status {
	return a.popup.Check(ctx, "")
}

// IsAuthenticated checks if Reddit credentials are stored.
func (a *App) IsAuthenticated() bool {
	return a.authManager.IsAuthenticated()
}

// TriggerLogin starts the Reddit login flow. The session is picked up by
// the next browser start.
func (a *App) TriggerLogin(ctx context.Context) error {
	a.logger.Info("login triggered")
	if err := a.authManager.Login(ctx); err != nil {
		a.logger.Warn("login failed", "error", err)
		return err
	}
	return nil
}

// TriggerLogout clears stored Reddit credentials.
func (a *App) TriggerLogout() error {
	if err := a.authManager.Logout(); err != nil {
		a.logger.Warn("logout failed", "error", err)
		return err
	}
	a.logger.Info("logout successful, cookies cleared")
	return nil
}

// OpenExchanges opens the debug exchange folder.
func (a *App) OpenExchanges() error {
	dir := a.exchanges.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return browser.OpenFile(dir)
}

// ReloadConfig reloads the configuration from disk and swaps the analysis
// service client. Browser and engine settings apply on the next start.
func (a *App) ReloadConfig() error {
	cfg, _, _, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	gw := newGateway(cfg, a.exchanges, a.logger)

	a.mu.Lock()
	a.config = cfg
	a.gateway = gw
	a.mu.Unlock()

	a.pipeline.SetClient(gw)
	a.logger.Info("configuration reloaded", "endpoint", gw.Endpoint())
	return nil
}

// PruneExchanges removes exchange files older than the retention period.
func (a *App) PruneExchanges(context.Context) error {
	days := a.getSnapshot().config.Storage.ExchangeRetentionDays
	if days <= 0 {
		return nil
	}
	n, err := a.exchanges.Prune(time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	if n > 0 {
		a.logger.Info("pruned exchanges", "count", n)
	}
	return nil
}
