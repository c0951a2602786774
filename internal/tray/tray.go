// Package tray is the system-tray front-end of the popup context.
package tray

import (
	"context"
	_ "embed"
	"log/slog"
	"time"

	"github.com/getlantern/systray"
	"github.com/pkg/browser"

	"github.com/ibeckermayer/credify/internal/app"
	"github.com/ibeckermayer/credify/internal/popup"
)

//go:embed icon.png
var iconBytes []byte

// refreshInterval is how often the current-post label follows the tab.
const refreshInterval = 2 * time.Second

const (
	connectedLabel    = "● Logged in to Reddit"
	disconnectedLabel = "○ Not logged in"
)

// OnReady returns a systray onReady callback that sets up the menu.
// configPath is opened by "Edit Config".
func OnReady(ctx context.Context, a *app.App, configPath string, logger *slog.Logger) func() {
	return func() {
		systray.SetTemplateIcon(iconBytes, iconBytes)
		systray.SetTitle("")
		systray.SetTooltip("Credify - credibility checks for Reddit posts")

		mPost := systray.AddMenuItem(popup.NotOnHost, "Post in the browser tab")
		mPost.Disable()
		mScore := systray.AddMenuItem("", "Result of the last check")
		mScore.Disable()
		mScore.Hide()
		mCheck := systray.AddMenuItem("Check Current Post", "Analyze the post in the browser tab")

		systray.AddSeparator()

		mAuthStatus := systray.AddMenuItem(disconnectedLabel, "Authentication status")
		mAuthStatus.Disable()
		mAuthAction := systray.AddMenuItem("Login to Reddit", "Login or logout from Reddit")

		systray.AddSeparator()

		mEditConfig := systray.AddMenuItem("Edit Config", "Open config file in editor")
		mReloadConfig := systray.AddMenuItem("Reload Config", "Reload configuration from disk")
		mExchanges := systray.AddMenuItem("Open Debug Folder", "Open recorded service exchanges")

		systray.AddSeparator()

		mQuit := systray.AddMenuItem("Quit", "Exit Credify")

		updateAuthUI := func() {
			if a.IsAuthenticated() {
				mAuthStatus.SetTitle(connectedLabel)
				mAuthAction.SetTitle("Logout")
			} else {
				mAuthStatus.SetTitle(disconnectedLabel)
				mAuthAction.SetTitle("Login to Reddit")
			}
		}
		updatePostUI := func() {
			view := a.Popup().Current("")
			mPost.SetTitle(view.Label)
			if view.CanCheck {
				mCheck.Enable()
			} else {
				mCheck.Disable()
			}
		}
		updateAuthUI()
		updatePostUI()

		ticker := time.NewTicker(refreshInterval)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					updatePostUI()

				case <-mCheck.ClickedCh:
					mScore.SetTitle(popup.Analyzing)
					mScore.Show()
					go func() {
						st := a.CheckCurrent(ctx)
						mScore.SetTitle(st.Text)
					}()

				case <-mAuthAction.ClickedCh:
					if a.IsAuthenticated() {
						if err := a.TriggerLogout(); err != nil {
							logger.Warn("logout error", "error", err)
						}
						updateAuthUI()
					} else {
						go func() {
							if err := a.TriggerLogin(ctx); err != nil {
								logger.Warn("login error", "error", err)
							}
							updateAuthUI()
						}()
					}

				case <-mEditConfig.ClickedCh:
					if err := browser.OpenFile(configPath); err != nil {
						logger.Warn("failed to open config file", "path", configPath, "error", err)
					}

				case <-mReloadConfig.ClickedCh:
					if err := a.ReloadConfig(); err != nil {
						logger.Warn("failed to reload config", "error", err)
					}

				case <-mExchanges.ClickedCh:
					if err := a.OpenExchanges(); err != nil {
						logger.Warn("failed to open debug folder", "error", err)
					}

				case <-mQuit.ClickedCh:
					systray.Quit()
					return
				}
			}
		}()
	}
}

// OnExit returns the systray onExit callback.
func OnExit(logger *slog.Logger) func() {
	return func() {
		logger.Info("credify shutting down")
	}
}
