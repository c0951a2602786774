package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/credify/internal/app"
	"github.com/ibeckermayer/credify/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground without the tray icon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx, headless, cmd.Flags().Changed("headless"))
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "Override browser.headless from the config")
	return cmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext, headless, overrideHeadless bool) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if overrideHeadless {
		cfg.Browser.Headless = headless
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock, err := app.AcquireLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	authManager, err := ctx.authManager()
	if err != nil {
		return err
	}

	a, err := app.New(signalCtx, cfg, ctx.configPath, authManager, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("credify daemon starting", "headless", cfg.Browser.Headless, "socket", cfg.IPC.SocketPath)
	err = a.Run(signalCtx)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, app.ErrBrowserClosed):
		logger.Info("credify daemon stopped")
		return nil
	default:
		return err
	}
}
