package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/credify/internal/config"
)

func newOpenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache|exchanges|data>",
		Short:     "Open a credify file or folder with the system handler",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache", "exchanges", "data"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := openTarget(ctx, args[0])
			if err != nil {
				return err
			}
			if err := browser.OpenFile(path); err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			return nil
		},
	}
}

func openTarget(ctx *commandContext, target string) (string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}
	switch target {
	case "config":
		if _, err := os.Stat(ctx.configPath); os.IsNotExist(err) {
			if err := cfg.Save(ctx.configPath); err != nil {
				return "", fmt.Errorf("write default config: %w", err)
			}
		}
		return ctx.configPath, nil
	case "cache":
		return ensureDir(config.CacheDir())
	case "exchanges":
		return ensureDir(cfg.Storage.ExchangeDir, nil)
	case "data":
		return ensureDir(filepath.Dir(cfg.Storage.DatabasePath), nil)
	default:
		return "", fmt.Errorf("unknown target %q (want config, cache, exchanges or data)", target)
	}
}

func ensureDir(dir string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
