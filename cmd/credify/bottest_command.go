package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/credify/internal/browser"
)

const botTestURL = "https://bot.sannysoft.com"

func newBotTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "bot-test",
		Short:       "Open " + botTestURL + " to audit the browser fingerprint",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			allocCtx, cancel := chromedp.NewExecAllocator(cmd.Context(), browser.Options(false, "")...)
			defer cancel()

			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			errc := make(chan error, 1)
			go func() {
				errc <- chromedp.Run(ctx, chromedp.Navigate(botTestURL))
			}()

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to end program...")
			_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')

			select {
			case err := <-errc:
				if err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("navigate: %w", err)
				}
			default:
			}
			return nil
		},
	}
}
