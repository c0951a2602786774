package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/ipc"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var tabID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the post open in the daemon's browser tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CheckCurrent(tabID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, resp.Label)
				if resp.Text != "" {
					fmt.Fprintln(out, resp.Text)
				}
				if len(resp.Flags) > 0 {
					fmt.Fprintf(out, "Flags: %s\n", strings.Join(resp.Flags, ", "))
				}
				if resp.Error != "" {
					return fmt.Errorf("check failed: %s", resp.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tabID, "tab", "", "Tab to check (defaults to the active tab)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newLastCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show the most recent analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LastAnalysis()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				if !resp.Found {
					fmt.Fprintln(cmd.OutOrStdout(), "No analysis available")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderResult(resp.Result, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatus(resp, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderResult(r analysis.Result, now time.Time) string {
	analyzed := "-"
	if r.Timestamp > 0 {
		analyzed = humanize.RelTime(r.Time(), now, "ago", "from now")
	}
	flags := "-"
	if len(r.Flags) > 0 {
		flags = strings.Join(r.Flags, ", ")
	}
	return renderPairs([][2]string{
		{"Post", r.Identity().String()},
		{"Title", r.Title},
		{"Score", strconv.FormatFloat(r.Score, 'f', -1, 64) + "/10"},
		{"Band", r.Band().String()},
		{"Flags", flags},
		{"Analyzed", analyzed},
	})
}

func renderStatus(s *ipc.StatusResponse, now time.Time) string {
	service := "healthy"
	if !s.ServiceHealthy {
		service = "unreachable"
		if s.ServiceError != "" {
			service += ": " + s.ServiceError
		}
	}
	tab := s.TabID
	if tab == "" {
		tab = "-"
	}
	pairs := [][2]string{
		{"PID", strconv.Itoa(s.PID)},
		{"Started", humanize.RelTime(s.StartedAt, now, "ago", "from now")},
		{"Tab", tab},
		{"URL", s.URL},
		{"Post", s.Label},
		{"Service", s.Endpoint},
		{"Service status", service},
		{"Controls", fmt.Sprintf("%s injected, %s pending, %s failed",
			humanize.Comma(int64(s.Injected)), humanize.Comma(int64(s.Pending)), humanize.Comma(int64(s.Failed)))},
		{"Database", s.DatabasePath},
	}
	return renderPairs(pairs)
}
