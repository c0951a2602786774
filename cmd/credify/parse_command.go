package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/credify/internal/identity"
)

func newParseCommand() *cobra.Command {
	var host string
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "parse <url>",
		Short:       "Show the post identity credify derives from a URL",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := args[0]
			id, ok := identity.Parse(raw)
			if asJSON {
				return writeJSON(cmd, struct {
					identity.Identity
					Post   bool `json:"post"`
					OnHost bool `json:"on_host"`
				}{id, ok, identity.OnHost(raw, host)})
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not a single-post view; the whole page would be scanned")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPairs([][2]string{
				{"Subreddit", id.ContainerID},
				{"Post ID", id.ItemID},
				{"Label", id.String()},
				{"On " + host, yesNo(identity.OnHost(raw, host))},
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "reddit.com", "Host the popup treats as supported")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
