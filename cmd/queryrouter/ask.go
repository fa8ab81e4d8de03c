package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/af-corp/queryrouter/internal/gateway"
	"github.com/af-corp/queryrouter/internal/types"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Route a single question and print the response envelope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.configDir, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			text := types.NormalizeText(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("question must not be empty")
			}
			env := a.router.Route(ctx, types.NewQuery(text, gateway.NewRequestID(), "cli"))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		},
	}
}

func newCollectionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections known to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.configDir, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.catalog.Snapshot()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "catalog version %d\n\n", snap.Version())
			fmt.Fprintln(w, "NAME\tCATEGORY\tDOCUMENTS\tTAGS")
			for _, c := range snap.Collections() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.Name, c.Category, c.DocumentCount, strings.Join(c.Tags, ","))
			}
			return w.Flush()
		},
	}
}
