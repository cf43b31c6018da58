package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/catalog-sync/internal/config"
	"github.com/Sternrassler/catalog-sync/pkg/catalog"
	"github.com/Sternrassler/catalog-sync/pkg/client"
	"github.com/Sternrassler/catalog-sync/pkg/detail"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id-or-name>",
		Short: "Show one record",
		Long:  "Fetches a single record, retrying transient failures, and prints its details.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			return runShow(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as received")
	return cmd
}

func runShow(ctx context.Context, out io.Writer, cfg *config.Config, idOrName string, asJSON bool) error {
	return withClient(ctx, cfg, func(c *client.Client) error {
		record, err := detail.NewFetcher(c, cfg.RetryConfig(), nil).Get(ctx, idOrName)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		}
		printRecord(out, record)
		return nil
	})
}

func printRecord(out io.Writer, r catalog.Record) {
	fmt.Fprintf(out, "%s (#%s)\n", r.Name, recordID(r))
	if r.Image != "" {
		fmt.Fprintf(out, "  Image:      %s\n", r.Image)
	}
	if len(r.Categories) > 0 {
		fmt.Fprintf(out, "  Categories: %s\n", strings.Join(r.Categories, ", "))
	}
	if len(r.Stats) > 0 {
		fmt.Fprintln(out, "  Stats:")
		for _, s := range r.Stats {
			fmt.Fprintf(out, "    %-16s %d\n", s.Name, s.Base)
		}
	}
	if len(r.Abilities) > 0 {
		fmt.Fprintf(out, "  Abilities:  %s\n", strings.Join(r.Abilities, ", "))
	}
	if len(r.Moves) > 0 {
		fmt.Fprintf(out, "  Moves:      %d known\n", len(r.Moves))
	}
}
