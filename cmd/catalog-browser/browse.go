package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/catalog-sync/internal/config"
	"github.com/Sternrassler/catalog-sync/pkg/browser"
	"github.com/Sternrassler/catalog-sync/pkg/catalog"
	"github.com/Sternrassler/catalog-sync/pkg/client"
	"github.com/Sternrassler/catalog-sync/pkg/filter"
	"github.com/Sternrassler/catalog-sync/pkg/scroll"
	"github.com/spf13/cobra"
)

// statusPollInterval is how often browse checks loading progress.
const statusPollInterval = 20 * time.Millisecond

type browseOptions struct {
	pages    int
	pageSize int
	search   string
	category string
	facets   bool
}

func newBrowseCmd() *cobra.Command {
	var opts browseOptions

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Load pages and print the filtered view",
		Long: "Loads up to --pages pages by keeping the list sentinel visible, then applies the " +
			"search and category filters locally and prints the matching records.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if opts.pageSize > 0 {
				cfg.Session.PageSize = opts.pageSize
			}
			return runBrowse(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.pages, "pages", "p", 1, "Number of pages to load")
	cmd.Flags().IntVarP(&opts.pageSize, "page-size", "n", 0, "Page size (default from config)")
	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "Filter by name substring")
	cmd.Flags().StringVarP(&opts.category, "category", "t", "", "Filter by category")
	cmd.Flags().BoolVar(&opts.facets, "facets", false, "Print category counts instead of records")

	return cmd
}

func runBrowse(ctx context.Context, out io.Writer, cfg *config.Config, opts browseOptions) error {
	if opts.pages < 1 {
		return fmt.Errorf("--pages must be at least 1 (got %d)", opts.pages)
	}

	return withClient(ctx, cfg, func(c *client.Client) error {
		observer := scroll.NewManualObserver()
		session, err := browser.New(c, observer, cfg.SessionConfig())
		if err != nil {
			return err
		}
		defer session.Close()

		if err := session.Open(ctx); err != nil {
			return fmt.Errorf("loading first page: %w", err)
		}
		if err := loadPages(ctx, session, observer, opts.pages); err != nil {
			return err
		}

		session.SetFilters(filter.Criteria{Search: opts.search, Category: opts.category})
		if opts.facets {
			printFacets(out, session.Facets())
			return nil
		}
		printView(out, session.View())
		return nil
	})
}

// loadPages keeps the sentinel visible until the collection holds the
// requested number of pages, the catalog is exhausted or a fetch fails.
func loadPages(ctx context.Context, session *browser.Session, observer *scroll.ManualObserver, pages int) error {
	target := pages * session.Status().Limit
	if done(session.Status(), target) {
		return nil
	}

	observer.Emit(true)
	defer observer.Emit(false)

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if done(session.Status(), target) {
				return nil
			}
		}
	}
}

func done(st browser.Status, target int) bool {
	if st.Loading {
		return false
	}
	return st.Size >= target || st.State == "exhausted" || st.State == "error"
}

func printView(out io.Writer, view browser.View) {
	st := view.Status
	if st.TotalCount != nil {
		fmt.Fprintf(out, "Showing %d of %d loaded records (%d on server):\n\n", len(view.Records), st.Size, *st.TotalCount)
	} else {
		fmt.Fprintf(out, "Showing %d of %d loaded records:\n\n", len(view.Records), st.Size)
	}

	if len(view.Records) > 0 {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORIES")
		for _, r := range view.Records {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", recordID(r), r.Name, strings.Join(r.Categories, ", "))
		}
		tw.Flush()
	}

	if len(view.Suggestions) > 0 {
		fmt.Fprintf(out, "\nDid you mean: %s?\n", strings.Join(view.Suggestions, ", "))
	}
	if st.Error != "" {
		fmt.Fprintf(out, "\n%s\n", st.Error)
	} else if st.HasMore {
		fmt.Fprintln(out, "\nMore records available.")
	}
}

func printFacets(out io.Writer, facets []filter.Facet) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCOUNT")
	for _, f := range facets {
		fmt.Fprintf(tw, "%s\t%d\n", f.Category, f.Count)
	}
	tw.Flush()
}

func recordID(r catalog.Record) string {
	if r.ID == nil {
		return "-"
	}
	return fmt.Sprint(*r.ID)
}
