package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"estoque-backend/internal/lookup"
	"estoque-backend/internal/stockcache"
	"estoque-backend/internal/stockmetrics"
	"estoque-backend/internal/warehouse"

	"github.com/spf13/cobra"
)

func stockCmd() *cobra.Command {
	var (
		top    int
		column string
	)
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Fetch the warehouse once and print the KPIs and top items",
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := stockmetrics.ParseColumn(column)
			if err != nil {
				return err
			}

			source := warehouse.New(cfg.StockDSN, cfg.StockQuery, cfg.StockQueryTimeout)
			if closer, ok := source.(*warehouse.SQLServerSource); ok {
				defer closer.Close()
			}
			cache := stockcache.New(stockcache.Config{
				Source:       source,
				Names:        stockcache.LookupFile(cfg.NamesPath, lookup.Options{Encoding: cfg.LookupEncoding}),
				Classes:      stockcache.LookupFile(cfg.ClassificationPath, lookup.Options{Encoding: cfg.LookupEncoding, Uppercase: true}),
				RequireNames: cfg.RequireNames,
				Metrics:      stockmetrics.Options{SubtractDamaged: cfg.SubtractDamaged},
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.StockQueryTimeout)
			defer cancel()
			snap, err := cache.Get(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if snap.Warning != "" {
				fmt.Fprintln(out, "[warn]", snap.Warning)
			}
			k := stockmetrics.Summarize(snap.Items)
			fmt.Fprintf(out, "items: %d (%d without description)\n", k.TotalItems, k.UnmatchedItems)
			fmt.Fprintf(out, "on hand: %s  available: %s  negative available: %d\n",
				k.TotalOnHandQty.StringFixed(2), k.TotalAvailableQty.StringFixed(2), k.NegativeAvailable)
			fmt.Fprintf(out, "inventory value: %s  sales (current month): %s\n\n",
				k.TotalInventoryValue.StringFixed(2), k.TotalSalesQtyCurrent.StringFixed(2))

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "CODE\tBRANCH\tDESCRIPTION\t%s\n", stockmetrics.Label(col))
			for _, e := range stockmetrics.RankTopN(snap.Items, col, top) {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", e.ProductCode, e.Branch, stockmetrics.DisplayDescription(e), e.Value(col).StringFixed(2))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 15, "number of items to print")
	cmd.Flags().StringVar(&column, "column", string(stockmetrics.ColSalesQtyCurrent), "ranking column")
	return cmd
}
