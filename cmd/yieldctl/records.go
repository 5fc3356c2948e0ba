package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"estoque-backend/internal/models"
	"estoque-backend/internal/yieldstore"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type filterFlags struct {
	from, to   string
	invoice    string
	supplier   string
	animalType string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first record date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last record date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.invoice, "invoice", "", "invoice number")
	cmd.Flags().StringVar(&f.supplier, "supplier", "", "supplier name")
	cmd.Flags().StringVar(&f.animalType, "animal-type", "", "animal type")
}

func (f *filterFlags) filter() (yieldstore.Filter, error) {
	out := yieldstore.Filter{InvoiceNumber: f.invoice, Supplier: f.supplier, AnimalType: f.animalType}
	var err error
	if f.from != "" {
		if out.From, err = time.Parse(yieldstore.DateLayout, f.from); err != nil {
			return out, fmt.Errorf("--from: %w", err)
		}
	}
	if f.to != "" {
		if out.To, err = time.Parse(yieldstore.DateLayout, f.to); err != nil {
			return out, fmt.Errorf("--to: %w", err)
		}
	}
	return out, nil
}

// parseCuts reads NAME=KG pairs. Commas are accepted as decimal separator.
func parseCuts(pairs []string) (map[string]decimal.Decimal, error) {
	cuts := make(map[string]decimal.Decimal, len(pairs))
	for _, p := range pairs {
		name, kg, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("cut %q: expected NAME=KG", p)
		}
		w, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(kg), ",", ".", 1))
		if err != nil {
			return nil, fmt.Errorf("cut %q: %w", p, err)
		}
		name = strings.TrimSpace(name)
		cuts[name] = cuts[name].Add(w)
	}
	return cuts, nil
}

func appendCmd() *cobra.Command {
	var (
		date, invoice, supplier, animalType, input, user string
		pieces                                            int
		cutPairs                                          []string
	)
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append one deboning record",
		Example: `  yieldctl append --date 2024-03-01 --invoice NF-1 --supplier "FRIGO SUL" \
    --input 2000 --cut PICANHA=280 --cut ACEM=292`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse(yieldstore.DateLayout, date)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			in, err := decimal.NewFromString(strings.Replace(input, ",", ".", 1))
			if err != nil {
				return fmt.Errorf("--input: %w", err)
			}
			cuts, err := parseCuts(cutPairs)
			if err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			res, err := store.Append(cmd.Context(), models.YieldRecord{
				RecordDate:    d,
				InvoiceNumber: invoice,
				Supplier:      supplier,
				AnimalType:    animalType,
				PieceCount:    pieces,
				InputWeight:   in,
				Cuts:          cuts,
				CreatedBy:     user,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "record %s saved\n", res.Record.ID)
			if p, ok := res.Record.OverallYieldPct(); ok {
				fmt.Fprintf(out, "overall yield: %s%%\n", p.StringFixed(1))
			}
			if len(res.NewColumns) > 0 {
				fmt.Fprintf(out, "new cut columns: %s\n", strings.Join(res.NewColumns, ", "))
			}
			if res.Duplicate {
				fmt.Fprintf(out, "[warn] invoice %s already has a record on %s\n", res.Record.InvoiceNumber, date)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().Format(yieldstore.DateLayout), "record date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&invoice, "invoice", "", "invoice number")
	cmd.Flags().StringVar(&supplier, "supplier", "", "supplier name")
	cmd.Flags().StringVar(&animalType, "animal-type", "", "animal type")
	cmd.Flags().IntVar(&pieces, "pieces", 0, "number of pieces")
	cmd.Flags().StringVar(&input, "input", "", "input weight in kg")
	cmd.Flags().StringArrayVar(&cutPairs, "cut", nil, "cut output as NAME=KG, repeatable")
	cmd.Flags().StringVar(&user, "user", os.Getenv("USER"), "recorded as created_by")
	_ = cmd.MarkFlagRequired("invoice")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func listCmd() *cobra.Command {
	var ff filterFlags
	var dups bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored records with their overall yield",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			res, err := store.Query(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.StoreEmpty() {
				fmt.Fprintln(out, "no records stored yet")
				return nil
			}
			if dups {
				for _, g := range yieldstore.FindDuplicates(res.Records) {
					fmt.Fprintf(out, "%s %s: %s\n", g.InvoiceNumber, g.RecordDate.Format(yieldstore.DateLayout), strings.Join(g.RecordIDs, ", "))
				}
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tINVOICE\tSUPPLIER\tANIMAL\tINPUT KG\tOUTPUT KG\tYIELD %")
			for _, r := range res.Records {
				pct := "-"
				if p, ok := r.OverallYieldPct(); ok {
					pct = p.StringFixed(1)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.RecordDate.Format(yieldstore.DateLayout), r.InvoiceNumber, r.Supplier, r.AnimalType,
					r.InputWeight.StringFixed(2), r.TotalOutput().StringFixed(2), pct)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d record(s)", len(res.Records), res.StoredCount)
			if res.Skipped > 0 {
				fmt.Fprintf(out, ", %d unreadable row(s) skipped", res.Skipped)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	ff.bind(cmd)
	cmd.Flags().BoolVar(&dups, "duplicates", false, "only show invoice/date pairs recorded more than once")
	return cmd
}
