package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"estoque-backend/internal/report"

	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var (
		ff             filterFlags
		format, outDir string
		title          string
		summary        bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export records as a PDF, HTML or XLSX report",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			filter, err := ff.filter()
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			res, err := store.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			now := time.Now()
			doc, err := report.Build(res.Records, report.Options{
				Title:       title,
				Attribution: cfg.ReportAttribution,
				Summary:     summary,
				Now:         now,
			})
			if errors.Is(err, report.ErrNoRecords) {
				return fmt.Errorf("no records match the filters (%d stored)", res.StoredCount)
			}
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(outDir, f.Filename(now))
			file, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := report.Render(file, doc, f); err != nil {
				file.Close()
				os.Remove(path)
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s written with %d record(s)\n", path, len(res.Records))
			return nil
		},
	}
	ff.bind(cmd)
	cmd.Flags().StringVar(&format, "format", "pdf", "pdf, html or xlsx")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	cmd.Flags().StringVar(&title, "title", "", "report title")
	cmd.Flags().BoolVar(&summary, "summary", false, "add a summary table of every record")
	return cmd
}
