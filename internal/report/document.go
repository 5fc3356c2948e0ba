// Package report turns yield records into a printable deboning report and
// renders it as HTML, PDF or XLSX.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"estoque-backend/internal/models"
	"estoque-backend/internal/yieldstore"

	"github.com/shopspring/decimal"
)

var ErrNoRecords = errors.New("no records to report")

type CutLine struct {
	Name     string
	Weight   decimal.Decimal
	YieldPct decimal.NullDecimal
}

type Section struct {
	Record      models.YieldRecord
	Cuts        []CutLine
	TotalOutput decimal.Decimal
	OverallPct  decimal.NullDecimal
}

type SummaryRow struct {
	InvoiceNumber string
	RecordDate    time.Time
	Supplier      string
	AnimalType    string
	InputWeight   decimal.Decimal
	TotalOutput   decimal.Decimal
	OverallPct    decimal.NullDecimal
	CutPct        []decimal.NullDecimal // aligned with Summary.CutNames
}

type Summary struct {
	CutNames []string
	Rows     []SummaryRow
	// Mean of each cut over the rows, aligned with CutNames.
	MeanPct []decimal.NullDecimal
}

type Document struct {
	Title       string
	GeneratedAt time.Time
	Attribution string
	Sections    []Section
	Summary     *Summary // nil unless requested
}

type Options struct {
	Title       string
	Attribution string
	Summary     bool
	Now         time.Time
}

// Build lays out one section per record, in date order.
func Build(records []models.YieldRecord, opts Options) (*Document, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	sorted := make([]models.YieldRecord, len(records))
	copy(sorted, records)
	yieldstore.SortByDate(sorted)

	doc := &Document{
		Title:       opts.Title,
		GeneratedAt: opts.Now,
		Attribution: opts.Attribution,
	}
	if doc.Title == "" {
		doc.Title = "Relatório de Desossa"
	}
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now()
	}

	for _, r := range sorted {
		sec := Section{Record: r, TotalOutput: r.TotalOutput()}
		for _, name := range r.CutNames() {
			sec.Cuts = append(sec.Cuts, CutLine{
				Name:     name,
				Weight:   r.CutWeight(name),
				YieldPct: nullPct(r.CutYieldPct(name)),
			})
		}
		sec.OverallPct = nullPct(r.OverallYieldPct())
		doc.Sections = append(doc.Sections, sec)
	}

	if opts.Summary {
		doc.Summary = buildSummary(sorted)
	}
	return doc, nil
}

func buildSummary(records []models.YieldRecord) *Summary {
	var names []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, n := range r.CutNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	s := &Summary{CutNames: names}
	for _, r := range records {
		row := SummaryRow{
			InvoiceNumber: r.InvoiceNumber,
			RecordDate:    r.RecordDate,
			Supplier:      r.Supplier,
			AnimalType:    r.AnimalType,
			InputWeight:   r.InputWeight,
			TotalOutput:   r.TotalOutput(),
			OverallPct:    nullPct(r.OverallYieldPct()),
		}
		for _, n := range names {
			row.CutPct = append(row.CutPct, nullPct(r.CutYieldPct(n)))
		}
		s.Rows = append(s.Rows, row)
	}

	avg := yieldstore.CutAverages(records)
	byName := make(map[string]decimal.Decimal, len(avg))
	for _, a := range avg {
		if a.Records > 0 {
			byName[a.Cut] = a.MeanPct
		}
	}
	for _, n := range names {
		if m, ok := byName[n]; ok {
			s.MeanPct = append(s.MeanPct, decimal.NewNullDecimal(m))
		} else {
			s.MeanPct = append(s.MeanPct, decimal.NullDecimal{})
		}
	}
	return s
}

func nullPct(v decimal.Decimal, ok bool) decimal.NullDecimal {
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

// kg formats a weight the pt-BR way: 1.234,50
func kg(v decimal.Decimal) string {
	return brNumber(v, 2)
}

func pct(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return brNumber(v.Decimal, 1) + "%"
}

func brNumber(v decimal.Decimal, places int32) string {
	s := v.StringFixed(places)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	out := b.String()
	if frac != "" {
		out += "," + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

func date(t time.Time) string {
	return t.Format("02/01/2006")
}

func timestamp(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatHTML, FormatXLSX:
		return f, nil
	case "":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/pdf"
	}
}

// Filename is the download name for a report generated at t.
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("relatorio_desossa_%s.%s", t.Format("20060102_1504"), string(f))
}
