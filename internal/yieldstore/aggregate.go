package yieldstore

import (
	"sort"
	"time"

	"estoque-backend/internal/models"

	"github.com/shopspring/decimal"
)

type SupplierYield struct {
	Supplier string `json:"supplier"`
	Records  int    `json:"records"`
	// Records left out because their input weight is not positive.
	Excluded int                 `json:"excluded"`
	MeanPct  decimal.NullDecimal `json:"mean_pct"`
}

// AggregateYieldBySupplier is the mean cut yield % per supplier, sorted by
// supplier name.
func AggregateYieldBySupplier(records []models.YieldRecord, cut string) []SupplierYield {
	return bySupplier(records, func(r models.YieldRecord) (decimal.Decimal, bool) {
		return r.CutYieldPct(cut)
	})
}

// AggregateOverallBySupplier is the mean overall yield % per supplier.
func AggregateOverallBySupplier(records []models.YieldRecord) []SupplierYield {
	return bySupplier(records, models.YieldRecord.OverallYieldPct)
}

func bySupplier(records []models.YieldRecord, pct func(models.YieldRecord) (decimal.Decimal, bool)) []SupplierYield {
	type acc struct {
		sum      decimal.Decimal
		n        int
		excluded int
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		g, ok := groups[r.Supplier]
		if !ok {
			g = &acc{}
			groups[r.Supplier] = g
		}
		p, ok := pct(r)
		if !ok {
			g.excluded++
			continue
		}
		g.sum = g.sum.Add(p)
		g.n++
	}

	out := make([]SupplierYield, 0, len(groups))
	for name, g := range groups {
		sy := SupplierYield{Supplier: name, Records: g.n, Excluded: g.excluded}
		if g.n > 0 {
			sy.MeanPct = decimal.NewNullDecimal(g.sum.Div(decimal.NewFromInt(int64(g.n))))
		}
		out = append(out, sy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Supplier < out[j].Supplier })
	return out
}

type TrendPoint struct {
	Date     time.Time       `json:"date"`
	Records  int             `json:"records"`
	YieldPct decimal.Decimal `json:"yield_pct"`
	// Mean of this point and up to window-1 points before it.
	RollingPct decimal.Decimal `json:"rolling_pct"`
}

// CutTrend is the per-date mean yield % of cut, oldest first, with a rolling
// mean over the last window points. window < 1 is treated as 1.
func CutTrend(records []models.YieldRecord, cut string, window int) []TrendPoint {
	if window < 1 {
		window = 1
	}

	type acc struct {
		sum decimal.Decimal
		n   int
	}
	byDate := make(map[time.Time]*acc)
	for _, r := range records {
		p, ok := r.CutYieldPct(cut)
		if !ok {
			continue
		}
		d := dateOnly(r.RecordDate)
		a, exists := byDate[d]
		if !exists {
			a = &acc{}
			byDate[d] = a
		}
		a.sum = a.sum.Add(p)
		a.n++
	}

	points := make([]TrendPoint, 0, len(byDate))
	for d, a := range byDate {
		points = append(points, TrendPoint{
			Date:     d,
			Records:  a.n,
			YieldPct: a.sum.Div(decimal.NewFromInt(int64(a.n))),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	for i := range points {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum := decimal.Zero
		for _, p := range points[start : i+1] {
			sum = sum.Add(p.YieldPct)
		}
		points[i].RollingPct = sum.Div(decimal.NewFromInt(int64(i + 1 - start)))
	}
	return points
}

type CutAverage struct {
	Cut     string          `json:"cut"`
	Records int             `json:"records"`
	MeanPct decimal.Decimal `json:"mean_pct"`
	// Total kg of the cut across the set.
	TotalWeight decimal.Decimal `json:"total_weight"`
}

// CutAverages is the mean yield % of every cut seen in records. A record
// without a cut counts as 0 kg of it; records with no input are skipped.
func CutAverages(records []models.YieldRecord) []CutAverage {
	seen := make(map[string]bool)
	for _, r := range records {
		for name := range r.Cuts {
			seen[name] = true
		}
	}

	out := make([]CutAverage, 0, len(seen))
	for name := range seen {
		ca := CutAverage{Cut: name}
		sum := decimal.Zero
		for _, r := range records {
			p, ok := r.CutYieldPct(name)
			if !ok {
				continue
			}
			sum = sum.Add(p)
			ca.TotalWeight = ca.TotalWeight.Add(r.CutWeight(name))
			ca.Records++
		}
		if ca.Records > 0 {
			ca.MeanPct = sum.Div(decimal.NewFromInt(int64(ca.Records)))
		}
		out = append(out, ca)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cut < out[j].Cut })
	return out
}

type DuplicateGroup struct {
	InvoiceNumber string    `json:"invoice_number"`
	RecordDate    time.Time `json:"record_date"`
	RecordIDs     []string  `json:"record_ids"`
}

// FindDuplicates groups records sharing invoice number and date. Groups come
// out in order of first appearance.
func FindDuplicates(records []models.YieldRecord) []DuplicateGroup {
	type key struct {
		invoice string
		date    time.Time
	}
	idx := make(map[key]int)
	var groups []DuplicateGroup
	for _, r := range records {
		k := key{r.InvoiceNumber, dateOnly(r.RecordDate)}
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, DuplicateGroup{InvoiceNumber: k.invoice, RecordDate: k.date})
		}
		groups[i].RecordIDs = append(groups[i].RecordIDs, r.ID)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.RecordIDs) > 1 {
			out = append(out, g)
		}
	}
	return out
}

func Suppliers(records []models.YieldRecord) []string {
	return distinct(records, func(r models.YieldRecord) string { return r.Supplier })
}

func AnimalTypes(records []models.YieldRecord) []string {
	return distinct(records, func(r models.YieldRecord) string { return r.AnimalType })
}

func distinct(records []models.YieldRecord, field func(models.YieldRecord) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range records {
		v := field(r)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
