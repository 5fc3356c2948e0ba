package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// YieldRecord: one manual deboning entry. Append-only, never edited.
type YieldRecord struct {
	ID            string                     `json:"id"`
	RecordDate    time.Time                  `json:"record_date"`
	InvoiceNumber string                     `json:"invoice_number"`
	Supplier      string                     `json:"supplier"`
	AnimalType    string                     `json:"animal_type"`
	PieceCount    int                        `json:"piece_count"`
	InputWeight   decimal.Decimal            `json:"input_weight"`
	Cuts          map[string]decimal.Decimal `json:"cuts"` // cut name -> kg, absent means 0
	CreatedAt     time.Time                  `json:"created_at"`
	CreatedBy     string                     `json:"created_by"`
}

func (r YieldRecord) CutWeight(name string) decimal.Decimal {
	if w, ok := r.Cuts[name]; ok {
		return w
	}
	return decimal.Zero
}

// CutNames returns the record's cut names sorted alphabetically.
func (r YieldRecord) CutNames() []string {
	names := make([]string, 0, len(r.Cuts))
	for name := range r.Cuts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r YieldRecord) TotalOutput() decimal.Decimal {
	total := decimal.Zero
	for _, w := range r.Cuts {
		total = total.Add(w)
	}
	return total
}

// CutYieldPct is cut/input*100. ok is false when the input weight is not positive.
func (r YieldRecord) CutYieldPct(name string) (decimal.Decimal, bool) {
	return percentOf(r.CutWeight(name), r.InputWeight)
}

// OverallYieldPct is total output/input*100, same guard as CutYieldPct.
func (r YieldRecord) OverallYieldPct() (decimal.Decimal, bool) {
	return percentOf(r.TotalOutput(), r.InputWeight)
}

func percentOf(part, whole decimal.Decimal) (decimal.Decimal, bool) {
	if !whole.IsPositive() {
		return decimal.Zero, false
	}
	return part.Mul(hundred).Div(whole), true
}
