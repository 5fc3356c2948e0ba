package stockmetrics

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type CategoryTotal struct {
	Category string              `json:"category"`
	Items    int                 `json:"items"`
	Total    decimal.Decimal     `json:"total"`
	Share    decimal.NullDecimal `json:"share"` // % of the grand total, null when undefined
}

// AggregateByCategory group-sums valueCol by category, ordered by total
// descending (ties by category name). The ABC category classifies by the
// Pareto curve of valueCol, which fails with ErrUndefinedTotal on a zero total.
func AggregateByCategory(items []EnrichedItem, category Category, valueCol Column) ([]CategoryTotal, error) {
	keyOf, err := categoryKey(items, category, valueCol)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*CategoryTotal)
	grand := decimal.Zero
	for _, e := range items {
		k := keyOf(e)
		ct, ok := byKey[k]
		if !ok {
			ct = &CategoryTotal{Category: k}
			byKey[k] = ct
		}
		v := e.Value(valueCol)
		ct.Items++
		ct.Total = ct.Total.Add(v)
		grand = grand.Add(v)
	}

	out := make([]CategoryTotal, 0, len(byKey))
	for _, ct := range byKey {
		if grand.IsPositive() {
			ct.Share = decimal.NewNullDecimal(ct.Total.Mul(hundred).Div(grand))
		}
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func categoryKey(items []EnrichedItem, category Category, valueCol Column) (func(EnrichedItem) string, error) {
	switch category {
	case CategoryClassification:
		return func(e EnrichedItem) string {
			if e.Classification == "" {
				return UnclassifiedLabel
			}
			return e.Classification
		}, nil
	case CategoryBranch:
		return func(e EnrichedItem) string { return strconv.Itoa(e.Branch) }, nil
	case CategoryMatched:
		return func(e EnrichedItem) string {
			if e.Unmatched {
				return "unmatched"
			}
			return "matched"
		}, nil
	case CategoryABC:
		curve, err := Pareto(items, valueCol)
		if err != nil {
			return nil, err
		}
		classes := curve.ClassOf()
		return func(e EnrichedItem) string {
			// rows off the curve contribute nothing
			if cls, ok := classes[KeyOf(e)]; ok {
				return string(cls)
			}
			return string(ClassC)
		}, nil
	}
	return nil, ErrUnknownColumn
}

// TableFilter backs the searchable table.
type TableFilter struct {
	Search            string // matches description or product code, case-insensitive
	Classification    string
	Branch            int // 0 means any
	OnlyUnmatched     bool
	NegativeAvailable bool
}

func Filter(items []EnrichedItem, f TableFilter) []EnrichedItem {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	cls := strings.TrimSpace(f.Classification)

	out := make([]EnrichedItem, 0, len(items))
	for _, e := range items {
		if q != "" &&
			!strings.Contains(strings.ToLower(e.Description), q) &&
			!strings.Contains(strconv.Itoa(e.ProductCode), q) {
			continue
		}
		if cls != "" && !strings.EqualFold(e.Classification, cls) {
			continue
		}
		if f.Branch != 0 && e.Branch != f.Branch {
			continue
		}
		if f.OnlyUnmatched && !e.Unmatched {
			continue
		}
		if f.NegativeAvailable && !e.AvailableQty.IsNegative() {
			continue
		}
		out = append(out, e)
	}
	return out
}
