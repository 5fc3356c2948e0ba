package stockmetrics

import (
	"errors"
	"math/rand"
	"testing"

	"estoque-backend/internal/models"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(code int, onHand, cost string) models.StockItem {
	return models.StockItem{ProductCode: code, Branch: 3, OnHandQty: d(onHand), UnitCost: d(cost)}
}

// 100: 50kg @ 2, 200: 30kg @ 5, 300: 20kg @ 1 -> total value 270
func threeProducts() []EnrichedItem {
	stock := []models.StockItem{item(100, "50", "2"), item(200, "30", "5"), item(300, "20", "1")}
	names := map[int]string{100: "ACEM", 200: "PICANHA", 300: "OSSO"}
	joined, _ := Join(stock, names, nil)
	return Enrich(joined, Options{})
}

func TestJoin_LeftJoinFlagsUnmatched(t *testing.T) {
	stock := []models.StockItem{item(1, "1", "1"), item(2, "1", "1"), item(3, "1", "1")}
	names := map[int]string{1: "CONTRA FILE", 3: "MAMINHA"}
	classes := map[int]string{1: "TRASEIRO"}

	joined, rep := Join(stock, names, classes)
	if len(joined) != 3 {
		t.Fatalf("left join must keep every row, got %d", len(joined))
	}
	if rep.Matched != 2 || rep.Unmatched != 1 || rep.Classified != 1 || rep.Unclassified != 2 {
		t.Errorf("unexpected report %+v", rep)
	}
	if !joined[1].Unmatched || joined[1].Description != "" {
		t.Errorf("code 2 should be unmatched with empty description, got %+v", joined[1])
	}
	if joined[0].Unmatched || joined[0].Description != "CONTRA FILE" || joined[0].Classification != "TRASEIRO" {
		t.Errorf("code 1 not joined correctly: %+v", joined[0])
	}
	if stock[0].Description != "" {
		t.Error("Join must not modify its input")
	}
}

func TestComputeAvailable(t *testing.T) {
	s := models.StockItem{OnHandQty: d("100"), ReservedQty: d("10"), BlockedQty: d("5"), DamagedQty: d("2")}

	if got := ComputeAvailable(s, Options{}); !got.Equal(d("85")) {
		t.Errorf("available = %s, want 85", got)
	}
	if got := ComputeAvailable(s, Options{SubtractDamaged: true}); !got.Equal(d("83")) {
		t.Errorf("available with damaged = %s, want 83", got)
	}
}

func TestComputeAvailable_NegativeIsNotClamped(t *testing.T) {
	s := models.StockItem{OnHandQty: d("10"), ReservedQty: d("8"), BlockedQty: d("5")}
	if got := ComputeAvailable(s, Options{}); !got.Equal(d("-3")) {
		t.Errorf("available = %s, want -3", got)
	}
}

func TestEnrich_AvailableNeverExceedsOnHand(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	stock := make([]models.StockItem, 200)
	for i := range stock {
		stock[i] = models.StockItem{
			ProductCode: i,
			OnHandQty:   decimal.NewFromFloat(rng.Float64() * 1000).Round(3),
			ReservedQty: decimal.NewFromFloat(rng.Float64() * 500).Round(3),
			BlockedQty:  decimal.NewFromFloat(rng.Float64() * 500).Round(3),
			DamagedQty:  decimal.NewFromFloat(rng.Float64() * 50).Round(3),
			UnitCost:    decimal.NewFromFloat(rng.Float64() * 40).Round(2),
		}
	}
	for _, opts := range []Options{{}, {SubtractDamaged: true}} {
		for _, e := range Enrich(stock, opts) {
			if e.AvailableQty.GreaterThan(e.OnHandQty) {
				t.Fatalf("code %d: available %s > on hand %s", e.ProductCode, e.AvailableQty, e.OnHandQty)
			}
		}
	}
}

func TestEnrich_PctOfTotalSumsTo100(t *testing.T) {
	items := threeProducts()
	sum := decimal.Zero
	for _, e := range items {
		if !e.PctOfTotalValue.Valid {
			t.Fatalf("code %d: pct should be defined", e.ProductCode)
		}
		sum = sum.Add(e.PctOfTotalValue.Decimal)
	}
	if diff := sum.Sub(d("100")).Abs(); diff.GreaterThan(d("0.000000001")) {
		t.Errorf("pct sum = %s, want 100", sum)
	}
	if !items[1].InventoryValue.Equal(d("150")) {
		t.Errorf("value of 200 = %s, want 150", items[1].InventoryValue)
	}
}

func TestEnrich_ZeroTotalLeavesPctUndefined(t *testing.T) {
	items := Enrich([]models.StockItem{item(1, "10", "0"), item(2, "0", "3")}, Options{})
	for _, e := range items {
		if e.PctOfTotalValue.Valid {
			t.Errorf("code %d: pct should be null on zero total", e.ProductCode)
		}
	}
}

func TestEnrich_TrailingAverageAndCoverage(t *testing.T) {
	s := item(1, "90", "1")
	s.SalesQtyM1, s.SalesQtyM2, s.SalesQtyM3 = d("30"), d("20"), d("10")
	e := Enrich([]models.StockItem{s, item(2, "5", "1")}, Options{})

	if !e[0].AvgMonthlySalesQty.Equal(d("20")) {
		t.Errorf("avg = %s, want 20", e[0].AvgMonthlySalesQty)
	}
	if !e[0].CoverageMonths.Valid || !e[0].CoverageMonths.Decimal.Equal(d("4.5")) {
		t.Errorf("coverage = %+v, want 4.5", e[0].CoverageMonths)
	}
	if e[1].CoverageMonths.Valid {
		t.Error("coverage must be null without sales history")
	}
}

func TestRankTopN(t *testing.T) {
	var stock []models.StockItem
	for _, q := range []string{"30", "70", "10", "50", "20", "60", "40"} {
		stock = append(stock, item(len(stock)+1, q, "1"))
	}
	items := Enrich(stock, Options{})

	top := RankTopN(items, ColOnHandQty, 5)
	want := []string{"70", "60", "50", "40", "30"}
	if len(top) != len(want) {
		t.Fatalf("got %d rows, want %d", len(top), len(want))
	}
	for i, w := range want {
		if !top[i].OnHandQty.Equal(d(w)) {
			t.Errorf("rank %d = %s, want %s", i, top[i].OnHandQty, w)
		}
	}

	again := RankTopN(items, ColOnHandQty, 5)
	for i := range top {
		if top[i].ProductCode != again[i].ProductCode {
			t.Fatal("RankTopN is not idempotent")
		}
	}
	if !items[0].OnHandQty.Equal(d("30")) {
		t.Error("RankTopN must not reorder its input")
	}
	if got := RankTopN(items, ColOnHandQty, 0); len(got) != len(items) {
		t.Errorf("n=0 should return all rows, got %d", len(got))
	}
}

func TestRankTopN_StableTies(t *testing.T) {
	items := Enrich([]models.StockItem{item(1, "5", "1"), item(2, "9", "1"), item(3, "5", "1"), item(4, "5", "1")}, Options{})
	top := RankTopN(items, ColOnHandQty, 4)
	codes := []int{top[0].ProductCode, top[1].ProductCode, top[2].ProductCode, top[3].ProductCode}
	want := []int{2, 1, 3, 4}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("order = %v, want %v", codes, want)
		}
	}
}

func TestPareto_ThreeProductExample(t *testing.T) {
	items := threeProducts()

	top := RankTopN(items, ColInventoryValue, 1)
	if top[0].ProductCode != 200 || !top[0].PctOfTotalValue.Decimal.Round(1).Equal(d("55.6")) {
		t.Errorf("top-1 = %d (%s%%), want 200 (55.6%%)", top[0].ProductCode, top[0].PctOfTotalValue.Decimal)
	}

	curve, err := Pareto(items, ColInventoryValue)
	if err != nil {
		t.Fatalf("Pareto: %v", err)
	}
	if !curve.GrandTotal.Equal(d("270")) {
		t.Errorf("grand total = %s, want 270", curve.GrandTotal)
	}
	wantCodes := []int{200, 100, 300}
	wantPct := []string{"55.6", "92.6", "100"}
	wantClass := []ABCClass{ClassA, ClassB, ClassC}
	for i, p := range curve.Points {
		if p.ProductCode != wantCodes[i] {
			t.Errorf("point %d code = %d, want %d", i, p.ProductCode, wantCodes[i])
		}
		if !p.CumulativePct.Round(1).Equal(d(wantPct[i])) {
			t.Errorf("point %d cumulative = %s, want %s", i, p.CumulativePct, wantPct[i])
		}
		if p.Class != wantClass[i] {
			t.Errorf("point %d class = %s, want %s", i, p.Class, wantClass[i])
		}
	}
}

func TestPareto_MonotoneAndEndsAt100(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var stock []models.StockItem
	for i := 0; i < 50; i++ {
		stock = append(stock, models.StockItem{
			ProductCode:     i,
			OnHandQty:       decimal.NewFromInt(rng.Int63n(500)),
			UnitCost:        decimal.NewFromFloat(rng.Float64() * 30).Round(2),
			SalesQtyCurrent: decimal.NewFromInt(rng.Int63n(300)),
		})
	}
	items := Enrich(stock, Options{})

	for _, col := range []Column{ColInventoryValue, ColSalesQtyCurrent} {
		curve, err := Pareto(items, col)
		if err != nil {
			t.Fatalf("Pareto(%s): %v", col, err)
		}
		prev := decimal.Zero
		for i, p := range curve.Points {
			if p.CumulativePct.LessThan(prev) {
				t.Fatalf("%s: point %d decreased (%s < %s)", col, i, p.CumulativePct, prev)
			}
			prev = p.CumulativePct
		}
		if !prev.Equal(d("100")) {
			t.Errorf("%s: last cumulative = %s, want 100", col, prev)
		}
	}
}

func TestPareto_ZeroTotal(t *testing.T) {
	items := Enrich([]models.StockItem{item(1, "0", "5"), item(2, "0", "1")}, Options{})
	if _, err := Pareto(items, ColInventoryValue); !errors.Is(err, ErrUndefinedTotal) {
		t.Errorf("err = %v, want ErrUndefinedTotal", err)
	}
	if _, err := Pareto(nil, ColInventoryValue); !errors.Is(err, ErrUndefinedTotal) {
		t.Errorf("empty set: err = %v, want ErrUndefinedTotal", err)
	}
}

func TestPareto_NegativeRowsStayOffCurve(t *testing.T) {
	short := item(3, "10", "1")
	short.ReservedQty = d("30")
	items := Enrich([]models.StockItem{item(1, "100", "1"), item(2, "50", "1"), short}, Options{})

	curve, err := Pareto(items, ColAvailableQty)
	if err != nil {
		t.Fatalf("Pareto: %v", err)
	}
	if len(curve.Points) != 2 || curve.Excluded != 1 {
		t.Fatalf("points = %d excluded = %d, want 2 and 1", len(curve.Points), curve.Excluded)
	}
	if !curve.GrandTotal.Equal(d("150")) {
		t.Errorf("grand total = %s, want 150", curve.GrandTotal)
	}
	first := curve.Points[0]
	if first.ProductCode != 1 || first.CumulativePct.Round(1).String() != "66.7" || first.Class != ClassA {
		t.Errorf("first point = %s%% class %s, want 66.7%% class A", first.CumulativePct, first.Class)
	}
	prev := decimal.Zero
	for i, p := range curve.Points {
		if p.CumulativePct.LessThan(prev) || p.CumulativePct.GreaterThan(d("100")) {
			t.Errorf("point %d cumulative = %s after %s", i, p.CumulativePct, prev)
		}
		prev = p.CumulativePct
	}

	groups, err := AggregateByCategory(items, CategoryABC, ColAvailableQty)
	if err != nil {
		t.Fatalf("AggregateByCategory: %v", err)
	}
	for _, g := range groups {
		if g.Category == "C" && g.Items != 2 {
			t.Errorf("class C items = %d, want 2 (tail plus negative row)", g.Items)
		}
		if g.Category == "" {
			t.Errorf("negative row left without a class")
		}
	}

	allShort := Enrich([]models.StockItem{short}, Options{})
	if _, err := Pareto(allShort, ColAvailableQty); !errors.Is(err, ErrUndefinedTotal) {
		t.Errorf("err = %v, want ErrUndefinedTotal", err)
	}
}

func TestAggregateByCategory(t *testing.T) {
	stock := []models.StockItem{item(1, "10", "2"), item(2, "5", "4"), item(3, "1", "1"), item(4, "3", "1")}
	classes := map[int]string{1: "TRASEIRO", 2: "DIANTEIRO", 3: "TRASEIRO"}
	joined, _ := Join(stock, map[int]string{1: "A", 2: "B", 3: "C"}, classes)
	items := Enrich(joined, Options{})

	got, err := AggregateByCategory(items, CategoryClassification, ColInventoryValue)
	if err != nil {
		t.Fatalf("AggregateByCategory: %v", err)
	}
	want := []struct {
		cat   string
		total string
		items int
	}{
		{"TRASEIRO", "21", 2},
		{"DIANTEIRO", "20", 1},
		{UnclassifiedLabel, "3", 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d groups, want %d: %+v", len(got), len(want), got)
	}
	share := decimal.Zero
	for i, w := range want {
		if got[i].Category != w.cat || !got[i].Total.Equal(d(w.total)) || got[i].Items != w.items {
			t.Errorf("group %d = %+v, want %+v", i, got[i], w)
		}
		share = share.Add(got[i].Share.Decimal)
	}
	if share.Sub(d("100")).Abs().GreaterThan(d("0.000000001")) {
		t.Errorf("shares sum to %s", share)
	}

	matched, err := AggregateByCategory(items, CategoryMatched, ColOnHandQty)
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 2 || matched[0].Category != "matched" || !matched[0].Total.Equal(d("16")) {
		t.Errorf("matched breakdown = %+v", matched)
	}
}

func TestAggregateByCategory_ABC(t *testing.T) {
	got, err := AggregateByCategory(threeProducts(), CategoryABC, ColInventoryValue)
	if err != nil {
		t.Fatalf("AggregateByCategory: %v", err)
	}
	totals := map[string]string{}
	for _, g := range got {
		totals[g.Category] = g.Total.String()
	}
	if totals["A"] != "150" || totals["B"] != "100" || totals["C"] != "20" {
		t.Errorf("abc totals = %v", totals)
	}

	zero := Enrich([]models.StockItem{item(1, "0", "1")}, Options{})
	if _, err := AggregateByCategory(zero, CategoryABC, ColInventoryValue); !errors.Is(err, ErrUndefinedTotal) {
		t.Errorf("err = %v, want ErrUndefinedTotal", err)
	}
}

func TestFilter(t *testing.T) {
	stock := []models.StockItem{item(101, "10", "1"), item(202, "10", "1"), item(303, "1", "1")}
	stock[2].ReservedQty = d("4")
	joined, _ := Join(stock, map[int]string{101: "Picanha Bovina", 202: "Fraldinha"}, map[int]string{101: "TRASEIRO"})
	items := Enrich(joined, Options{})

	cases := []struct {
		name string
		f    TableFilter
		want []int
	}{
		{"search description", TableFilter{Search: "picanha"}, []int{101}},
		{"search code", TableFilter{Search: "20"}, []int{202}},
		{"classification", TableFilter{Classification: "traseiro"}, []int{101}},
		{"unmatched", TableFilter{OnlyUnmatched: true}, []int{303}},
		{"negative available", TableFilter{NegativeAvailable: true}, []int{303}},
		{"no filter", TableFilter{}, []int{101, 202, 303}},
	}
	for _, tc := range cases {
		got := Filter(items, tc.f)
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %d rows, want %d", tc.name, len(got), len(tc.want))
			continue
		}
		for i := range got {
			if got[i].ProductCode != tc.want[i] {
				t.Errorf("%s: row %d = %d, want %d", tc.name, i, got[i].ProductCode, tc.want[i])
			}
		}
	}
}

func TestParseColumn(t *testing.T) {
	if c, err := ParseColumn(" Inventory_Value "); err != nil || c != ColInventoryValue {
		t.Errorf("ParseColumn = %q, %v", c, err)
	}
	if _, err := ParseColumn("Venda Mês"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("display labels must not parse as columns, err = %v", err)
	}
	if Label(ColSalesQtyCurrent) != "Venda Mês" {
		t.Errorf("label = %q", Label(ColSalesQtyCurrent))
	}
}

func TestSummarize(t *testing.T) {
	short := item(400, "5", "1")
	short.ReservedQty = d("10")
	short.SalesQtyCurrent = d("3")
	stock := []models.StockItem{item(100, "50", "2"), short}
	joined, _ := Join(stock, map[int]string{100: "ACEM"}, nil)

	k := Summarize(Enrich(joined, Options{}))
	if k.TotalItems != 2 || k.UnmatchedItems != 1 || k.NegativeAvailable != 1 {
		t.Errorf("counts = %+v", k)
	}
	if !k.TotalOnHandQty.Equal(d("55")) || !k.TotalAvailableQty.Equal(d("45")) {
		t.Errorf("qty totals = %s / %s, want 55 / 45", k.TotalOnHandQty, k.TotalAvailableQty)
	}
	if !k.TotalInventoryValue.Equal(d("105")) || !k.TotalSalesQtyCurrent.Equal(d("3")) {
		t.Errorf("value/sales = %s / %s, want 105 / 3", k.TotalInventoryValue, k.TotalSalesQtyCurrent)
	}
}
