package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"estoque-backend/internal/models"
	"estoque-backend/internal/stockcache"
	"estoque-backend/internal/warehouse"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

func item(code int, onHand, cost, sales string) models.StockItem {
	return models.StockItem{
		ProductCode:     code,
		Branch:          1,
		OnHandQty:       decimal.RequireFromString(onHand),
		UnitCost:        decimal.RequireFromString(cost),
		SalesQtyCurrent: decimal.RequireFromString(sales),
	}
}

func newApp(src warehouse.Source) *fiber.App {
	cache := stockcache.New(stockcache.Config{
		Source: src,
		Names: func() (map[int]string, error) {
			return map[int]string{100: "ACEM", 200: "PICANHA"}, nil
		},
		Classes: func() (map[int]string, error) {
			return map[int]string{100: "DIANTEIRO", 200: "TRASEIRO"}, nil
		},
	})
	app := fiber.New()
	d := app.Group("/dashboard")
	d.Get("/kpis", KPIsHandler(cache))
	d.Get("/top", TopHandler(cache))
	d.Get("/pareto", ParetoHandler(cache))
	d.Get("/breakdown", BreakdownHandler(cache))
	d.Get("/table", TableHandler(cache))
	d.Get("/columns", ColumnsHandler())
	d.Post("/refresh", RefreshHandler(cache))
	return app
}

func sampleSource() warehouse.Source {
	return warehouse.SourceFunc(func(context.Context) ([]models.StockItem, error) {
		return []models.StockItem{
			item(100, "50", "2", "10"),
			item(200, "30", "5", "40"),
			item(300, "20", "1", "5"),
		}, nil
	})
}

func get(t *testing.T, app *fiber.App, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestDashboard_NoData(t *testing.T) {
	app := newApp(warehouse.SourceFunc(func(context.Context) ([]models.StockItem, error) {
		return nil, errors.New("warehouse offline")
	}))
	for _, path := range []string{"/dashboard/kpis", "/dashboard/top", "/dashboard/pareto", "/dashboard/breakdown", "/dashboard/table"} {
		code, body := get(t, app, "GET", path)
		if code != fiber.StatusOK || body["status"] != "no_data" {
			t.Errorf("%s: %d %v, want 200 no_data", path, code, body)
		}
	}
	code, body := get(t, app, "POST", "/dashboard/refresh")
	if code != fiber.StatusOK || body["status"] != "no_data" {
		t.Errorf("refresh: %d %v", code, body)
	}
}

func TestDashboard_KPIs(t *testing.T) {
	app := newApp(sampleSource())
	code, body := get(t, app, "GET", "/dashboard/kpis")
	if code != fiber.StatusOK || body["status"] != "ok" {
		t.Fatalf("%d %v", code, body)
	}
	kpis := body["kpis"].(map[string]any)
	if kpis["total_items"].(float64) != 3 || kpis["unmatched_items"].(float64) != 1 {
		t.Errorf("kpis = %v", kpis)
	}
	if kpis["total_inventory_value"] != "270" {
		t.Errorf("total value = %v", kpis["total_inventory_value"])
	}
}

func TestDashboard_Top(t *testing.T) {
	app := newApp(sampleSource())
	_, body := get(t, app, "GET", "/dashboard/top?column=sales_qty_current&n=2")
	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	first := items[0].(map[string]any)
	if first["product_code"].(float64) != 200 || first["rank"].(float64) != 1 {
		t.Errorf("first = %v", first)
	}
	if body["label"] != "Venda Mês" {
		t.Errorf("label = %v", body["label"])
	}

	code, _ := get(t, app, "GET", "/dashboard/top?column=bogus")
	if code != fiber.StatusBadRequest {
		t.Errorf("unknown column status = %d", code)
	}
}

func TestDashboard_DefaultsRankMonthSales(t *testing.T) {
	app := newApp(sampleSource())
	_, body := get(t, app, "GET", "/dashboard/top")
	if body["column"] != "sales_qty_current" {
		t.Errorf("default column = %v, want sales_qty_current", body["column"])
	}
	items := body["items"].([]any)
	if len(items) != 3 || items[0].(map[string]any)["product_code"].(float64) != 200 {
		t.Errorf("items = %v", items)
	}

	_, body = get(t, app, "GET", "/dashboard/pareto")
	curve := body["curve"].(map[string]any)
	if curve["column"] != "sales_qty_current" || curve["grand_total"] != "55" {
		t.Errorf("default pareto = %v", curve)
	}
}

func TestDashboard_ParetoSkipsNegativeAvailable(t *testing.T) {
	short := item(300, "20", "1", "5")
	short.ReservedQty = decimal.NewFromInt(50)
	app := newApp(warehouse.SourceFunc(func(context.Context) ([]models.StockItem, error) {
		return []models.StockItem{item(100, "50", "2", "10"), item(200, "30", "5", "40"), short}, nil
	}))

	_, body := get(t, app, "GET", "/dashboard/pareto?column=available_qty")
	curve := body["curve"].(map[string]any)
	points := curve["points"].([]any)
	if len(points) != 2 || curve["excluded"].(float64) != 1 || curve["grand_total"] != "80" {
		t.Fatalf("curve = %v", curve)
	}
	if first := points[0].(map[string]any); first["class"] != "A" {
		t.Errorf("largest item class = %v, want A", first["class"])
	}
}

func TestDashboard_Pareto(t *testing.T) {
	app := newApp(sampleSource())
	_, body := get(t, app, "GET", "/dashboard/pareto?column=inventory_value")
	curve := body["curve"].(map[string]any)
	points := curve["points"].([]any)
	if len(points) != 3 {
		t.Fatalf("points = %d", len(points))
	}
	last := points[2].(map[string]any)
	if last["cumulative_pct"] != "100" || last["description"] != "(sem descrição)" {
		t.Errorf("last point = %v", last)
	}
}

func TestDashboard_BreakdownAndTable(t *testing.T) {
	app := newApp(sampleSource())

	_, body := get(t, app, "GET", "/dashboard/breakdown?category=classification&value=inventory_value")
	groups := body["groups"].([]any)
	if len(groups) != 3 {
		t.Fatalf("groups = %v", groups)
	}
	if groups[0].(map[string]any)["category"] != "TRASEIRO" {
		t.Errorf("largest group = %v", groups[0])
	}

	_, body = get(t, app, "GET", "/dashboard/table?only_unmatched=true")
	if body["total"].(float64) != 1 {
		t.Errorf("unmatched rows = %v", body["total"])
	}
	_, body = get(t, app, "GET", "/dashboard/table?q=pica")
	rows := body["items"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["product_code"].(float64) != 200 {
		t.Errorf("search rows = %v", rows)
	}
	_, body = get(t, app, "GET", "/dashboard/table?sort=inventory_value&limit=1&offset=1")
	rows = body["items"].([]any)
	if body["total"].(float64) != 3 || len(rows) != 1 || rows[0].(map[string]any)["product_code"].(float64) != 100 {
		t.Errorf("paged rows = %v", body)
	}

	code, _ := get(t, app, "GET", "/dashboard/breakdown?category=color")
	if code != fiber.StatusBadRequest {
		t.Errorf("unknown category status = %d", code)
	}
}

func TestDashboard_Refresh(t *testing.T) {
	app := newApp(sampleSource())
	code, body := get(t, app, "POST", "/dashboard/refresh")
	if code != fiber.StatusOK || body["status"] != "ok" {
		t.Errorf("refresh = %d %v", code, body)
	}
}
