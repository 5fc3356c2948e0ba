package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"estoque-backend/internal/models"
)

func TestNew_EmptyDSNIsUnconfigured(t *testing.T) {
	src := New("", "", 0)
	if _, err := src.FetchStock(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNewSQLServerSource_Defaults(t *testing.T) {
	s := NewSQLServerSource("sqlserver://u:p@localhost:1433?database=erp", "", 0)
	if s.query != DefaultQuery {
		t.Error("empty query should fall back to DefaultQuery")
	}
	if s.timeout != 30*time.Second {
		t.Errorf("timeout = %s", s.timeout)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close before connect: %v", err)
	}
}

func TestSourceFunc(t *testing.T) {
	want := []models.StockItem{{ProductCode: 1}, {ProductCode: 2}}
	var src Source = SourceFunc(func(context.Context) ([]models.StockItem, error) {
		return want, nil
	})
	got, err := src.FetchStock(context.Background())
	if err != nil || len(got) != 2 {
		t.Fatalf("got %v, %v", got, err)
	}
}
