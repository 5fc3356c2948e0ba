// Package warehouse reads raw stock rows from the upstream ERP database.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"estoque-backend/internal/logging"
	"estoque-backend/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
)

var ErrNotConfigured = errors.New("stock source not configured")

// DefaultQuery aliases the ERP stock view onto models.StockItem db tags.
const DefaultQuery = `
SELECT
	e.CODIGO                      AS product_code,
	e.FILIAL                      AS branch,
	ISNULL(e.ESTOQUE, 0)          AS on_hand_qty,
	ISNULL(e.RESERVADO, 0)        AS reserved_qty,
	ISNULL(e.BLOQUEADO, 0)        AS blocked_qty,
	ISNULL(e.AVARIADO, 0)         AS damaged_qty,
	ISNULL(e.CUSTO_MEDIO, 0)      AS unit_cost,
	ISNULL(e.VENDA_MES, 0)        AS sales_qty_current,
	ISNULL(e.VENDA_MES_1, 0)      AS sales_qty_m1,
	ISNULL(e.VENDA_MES_2, 0)      AS sales_qty_m2,
	ISNULL(e.VENDA_MES_3, 0)      AS sales_qty_m3
FROM VW_ESTOQUE_FILIAL e`

type Source interface {
	FetchStock(ctx context.Context) ([]models.StockItem, error)
}

// SourceFunc adapts a plain function (fixtures, tests) to Source.
type SourceFunc func(ctx context.Context) ([]models.StockItem, error)

func (f SourceFunc) FetchStock(ctx context.Context) ([]models.StockItem, error) {
	return f(ctx)
}

type unconfigured struct{}

func (unconfigured) FetchStock(context.Context) ([]models.StockItem, error) {
	return nil, ErrNotConfigured
}

// Unconfigured is used when STOCK_DSN is empty; every fetch fails.
func Unconfigured() Source { return unconfigured{} }

type SQLServerSource struct {
	dsn     string
	query   string
	timeout time.Duration

	once    sync.Once
	db      *sqlx.DB
	initErr error
}

func NewSQLServerSource(dsn, query string, timeout time.Duration) *SQLServerSource {
	if query == "" {
		query = DefaultQuery
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SQLServerSource{dsn: dsn, query: query, timeout: timeout}
}

func (s *SQLServerSource) connect() (*sqlx.DB, error) {
	s.once.Do(func() {
		db, err := sqlx.Open("sqlserver", s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("open warehouse: %w", err)
			return
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
		s.db = db
		logging.Module("warehouse").Info("warehouse client initialized")
	})
	return s.db, s.initErr
}

func (s *SQLServerSource) FetchStock(ctx context.Context) ([]models.StockItem, error) {
	db, err := s.connect()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []models.StockItem
	if err := db.SelectContext(ctx, &rows, s.query); err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	return rows, nil
}

func (s *SQLServerSource) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// New picks the SQL Server source, or Unconfigured when dsn is empty.
func New(dsn, query string, timeout time.Duration) Source {
	if dsn == "" {
		return Unconfigured()
	}
	return NewSQLServerSource(dsn, query, timeout)
}
