// Package yieldstore is the append-only CSV table of deboning (yield) records.
// The header is the union of every column ever written; each cut gets its own
// "cut:<NAME>" column, so adding a cut widens the file without touching the
// values of older rows.
package yieldstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"estoque-backend/internal/logging"
	"estoque-backend/internal/models"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	colID         = "record_id"
	colDate       = "record_date"
	colInvoice    = "invoice_number"
	colSupplier   = "supplier"
	colAnimalType = "animal_type"
	colPieces     = "piece_count"
	colInput      = "input_weight"
	colCreatedAt  = "created_at"
	colCreatedBy  = "created_by"

	CutPrefix  = "cut:"
	DateLayout = "2006-01-02"

	lockRetry = 20 * time.Millisecond
)

var fixedColumns = []string{
	colID, colDate, colInvoice, colSupplier, colAnimalType,
	colPieces, colInput, colCreatedAt, colCreatedBy,
}

// accepted when reading rows edited by hand in a spreadsheet
var legacyDateLayouts = []string{DateLayout, "02/01/2006", "2006-01-02 15:04:05"}

type Store struct {
	path string
	mu   sync.RWMutex

	now   func() time.Time
	newID func() string
}

// Open prepares a store at path. The file itself is created on first append.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("yield store path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return &Store{
		path:  path,
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

func (s *Store) Path() string { return s.path }

type AppendResult struct {
	Record models.YieldRecord `json:"record"`
	// Another stored record has the same invoice number and date.
	Duplicate bool `json:"duplicate"`
	// Cut columns this append added to the header.
	NewColumns []string `json:"new_columns,omitempty"`
}

// Append validates rec and persists it. The row is on disk (fsynced) when
// Append returns without error.
func (s *Store) Append(ctx context.Context, rec models.YieldRecord) (AppendResult, error) {
	rec = Normalize(rec)
	if err := Validate(rec); err != nil {
		return AppendResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return AppendResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fl := flock.New(s.path + ".lock")
	if _, err := fl.TryLockContext(ctx, lockRetry); err != nil {
		return AppendResult{}, fmt.Errorf("lock yield store: %w", err)
	}
	defer fl.Unlock()

	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Second)
	rec.RecordDate = dateOnly(rec.RecordDate)

	tbl, err := s.readTable()
	if err != nil {
		return AppendResult{}, err
	}

	res := AppendResult{Record: rec}
	date := rec.RecordDate.Format(DateLayout)
	for _, row := range tbl.rows {
		if tbl.get(row, colInvoice) == rec.InvoiceNumber && sameDate(tbl.get(row, colDate), date) {
			res.Duplicate = true
			break
		}
	}

	header, added := widenHeader(tbl.header, rec)
	res.NewColumns = cutColumnNames(added)

	if tbl.header == nil || len(added) > 0 {
		err = s.rewrite(header, tbl, rec)
	} else {
		err = s.appendRow(header, rec)
	}
	if err != nil {
		return AppendResult{}, err
	}

	logging.Module("yieldstore").WithFields(map[string]any{
		"record_id": rec.ID,
		"invoice":   rec.InvoiceNumber,
		"duplicate": res.Duplicate,
		"new_cuts":  res.NewColumns,
	}).Info("yield record appended")
	return res, nil
}

type Filter struct {
	From          time.Time // inclusive, zero means open
	To            time.Time // inclusive, zero means open
	InvoiceNumber string
	Supplier      string
	AnimalType    string
}

func (f Filter) match(r models.YieldRecord) bool {
	d := r.RecordDate.Format(DateLayout)
	if !f.From.IsZero() && d < f.From.Format(DateLayout) {
		return false
	}
	if !f.To.IsZero() && d > f.To.Format(DateLayout) {
		return false
	}
	return matchText(f.InvoiceNumber, r.InvoiceNumber) &&
		matchText(f.Supplier, r.Supplier) &&
		matchText(f.AnimalType, r.AnimalType)
}

// matchText compares trimmed values; a blank filter matches anything.
func matchText(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || got == want
}

type QueryResult struct {
	Records []models.YieldRecord `json:"records"`
	// Readable rows in the store, before filtering.
	StoredCount int `json:"stored_count"`
	// Rows that could not be parsed and were left out.
	Skipped  int      `json:"skipped"`
	CutNames []string `json:"cut_names"`
}

// StoreEmpty tells "nothing recorded yet" apart from "no record matched".
func (q QueryResult) StoreEmpty() bool { return q.StoredCount == 0 }

// Query returns the stored records matching f, in file order.
func (s *Store) Query(ctx context.Context, f Filter) (QueryResult, error) {
	all, err := s.All(ctx)
	if err != nil {
		return QueryResult{}, err
	}
	out := QueryResult{
		Records:     make([]models.YieldRecord, 0, len(all.Records)),
		StoredCount: all.StoredCount,
		Skipped:     all.Skipped,
		CutNames:    all.CutNames,
	}
	for _, r := range all.Records {
		if f.match(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out, nil
}

// All reads every parseable record under the shared lock.
func (s *Store) All(ctx context.Context) (QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return QueryResult{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	fl := flock.New(s.path + ".lock")
	if _, err := fl.TryRLockContext(ctx, lockRetry); err != nil {
		return QueryResult{}, fmt.Errorf("lock yield store: %w", err)
	}
	defer fl.Unlock()

	tbl, err := s.readTable()
	if err != nil {
		return QueryResult{}, err
	}

	res := QueryResult{
		Records:  make([]models.YieldRecord, 0, len(tbl.rows)),
		CutNames: cutColumnNames(tbl.header),
	}
	for i, row := range tbl.rows {
		rec, err := tbl.record(row)
		if err != nil {
			res.Skipped++
			logging.Module("yieldstore").WithFields(map[string]any{
				"path": s.path,
				"line": i + 2,
			}).Warnf("skipping unreadable yield row: %v", err)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	res.StoredCount = len(res.Records)
	return res, nil
}

// CutNames lists the cut columns in header order.
func (s *Store) CutNames(ctx context.Context) ([]string, error) {
	res, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return res.CutNames, nil
}

type table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

func (t *table) get(row []string, col string) string {
	if i, ok := t.index[col]; ok && i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// readTable loads the raw file. A missing or empty file is an empty table.
func (s *Store) readTable() (*table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &table{}, nil
		}
		return nil, fmt.Errorf("open yield store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return &table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read yield store header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &table{header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}

	line := 1
	for {
		line++
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// kept so a rewrite does not lose it; record() rejects it on read
			logging.Module("yieldstore").WithField("line", line).Warnf("malformed csv row: %v", err)
			if row != nil {
				t.rows = append(t.rows, row)
			}
			continue
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (t *table) record(row []string) (models.YieldRecord, error) {
	var rec models.YieldRecord
	if len(row) == 0 {
		return rec, errors.New("empty row")
	}

	rec.ID = t.get(row, colID)
	rec.InvoiceNumber = t.get(row, colInvoice)
	rec.Supplier = t.get(row, colSupplier)
	rec.AnimalType = t.get(row, colAnimalType)
	rec.CreatedBy = t.get(row, colCreatedBy)

	var err error
	if rec.RecordDate, err = parseDate(t.get(row, colDate)); err != nil {
		return rec, fmt.Errorf("%s: %w", colDate, err)
	}
	if rec.InputWeight, err = parseDecimal(t.get(row, colInput)); err != nil {
		return rec, fmt.Errorf("%s: %w", colInput, err)
	}
	if v := t.get(row, colPieces); v != "" {
		if rec.PieceCount, err = strconv.Atoi(v); err != nil {
			return rec, fmt.Errorf("%s: %w", colPieces, err)
		}
	}
	if v := t.get(row, colCreatedAt); v != "" {
		if rec.CreatedAt, err = time.Parse(time.RFC3339, v); err != nil {
			return rec, fmt.Errorf("%s: %w", colCreatedAt, err)
		}
	}

	rec.Cuts = make(map[string]decimal.Decimal)
	for i, h := range t.header {
		if !strings.HasPrefix(h, CutPrefix) || i >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}
		w, err := parseDecimal(v)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", h, err)
		}
		rec.Cuts[strings.TrimPrefix(h, CutPrefix)] = w
	}
	return rec, nil
}

func (s *Store) appendRow(header []string, rec models.YieldRecord) error {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open yield store: %w", err)
	}
	defer f.Close()

	// a hand-edited file may lack the final newline
	if st, err := f.Stat(); err == nil && st.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, st.Size()-1); err == nil && last[0] != '\n' {
			if _, err := f.Write([]byte("\n")); err != nil {
				return fmt.Errorf("write yield row: %w", err)
			}
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write(encode(header, rec)); err != nil {
		return fmt.Errorf("write yield row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write yield row: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync yield store: %w", err)
	}
	return f.Close()
}

// rewrite writes header, the old rows re-aligned to it and rec to a temp file,
// then renames it over the store.
func (s *Store) rewrite(header []string, old *table, rec models.YieldRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	_ = w.Write(header)
	for _, row := range old.rows {
		aligned := make([]string, len(header))
		for i, h := range header {
			if j, ok := old.index[h]; ok && j < len(row) {
				aligned[i] = row[j]
			}
		}
		_ = w.Write(aligned)
	}
	_ = w.Write(encode(header, rec))
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace yield store: %w", err)
	}
	syncDir(filepath.Dir(s.path))
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func encode(header []string, rec models.YieldRecord) []string {
	row := make([]string, len(header))
	for i, h := range header {
		switch h {
		case colID:
			row[i] = rec.ID
		case colDate:
			row[i] = rec.RecordDate.Format(DateLayout)
		case colInvoice:
			row[i] = rec.InvoiceNumber
		case colSupplier:
			row[i] = rec.Supplier
		case colAnimalType:
			row[i] = rec.AnimalType
		case colPieces:
			row[i] = strconv.Itoa(rec.PieceCount)
		case colInput:
			row[i] = rec.InputWeight.String()
		case colCreatedAt:
			row[i] = rec.CreatedAt.Format(time.RFC3339)
		case colCreatedBy:
			row[i] = rec.CreatedBy
		default:
			if name, ok := strings.CutPrefix(h, CutPrefix); ok {
				if w, ok := rec.Cuts[name]; ok {
					row[i] = w.String()
				}
			}
		}
	}
	return row
}

// widenHeader returns header plus any fixed or cut column rec needs that it
// lacks. New cut columns are appended in name order.
func widenHeader(header []string, rec models.YieldRecord) ([]string, []string) {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var added []string
	for _, c := range fixedColumns {
		if !have[c] {
			added = append(added, c)
		}
	}
	for _, name := range rec.CutNames() {
		if c := CutPrefix + name; !have[c] {
			added = append(added, c)
		}
	}
	if len(added) == 0 {
		return header, nil
	}
	out := make([]string, 0, len(header)+len(added))
	out = append(out, header...)
	return append(out, added...), added
}

func cutColumnNames(cols []string) []string {
	var names []string
	for _, c := range cols {
		if name, ok := strings.CutPrefix(c, CutPrefix); ok {
			names = append(names, name)
		}
	}
	return names
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return dateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

func parseDecimal(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(v, ",") && !strings.Contains(v, ".") {
		v = strings.Replace(v, ",", ".", 1)
	}
	return decimal.NewFromString(v)
}

func sameDate(stored, date string) bool {
	t, err := parseDate(stored)
	return err == nil && t.Format(DateLayout) == date
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortByDate orders records by record date, then creation time. Stable.
func SortByDate(records []models.YieldRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].RecordDate.Equal(records[j].RecordDate) {
			return records[i].RecordDate.Before(records[j].RecordDate)
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
