package yieldstore

import (
	"errors"
	"strings"

	"estoque-backend/internal/models"

	"github.com/shopspring/decimal"
)

var ErrValidation = errors.New("invalid yield record")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Normalize trims free-text fields and cut names. Cut names that collapse to
// the same trimmed name are summed.
func Normalize(r models.YieldRecord) models.YieldRecord {
	r.InvoiceNumber = strings.TrimSpace(r.InvoiceNumber)
	r.Supplier = strings.TrimSpace(r.Supplier)
	r.AnimalType = strings.TrimSpace(r.AnimalType)
	r.CreatedBy = strings.TrimSpace(r.CreatedBy)

	if r.Cuts != nil {
		cuts := make(map[string]decimal.Decimal, len(r.Cuts))
		for name, w := range r.Cuts {
			key := strings.TrimSpace(name)
			cuts[key] = cuts[key].Add(w)
		}
		r.Cuts = cuts
	}
	return r
}

// Validate checks a normalized record. It never touches the store.
func Validate(r models.YieldRecord) error {
	if r.RecordDate.IsZero() {
		return invalid("record_date", "data obrigatória")
	}
	if r.InvoiceNumber == "" {
		return invalid("invoice_number", "número da nota obrigatório")
	}
	if !r.InputWeight.IsPositive() {
		return invalid("input_weight", "peso de entrada deve ser maior que zero")
	}
	if r.PieceCount < 0 {
		return invalid("piece_count", "quantidade de peças não pode ser negativa")
	}
	for name, w := range r.Cuts {
		if name == "" {
			return invalid("cuts", "nome do corte vazio")
		}
		if strings.ContainsAny(name, "\r\n") {
			return invalid("cuts", "nome do corte inválido: "+name)
		}
		if w.IsNegative() {
			return invalid("cuts", "peso negativo no corte "+name)
		}
	}
	return nil
}
