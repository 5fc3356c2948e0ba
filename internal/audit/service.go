package audit

import (
	"encoding/json"
	"errors"
	"fmt"

	"estoque-backend/internal/database"
	"estoque-backend/internal/models"
)

const (
	EntityYieldRecord   = "yield_record"
	EntityYieldReport   = "yield_report"
	EntityStockSnapshot = "stock_snapshot"
)

var errNoDatabase = errors.New("audit: database not initialized")

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityRef   string
	Action      models.AuditAction
	Description string
	Data        any
}

func WriteLog(opts LogOptions) error {
	if database.DB == nil {
		return errNoDatabase
	}

	data := "null"
	if opts.Data != nil {
		if b, err := json.Marshal(opts.Data); err == nil {
			data = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityRef:   opts.EntityRef,
		Action:      opts.Action,
		Description: truncate(opts.Description, 255),
		Data:        data,
	}

	if err := database.DB.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log not saved: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
