package models

import "time"

type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionExport  AuditAction = "export"
	AuditActionRefresh AuditAction = "refresh"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserID   uint   `gorm:"index" json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"` // denormalized

	// e.g. "yield_record", "yield_report", "stock_snapshot"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	// Yield records are keyed by uuid, so the reference is a string
	EntityRef string `gorm:"size:64;index" json:"entity_ref"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// Payload as JSON text; plain text column so sqlite and postgres both accept it
	Data string `gorm:"type:text" json:"data"`
}
