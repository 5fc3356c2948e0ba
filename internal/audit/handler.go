package audit

import (
	"strconv"
	"time"

	"estoque-backend/internal/database"
	"estoque-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultLimit = 200
	maxLimit     = 1000
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityRef   string             `json:"entity_ref"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
}

// GET /api/audit-logs?entity_type=yield_record&entity_ref=&user_id=&action=&from=2024-01-01&to=2024-01-31&limit=
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.AuditLog{})

		if v := c.Query("entity_type"); v != "" {
			dbq = dbq.Where("entity_type = ?", v)
		}
		if v := c.Query("entity_ref"); v != "" {
			dbq = dbq.Where("entity_ref = ?", v)
		}
		if v := c.Query("action"); v != "" {
			dbq = dbq.Where("action = ?", v)
		}
		if v := c.Query("user_id"); v != "" {
			uid, err := strconv.ParseUint(v, 10, 64)
			if err != nil || uid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "user_id inválido")
			}
			dbq = dbq.Where("user_id = ?", uid)
		}
		if v := c.Query("from"); v != "" {
			from, err := time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from inválido (use AAAA-MM-DD)")
			}
			dbq = dbq.Where("created_at >= ?", from)
		}
		if v := c.Query("to"); v != "" {
			to, err := time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to inválido (use AAAA-MM-DD)")
			}
			dbq = dbq.Where("created_at < ?", to.AddDate(0, 0, 1))
		}

		limit := c.QueryInt("limit", defaultLimit)
		if limit <= 0 || limit > maxLimit {
			limit = defaultLimit
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Logs não puderam ser listados")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityRef:   log.EntityRef,
				Action:      log.Action,
				Description: log.Description,
			})
		}

		return c.JSON(resp)
	}
}
