package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/infrastructure/storage/postgres"
)

// AuditHandler exposes the change history of audited entities.
type AuditHandler struct {
	*BaseHandler
	service *postgres.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, service *postgres.AuditService) *AuditHandler {
	return &AuditHandler{
		BaseHandler: base,
		service:     service,
	}
}

// AuditEntryResponse represents one history entry in API responses.
type AuditEntryResponse struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Action     string    `json:"action"`
	UserID     string    `json:"userId,omitempty"`
	UserEmail  string    `json:"userEmail,omitempty"`
	Changes    any       `json:"changes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// History handles GET /audit/:entityType/:entityId
func (h *AuditHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	entityType := c.Param("entityType")
	if entityType == "" {
		h.Error(c, apperror.NewValidation("entity type is required"))
		return
	}

	entityID, err := id.Parse(c.Param("entityId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid entity id"))
		return
	}

	limit := h.ParseIntQuery(c, "limit", 100)

	entries, err := h.service.GetEntityHistory(ctx, entityType, entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = AuditEntryResponse{
			ID:         e.ID.String(),
			EntityType: e.EntityType,
			EntityID:   e.EntityID.String(),
			Action:     string(e.Action),
			UserID:     e.UserID,
			UserEmail:  e.UserEmail,
			Changes:    jsonRaw(e.Changes),
			CreatedAt:  e.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// jsonRaw passes decompressed change payloads through without re-encoding.
func jsonRaw(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return json.RawMessage(raw)
}
