package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/domain"
	"clinicore/internal/domain/audit"
	"clinicore/internal/domain/inventory"
	"clinicore/internal/infrastructure/http/v1/dto"
)

// SupplyHandler handles supply and stock movement endpoints.
type SupplyHandler struct {
	*BaseHandler
	service  *inventory.Service
	recorder audit.Recorder
}

// NewSupplyHandler creates a new supply handler.
func NewSupplyHandler(base *BaseHandler, service *inventory.Service, recorder audit.Recorder) *SupplyHandler {
	return &SupplyHandler{
		BaseHandler: base,
		service:     service,
		recorder:    recorder,
	}
}

// List handles GET /supplies
func (h *SupplyHandler) List(c *gin.Context) {
	h.listSupplies(c, h.service.ListSupplies)
}

// LowStock handles GET /supplies/low-stock - supplies at or below minimum.
func (h *SupplyHandler) LowStock(c *gin.Context) {
	h.listSupplies(c, h.service.FindBelowMinimum)
}

func (h *SupplyHandler) listSupplies(
	c *gin.Context,
	list func(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*inventory.Supply], error),
) {
	ctx := c.Request.Context()

	filter := domain.ListFilter{
		Search:  c.Query("search"),
		OrderBy: c.Query("orderBy"),
		Limit:   h.ParseIntQuery(c, "limit", 50),
		Offset:  h.ParseIntQuery(c, "offset", 0),
	}
	if c.Query("includeDeleted") == "true" {
		filter.IncludeDeleted = true
	}

	result, err := list(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	now := time.Now()
	items := make([]any, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromSupply(item, now)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /supplies/:id
func (h *SupplyHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	supplyID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	sup, err := h.service.GetSupply(ctx, supplyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSupply(sup, time.Now()))
}

// View handles GET /supplies/:id/view - current stock and derived status.
func (h *SupplyHandler) View(c *gin.Context) {
	ctx := c.Request.Context()

	supplyID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	view, err := h.service.GetView(ctx, supplyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSupplyView(view))
}

// Create handles POST /supplies
func (h *SupplyHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateSupplyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	sup, err := h.service.CreateSupply(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "supply", sup.ID, audit.ActionCreate, map[string]any{
		"name":  sup.Name,
		"stock": sup.Stock.String(),
	})

	response := dto.FromSupply(sup, time.Now())
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Update handles PUT /supplies/:id - catalog fields only, stock is
// immutable here and changes through movements.
func (h *SupplyHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	supplyID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateSupplyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sup, err := h.service.GetSupply(ctx, supplyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(sup)

	if err := h.service.UpdateSupply(ctx, sup); err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "supply", sup.ID, audit.ActionUpdate, map[string]any{
		"name": sup.Name,
	})

	h.OK(c, dto.FromSupply(sup, time.Now()))
}

// Movement handles POST /supplies/:id/movements - append a ledger entry
// and move stock in the same transaction.
func (h *SupplyHandler) Movement(c *gin.Context) {
	ctx := c.Request.Context()

	supplyID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	view, err := h.service.ApplyMovement(ctx, supplyID, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "supply", supplyID, audit.ActionMovement, map[string]any{
		"type":     string(input.Type),
		"quantity": input.Quantity.String(),
		"stock":    view.Stock.String(),
	})

	response := dto.FromSupplyView(view)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Movements handles GET /supplies/:id/movements
func (h *SupplyHandler) Movements(c *gin.Context) {
	ctx := c.Request.Context()

	supplyID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	filter := inventory.MovementFilter{SupplyID: &supplyID}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	if mt := c.Query("type"); mt != "" {
		t := inventory.MovementType(mt)
		filter.Type = &t
	}
	if from, ok := parseTimeQuery(c, "dateFrom"); ok {
		filter.DateFrom = from
	}
	if to, ok := parseTimeQuery(c, "dateTo"); ok {
		filter.DateTo = to
	}

	result, err := h.service.ListMovements(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]any, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromMovement(item)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RebuildStock handles POST /supplies/:id/rebuild-stock - replay the
// movement ledger and repair the materialized stock.
func (h *SupplyHandler) RebuildStock(c *gin.Context) {
	ctx := c.Request.Context()

	supplyID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	stock, err := h.service.RebuildStock(ctx, supplyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"supplyId": supplyID.String(), "stock": stock.String()})
}
