package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/domain/audit"
	"clinicore/internal/domain/billing"
	"clinicore/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	*BaseHandler
	service  *billing.Service
	recorder audit.Recorder
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *billing.Service, recorder audit.Recorder) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler: base,
		service:     service,
		recorder:    recorder,
	}
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := billing.InvoiceListFilter{}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")

	if clientID := c.Query("clientId"); clientID != "" {
		parsed, err := id.Parse(clientID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid client id"))
			return
		}
		filter.ClientID = &parsed
	}
	if appointmentID := c.Query("appointmentId"); appointmentID != "" {
		parsed, err := id.Parse(appointmentID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid appointment id"))
			return
		}
		filter.AppointmentID = &parsed
	}
	if status := c.Query("status"); status != "" {
		s := billing.InvoiceStatus(status)
		filter.Status = &s
	}
	if from, ok := parseTimeQuery(c, "dateFrom"); ok {
		filter.DateFrom = from
	}
	if to, ok := parseTimeQuery(c, "dateTo"); ok {
		filter.DateTo = to
	}

	result, err := h.service.ListInvoices(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]any, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromInvoice(item)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	inv, err := h.service.GetInvoice(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromInvoice(inv))
}

// Snapshot handles GET /invoices/:id/snapshot - the settlement view.
func (h *InvoiceHandler) Snapshot(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	snap, err := h.service.GetInvoiceSnapshot(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSnapshot(snap))
}

// Create handles POST /invoices - manual/ad-hoc invoicing.
func (h *InvoiceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	inv, err := h.service.CreateInvoice(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "invoice", inv.ID, audit.ActionCreate, map[string]any{
		"number": inv.Number,
		"amount": inv.Amount.String(),
	})

	response := dto.FromInvoice(inv)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Cancel handles POST /invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	inv, err := h.service.CancelInvoice(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "invoice", inv.ID, audit.ActionTransition, map[string]any{
		"status": string(inv.Status),
	})

	h.OK(c, dto.FromInvoice(inv))
}

// RebuildPaidAmount handles POST /invoices/:id/rebuild - recompute the
// materialized paid amount from the payment ledger.
func (h *InvoiceHandler) RebuildPaidAmount(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	inv, err := h.service.RebuildPaidAmount(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromInvoice(inv))
}
