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

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	*BaseHandler
	service  *billing.Service
	recorder audit.Recorder
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(base *BaseHandler, service *billing.Service, recorder audit.Recorder) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler: base,
		service:     service,
		recorder:    recorder,
	}
}

// List handles GET /payments
func (h *PaymentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := billing.PaymentListFilter{}
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
	if invoiceID := c.Query("invoiceId"); invoiceID != "" {
		parsed, err := id.Parse(invoiceID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid invoice id"))
			return
		}
		filter.InvoiceID = &parsed
	}
	if status := c.Query("status"); status != "" {
		s := billing.PaymentStatus(status)
		filter.Status = &s
	}
	if method := c.Query("method"); method != "" {
		m := billing.PaymentMethod(method)
		filter.Method = &m
	}
	if from, ok := parseTimeQuery(c, "dateFrom"); ok {
		filter.DateFrom = from
	}
	if to, ok := parseTimeQuery(c, "dateTo"); ok {
		filter.DateTo = to
	}

	result, err := h.service.ListPayments(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]any, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromPayment(item)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	pay, err := h.service.GetPayment(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromPayment(pay))
}

// Apply handles POST /payments - post a settled payment and reconcile
// the target invoice in the same transaction.
func (h *PaymentHandler) Apply(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ApplyPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.ApplyPayment(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.recordPayment(c, result)

	response := dto.FromApplyResult(result)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Planned handles POST /payments/planned - record a PENDING installment.
func (h *PaymentHandler) Planned(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PlannedPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	pay, err := h.service.RecordPlannedPayment(ctx, input, req.DueDate)
	if err != nil {
		h.Error(c, err)
		return
	}

	response := dto.FromPayment(pay)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// MarkPaid handles POST /payments/:id/mark-paid
func (h *PaymentHandler) MarkPaid(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	result, err := h.service.MarkPaymentPaid(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.recordPayment(c, result)
	h.OK(c, dto.FromApplyResult(result))
}

// Refund handles POST /payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	result, err := h.service.RefundPayment(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.recordPayment(c, result)
	h.OK(c, dto.FromApplyResult(result))
}

func (h *PaymentHandler) recordPayment(c *gin.Context, result *billing.ApplyResult) {
	changes := map[string]any{
		"amount": result.Payment.Amount.String(),
		"status": string(result.Payment.Status),
	}
	if result.Invoice != nil {
		changes["invoice_id"] = result.Invoice.InvoiceID.String()
		changes["invoice_status"] = string(result.Invoice.Status)
	}
	_ = h.recorder.RecordChange(c.Request.Context(), "payment",
		result.Payment.ID, audit.ActionPayment, changes)
}
