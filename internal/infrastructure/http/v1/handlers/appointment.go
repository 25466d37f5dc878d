package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/domain/audit"
	"clinicore/internal/domain/completion"
	"clinicore/internal/domain/scheduling"
	"clinicore/internal/infrastructure/http/v1/dto"
)

// AppointmentHandler handles appointment endpoints.
// Status changes go through the completion workflow, so a COMPLETED target
// produces the invoice and medical record in the same transaction.
type AppointmentHandler struct {
	*BaseHandler
	service  *scheduling.Service
	workflow *completion.Workflow
	recorder audit.Recorder
}

// NewAppointmentHandler creates a new appointment handler.
func NewAppointmentHandler(
	base *BaseHandler,
	service *scheduling.Service,
	workflow *completion.Workflow,
	recorder audit.Recorder,
) *AppointmentHandler {
	return &AppointmentHandler{
		BaseHandler: base,
		service:     service,
		workflow:    workflow,
		recorder:    recorder,
	}
}

// List handles GET /appointments
func (h *AppointmentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := scheduling.ListFilter{}
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
	if staffID := c.Query("staffId"); staffID != "" {
		parsed, err := id.Parse(staffID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid staff id"))
			return
		}
		filter.StaffID = &parsed
	}
	if status := c.Query("status"); status != "" {
		s := scheduling.Status(status)
		filter.Status = &s
	}
	if from, ok := parseTimeQuery(c, "dateFrom"); ok {
		filter.DateFrom = from
	}
	if to, ok := parseTimeQuery(c, "dateTo"); ok {
		filter.DateTo = to
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]any, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromAppointment(item)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromAppointment(doc))
}

// Create handles POST /appointments
func (h *AppointmentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateAppointmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.Create(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "appointment", doc.ID, audit.ActionCreate, map[string]any{
		"number": doc.Number,
		"status": string(doc.Status),
		"total":  doc.TotalAmount.String(),
	})

	response := dto.FromAppointment(doc)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// UpdateLines handles PUT /appointments/:id/lines
func (h *AppointmentHandler) UpdateLines(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateAppointmentLinesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inputs, err := req.ToInputs()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.UpdateLines(ctx, docID, inputs)
	if err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "appointment", doc.ID, audit.ActionUpdate, map[string]any{
		"lines": len(doc.Lines),
		"total": doc.TotalAmount.String(),
	})

	h.OK(c, dto.FromAppointment(doc))
}

// Transition handles POST /appointments/:id/transition
func (h *AppointmentHandler) Transition(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	target := scheduling.Status(req.Status)
	result, err := h.workflow.Transition(ctx, docID, target, req.Clinical.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.recordTransition(c, result)
	h.OK(c, dto.FromCompletionResult(result))
}

// Cancel handles POST /appointments/:id/cancel
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.CancelAppointmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.Cancel(ctx, docID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "appointment", doc.ID, audit.ActionTransition, map[string]any{
		"status": string(doc.Status),
	})

	h.OK(c, dto.FromAppointment(doc))
}

// Complete handles POST /appointments/:id/complete
func (h *AppointmentHandler) Complete(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.CompleteAppointmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.workflow.Complete(ctx, docID, req.Clinical.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.recordTransition(c, result)
	h.OK(c, dto.FromCompletionResult(result))
}

func (h *AppointmentHandler) recordTransition(c *gin.Context, result *completion.Result) {
	changes := map[string]any{
		"status": string(result.Appointment.Status),
	}
	if result.Invoice != nil {
		changes["invoice_id"] = result.Invoice.ID.String()
	}
	if result.MedicalRecord != nil {
		changes["record_id"] = result.MedicalRecord.ID.String()
	}
	_ = h.recorder.RecordChange(c.Request.Context(), "appointment",
		result.Appointment.ID, audit.ActionTransition, changes)
}
