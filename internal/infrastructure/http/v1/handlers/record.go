package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/domain/audit"
	"clinicore/internal/domain/records"
	"clinicore/internal/infrastructure/http/v1/dto"
)

// RecordHandler handles medical record endpoints.
type RecordHandler struct {
	*BaseHandler
	service  *records.Service
	recorder audit.Recorder
}

// NewRecordHandler creates a new medical record handler.
func NewRecordHandler(base *BaseHandler, service *records.Service, recorder audit.Recorder) *RecordHandler {
	return &RecordHandler{
		BaseHandler: base,
		service:     service,
		recorder:    recorder,
	}
}

// List handles GET /records
func (h *RecordHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := records.ListFilter{}
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
		items[i] = dto.FromMedicalRecord(item)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /records/:id
func (h *RecordHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	rec, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromMedicalRecord(rec))
}

// Create handles POST /records - free-standing clinical entries.
func (h *RecordHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateMedicalRecordRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.service.Create(ctx, input)
	if err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "medical_record", rec.ID, audit.ActionCreate, map[string]any{
		"number":    rec.Number,
		"client_id": rec.ClientID.String(),
	})

	response := dto.FromMedicalRecord(rec)
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", response)
	c.JSON(http.StatusCreated, response)
}

// Update handles PUT /records/:id
func (h *RecordHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.UpdateMedicalRecordRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(rec)

	if err := h.service.Update(ctx, rec); err != nil {
		h.Error(c, err)
		return
	}

	_ = h.recorder.RecordChange(ctx, "medical_record", rec.ID, audit.ActionUpdate, map[string]any{
		"number": rec.Number,
	})

	h.OK(c, dto.FromMedicalRecord(rec))
}
