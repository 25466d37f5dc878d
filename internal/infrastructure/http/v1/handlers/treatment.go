package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinicore/internal/domain"
	"clinicore/internal/domain/catalogs/treatment"
	"clinicore/internal/infrastructure/http/v1/dto"
)

// TreatmentHandler handles treatment catalog endpoints.
// CRUD comes from the generic catalog handler; Active is treatment-specific.
type TreatmentHandler struct {
	*CatalogHandler[*treatment.Treatment, dto.CreateTreatmentRequest, dto.UpdateTreatmentRequest]
	service *treatment.Service
}

// NewTreatmentHandler creates a configured handler for treatments.
func NewTreatmentHandler(base *BaseHandler, service *treatment.Service) *TreatmentHandler {
	config := CatalogHandlerConfig[
		*treatment.Treatment,
		dto.CreateTreatmentRequest,
		dto.UpdateTreatmentRequest,
	]{
		Service:    service.CatalogService,
		EntityName: "treatment",

		MapCreateDTO: func(req dto.CreateTreatmentRequest) (*treatment.Treatment, error) {
			return req.ToEntity()
		},

		MapUpdateDTO: func(req dto.UpdateTreatmentRequest, existing *treatment.Treatment) (*treatment.Treatment, error) {
			if err := req.ApplyTo(existing); err != nil {
				return nil, err
			}
			return existing, nil
		},

		MapToDTO: func(entity *treatment.Treatment) any {
			return dto.FromTreatment(entity)
		},
	}

	return &TreatmentHandler{
		CatalogHandler: NewCatalogHandler(base, config),
		service:        service,
	}
}

// Active handles GET /treatments/active - treatments available for booking.
func (h *TreatmentHandler) Active(c *gin.Context) {
	ctx := c.Request.Context()

	filter := domain.ListFilter{
		Search: c.Query("search"),
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	result, err := h.service.FindActive(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]any, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromTreatment(item)
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
