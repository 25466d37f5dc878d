package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinicore/internal/core/apperror"
	"clinicore/internal/domain/catalogs/client"
	"clinicore/internal/infrastructure/http/v1/dto"
)

// ClientHandler handles patient catalog endpoints.
type ClientHandler struct {
	*CatalogHandler[*client.Client, dto.CreateClientRequest, dto.UpdateClientRequest]
	service *client.Service
}

// NewClientHandler creates a configured handler for patients.
func NewClientHandler(base *BaseHandler, service *client.Service) *ClientHandler {
	config := CatalogHandlerConfig[
		*client.Client,
		dto.CreateClientRequest,
		dto.UpdateClientRequest,
	]{
		Service:    service.CatalogService,
		EntityName: "client",

		MapCreateDTO: func(req dto.CreateClientRequest) (*client.Client, error) {
			return req.ToEntity(), nil
		},

		MapUpdateDTO: func(req dto.UpdateClientRequest, existing *client.Client) (*client.Client, error) {
			req.ApplyTo(existing)
			return existing, nil
		},

		MapToDTO: func(entity *client.Client) any {
			return dto.FromClient(entity)
		},
	}

	return &ClientHandler{
		CatalogHandler: NewCatalogHandler(base, config),
		service:        service,
	}
}

// ByPhone handles GET /clients/by-phone - lookup by phone number.
func (h *ClientHandler) ByPhone(c *gin.Context) {
	ctx := c.Request.Context()

	phone := c.Query("phone")
	if phone == "" {
		h.Error(c, apperror.NewValidation("phone is required").WithDetail("field", "phone"))
		return
	}

	found, err := h.service.FindByPhone(ctx, phone)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromClient(found))
}
