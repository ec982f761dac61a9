package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/response"
)

type catalogService interface {
	List(ctx context.Context, kind models.CatalogKind) ([]models.CatalogEntry, error)
	Choices(group service.ChoiceGroup) (map[string][]models.Choice, error)
}

var choiceGroupSlugs = map[string]service.ChoiceGroup{
	"diretor":       service.ChoiceGroupDirector,
	"info-agressor": service.ChoiceGroupAggressor,
	"gipe":          service.ChoiceGroupCentral,
}

// CatalogHandler serves the lists behind form selects.
type CatalogHandler struct {
	catalogs catalogService
}

// NewCatalogHandler builds a new handler.
func NewCatalogHandler(catalogs catalogService) *CatalogHandler {
	return &CatalogHandler{catalogs: catalogs}
}

// IncidentTypes godoc
// @Summary Active incident types
// @Tags Catalogos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tipos-ocorrencia [get]
func (h *CatalogHandler) IncidentTypes(c *gin.Context) {
	h.list(c, models.CatalogIncidentTypes)
}

// Declarants godoc
// @Summary Active declarant options
// @Tags Catalogos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /declarantes [get]
func (h *CatalogHandler) Declarants(c *gin.Context) {
	h.list(c, models.CatalogDeclarants)
}

// InvolvedParties godoc
// @Summary Active involved-party profiles
// @Tags Catalogos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /envolvidos [get]
func (h *CatalogHandler) InvolvedParties(c *gin.Context) {
	h.list(c, models.CatalogInvolvedParties)
}

func (h *CatalogHandler) list(c *gin.Context, kind models.CatalogKind) {
	entries, err := h.catalogs.List(c.Request.Context(), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Choices godoc
// @Summary Closed-list values of a form
// @Tags Catalogos
// @Produce json
// @Param grupo path string true "diretor, info-agressor or gipe"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /opcoes/{grupo} [get]
func (h *CatalogHandler) Choices(c *gin.Context) {
	group, ok := choiceGroupSlugs[c.Param("grupo")]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "choice group not found"))
		return
	}
	choices, err := h.catalogs.Choices(group)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, choices, nil)
}
