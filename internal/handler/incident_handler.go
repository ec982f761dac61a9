package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/workflow"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/response"
)

type incidentService interface {
	CreateDraft(ctx context.Context, p *models.Principal, payload service.Payload) (*models.IncidentView, error)
	UpdateSection(ctx context.Context, p *models.Principal, id string, name workflow.SectionName, payload service.Payload) (*models.IncidentView, error)
	SendToDistrict(ctx context.Context, p *models.Principal, id string, payload service.Payload) (*models.IncidentView, error)
	SendToCentral(ctx context.Context, p *models.Principal, id string, payload service.Payload) (*models.IncidentView, error)
	Finalize(ctx context.Context, p *models.Principal, id string, payload service.Payload) (*models.IncidentView, error)
	GetByID(ctx context.Context, p *models.Principal, id string) (*models.IncidentView, error)
	ListForRole(ctx context.Context, p *models.Principal, filter models.IncidentFilter) ([]models.IncidentView, *models.Pagination, error)
	Verify(ctx context.Context, p *models.Principal, id string) (*models.IncidentView, error)
}

type historyService interface {
	History(ctx context.Context, p *models.Principal, id string) ([]models.AuditLog, error)
}

// sectionSlugs maps the URL names of the form sections.
var sectionSlugs = map[string]workflow.SectionName{
	"inicial":         workflow.SectionInitial,
	"furto-roubo":     workflow.SectionTheft,
	"nao-furto-roubo": workflow.SectionNonTheft,
	"info-agressor":   workflow.SectionAggressor,
	"final":           workflow.SectionFinal,
	"completo":        workflow.SectionFull,
	"dre":             workflow.SectionDistrict,
	"gipe":            workflow.SectionCentral,
}

// IncidentHandler exposes the report workflow.
type IncidentHandler struct {
	incidents incidentService
	history   historyService
	validate  *validator.Validate
}

// NewIncidentHandler builds a new handler.
func NewIncidentHandler(incidents incidentService, history historyService) *IncidentHandler {
	return &IncidentHandler{incidents: incidents, history: history, validate: newValidator()}
}

// List godoc
// @Summary List reports visible to the caller
// @Tags Intercorrencias
// @Produce json
// @Param unidade query string false "School EOL code"
// @Param dre query string false "District EOL code"
// @Param responsavel query string false "Owner username"
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param ordering query string false "asc or desc by creation date"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /diretor/ [get]
// @Router /dre/ [get]
// @Router /gipe/ [get]
func (h *IncidentHandler) List(c *gin.Context) {
	filter, err := bindListQuery(c, h.validate)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.incidents.ListForRole(c.Request.Context(), principalFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Open a report with the initial section
// @Tags Intercorrencias
// @Accept json
// @Produce json
// @Param payload body dto.ReportPayload true "occurred_at, unit_code, district_code, is_theft_category"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /diretor/ [post]
func (h *IncidentHandler) Create(c *gin.Context) {
	payload, err := bindPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.incidents.CreateDraft(c.Request.Context(), principalFromContext(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Get a report
// @Tags Intercorrencias
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /diretor/{id} [get]
// @Router /dre/{id} [get]
// @Router /gipe/{id} [get]
func (h *IncidentHandler) Get(c *gin.Context) {
	view, err := h.incidents.GetByID(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// UpdateSection godoc
// @Summary Update one section of a report
// @Tags Intercorrencias
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param secao path string true "inicial, furto-roubo, nao-furto-roubo, info-agressor, final, completo, dre or gipe"
// @Param payload body dto.ReportPayload true "Section fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /diretor/{id}/secao/{secao} [put]
// @Router /dre/{id}/secao/{secao} [put]
// @Router /gipe/{id}/secao/{secao} [put]
func (h *IncidentHandler) UpdateSection(c *gin.Context) {
	payload, err := bindPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	name, ok := sectionSlugs[c.Param("secao")]
	if !ok {
		name = workflow.SectionName(c.Param("secao"))
	}
	view, err := h.incidents.UpdateSection(c.Request.Context(), principalFromContext(c), c.Param("id"), name, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// SendToDistrict godoc
// @Summary Close the school stage and send the report to the district
// @Tags Intercorrencias
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ReportPayload true "director_closing_reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /diretor/{id}/enviar-para-dre [post]
func (h *IncidentHandler) SendToDistrict(c *gin.Context) {
	h.advance(c, h.incidents.SendToDistrict)
}

// SendToCentral godoc
// @Summary Close the district stage and send the report to GIPE
// @Tags Intercorrencias
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ReportPayload true "district_closing_reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /dre/{id}/enviar-para-gipe [post]
func (h *IncidentHandler) SendToCentral(c *gin.Context) {
	h.advance(c, h.incidents.SendToCentral)
}

// Finalize godoc
// @Summary Close the GIPE stage
// @Tags Intercorrencias
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.ReportPayload true "central_closing_reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /gipe/{id}/finalizar [post]
func (h *IncidentHandler) Finalize(c *gin.Context) {
	h.advance(c, h.incidents.Finalize)
}

type stageAction func(ctx context.Context, p *models.Principal, id string, payload service.Payload) (*models.IncidentView, error)

func (h *IncidentHandler) advance(c *gin.Context, action stageAction) {
	payload, err := bindPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := action(c.Request.Context(), principalFromContext(c), c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// History godoc
// @Summary Audit trail of a report
// @Tags Intercorrencias
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /intercorrencias/{id}/historico [get]
func (h *IncidentHandler) History(c *gin.Context) {
	logs, err := h.history.History(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Verify godoc
// @Summary Check whether the caller may see a report
// @Description Used by the attachments service before serving files.
// @Tags Intercorrencias
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verify/{id} [get]
func (h *IncidentHandler) Verify(c *gin.Context) {
	view, err := h.incidents.Verify(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
