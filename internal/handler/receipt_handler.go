package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/response"
)

type receiptService interface {
	Receipt(ctx context.Context, p *models.Principal, id string, stage models.Tier) (*service.ClosingReceipt, error)
	ReceiptPDF(ctx context.Context, p *models.Principal, id string, stage models.Tier) ([]byte, string, error)
	ExportCSV(ctx context.Context, p *models.Principal, filter models.IncidentFilter) ([]byte, error)
}

var stageSlugs = map[string]models.Tier{
	"":        models.TierNone,
	"diretor": models.TierDirector,
	"dre":     models.TierDistrict,
	"gipe":    models.TierCentral,
}

// ReceiptHandler serves closing receipts and exports.
type ReceiptHandler struct {
	receipts receiptService
	validate *validator.Validate
	now      func() time.Time
}

// NewReceiptHandler builds a new handler.
func NewReceiptHandler(receipts receiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts, validate: newValidator(), now: time.Now}
}

func stageFromQuery(c *gin.Context) (models.Tier, error) {
	stage, ok := stageSlugs[c.Query("etapa")]
	if !ok {
		return models.TierNone, appErrors.Field("etapa", "must be diretor, dre or gipe")
	}
	return stage, nil
}

// Receipt godoc
// @Summary Closing receipt of a stage
// @Tags Comprovantes
// @Produce json
// @Param id path string true "Report ID"
// @Param etapa query string false "diretor, dre or gipe; defaults to the caller's stage"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /intercorrencias/{id}/comprovante [get]
func (h *ReceiptHandler) Receipt(c *gin.Context) {
	stage, err := stageFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	receipt, err := h.receipts.Receipt(c.Request.Context(), principalFromContext(c), c.Param("id"), stage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// ReceiptPDF godoc
// @Summary Download the closing receipt as PDF
// @Tags Comprovantes
// @Produce application/pdf
// @Param id path string true "Report ID"
// @Param etapa query string false "diretor, dre or gipe"
// @Success 200 {file} file
// @Router /intercorrencias/{id}/comprovante/pdf [get]
func (h *ReceiptHandler) ReceiptPDF(c *gin.Context) {
	stage, err := stageFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, filename, err := h.receipts.ReceiptPDF(c.Request.Context(), principalFromContext(c), c.Param("id"), stage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", body)
}

// Export godoc
// @Summary Export the reports listing as CSV
// @Tags Comprovantes
// @Produce text/csv
// @Param unidade query string false "School EOL code"
// @Param dre query string false "District EOL code"
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Success 200 {file} file
// @Router /gipe/exportar [get]
func (h *ReceiptHandler) Export(c *gin.Context) {
	filter, err := bindListQuery(c, h.validate)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.receipts.ExportCSV(c.Request.Context(), principalFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("intercorrencias-%s.csv", h.now().Format("20060102-150405"))
	response.Attachment(c, filename, "text/csv; charset=utf-8", body)
}
