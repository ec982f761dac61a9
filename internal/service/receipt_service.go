package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/export"
)

type incidentReader interface {
	GetByID(ctx context.Context, p *models.Principal, id string) (*models.IncidentView, error)
	ListForRole(ctx context.Context, p *models.Principal, filter models.IncidentFilter) ([]models.IncidentView, *models.Pagination, error)
}

type tierResolver interface {
	TierOf(p *models.Principal) models.Tier
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ClosingReceipt is the "comprovante" shown after a stage is closed.
type ClosingReceipt struct {
	IncidentID       string      `json:"incident_id"`
	ProtocolNumber   string      `json:"protocol_number"`
	Stage            models.Tier `json:"stage"`
	StatusLabel      string      `json:"status_label"`
	StatusExtra      string      `json:"status_extra"`
	ResponsibleName  string      `json:"responsible_name"`
	ResponsibleCPF   string      `json:"responsible_cpf"`
	ResponsibleEmail string      `json:"responsible_email"`
	ProfileLabel     string      `json:"profile_label"`
	UnitCode         string      `json:"unit_code"`
	UnitName         string      `json:"unit_name"`
	DistrictCode     string      `json:"district_code"`
	DistrictName     string      `json:"district_name"`
	ClosedAt         *time.Time  `json:"closed_at,omitempty"`
	ClosedBy         string      `json:"closed_by"`
	ClosingReason    string      `json:"closing_reason"`
}

var stageTitles = map[models.Tier]string{
	models.TierDirector: "Unidade Educacional",
	models.TierDistrict: "Diretoria Regional de Educação",
	models.TierCentral:  "GIPE",
}

// ReceiptService renders closing receipts and listing exports.
type ReceiptService struct {
	incidents incidentReader
	tiers     tierResolver
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
	location  *time.Location
}

// NewReceiptService constructs the service; nil renderers use the defaults.
func NewReceiptService(incidents incidentReader, tiers tierResolver, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ReceiptService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &ReceiptService{incidents: incidents, tiers: tiers, csv: csv, pdf: pdf, logger: logger, location: loc}
}

// Receipt returns the closing receipt of a stage. An empty stage means the
// principal's own stage.
func (s *ReceiptService) Receipt(ctx context.Context, p *models.Principal, id string, stage models.Tier) (*ClosingReceipt, error) {
	view, err := s.incidents.GetByID(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if stage == models.TierNone {
		stage = s.tiers.TierOf(p)
	}

	inc := view.Incident
	var (
		closedAt *time.Time
		closedBy *string
		reason   string
	)
	switch stage {
	case models.TierDirector:
		closedAt, closedBy, reason = inc.ClosedByDirectorAt, inc.ClosedByDirectorBy, inc.DirectorClosingReason
	case models.TierDistrict:
		closedAt, closedBy, reason = inc.ClosedByDistrictAt, inc.ClosedByDistrictBy, inc.DistrictClosingReason
	case models.TierCentral:
		closedAt, closedBy, reason = inc.ClosedByCentralAt, inc.ClosedByCentralBy, inc.CentralClosingReason
	default:
		return nil, appErrors.Field("stage", "unknown stage")
	}
	if closedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrDomainState, "stage has not been closed yet")
	}

	receipt := &ClosingReceipt{
		IncidentID:       inc.ID,
		Stage:            stage,
		StatusLabel:      view.StatusLabel,
		StatusExtra:      view.StatusExtra,
		ResponsibleName:  p.Name,
		ResponsibleCPF:   FormatCPF(p.CPF),
		ResponsibleEmail: p.Email,
		ProfileLabel:     p.Role.Label(),
		UnitCode:         inc.UnitCode,
		UnitName:         view.UnitName,
		DistrictCode:     inc.DistrictCode,
		DistrictName:     view.DistrictName,
		ClosedAt:         closedAt,
		ClosingReason:    reason,
	}
	if inc.ProtocolNumber != nil {
		receipt.ProtocolNumber = *inc.ProtocolNumber
	}
	if closedBy != nil {
		receipt.ClosedBy = *closedBy
	}
	return receipt, nil
}

// ReceiptPDF renders the receipt and returns it with a download file name.
func (s *ReceiptService) ReceiptPDF(ctx context.Context, p *models.Principal, id string, stage models.Tier) ([]byte, string, error) {
	receipt, err := s.Receipt(ctx, p, id, stage)
	if err != nil {
		return nil, "", err
	}

	closedAt := ""
	if receipt.ClosedAt != nil {
		closedAt = receipt.ClosedAt.In(s.location).Format("02/01/2006 15:04")
	}
	doc := export.Document{
		Title:    "Comprovante de registro de intercorrência",
		Subtitle: "Etapa: " + stageTitles[receipt.Stage],
		Sections: []export.Section{
			{
				Heading: "Intercorrência",
				Entries: []export.Entry{
					{Label: "Protocolo", Value: receipt.ProtocolNumber},
					{Label: "Status", Value: strings.TrimSpace(receipt.StatusLabel + " " + bracket(receipt.StatusExtra))},
					{Label: "Unidade", Value: joinCodeName(receipt.UnitCode, receipt.UnitName)},
					{Label: "DRE", Value: joinCodeName(receipt.DistrictCode, receipt.DistrictName)},
				},
			},
			{
				Heading: "Responsável",
				Entries: []export.Entry{
					{Label: "Nome", Value: receipt.ResponsibleName},
					{Label: "CPF", Value: receipt.ResponsibleCPF},
					{Label: "E-mail", Value: receipt.ResponsibleEmail},
					{Label: "Perfil de acesso", Value: receipt.ProfileLabel},
				},
			},
			{
				Heading: "Encerramento",
				Entries: []export.Entry{
					{Label: "Encerrado em", Value: closedAt},
					{Label: "Encerrado por", Value: receipt.ClosedBy},
					{Label: "Motivo", Value: receipt.ClosingReason},
				},
			},
		},
		Footer: "Documento gerado em " + time.Now().In(s.location).Format("02/01/2006 15:04") + ".",
	}

	body, err := s.pdf.Render(doc)
	if err != nil {
		s.logger.Error("failed to render receipt", zap.String("incident_id", id), zap.Error(err))
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return body, fmt.Sprintf("comprovante-%s-%s.pdf", receipt.Stage, receipt.IncidentID), nil
}

var exportHeaders = []string{
	"id", "protocolo", "status", "unidade", "nome_unidade", "dre", "nome_dre",
	"responsavel", "criado_em", "enviado_dre_em", "enviado_gipe_em", "finalizado_em",
}

// ExportCSV renders every report visible to the principal matching filter.
func (s *ReceiptService) ExportCSV(ctx context.Context, p *models.Principal, filter models.IncidentFilter) ([]byte, error) {
	filter.Page, filter.PageSize = 1, 100
	dataset := export.Dataset{Headers: exportHeaders}
	for {
		views, page, err := s.incidents.ListForRole(ctx, p, filter)
		if err != nil {
			return nil, err
		}
		for _, v := range views {
			dataset.Rows = append(dataset.Rows, s.exportRow(v))
		}
		if len(views) == 0 || page == nil || page.Page*page.PageSize >= page.TotalCount {
			break
		}
		filter.Page++
	}

	body, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return body, nil
}

func (s *ReceiptService) exportRow(v models.IncidentView) map[string]string {
	inc := v.Incident
	row := map[string]string{
		"id":              inc.ID,
		"status":          v.StatusLabel,
		"unidade":         inc.UnitCode,
		"nome_unidade":    v.UnitName,
		"dre":             inc.DistrictCode,
		"nome_dre":        v.DistrictName,
		"responsavel":     inc.OwnerUsername,
		"criado_em":       s.formatTime(&inc.CreatedAt),
		"enviado_dre_em":  s.formatTime(inc.ClosedByDirectorAt),
		"enviado_gipe_em": s.formatTime(inc.ClosedByDistrictAt),
		"finalizado_em":   s.formatTime(inc.ClosedByCentralAt),
	}
	if inc.ProtocolNumber != nil {
		row["protocolo"] = *inc.ProtocolNumber
	}
	return row
}

func (s *ReceiptService) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(s.location).Format("02/01/2006 15:04")
}

// FormatCPF renders an 11-digit CPF as 000.000.000-00; anything else is
// returned unchanged.
func FormatCPF(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if len(digits) != 11 {
		return raw
	}
	return fmt.Sprintf("%s.%s.%s-%s", digits[0:3], digits[3:6], digits[6:9], digits[9:11])
}

func joinCodeName(code, name string) string {
	if name == "" {
		return code
	}
	return code + " - " + name
}

func bracket(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
