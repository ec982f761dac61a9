package dto

import (
	"strings"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
)

// IncidentListQuery holds the query string accepted by report listings.
type IncidentListQuery struct {
	UnitCode     string   `form:"unidade" validate:"omitempty,numeric,max=10"`
	DistrictCode string   `form:"dre" validate:"omitempty,numeric,max=10"`
	Owner        string   `form:"responsavel" validate:"omitempty,max=150"`
	Status       []string `form:"status" validate:"omitempty,dive,oneof=em_preenchimento_diretor enviado_para_dre enviado_para_gipe finalizada"`
	Page         int      `form:"page" validate:"omitempty,min=1"`
	PageSize     int      `form:"page_size" validate:"omitempty,min=1,max=100"`
	Ordering     string   `form:"ordering" validate:"omitempty,oneof=asc desc"`
}

// Filter converts the query into repository criteria. Comma separated status
// values are accepted next to repeated parameters.
func (q IncidentListQuery) Filter() models.IncidentFilter {
	filter := models.IncidentFilter{
		UnitCode:      strings.TrimSpace(q.UnitCode),
		DistrictCode:  strings.TrimSpace(q.DistrictCode),
		OwnerUsername: strings.TrimSpace(q.Owner),
		Page:          q.Page,
		PageSize:      q.PageSize,
		SortOrder:     q.Ordering,
	}
	for _, st := range q.Status {
		filter.Statuses = append(filter.Statuses, models.Status(st))
	}
	return filter
}

// SplitStatuses expands "a,b" status values into separate entries.
func (q *IncidentListQuery) SplitStatuses() {
	var out []string
	for _, raw := range q.Status {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	q.Status = out
}

// ReportPayload documents the free-form body of section updates and stage
// exits: a JSON object keyed by field name.
type ReportPayload map[string]interface{}
