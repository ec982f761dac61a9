package service

import (
	"context"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

type auditReader interface {
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

type incidentGetter interface {
	GetByID(ctx context.Context, p *models.Principal, id string) (*models.IncidentView, error)
}

// HistoryService exposes the audit trail of a report to whoever may read it.
type HistoryService struct {
	incidents incidentGetter
	audit     auditReader
}

// NewHistoryService constructs the service.
func NewHistoryService(incidents incidentGetter, audit auditReader) *HistoryService {
	return &HistoryService{incidents: incidents, audit: audit}
}

// History lists audit entries of the report, oldest first.
func (s *HistoryService) History(ctx context.Context, p *models.Principal, id string) ([]models.AuditLog, error) {
	if _, err := s.incidents.GetByID(ctx, p, id); err != nil {
		return nil, err
	}
	logs, err := s.audit.ListByResource(ctx, models.AuditResourceIncident, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
