package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/repository"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

type draftStore interface {
	WithinTx(ctx context.Context, fn func(repository.IncidentTx) error) error
}

type attachmentRemover interface {
	DeleteAll(ctx context.Context, incidentID string) (int, error)
}

const deactivationActor = "system:deactivation"

// DeactivationResult summarises a batch deletion.
type DeactivationResult struct {
	Username           string   `json:"username"`
	DeletedReports     int      `json:"deleted_reports"`
	DeletedAttachments int      `json:"deleted_attachments"`
	ReportIDs          []string `json:"report_ids"`
}

// DeactivationService removes the drafts of users whose account was deactivated.
type DeactivationService struct {
	repo        draftStore
	attachments attachmentRemover
	audit       auditRecorder
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewDeactivationService constructs the service.
func NewDeactivationService(repo draftStore, attachments attachmentRemover, audit auditRecorder, metrics *MetricsService, logger *zap.Logger) *DeactivationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeactivationService{repo: repo, attachments: attachments, audit: audit, metrics: metrics, logger: logger}
}

// DeleteDraftsForDeactivatedUser deletes every drafting report of username.
// Attachments go first; any attachment failure rolls back the whole batch.
func (s *DeactivationService) DeleteDraftsForDeactivatedUser(ctx context.Context, username string) (*DeactivationResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, appErrors.Field("username", "this field is required")
	}

	result := &DeactivationResult{Username: username, ReportIDs: []string{}}
	err := s.repo.WithinTx(ctx, func(tx repository.IncidentTx) error {
		drafts, err := tx.LockDraftsByOwner(ctx, username)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load drafts")
		}
		if len(drafts) == 0 {
			return nil
		}

		ids := make([]string, 0, len(drafts))
		for _, draft := range drafts {
			start := time.Now()
			deleted, err := s.attachments.DeleteAll(ctx, draft.ID)
			if err != nil {
				s.metrics.RecordUpstream("attachments", "error", time.Since(start))
				s.logger.Error("attachment deletion failed, aborting batch",
					zap.String("username", username),
					zap.String("incident_id", draft.ID),
					zap.Error(err),
				)
				return appErrors.Upstream(err, "failed to delete attachments of report "+draft.ID)
			}
			s.metrics.RecordUpstream("attachments", "ok", time.Since(start))
			result.DeletedAttachments += deleted
			ids = append(ids, draft.ID)
		}

		n, err := tx.DeleteByIDs(ctx, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete drafts")
		}
		result.DeletedReports = int(n)
		result.ReportIDs = ids
		return nil
	})
	if err != nil {
		s.metrics.RecordWorkflow("delete", appErrors.FromError(err).Code)
		return nil, err
	}
	s.metrics.RecordWorkflow("delete", "ok")

	s.logger.Info("drafts deleted for deactivated user",
		zap.String("username", username),
		zap.Int("reports", result.DeletedReports),
		zap.Int("attachments", result.DeletedAttachments),
	)
	for _, id := range result.ReportIDs {
		s.emitAudit(ctx, username, id)
	}
	return result, nil
}

func (s *DeactivationService) emitAudit(ctx context.Context, owner, id string) {
	if s.audit == nil {
		return
	}
	resourceID := id
	client := clientFrom(ctx)
	oldValues, _ := json.Marshal(map[string]string{
		"owner_username": owner,
		"status":         string(models.StatusDrafting),
	})
	log := &models.AuditLog{
		Username:   deactivationActor,
		Action:     models.AuditActionIncidentDelete,
		Resource:   models.AuditResourceIncident,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("incident_id", id), zap.Error(err))
	}
}
