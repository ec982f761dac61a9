package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

type mockAttachments struct {
	counts map[string]int
	fail   map[string]error
	calls  []string
}

func (m *mockAttachments) DeleteAll(_ context.Context, incidentID string) (int, error) {
	m.calls = append(m.calls, incidentID)
	if err, ok := m.fail[incidentID]; ok {
		return 0, err
	}
	return m.counts[incidentID], nil
}

func deactivationFixture() (*mockIncidentRepo, *mockAttachments, *mockAudit) {
	draftA := completeTheftDraft()
	draftA.ID = "draft-a"
	draftB := nonTheftWithDossier()
	draftB.ID = "draft-b"
	sent := completeTheftDraft()
	sent.ID = "sent"
	sent.Status = models.StatusSentToDistrict
	foreign := completeTheftDraft()
	foreign.ID = "foreign"
	foreign.OwnerUsername = "outro"

	repo := newMockIncidentRepo(draftA, draftB, sent, foreign)
	attachments := &mockAttachments{counts: map[string]int{"draft-a": 2, "draft-b": 1}, fail: map[string]error{}}
	return repo, attachments, &mockAudit{}
}

func TestDeleteDraftsForDeactivatedUser(t *testing.T) {
	repo, attachments, audit := deactivationFixture()
	svc := NewDeactivationService(repo, attachments, audit, NewMetricsService(), zap.NewNop())

	result, err := svc.DeleteDraftsForDeactivatedUser(context.Background(), director.Username)
	require.NoError(t, err)

	assert.Equal(t, 2, result.DeletedReports)
	assert.Equal(t, 3, result.DeletedAttachments)
	assert.ElementsMatch(t, []string{"draft-a", "draft-b"}, result.ReportIDs)
	assert.ElementsMatch(t, []string{"draft-a", "draft-b"}, repo.deleted)
	assert.Contains(t, repo.items, "sent")
	assert.Contains(t, repo.items, "foreign")

	require.Len(t, audit.logs, 2)
	for _, log := range audit.logs {
		assert.Equal(t, deactivationActor, log.Username)
		assert.Equal(t, models.AuditActionIncidentDelete, log.Action)
		assert.Contains(t, string(log.OldValues), director.Username)
	}
}

func TestDeleteDraftsAttachmentFailureRollsBack(t *testing.T) {
	repo, attachments, audit := deactivationFixture()
	attachments.fail["draft-b"] = errors.New("anexos_com_erro: 1")
	attachments.fail["draft-a"] = errors.New("anexos_com_erro: 1")
	svc := NewDeactivationService(repo, attachments, audit, nil, nil)

	_, err := svc.DeleteDraftsForDeactivatedUser(context.Background(), director.Username)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUpstreamUnavailable.Code))

	assert.Empty(t, repo.deleted)
	assert.Contains(t, repo.items, "draft-a")
	assert.Contains(t, repo.items, "draft-b")
	assert.Empty(t, audit.logs)
}

func TestDeleteDraftsNothingToDelete(t *testing.T) {
	repo, attachments, audit := deactivationFixture()
	svc := NewDeactivationService(repo, attachments, audit, nil, nil)

	result, err := svc.DeleteDraftsForDeactivatedUser(context.Background(), "ninguem")
	require.NoError(t, err)
	assert.Zero(t, result.DeletedReports)
	assert.Empty(t, result.ReportIDs)
	assert.Empty(t, attachments.calls)

	_, err = svc.DeleteDraftsForDeactivatedUser(context.Background(), "  ")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}
