package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/export"
)

func TestFormatCPF(t *testing.T) {
	assert.Equal(t, "123.456.789-01", FormatCPF("12345678901"))
	assert.Equal(t, "123.456.789-01", FormatCPF("123.456.789-01"))
	assert.Equal(t, "1234", FormatCPF("1234"))
	assert.Equal(t, "", FormatCPF(""))
}

func sentReport() *models.Incident {
	inc := completeTheftDraft()
	protocol := "GIPE-2025/0001231"
	by := director.Username
	closed := fixedNow
	inc.Status = models.StatusSentToDistrict
	inc.ProtocolNumber = &protocol
	inc.ClosedByDirectorAt = &closed
	inc.ClosedByDirectorBy = &by
	inc.DirectorClosingReason = "Registro concluído"
	return inc
}

func newReceipts(items ...*models.Incident) *ReceiptService {
	f := newEngine(items...)
	return NewReceiptService(f.svc, f.svc.Matrix(), nil, nil, nil)
}

func TestReceiptForClosedStage(t *testing.T) {
	svc := newReceipts(sentReport())
	p := *director
	p.CPF = "12345678901"
	p.Email = "ana@sme.prefeitura.sp.gov.br"

	receipt, err := svc.Receipt(context.Background(), &p, theftID, models.TierNone)
	require.NoError(t, err)

	assert.Equal(t, "GIPE-2025/0001231", receipt.ProtocolNumber)
	assert.Equal(t, models.TierDirector, receipt.Stage)
	assert.Equal(t, "123.456.789-01", receipt.ResponsibleCPF)
	assert.Equal(t, "Diretor(a)", receipt.ProfileLabel)
	assert.Equal(t, "EMEF Teste", receipt.UnitName)
	assert.Equal(t, "Registro concluído", receipt.ClosingReason)
	assert.Equal(t, director.Username, receipt.ClosedBy)
}

func TestReceiptForOpenStage(t *testing.T) {
	svc := newReceipts(sentReport())

	_, err := svc.Receipt(context.Background(), district, theftID, models.TierNone)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrDomainState.Code))

	_, err = svc.Receipt(context.Background(), director, theftID, models.Tier("school"))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestReceiptPDF(t *testing.T) {
	svc := newReceipts(sentReport())

	body, name, err := svc.ReceiptPDF(context.Background(), director, theftID, models.TierDirector)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
	assert.Equal(t, "comprovante-director-"+theftID+".pdf", name)
}

type failingPDF struct{}

func (failingPDF) Render(_ export.Document) ([]byte, error) { return nil, errors.New("font missing") }

func TestReceiptPDFRenderFailure(t *testing.T) {
	f := newEngine(sentReport())
	svc := NewReceiptService(f.svc, f.svc.Matrix(), nil, failingPDF{}, nil)

	_, _, err := svc.ReceiptPDF(context.Background(), director, theftID, models.TierDirector)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInternal.Code))
}

func TestExportCSVPagesThroughList(t *testing.T) {
	items := make([]*models.Incident, 0, 120)
	for i := 0; i < 120; i++ {
		inc := sentReport()
		inc.ID = fmt.Sprintf("inc-%03d", i)
		items = append(items, inc)
	}
	svc := newReceipts(items...)

	body, err := svc.ExportCSV(context.Background(), central, models.IncidentFilter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(body), "\ufeff")), "\n")
	require.Len(t, lines, 121)
	assert.True(t, strings.HasPrefix(lines[0], "id;protocolo;status"))
	assert.Contains(t, lines[1], "GIPE-2025/0001231")
}

func TestHistory(t *testing.T) {
	f := newEngine(completeTheftDraft())
	ctx := context.Background()
	_, err := f.svc.UpdateSection(ctx, director, theftID, "final", payload(t, map[string]any{
		"declarant_id":            declarantID,
		"public_security_contact": "nao",
		"triggered_protocol":      "registro",
	}))
	require.NoError(t, err)

	history := NewHistoryService(f.svc, f.audit)
	logs, err := history.History(ctx, director, theftID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionIncidentUpdate, logs[0].Action)
	assert.Contains(t, string(logs[0].NewValues), `"public_security_contact":"nao"`)

	_, err = history.History(ctx, &models.Principal{Username: "x", Role: models.RoleDirector, UnitScope: "000001"}, theftID)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden.Code))
}
