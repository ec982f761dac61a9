package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	return appErr.Fields()
}

func completeTheftDraft() *models.Incident {
	occurred := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	return &models.Incident{
		ID:                    "inc-1",
		Status:                models.StatusDrafting,
		OwnerUsername:         "diretor1",
		UnitCode:              "200237",
		DistrictCode:          "108500",
		OccurredAt:            &occurred,
		IsTheftCategory:       true,
		IncidentTypeIDs:       pq.StringArray{"0f5c2a9e-7a4b-4c1e-9d57-4d2f7c1b3a10"},
		Description:           "furto de cabos",
		SmartCameraStatus:     "sim_sem_dano",
		DeclarantID:           strPtr("9b1f3c55-2c1e-4a77-bb8c-1e0d9c4c8f10"),
		PublicSecurityContact: "sim_pm",
		TriggeredProtocol:     "registro",
	}
}

func TestPrepareSectionTheftOnNonTheftReportIsRejected(t *testing.T) {
	section, ok := LookupSection(SectionTheft)
	require.True(t, ok)

	_, err := PrepareSection(&models.Incident{}, section, Changes{FieldDescription: "x"})
	assert.Equal(t, []string{string(FieldIsTheftCategory)}, fieldsOf(t, err))
}

func TestPrepareSectionRejectsFieldsOutsideSection(t *testing.T) {
	section, _ := LookupSection(SectionInitial)

	_, err := PrepareSection(&models.Incident{}, section, Changes{FieldDescription: "x", FieldUnitCode: "200237"})
	assert.Equal(t, []string{string(FieldDescription)}, fieldsOf(t, err))
}

func TestPrepareSectionNamesMissingFields(t *testing.T) {
	section, _ := LookupSection(SectionTheft)
	current := &models.Incident{IsTheftCategory: true}

	_, err := PrepareSection(current, section, Changes{FieldDescription: "furto"})
	fields := fieldsOf(t, err)
	assert.ElementsMatch(t, []string{string(FieldIncidentTypeIDs), string(FieldSmartCameraStatus)}, fields)
}

func TestPrepareSectionChecksPostState(t *testing.T) {
	section, _ := LookupSection(SectionTheft)
	current := completeTheftDraft()
	current.SmartCameraStatus = ""

	plan, err := PrepareSection(current, section, Changes{
		FieldIncidentTypeIDs:   pq.StringArray{"0f5c2a9e-7a4b-4c1e-9d57-4d2f7c1b3a10"},
		FieldDescription:       "furto de cabos",
		FieldSmartCameraStatus: "nao_faz_parte",
	})
	require.NoError(t, err)
	assert.Equal(t, "nao_faz_parte", plan.Post.SmartCameraStatus)
	assert.Contains(t, plan.Columns(), FieldSmartCameraStatus)
	assert.NotContains(t, plan.Columns(), FieldAggressorName, "already empty columns are not rewritten")
}

func TestPrepareSectionAggressorRequiresDeclaredInfo(t *testing.T) {
	section, _ := LookupSection(SectionAggressor)
	current := &models.Incident{HasAggressorInfo: models.AggressorInfoNo}

	_, err := PrepareSection(current, section, Changes{FieldAggressorName: "Fulano"})
	assert.Equal(t, []string{string(FieldHasAggressorInfo)}, fieldsOf(t, err))
}

func TestPrepareSectionFullStripsSilently(t *testing.T) {
	section, _ := LookupSection(SectionFull)
	current := completeTheftDraft()

	plan, err := PrepareSection(current, section, Changes{
		FieldInvolvedPartyID: strPtr("6a1d1f43-3c4b-4b0e-8d0a-2f8a8a1c9e21"),
		FieldDescription:     "furto de cabos e fios",
	})
	require.NoError(t, err)
	assert.Nil(t, plan.Post.InvolvedPartyID)
	assert.Equal(t, "furto de cabos e fios", plan.Post.Description)
	assert.False(t, plan.Writes.Has(FieldInvolvedPartyID))
}

func TestPrepareDistrictRequiresInfoForTrueFlags(t *testing.T) {
	section, _ := LookupSection(SectionDistrict)
	current := &models.Incident{Status: models.StatusSentToDistrict}

	_, err := PrepareSection(current, section, Changes{
		FieldPublicSecurityTriggered:  false,
		FieldSTSInterlocution:         true,
		FieldCPCAInterlocution:        false,
		FieldSupervisionInterlocution: false,
		FieldNaapaInterlocution:       true,
		FieldNaapaInfo:                "NAAPA acompanhando",
	})
	assert.Equal(t, []string{string(FieldSTSInfo)}, fieldsOf(t, err))
}

func TestPrepareStageExitSendToDistrict(t *testing.T) {
	exit, ok := LookupStageExit(ActionSendToDistrict)
	require.True(t, ok)

	_, err := PrepareStageExit(completeTheftDraft(), exit, Changes{})
	assert.Equal(t, []string{string(FieldDirectorClosingReason)}, fieldsOf(t, err))

	plan, err := PrepareStageExit(completeTheftDraft(), exit, Changes{FieldDirectorClosingReason: "ocorrência registrada"})
	require.NoError(t, err)
	assert.Equal(t, "ocorrência registrada", plan.Post.DirectorClosingReason)
}

func TestPrepareStageExitRequiresDossierForNonTheft(t *testing.T) {
	exit, _ := LookupStageExit(ActionSendToDistrict)
	current := completeTheftDraft()
	current.IsTheftCategory = false
	current.SmartCameraStatus = ""
	current.InvolvedPartyID = strPtr("6a1d1f43-3c4b-4b0e-8d0a-2f8a8a1c9e21")
	current.HasAggressorInfo = models.AggressorInfoYes

	_, err := PrepareStageExit(current, exit, Changes{FieldDirectorClosingReason: "ok"})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, string(FieldAggressorName))
	assert.Contains(t, fields, string(FieldMotives))
	assert.NotContains(t, fields, string(FieldComplement))
	assert.NotContains(t, fields, string(FieldSmartCameraStatus))
}

func TestPrepareStageExitRejectsForeignFields(t *testing.T) {
	exit, _ := LookupStageExit(ActionFinalize)

	_, err := PrepareStageExit(&models.Incident{}, exit, Changes{FieldDescription: "x"})
	assert.Equal(t, []string{string(FieldDescription)}, fieldsOf(t, err))
}

func TestPrepareStageExitNamesUnansweredPointerFields(t *testing.T) {
	exit, _ := LookupStageExit(ActionSendToDistrict)
	current := completeTheftDraft()
	current.OccurredAt = nil
	current.DeclarantID = nil

	_, err := PrepareStageExit(current, exit, Changes{FieldDirectorClosingReason: "ok"})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, string(FieldOccurredAt))
	assert.Contains(t, fields, string(FieldDeclarantID))
	assert.Nil(t, current.OccurredAt)
	assert.Nil(t, current.DeclarantID)
}

func TestPrepareSendToCentralRequiresDistrictAnswers(t *testing.T) {
	exit, _ := LookupStageExit(ActionSendToCentral)
	current := &models.Incident{Status: models.StatusSentToDistrict}

	_, err := PrepareStageExit(current, exit, Changes{FieldDistrictClosingReason: "encaminhado"})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, string(FieldPublicSecurityTriggered))
	for _, pair := range DistrictFlags {
		assert.Contains(t, fields, string(pair.Flag))
	}
	assert.Nil(t, current.PublicSecurityTriggered)
	assert.Nil(t, current.STSInterlocution)
}
