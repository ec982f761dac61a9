package workflow

import (
	"encoding/json"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
)

func decodeJSON(t *testing.T, body string) (Changes, error) {
	t.Helper()
	raw := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return Decode(raw)
}

func TestDecodeTypesValues(t *testing.T) {
	changes, err := decodeJSON(t, `{
		"is_theft_category": false,
		"has_aggressor_info": "sim",
		"aggressor_age": 15,
		"motives": ["bullying", "racismo", "bullying", " "],
		"involved_party_id": "6a1d1f43-3c4b-4b0e-8d0a-2f8a8a1c9e21",
		"naapa_follow_up": false,
		"occurred_at": "2025-03-10T09:30:00Z",
		"city": "  São Paulo "
	}`)
	require.NoError(t, err)

	assert.Equal(t, false, changes[FieldIsTheftCategory])
	assert.Equal(t, models.AggressorInfoYes, changes[FieldHasAggressorInfo])
	assert.Equal(t, pq.StringArray{"bullying", "racismo"}, changes[FieldMotives])
	assert.Equal(t, "São Paulo", changes[FieldCity])

	age, ok := changes[FieldAggressorAge].(*int)
	require.True(t, ok)
	assert.Equal(t, 15, *age)

	flag, ok := changes[FieldNaapaFollowUp].(*bool)
	require.True(t, ok)
	assert.False(t, *flag)
}

func TestDecodeReportsEveryInvalidField(t *testing.T) {
	_, err := decodeJSON(t, `{
		"status": "finalizada",
		"smart_camera_status": "talvez",
		"declarant_id": "not-a-uuid",
		"aggressor_age": "quinze"
	}`)
	fields := fieldsOf(t, err)
	assert.Equal(t, []string{"aggressor_age", "declarant_id", "smart_camera_status", "status"}, fields)
}

func TestDecodeNullResetsPointer(t *testing.T) {
	changes, err := decodeJSON(t, `{"declarant_id": null, "involved_party_id": "  "}`)
	require.NoError(t, err)

	inc := &models.Incident{DeclarantID: strPtr("x"), InvolvedPartyID: strPtr("y")}
	for f, v := range changes {
		require.NoError(t, Set(inc, f, v))
	}
	assert.Nil(t, inc.DeclarantID)
	assert.Nil(t, inc.InvolvedPartyID)
}

func TestSetConvertsCompatibleValues(t *testing.T) {
	inc := &models.Incident{}

	require.NoError(t, Set(inc, FieldHasAggressorInfo, "nao"))
	require.NoError(t, Set(inc, FieldMotives, []string{"vinganca"}))
	require.NoError(t, Set(inc, FieldGuardianshipCouncilNotified, true))
	require.Error(t, Set(inc, FieldAggressorAge, "15"))
	require.Error(t, Set(inc, Field("unknown"), "x"))

	assert.Equal(t, models.AggressorInfoNo, inc.HasAggressorInfo)
	assert.Equal(t, pq.StringArray{"vinganca"}, inc.Motives)
	require.NotNil(t, inc.GuardianshipCouncilNotified)
	assert.True(t, *inc.GuardianshipCouncilNotified)
}

func TestIsEmptyTreatsFalseAsAnswer(t *testing.T) {
	inc := &models.Incident{STSInterlocution: boolPtr(false), Description: "   "}

	assert.False(t, IsEmpty(inc, FieldSTSInterlocution))
	assert.True(t, IsEmpty(inc, FieldCPCAInterlocution))
	assert.True(t, IsEmpty(inc, FieldDescription))
	assert.False(t, IsEmpty(inc, FieldIsTheftCategory))
}

func TestReferencesGroupsByCatalog(t *testing.T) {
	refs := References(Changes{
		FieldIncidentTypeIDs:        pq.StringArray{"a", "b"},
		FieldCentralIncidentTypeIDs: pq.StringArray{"c"},
		FieldDeclarantID:            strPtr("d"),
		FieldInvolvedPartyID:        (*string)(nil),
		FieldDescription:            "x",
	})

	assert.ElementsMatch(t, []string{"a", "b", "c"}, refs[models.CatalogIncidentTypes])
	assert.Equal(t, []string{"d"}, refs[models.CatalogDeclarants])
	assert.Empty(t, refs[models.CatalogInvolvedParties])
}

func TestDecodeRejectsNullForPlainColumns(t *testing.T) {
	_, err := decodeJSON(t, `{"is_theft_category": null, "smart_camera_status": null, "has_aggressor_info": null, "motives": null}`)
	assert.Equal(t, []string{"has_aggressor_info", "is_theft_category", "smart_camera_status"}, fieldsOf(t, err))
}

func TestReadsLeaveIncidentUntouched(t *testing.T) {
	inc := &models.Incident{}

	assert.True(t, IsEmpty(inc, FieldOccurredAt))
	assert.True(t, IsEmpty(inc, FieldAggressorAge))
	assert.Nil(t, Get(inc, FieldDeclarantID))
	assert.Nil(t, Get(inc, FieldNaapaFollowUp))

	assert.Nil(t, inc.OccurredAt)
	assert.Nil(t, inc.AggressorAge)
	assert.Nil(t, inc.DeclarantID)
	assert.Nil(t, inc.NaapaFollowUp)
}
