package workflow

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func nonTheftWithDossier() *models.Incident {
	return &models.Incident{
		ID:               "inc-1",
		Status:           models.StatusDrafting,
		UnitCode:         "200237",
		DistrictCode:     "108500",
		IsTheftCategory:  false,
		IncidentTypeIDs:  pq.StringArray{"0f5c2a9e-7a4b-4c1e-9d57-4d2f7c1b3a10"},
		Description:      "briga no intervalo",
		InvolvedPartyID:  strPtr("6a1d1f43-3c4b-4b0e-8d0a-2f8a8a1c9e21"),
		HasAggressorInfo: models.AggressorInfoYes,
		AggressorName:    "Fulano",
		AggressorAge:     intPtr(14),
		Motives:          pq.StringArray{"bullying"},
		NaapaFollowUp:    boolPtr(true),
	}
}

func TestComputeInvariantsTheftStripsBranchB(t *testing.T) {
	current := &models.Incident{Status: models.StatusDrafting, IsTheftCategory: true}
	proposed := Changes{
		FieldSmartCameraStatus: "sim_com_dano",
		FieldInvolvedPartyID:   strPtr("6a1d1f43-3c4b-4b0e-8d0a-2f8a8a1c9e21"),
		FieldAggressorName:     "Fulano",
		FieldDescription:       "furto de notebooks",
	}

	writes, clears := ComputeInvariants(current, proposed)

	assert.Equal(t, "sim_com_dano", writes[FieldSmartCameraStatus])
	assert.Equal(t, "furto de notebooks", writes[FieldDescription])
	assert.False(t, writes.Has(FieldInvolvedPartyID))
	assert.False(t, writes.Has(FieldAggressorName))
	assert.Contains(t, clears, FieldInvolvedPartyID)
	assert.Contains(t, clears, FieldHasAggressorInfo)
	assert.Contains(t, clears, FieldAggressorName)
	assert.Contains(t, clears, FieldMotives)
	assert.NotContains(t, clears, FieldSmartCameraStatus)
	assert.True(t, proposed.Has(FieldInvolvedPartyID), "proposal must not be mutated")
}

func TestComputeInvariantsFlipToTheftClearsDossier(t *testing.T) {
	current := nonTheftWithDossier()

	writes, clears := ComputeInvariants(current, Changes{FieldIsTheftCategory: true})
	post, err := Apply(current, writes, clears)
	require.NoError(t, err)

	assert.True(t, post.IsTheftCategory)
	assert.Equal(t, models.AggressorInfoUnset, post.HasAggressorInfo)
	assert.Nil(t, post.InvolvedPartyID)
	assert.Empty(t, post.AggressorName)
	assert.Nil(t, post.AggressorAge)
	assert.Nil(t, post.NaapaFollowUp)
	assert.Empty(t, post.Motives)
	assert.Equal(t, "briga no intervalo", post.Description, "shared columns survive a branch flip")
	assert.Equal(t, "Fulano", current.AggressorName, "current state is never modified")
}

func TestComputeInvariantsNonTheftStripsSmartCamera(t *testing.T) {
	current := &models.Incident{IsTheftCategory: true, SmartCameraStatus: "sim_sem_dano"}

	writes, clears := ComputeInvariants(current, Changes{
		FieldIsTheftCategory:   false,
		FieldSmartCameraStatus: "nao_faz_parte",
	})

	assert.False(t, writes.Has(FieldSmartCameraStatus))
	assert.Equal(t, []Field{FieldSmartCameraStatus}, clears[:1])

	post, err := Apply(current, writes, clears)
	require.NoError(t, err)
	assert.Empty(t, post.SmartCameraStatus)
}

func TestComputeInvariantsAggressorNotYesClearsDossier(t *testing.T) {
	cases := map[string]Changes{
		"explicit no": {FieldHasAggressorInfo: models.AggressorInfoNo, FieldAggressorName: "Beltrano"},
		"unset":       {FieldHasAggressorInfo: models.AggressorInfoUnset, FieldCity: "São Paulo"},
	}
	for name, proposed := range cases {
		t.Run(name, func(t *testing.T) {
			current := nonTheftWithDossier()
			writes, clears := ComputeInvariants(current, proposed)
			for _, f := range DossierFields {
				assert.False(t, writes.Has(f), "field %s should be stripped", f)
				assert.Contains(t, clears, f)
			}
			post, err := Apply(current, writes, clears)
			require.NoError(t, err)
			assert.Empty(t, post.AggressorName)
			assert.Empty(t, post.City)
		})
	}
}

func TestComputeInvariantsKeepsDossierWhenAggressorYes(t *testing.T) {
	current := nonTheftWithDossier()

	writes, clears := ComputeInvariants(current, Changes{FieldCity: "São Paulo", FieldAggressorAge: 15})

	assert.Equal(t, "São Paulo", writes[FieldCity])
	assert.NotContains(t, clears, FieldCity)

	post, err := Apply(current, writes, clears)
	require.NoError(t, err)
	require.NotNil(t, post.AggressorAge)
	assert.Equal(t, 15, *post.AggressorAge)
	assert.Equal(t, "Fulano", post.AggressorName)
}

func TestComputeInvariantsDistrictInfoFollowsFlag(t *testing.T) {
	current := &models.Incident{
		Status:           models.StatusSentToDistrict,
		STSInterlocution: boolPtr(true),
		STSInfo:          "contato com STS",
	}

	writes, clears := ComputeInvariants(current, Changes{
		FieldSTSInterlocution:  false,
		FieldCPCAInterlocution: true,
		FieldCPCAInfo:          "CPCA acionado",
		FieldNaapaInfo:         "sem flag",
	})

	assert.Equal(t, "CPCA acionado", writes[FieldCPCAInfo])
	assert.False(t, writes.Has(FieldNaapaInfo))
	assert.Contains(t, clears, FieldSTSInfo)
	assert.Contains(t, clears, FieldNaapaInfo)
	assert.NotContains(t, clears, FieldCPCAInfo)

	post, err := Apply(current, writes, clears)
	require.NoError(t, err)
	assert.Empty(t, post.STSInfo)
	require.NotNil(t, post.STSInterlocution)
	assert.False(t, *post.STSInterlocution)
	assert.Equal(t, "CPCA acionado", post.CPCAInfo)
}

func TestEffectiveBranchPrefersProposal(t *testing.T) {
	current := &models.Incident{IsTheftCategory: true}

	assert.Equal(t, models.BranchTheft, effectiveBranch(current, Changes{}))
	assert.Equal(t, models.BranchNonTheft, effectiveBranch(current, Changes{FieldIsTheftCategory: false}))
	assert.Equal(t, models.BranchTheft, effectiveBranch(&models.Incident{}, Changes{FieldIsTheftCategory: boolPtr(true)}))
}
