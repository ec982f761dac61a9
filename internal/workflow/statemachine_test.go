package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

func TestTransitionAdvancesOneStep(t *testing.T) {
	next, err := Transition(models.StatusDrafting, ActionSendToDistrict)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentToDistrict, next)

	next, err = Transition(models.StatusSentToDistrict, ActionSendToCentral)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentToCentral, next)

	next, err = Transition(models.StatusSentToCentral, ActionFinalize)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinalized, next)
}

func TestTransitionRejectsSkipsAndReplays(t *testing.T) {
	cases := []struct {
		from   models.Status
		action Action
	}{
		{models.StatusDrafting, ActionFinalize},
		{models.StatusDrafting, ActionSendToCentral},
		{models.StatusSentToDistrict, ActionSendToDistrict},
		{models.StatusFinalized, ActionFinalize},
		{models.StatusSentToCentral, ActionSendToDistrict},
	}
	for _, tc := range cases {
		next, err := Transition(tc.from, tc.action)
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrDomainState))
		assert.Equal(t, tc.from, next)
	}
}

func TestTransitionRejectsNonStageActions(t *testing.T) {
	_, err := Transition(models.StatusDrafting, ActionUpdate)
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrDomainState))
}

func TestStatusOnlyMovesForward(t *testing.T) {
	statuses := []models.Status{
		models.StatusDrafting,
		models.StatusSentToDistrict,
		models.StatusSentToCentral,
		models.StatusFinalized,
	}
	for _, from := range statuses {
		for _, action := range []Action{ActionSendToDistrict, ActionSendToCentral, ActionFinalize} {
			next, err := Transition(from, action)
			if err != nil {
				continue
			}
			assert.True(t, Advances(from, next), "%s via %s", from, action)
		}
	}
	assert.False(t, Advances(models.StatusFinalized, models.StatusDrafting))
}

func TestEditableBy(t *testing.T) {
	assert.True(t, EditableBy(models.TierDirector, models.StatusDrafting))
	assert.False(t, EditableBy(models.TierDirector, models.StatusSentToDistrict))

	assert.True(t, EditableBy(models.TierDistrict, models.StatusDrafting))
	assert.True(t, EditableBy(models.TierDistrict, models.StatusSentToDistrict))
	assert.False(t, EditableBy(models.TierDistrict, models.StatusSentToCentral))

	assert.True(t, EditableBy(models.TierCentral, models.StatusSentToCentral))
	assert.False(t, EditableBy(models.TierCentral, models.StatusFinalized))

	assert.False(t, EditableBy(models.TierNone, models.StatusDrafting))
}

func TestStatusExtra(t *testing.T) {
	assert.Equal(t, "Incompleta", StatusExtra(models.TierDirector, models.StatusDrafting))
	assert.Equal(t, "Aguardando análise da DRE", StatusExtra(models.TierDistrict, models.StatusSentToDistrict))
	assert.Empty(t, StatusExtra(models.TierNone, models.StatusDrafting))
}
