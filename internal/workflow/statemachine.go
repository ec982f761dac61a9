package workflow

import (
	"fmt"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

// Action is an operation checked by the authorization matrix.
type Action string

const (
	ActionRead           Action = "read"
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionSendToDistrict Action = "send_to_district"
	ActionSendToCentral  Action = "send_to_central"
	ActionFinalize       Action = "finalize"
	ActionDelete         Action = "delete"
)

type stageExit struct {
	from  models.Status
	to    models.Status
	owner models.Tier
}

var stageExits = map[Action]stageExit{
	ActionSendToDistrict: {from: models.StatusDrafting, to: models.StatusSentToDistrict, owner: models.TierDirector},
	ActionSendToCentral:  {from: models.StatusSentToDistrict, to: models.StatusSentToCentral, owner: models.TierDistrict},
	ActionFinalize:       {from: models.StatusSentToCentral, to: models.StatusFinalized, owner: models.TierCentral},
}

var statusOrder = map[models.Status]int{
	models.StatusDrafting:       0,
	models.StatusSentToDistrict: 1,
	models.StatusSentToCentral:  2,
	models.StatusFinalized:      3,
}

// IsStageExit reports whether the action advances the status.
func (a Action) IsStageExit() bool {
	_, ok := stageExits[a]
	return ok
}

// Mutates reports whether the action changes the report.
func (a Action) Mutates() bool {
	return a != ActionRead
}

// OwnerTier returns the tier allowed to perform a stage exit.
func (a Action) OwnerTier() models.Tier {
	return stageExits[a].owner
}

// Transition returns the status reached by a stage exit from the given
// status. Each exit advances exactly one step from its own source status.
func Transition(from models.Status, action Action) (models.Status, error) {
	exit, ok := stageExits[action]
	if !ok {
		return from, fmt.Errorf("action %q does not change status", action)
	}
	if from != exit.from {
		return from, appErrors.Clone(appErrors.ErrDomainState,
			fmt.Sprintf("report is %q; %s requires %q", from.Label(), action, exit.from.Label()))
	}
	return exit.to, nil
}

// Advances reports whether to is strictly after from.
func Advances(from, to models.Status) bool {
	a, okA := statusOrder[from]
	b, okB := statusOrder[to]
	return okA && okB && b > a
}

// EditableBy is the editability window of each tier.
func EditableBy(tier models.Tier, status models.Status) bool {
	switch tier {
	case models.TierDirector:
		return status == models.StatusDrafting
	case models.TierDistrict:
		return status == models.StatusDrafting || status == models.StatusSentToDistrict
	case models.TierCentral:
		return status == models.StatusDrafting || status == models.StatusSentToDistrict || status == models.StatusSentToCentral
	default:
		return false
	}
}

var statusExtras = map[models.Tier]map[models.Status]string{
	models.TierDirector: {
		models.StatusDrafting:       "Incompleta",
		models.StatusSentToDistrict: "Em análise pela DRE",
		models.StatusSentToCentral:  "Em análise pela GIPE",
		models.StatusFinalized:      "Concluída",
	},
	models.TierDistrict: {
		models.StatusDrafting:       "Em preenchimento pela UE",
		models.StatusSentToDistrict: "Aguardando análise da DRE",
		models.StatusSentToCentral:  "Enviada para GIPE",
		models.StatusFinalized:      "Concluída",
	},
	models.TierCentral: {
		models.StatusDrafting:       "Em preenchimento pela UE",
		models.StatusSentToDistrict: "Em análise pela DRE",
		models.StatusSentToCentral:  "Aguardando análise da GIPE",
		models.StatusFinalized:      "Concluída",
	},
}

// StatusExtra is the role-specific annotation shown next to the status label.
func StatusExtra(tier models.Tier, status models.Status) string {
	return statusExtras[tier][status]
}
