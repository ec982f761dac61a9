package workflow

import (
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

// DefaultTiers binds each role to the stage it works on.
func DefaultTiers() map[models.Role]models.Tier {
	return map[models.Role]models.Tier{
		models.RoleDirector:           models.TierDirector,
		models.RoleAssistant:          models.TierDirector,
		models.RoleDistrictFocalPoint: models.TierDistrict,
		models.RoleCentralUnit:        models.TierCentral,
	}
}

// AuthorizationMatrix decides (principal, action, report) triples. It holds no
// configuration of its own beyond the role binding it is built with.
type AuthorizationMatrix struct {
	tiers map[models.Role]models.Tier
}

// NewAuthorizationMatrix builds a matrix; a nil binding uses DefaultTiers.
func NewAuthorizationMatrix(tiers map[models.Role]models.Tier) *AuthorizationMatrix {
	if tiers == nil {
		tiers = DefaultTiers()
	}
	return &AuthorizationMatrix{tiers: tiers}
}

// TierOf returns the tier of a principal, TierNone when unknown.
func (m *AuthorizationMatrix) TierOf(p *models.Principal) models.Tier {
	if p == nil {
		return models.TierNone
	}
	return m.tiers[p.Role]
}

// Authorize returns nil when the principal may perform action on the report.
// Denials are Unauthorized (no principal), Forbidden (role or scope) or
// DomainStateError (outside the tier's editability window).
func (m *AuthorizationMatrix) Authorize(p *models.Principal, action Action, inc *models.Incident) error {
	if p == nil || p.Username == "" {
		return appErrors.ErrUnauthorized
	}
	tier := m.TierOf(p)
	if tier == models.TierNone {
		return appErrors.Clone(appErrors.ErrForbidden, "profile has no access to incident reports")
	}

	switch action {
	case ActionCreate:
		if tier != models.TierDirector {
			return appErrors.Clone(appErrors.ErrForbidden, "only the school direction can open a report")
		}
		if inc != nil && inc.UnitCode != "" && inc.UnitCode != p.UnitScope {
			return appErrors.Clone(appErrors.ErrForbidden, "unit does not belong to the authenticated user")
		}
		return nil
	case ActionDelete:
		return appErrors.Clone(appErrors.ErrForbidden, "reports are only deleted by the deactivation batch")
	}

	if inc == nil {
		return appErrors.ErrNotFound
	}
	if !InScope(tier, p, inc) {
		return appErrors.Clone(appErrors.ErrForbidden, "report is outside the user's scope")
	}
	if !action.Mutates() {
		return nil
	}
	if action.IsStageExit() && action.OwnerTier() != tier {
		return appErrors.Clone(appErrors.ErrForbidden, "action is reserved to another profile")
	}
	if !EditableBy(tier, inc.Status) {
		return appErrors.ErrDomainState
	}
	return nil
}

// AuthorizeSection additionally checks the section belongs to the principal's tier.
func (m *AuthorizationMatrix) AuthorizeSection(p *models.Principal, section *Section, inc *models.Incident) error {
	if err := m.Authorize(p, ActionUpdate, inc); err != nil {
		return err
	}
	if section.Tier != m.TierOf(p) {
		return appErrors.Clone(appErrors.ErrForbidden, "section is reserved to another profile")
	}
	return nil
}

// InScope reports whether the report is visible to the principal.
func InScope(tier models.Tier, p *models.Principal, inc *models.Incident) bool {
	switch tier {
	case models.TierDirector:
		return p.UnitScope != "" && inc.UnitCode == p.UnitScope
	case models.TierDistrict:
		return p.UnitScope != "" && inc.DistrictCode == p.UnitScope
	case models.TierCentral:
		return true
	default:
		return false
	}
}
