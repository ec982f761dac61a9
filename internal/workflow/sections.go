package workflow

import (
	"fmt"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

// SectionName identifies a form section.
type SectionName string

const (
	SectionInitial   SectionName = "initial"
	SectionTheft     SectionName = "theft"
	SectionNonTheft  SectionName = "non_theft"
	SectionAggressor SectionName = "aggressor"
	SectionFinal     SectionName = "final"
	SectionFull      SectionName = "full"
	SectionDistrict  SectionName = "district"
	SectionCentral   SectionName = "central"
)

// Requirement inspects a post-write state and lists the fields it misses.
type Requirement func(post *models.Incident) []appErrors.FieldError

// Section is a group of fields a tier edits together.
type Section struct {
	Name    SectionName
	Tier    models.Tier
	Fields  []Field
	Guard   func(current *models.Incident, proposed Changes) *appErrors.Error
	Require []Requirement
}

// Allows reports whether f belongs to the section.
func (s *Section) Allows(f Field) bool {
	for _, candidate := range s.Fields {
		if candidate == f {
			return true
		}
	}
	return false
}

const requiredMessage = "this field is required"

// Required flags every empty field.
func Required(fields ...Field) Requirement {
	return func(post *models.Incident) []appErrors.FieldError {
		var out []appErrors.FieldError
		for _, f := range fields {
			if IsEmpty(post, f) {
				out = append(out, appErrors.FieldError{Field: string(f), Message: requiredMessage})
			}
		}
		return out
	}
}

// RequiredWhen applies Required only when cond holds on the post state.
func RequiredWhen(cond func(*models.Incident) bool, fields ...Field) Requirement {
	inner := Required(fields...)
	return func(post *models.Incident) []appErrors.FieldError {
		if !cond(post) {
			return nil
		}
		return inner(post)
	}
}

func isTheft(inc *models.Incident) bool {
	return inc.Branch() == models.BranchTheft
}

func isNonTheft(inc *models.Incident) bool {
	return inc.Branch() == models.BranchNonTheft
}

func hasDossier(inc *models.Incident) bool {
	return isNonTheft(inc) && inc.HasAggressorInfo == models.AggressorInfoYes
}

var (
	initialFields = []Field{FieldOccurredAt, FieldUnitCode, FieldDistrictCode, FieldIsTheftCategory}
	theftFields   = []Field{FieldIncidentTypeIDs, FieldDescription, FieldSmartCameraStatus}
	finalFields   = []Field{FieldDeclarantID, FieldPublicSecurityContact, FieldTriggeredProtocol}

	nonTheftFields = []Field{
		FieldIncidentTypeIDs, FieldDescription, FieldInvolvedPartyID, FieldHasAggressorInfo,
	}

	districtFields = []Field{
		FieldPublicSecurityTriggered,
		FieldSTSInterlocution, FieldSTSInfo,
		FieldCPCAInterlocution, FieldCPCAInfo,
		FieldSupervisionInterlocution, FieldSupervisionInfo,
		FieldNaapaInterlocution, FieldNaapaInfo,
	}

	centralFields = []Field{
		FieldWeaponInvolvement,
		FieldThreatMode,
		FieldCentralInvolvedPartyID,
		FieldCentralMotives,
		FieldCentralIncidentTypeIDs,
		FieldLearningCycle,
		FieldVirtualInteractionsInfo,
		FieldCentralReferrals,
	}
)

// dossierRequired leaves out the address complement, which is optional.
var dossierRequired = []Field{
	FieldAggressorName,
	FieldAggressorAge,
	FieldAggressorGender,
	FieldEthnicGroup,
	FieldSchoolStage,
	FieldSchoolAttendance,
	FieldSchoolInteraction,
	FieldProtectionNetworks,
	FieldGuardianshipCouncilNotified,
	FieldNaapaFollowUp,
	FieldPostalCode,
	FieldStreet,
	FieldHouseNumber,
	FieldNeighborhood,
	FieldCity,
	FieldState,
	FieldMotives,
}

func districtRequirements() []Requirement {
	reqs := []Requirement{Required(FieldPublicSecurityTriggered)}
	for _, pair := range DistrictFlags {
		flag, info := pair.Flag, pair.Info
		reqs = append(reqs,
			Required(flag),
			RequiredWhen(func(inc *models.Incident) bool {
				v, _ := Get(inc, flag).(*bool)
				return v != nil && *v
			}, info),
		)
	}
	return reqs
}

var centralRequired = []Field{
	FieldWeaponInvolvement,
	FieldThreatMode,
	FieldCentralInvolvedPartyID,
	FieldCentralMotives,
	FieldCentralIncidentTypeIDs,
	FieldLearningCycle,
	FieldCentralReferrals,
}

func branchGuard(want models.IncidentBranch) func(*models.Incident, Changes) *appErrors.Error {
	return func(current *models.Incident, proposed Changes) *appErrors.Error {
		if effectiveBranch(current, proposed) == want {
			return nil
		}
		if want == models.BranchTheft {
			return appErrors.Field(string(FieldIsTheftCategory), "report is not about theft, robbery, invasion or vandalism")
		}
		return appErrors.Field(string(FieldIsTheftCategory), "report is about theft, robbery, invasion or vandalism")
	}
}

func aggressorGuard(current *models.Incident, proposed Changes) *appErrors.Error {
	if effectiveBranch(current, proposed) == models.BranchTheft {
		return appErrors.Field(string(FieldIsTheftCategory), "aggressor information does not apply to theft reports")
	}
	if effectiveAggressorInfo(current, proposed) != models.AggressorInfoYes {
		return appErrors.Field(string(FieldHasAggressorInfo), "aggressor information was not declared for this report")
	}
	return nil
}

func concat(groups ...[]Field) []Field {
	var out []Field
	seen := make(map[Field]struct{})
	for _, g := range groups {
		for _, f := range g {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

var sections = map[SectionName]*Section{
	SectionInitial: {
		Name:    SectionInitial,
		Tier:    models.TierDirector,
		Fields:  initialFields,
		Require: []Requirement{Required(FieldOccurredAt, FieldUnitCode, FieldDistrictCode)},
	},
	SectionTheft: {
		Name:    SectionTheft,
		Tier:    models.TierDirector,
		Fields:  theftFields,
		Guard:   branchGuard(models.BranchTheft),
		Require: []Requirement{Required(theftFields...)},
	},
	SectionNonTheft: {
		Name:    SectionNonTheft,
		Tier:    models.TierDirector,
		Fields:  nonTheftFields,
		Guard:   branchGuard(models.BranchNonTheft),
		Require: []Requirement{Required(nonTheftFields...)},
	},
	SectionAggressor: {
		Name:    SectionAggressor,
		Tier:    models.TierDirector,
		Fields:  DossierFields,
		Guard:   aggressorGuard,
		Require: []Requirement{Required(dossierRequired...)},
	},
	SectionFinal: {
		Name:    SectionFinal,
		Tier:    models.TierDirector,
		Fields:  finalFields,
		Require: []Requirement{Required(finalFields...)},
	},
	SectionFull: {
		Name:   SectionFull,
		Tier:   models.TierDirector,
		Fields: concat(initialFields, theftFields, nonTheftFields, DossierFields, finalFields),
	},
	SectionDistrict: {
		Name:    SectionDistrict,
		Tier:    models.TierDistrict,
		Fields:  districtFields,
		Require: districtRequirements(),
	},
	SectionCentral: {
		Name:    SectionCentral,
		Tier:    models.TierCentral,
		Fields:  centralFields,
		Require: []Requirement{Required(centralRequired...)},
	},
}

// LookupSection returns the named section.
func LookupSection(name SectionName) (*Section, bool) {
	s, ok := sections[name]
	return s, ok
}

// StageExit describes what a stage-completion action accepts and requires.
type StageExit struct {
	Action  Action
	Fields  []Field
	Require []Requirement
}

var exits = map[Action]*StageExit{
	ActionSendToDistrict: {
		Action: ActionSendToDistrict,
		Fields: []Field{FieldDirectorClosingReason},
		Require: []Requirement{
			Required(FieldOccurredAt, FieldUnitCode, FieldDistrictCode),
			Required(FieldIncidentTypeIDs, FieldDescription),
			RequiredWhen(isTheft, FieldSmartCameraStatus),
			RequiredWhen(isNonTheft, FieldInvolvedPartyID, FieldHasAggressorInfo),
			RequiredWhen(hasDossier, dossierRequired...),
			Required(finalFields...),
			Required(FieldDirectorClosingReason),
		},
	},
	ActionSendToCentral: {
		Action:  ActionSendToCentral,
		Fields:  []Field{FieldDistrictClosingReason},
		Require: append(districtRequirements(), Required(FieldDistrictClosingReason)),
	},
	ActionFinalize: {
		Action:  ActionFinalize,
		Fields:  []Field{FieldCentralClosingReason},
		Require: []Requirement{Required(centralRequired...), Required(FieldCentralClosingReason)},
	},
}

// LookupStageExit returns the description of a stage-completion action.
func LookupStageExit(action Action) (*StageExit, bool) {
	e, ok := exits[action]
	return e, ok
}

// Plan is the outcome of preparing a proposal: what to write, what to clear
// and the resulting state.
type Plan struct {
	Writes Changes
	Clears []Field
	Post   *models.Incident

	current *models.Incident
}

// Columns lists the fields whose persisted value changes, writes first.
func (p *Plan) Columns() []Field {
	cols := p.Writes.Fields()
	seen := make(map[Field]struct{}, len(cols))
	for _, f := range cols {
		seen[f] = struct{}{}
	}
	for _, f := range p.Clears {
		if _, ok := seen[f]; ok {
			continue
		}
		if p.current != nil && IsEmpty(p.current, f) {
			continue
		}
		seen[f] = struct{}{}
		cols = append(cols, f)
	}
	return cols
}

// PrepareSection validates a section proposal and computes its plan.
func PrepareSection(current *models.Incident, section *Section, proposed Changes) (*Plan, error) {
	if err := restrict(proposed, section.Fields, fmt.Sprintf("field is not part of the %s section", section.Name)); err != nil {
		return nil, err
	}
	if section.Guard != nil {
		if err := section.Guard(current, proposed); err != nil {
			return nil, err
		}
	}
	return prepare(current, proposed, section.Require)
}

// PrepareStageExit validates the closing payload of a stage exit against the
// whole report and computes its plan. The status itself is not part of it.
func PrepareStageExit(current *models.Incident, exit *StageExit, proposed Changes) (*Plan, error) {
	if err := restrict(proposed, exit.Fields, "field cannot be sent with this action"); err != nil {
		return nil, err
	}
	return prepare(current, proposed, exit.Require)
}

func prepare(current *models.Incident, proposed Changes, reqs []Requirement) (*Plan, error) {
	writes, clears := ComputeInvariants(current, proposed)
	post, err := Apply(current, writes, clears)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid value")
	}

	var details []appErrors.FieldError
	seen := make(map[string]struct{})
	for _, req := range reqs {
		for _, d := range req(post) {
			if _, dup := seen[d.Field]; dup {
				continue
			}
			seen[d.Field] = struct{}{}
			details = append(details, d)
		}
	}
	if len(details) > 0 {
		return nil, appErrors.Validation(details...)
	}

	return &Plan{Writes: writes, Clears: clears, Post: post, current: current}, nil
}

func restrict(proposed Changes, allowed []Field, message string) error {
	set := make(map[Field]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}
	var details []appErrors.FieldError
	for _, f := range proposed.Fields() {
		if _, ok := set[f]; !ok {
			details = append(details, appErrors.FieldError{Field: string(f), Message: message})
		}
	}
	if len(details) > 0 {
		return appErrors.Validation(details...)
	}
	return nil
}
