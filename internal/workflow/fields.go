package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
)

// Field names an incident attribute by its column.
type Field string

// Changes is a proposed partial update keyed by field.
type Changes map[Field]any

// Fields returns the keys in a stable order.
func (c Changes) Fields() []Field {
	out := make([]Field, 0, len(c))
	for f := range c {
		out = append(out, f)
	}
	sortFields(out)
	return out
}

// Has reports whether the field is present in the proposal.
func (c Changes) Has(f Field) bool {
	_, ok := c[f]
	return ok
}

func (c Changes) clone() Changes {
	out := make(Changes, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

const (
	FieldStatus        Field = "status"
	FieldOwnerUsername Field = "owner_username"
	FieldUnitCode      Field = "unit_code"
	FieldDistrictCode  Field = "district_code"
	FieldOccurredAt    Field = "occurred_at"

	FieldIsTheftCategory Field = "is_theft_category"
	FieldIncidentTypeIDs Field = "incident_type_ids"
	FieldDescription     Field = "description"

	FieldSmartCameraStatus Field = "smart_camera_status"

	FieldInvolvedPartyID  Field = "involved_party_id"
	FieldHasAggressorInfo Field = "has_aggressor_info"

	FieldAggressorName               Field = "aggressor_name"
	FieldAggressorAge                Field = "aggressor_age"
	FieldAggressorGender             Field = "aggressor_gender"
	FieldEthnicGroup                 Field = "ethnic_group"
	FieldSchoolStage                 Field = "school_stage"
	FieldSchoolAttendance            Field = "school_attendance"
	FieldSchoolInteraction           Field = "school_interaction"
	FieldProtectionNetworks          Field = "protection_networks"
	FieldGuardianshipCouncilNotified Field = "guardianship_council_notified"
	FieldNaapaFollowUp               Field = "naapa_follow_up"
	FieldPostalCode                  Field = "postal_code"
	FieldStreet                      Field = "street"
	FieldHouseNumber                 Field = "house_number"
	FieldComplement                  Field = "complement"
	FieldNeighborhood                Field = "neighborhood"
	FieldCity                        Field = "city"
	FieldState                       Field = "state"
	FieldMotives                     Field = "motives"

	FieldDeclarantID           Field = "declarant_id"
	FieldPublicSecurityContact Field = "public_security_contact"
	FieldTriggeredProtocol     Field = "triggered_protocol"

	FieldPublicSecurityTriggered  Field = "public_security_triggered"
	FieldSTSInterlocution         Field = "sts_interlocution"
	FieldSTSInfo                  Field = "sts_info"
	FieldCPCAInterlocution        Field = "cpca_interlocution"
	FieldCPCAInfo                 Field = "cpca_info"
	FieldSupervisionInterlocution Field = "supervision_interlocution"
	FieldSupervisionInfo          Field = "supervision_info"
	FieldNaapaInterlocution       Field = "naapa_interlocution"
	FieldNaapaInfo                Field = "naapa_info"

	FieldWeaponInvolvement       Field = "weapon_involvement"
	FieldThreatMode              Field = "threat_mode"
	FieldCentralInvolvedPartyID  Field = "central_involved_party_id"
	FieldCentralMotives          Field = "central_motives"
	FieldCentralIncidentTypeIDs  Field = "central_incident_type_ids"
	FieldLearningCycle           Field = "learning_cycle"
	FieldVirtualInteractionsInfo Field = "virtual_interactions_info"
	FieldCentralReferrals        Field = "central_referrals"

	FieldProtocolNumber        Field = "protocol_number"
	FieldDirectorClosingReason Field = "director_closing_reason"
	FieldClosedByDirectorAt    Field = "closed_by_director_at"
	FieldClosedByDirectorBy    Field = "closed_by_director_by"
	FieldDistrictClosingReason Field = "district_closing_reason"
	FieldClosedByDistrictAt    Field = "closed_by_district_at"
	FieldClosedByDistrictBy    Field = "closed_by_district_by"
	FieldCentralClosingReason  Field = "central_closing_reason"
	FieldClosedByCentralAt     Field = "closed_by_central_at"
	FieldClosedByCentralBy     Field = "closed_by_central_by"
	FieldUpdatedAt             Field = "updated_at"
)

// Field groups driving the conditional schema.
var (
	BranchAFields = []Field{FieldSmartCameraStatus}

	BranchBFields = []Field{FieldInvolvedPartyID, FieldHasAggressorInfo}

	DossierFields = []Field{
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
		FieldComplement,
		FieldNeighborhood,
		FieldCity,
		FieldState,
		FieldMotives,
	}

	// DistrictFlags pairs each interlocution flag with its complementary text.
	DistrictFlags = []struct {
		Flag Field
		Info Field
	}{
		{FieldSTSInterlocution, FieldSTSInfo},
		{FieldCPCAInterlocution, FieldCPCAInfo},
		{FieldSupervisionInterlocution, FieldSupervisionInfo},
		{FieldNaapaInterlocution, FieldNaapaInfo},
	}
)

// fieldSpec describes how a client supplied value is checked.
type fieldSpec struct {
	choices models.ChoiceSet
	catalog models.CatalogKind
	trim    bool
}

var writable = map[Field]fieldSpec{
	FieldOccurredAt:      {},
	FieldUnitCode:        {trim: true},
	FieldDistrictCode:    {trim: true},
	FieldIsTheftCategory: {},
	FieldIncidentTypeIDs: {catalog: models.CatalogIncidentTypes},
	FieldDescription:     {trim: true},

	FieldSmartCameraStatus: {choices: models.SmartCameraChoices},

	FieldInvolvedPartyID:  {catalog: models.CatalogInvolvedParties},
	FieldHasAggressorInfo: {choices: models.AggressorInfoChoices},

	FieldAggressorName:               {trim: true},
	FieldAggressorAge:                {},
	FieldAggressorGender:             {choices: models.GenderChoices},
	FieldEthnicGroup:                 {choices: models.EthnicGroupChoices},
	FieldSchoolStage:                 {choices: models.SchoolStageChoices},
	FieldSchoolAttendance:            {choices: models.SchoolAttendanceChoices},
	FieldSchoolInteraction:           {trim: true},
	FieldProtectionNetworks:          {trim: true},
	FieldGuardianshipCouncilNotified: {},
	FieldNaapaFollowUp:               {},
	FieldPostalCode:                  {trim: true},
	FieldStreet:                      {trim: true},
	FieldHouseNumber:                 {trim: true},
	FieldComplement:                  {trim: true},
	FieldNeighborhood:                {trim: true},
	FieldCity:                        {trim: true},
	FieldState:                       {trim: true},
	FieldMotives:                     {choices: models.MotiveChoices},

	FieldDeclarantID:           {catalog: models.CatalogDeclarants},
	FieldPublicSecurityContact: {choices: models.PublicSecurityContactChoices},
	FieldTriggeredProtocol:     {choices: models.TriggeredProtocolChoices},

	FieldPublicSecurityTriggered:  {},
	FieldSTSInterlocution:         {},
	FieldSTSInfo:                  {trim: true},
	FieldCPCAInterlocution:        {},
	FieldCPCAInfo:                 {trim: true},
	FieldSupervisionInterlocution: {},
	FieldSupervisionInfo:          {trim: true},
	FieldNaapaInterlocution:       {},
	FieldNaapaInfo:                {trim: true},

	FieldWeaponInvolvement:       {choices: models.WeaponInvolvementChoices},
	FieldThreatMode:              {choices: models.ThreatModeChoices},
	FieldCentralInvolvedPartyID:  {catalog: models.CatalogInvolvedParties},
	FieldCentralMotives:          {choices: models.MotiveChoices},
	FieldCentralIncidentTypeIDs:  {catalog: models.CatalogIncidentTypes},
	FieldLearningCycle:           {choices: models.LearningCycleChoices},
	FieldVirtualInteractionsInfo: {trim: true},
	FieldCentralReferrals:        {trim: true},

	FieldDirectorClosingReason: {trim: true},
	FieldDistrictClosingReason: {trim: true},
	FieldCentralClosingReason:  {trim: true},
}

var (
	mapper       = reflectx.NewMapper("db")
	incidentType = reflect.TypeOf(models.Incident{})
)

// fieldType returns the Go type backing the column.
func fieldType(f Field) (reflect.Type, bool) {
	fi := mapper.TypeMap(incidentType).GetByPath(string(f))
	if fi == nil {
		return nil, false
	}
	return fi.Field.Type, true
}

// fieldValue walks to the column without allocating nil pointers on the way,
// so reads never alter the incident.
func fieldValue(inc *models.Incident, f Field) (reflect.Value, bool) {
	fi := mapper.TypeMap(incidentType).GetByPath(string(f))
	if fi == nil {
		return reflect.Value{}, false
	}
	return reflectx.FieldByIndexesReadOnly(reflect.ValueOf(inc).Elem(), fi.Index), true
}

// Get returns the current value of f on the incident.
func Get(inc *models.Incident, f Field) any {
	v, ok := fieldValue(inc, f)
	if !ok {
		return nil
	}
	return v.Interface()
}

// IsEmpty reports whether f holds no answer. A false boolean is an answer.
func IsEmpty(inc *models.Incident, f Field) bool {
	v, ok := fieldValue(inc, f)
	return !ok || isZero(v)
}

func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Bool:
		return false
	default:
		return v.IsZero()
	}
}

// Set assigns value to f, converting between compatible representations
// (string to named string, value to pointer, []string to pq.StringArray).
// A nil value resets the field.
func Set(inc *models.Incident, f Field, value any) error {
	target, ok := fieldValue(inc, f)
	if !ok {
		return fmt.Errorf("unknown field %q", f)
	}
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	if src.Kind() == reflect.Ptr && src.IsNil() {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	if converted, ok := convert(src, target.Type()); ok {
		target.Set(converted)
		return nil
	}
	return fmt.Errorf("field %q: cannot assign %s to %s", f, src.Type(), target.Type())
}

// Clear resets f to its empty value.
func Clear(inc *models.Incident, f Field) {
	_ = Set(inc, f, nil)
}

func convert(src reflect.Value, to reflect.Type) (reflect.Value, bool) {
	if src.Type().AssignableTo(to) {
		return src, true
	}
	if to.Kind() == reflect.Ptr {
		if src.Kind() == reflect.Ptr {
			return convert(src.Elem(), to)
		}
		elem, ok := convert(src, to.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		ptr := reflect.New(to.Elem())
		ptr.Elem().Set(elem)
		return ptr, true
	}
	if src.Kind() == reflect.Ptr {
		return convert(src.Elem(), to)
	}
	if src.Type().ConvertibleTo(to) && src.Kind() == to.Kind() {
		return src.Convert(to), true
	}
	return reflect.Value{}, false
}

// Writable reports whether clients may propose values for f.
func Writable(f Field) bool {
	_, ok := writable[f]
	return ok
}

// CatalogOf returns the catalog referenced by f, if any.
func CatalogOf(f Field) (models.CatalogKind, bool) {
	spec, ok := writable[f]
	if !ok || spec.catalog == "" {
		return "", false
	}
	return spec.catalog, true
}

// Decode turns a JSON object into typed changes. Unknown or read-only keys,
// malformed values, out-of-list choices and malformed references are reported
// together, one entry per field.
func Decode(raw map[string]json.RawMessage) (Changes, error) {
	changes := make(Changes, len(raw))
	var details []appErrors.FieldError

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		f := Field(key)
		spec, ok := writable[f]
		if !ok {
			details = append(details, appErrors.FieldError{Field: key, Message: "field is not writable"})
			continue
		}
		typ, _ := fieldType(f)
		if isNull(raw[key]) && !nullable(typ) {
			details = append(details, appErrors.FieldError{Field: key, Message: "this field may not be null"})
			continue
		}
		ptr := reflect.New(typ)
		if err := json.Unmarshal(raw[key], ptr.Interface()); err != nil {
			details = append(details, appErrors.FieldError{Field: key, Message: "invalid value"})
			continue
		}
		value, msg := normalise(spec, ptr.Elem())
		if msg != "" {
			details = append(details, appErrors.FieldError{Field: key, Message: msg})
			continue
		}
		changes[f] = value
	}

	if len(details) > 0 {
		return nil, appErrors.Validation(details...)
	}
	return changes, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// nullable reports whether a JSON null has a meaning for the column type.
// Pointers reset to nil and lists reset to empty.
func nullable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Ptr, reflect.Slice:
		return true
	default:
		return false
	}
}

func normalise(spec fieldSpec, v reflect.Value) (any, string) {
	switch val := v.Interface().(type) {
	case string:
		if spec.trim {
			val = strings.TrimSpace(val)
		}
		if val != "" && spec.choices != nil && !spec.choices.Has(val) {
			return nil, fmt.Sprintf("%q is not a valid choice", val)
		}
		return val, ""
	case models.AggressorInfoState:
		if val != models.AggressorInfoUnset && !spec.choices.Has(string(val)) {
			return nil, fmt.Sprintf("%q is not a valid choice", val)
		}
		return val, ""
	case *string:
		if val == nil {
			return val, ""
		}
		trimmed := strings.TrimSpace(*val)
		if trimmed == "" {
			return (*string)(nil), ""
		}
		if spec.catalog != "" {
			if _, err := uuid.Parse(trimmed); err != nil {
				return nil, "invalid reference"
			}
		}
		return &trimmed, ""
	case pq.StringArray:
		out := make(pq.StringArray, 0, len(val))
		seen := make(map[string]struct{}, len(val))
		for _, item := range val {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if _, dup := seen[item]; dup {
				continue
			}
			if spec.choices != nil && !spec.choices.Has(item) {
				return nil, fmt.Sprintf("%q is not a valid choice", item)
			}
			if spec.catalog != "" {
				if _, err := uuid.Parse(item); err != nil {
					return nil, "invalid reference"
				}
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
		return out, ""
	case *int:
		if val != nil && (*val < 0 || *val > 150) {
			return nil, "must be between 0 and 150"
		}
		return val, ""
	default:
		return val, ""
	}
}

// References collects the catalog ids proposed in changes, grouped by catalog.
func References(changes Changes) map[models.CatalogKind][]string {
	refs := make(map[models.CatalogKind][]string)
	for _, f := range changes.Fields() {
		kind, ok := CatalogOf(f)
		if !ok {
			continue
		}
		switch v := changes[f].(type) {
		case *string:
			if v != nil {
				refs[kind] = append(refs[kind], *v)
			}
		case string:
			if v != "" {
				refs[kind] = append(refs[kind], v)
			}
		case pq.StringArray:
			refs[kind] = append(refs[kind], v...)
		case []string:
			refs[kind] = append(refs[kind], v...)
		}
	}
	return refs
}

func sortFields(fields []Field) {
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
}
