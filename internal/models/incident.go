package models

import (
	"time"

	"github.com/lib/pq"
)

// Status is the lifecycle position of an incident report.
type Status string

const (
	StatusDrafting       Status = "em_preenchimento_diretor"
	StatusSentToDistrict Status = "enviado_para_dre"
	StatusSentToCentral  Status = "enviado_para_gipe"
	StatusFinalized      Status = "finalizada"
)

var statusLabels = map[Status]string{
	StatusDrafting:       "Em preenchimento - Diretor",
	StatusSentToDistrict: "Enviado para DRE",
	StatusSentToCentral:  "Enviado para GIPE",
	StatusFinalized:      "Finalizada",
}

// Label returns the human readable status.
func (s Status) Label() string {
	return statusLabels[s]
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IncidentBranch is the category family selected by IsTheftCategory.
type IncidentBranch string

const (
	BranchTheft    IncidentBranch = "theft"
	BranchNonTheft IncidentBranch = "non_theft"
)

// AggressorInfoState is the tri-state answer to "is there aggressor information?".
type AggressorInfoState string

const (
	AggressorInfoUnset AggressorInfoState = ""
	AggressorInfoYes   AggressorInfoState = "sim"
	AggressorInfoNo    AggressorInfoState = "nao"
)

// Incident is the persisted report ("intercorrência").
type Incident struct {
	ID            string     `db:"id" json:"id"`
	Status        Status     `db:"status" json:"status"`
	OwnerUsername string     `db:"owner_username" json:"owner_username"`
	UnitCode      string     `db:"unit_code" json:"unit_code"`
	DistrictCode  string     `db:"district_code" json:"district_code"`
	OccurredAt    *time.Time `db:"occurred_at" json:"occurred_at,omitempty"`

	IsTheftCategory bool           `db:"is_theft_category" json:"is_theft_category"`
	IncidentTypeIDs pq.StringArray `db:"incident_type_ids" json:"incident_type_ids"`
	Description     string         `db:"description" json:"description"`

	// Branch A.
	SmartCameraStatus string `db:"smart_camera_status" json:"smart_camera_status"`

	// Branch B.
	InvolvedPartyID  *string            `db:"involved_party_id" json:"involved_party_id,omitempty"`
	HasAggressorInfo AggressorInfoState `db:"has_aggressor_info" json:"has_aggressor_info"`

	// Aggressor/victim dossier, only meaningful when HasAggressorInfo is "sim".
	AggressorName               string         `db:"aggressor_name" json:"aggressor_name"`
	AggressorAge                *int           `db:"aggressor_age" json:"aggressor_age,omitempty"`
	AggressorGender             string         `db:"aggressor_gender" json:"aggressor_gender"`
	EthnicGroup                 string         `db:"ethnic_group" json:"ethnic_group"`
	SchoolStage                 string         `db:"school_stage" json:"school_stage"`
	SchoolAttendance            string         `db:"school_attendance" json:"school_attendance"`
	SchoolInteraction           string         `db:"school_interaction" json:"school_interaction"`
	ProtectionNetworks          string         `db:"protection_networks" json:"protection_networks"`
	GuardianshipCouncilNotified *bool          `db:"guardianship_council_notified" json:"guardianship_council_notified,omitempty"`
	NaapaFollowUp               *bool          `db:"naapa_follow_up" json:"naapa_follow_up,omitempty"`
	PostalCode                  string         `db:"postal_code" json:"postal_code"`
	Street                      string         `db:"street" json:"street"`
	HouseNumber                 string         `db:"house_number" json:"house_number"`
	Complement                  string         `db:"complement" json:"complement"`
	Neighborhood                string         `db:"neighborhood" json:"neighborhood"`
	City                        string         `db:"city" json:"city"`
	State                       string         `db:"state" json:"state"`
	Motives                     pq.StringArray `db:"motives" json:"motives"`

	// Director final section.
	DeclarantID           *string `db:"declarant_id" json:"declarant_id,omitempty"`
	PublicSecurityContact string  `db:"public_security_contact" json:"public_security_contact"`
	TriggeredProtocol     string  `db:"triggered_protocol" json:"triggered_protocol"`

	// District section.
	PublicSecurityTriggered  *bool  `db:"public_security_triggered" json:"public_security_triggered,omitempty"`
	STSInterlocution         *bool  `db:"sts_interlocution" json:"sts_interlocution,omitempty"`
	STSInfo                  string `db:"sts_info" json:"sts_info"`
	CPCAInterlocution        *bool  `db:"cpca_interlocution" json:"cpca_interlocution,omitempty"`
	CPCAInfo                 string `db:"cpca_info" json:"cpca_info"`
	SupervisionInterlocution *bool  `db:"supervision_interlocution" json:"supervision_interlocution,omitempty"`
	SupervisionInfo          string `db:"supervision_info" json:"supervision_info"`
	NaapaInterlocution       *bool  `db:"naapa_interlocution" json:"naapa_interlocution,omitempty"`
	NaapaInfo                string `db:"naapa_info" json:"naapa_info"`

	// Central section.
	WeaponInvolvement       string         `db:"weapon_involvement" json:"weapon_involvement"`
	ThreatMode              string         `db:"threat_mode" json:"threat_mode"`
	CentralInvolvedPartyID  *string        `db:"central_involved_party_id" json:"central_involved_party_id,omitempty"`
	CentralMotives          pq.StringArray `db:"central_motives" json:"central_motives"`
	CentralIncidentTypeIDs  pq.StringArray `db:"central_incident_type_ids" json:"central_incident_type_ids"`
	LearningCycle           string         `db:"learning_cycle" json:"learning_cycle"`
	VirtualInteractionsInfo string         `db:"virtual_interactions_info" json:"virtual_interactions_info"`
	CentralReferrals        string         `db:"central_referrals" json:"central_referrals"`

	// Closing.
	ProtocolNumber        *string    `db:"protocol_number" json:"protocol_number,omitempty"`
	DirectorClosingReason string     `db:"director_closing_reason" json:"director_closing_reason"`
	ClosedByDirectorAt    *time.Time `db:"closed_by_director_at" json:"closed_by_director_at,omitempty"`
	ClosedByDirectorBy    *string    `db:"closed_by_director_by" json:"closed_by_director_by,omitempty"`
	DistrictClosingReason string     `db:"district_closing_reason" json:"district_closing_reason"`
	ClosedByDistrictAt    *time.Time `db:"closed_by_district_at" json:"closed_by_district_at,omitempty"`
	ClosedByDistrictBy    *string    `db:"closed_by_district_by" json:"closed_by_district_by,omitempty"`
	CentralClosingReason  string     `db:"central_closing_reason" json:"central_closing_reason"`
	ClosedByCentralAt     *time.Time `db:"closed_by_central_at" json:"closed_by_central_at,omitempty"`
	ClosedByCentralBy     *string    `db:"closed_by_central_by" json:"closed_by_central_by,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Branch returns the active category family.
func (i *Incident) Branch() IncidentBranch {
	if i.IsTheftCategory {
		return BranchTheft
	}
	return BranchNonTheft
}

// Clone returns a deep copy so proposed states never alias the loaded row.
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	c := *i
	c.IncidentTypeIDs = cloneStrings(i.IncidentTypeIDs)
	c.Motives = cloneStrings(i.Motives)
	c.CentralMotives = cloneStrings(i.CentralMotives)
	c.CentralIncidentTypeIDs = cloneStrings(i.CentralIncidentTypeIDs)
	return &c
}

func cloneStrings(in pq.StringArray) pq.StringArray {
	if in == nil {
		return nil
	}
	out := make(pq.StringArray, len(in))
	copy(out, in)
	return out
}

// IncidentView is the post-state returned by every workflow operation.
type IncidentView struct {
	*Incident
	StatusLabel  string `json:"status_label"`
	StatusExtra  string `json:"status_extra"`
	UnitName     string `json:"unit_name,omitempty"`
	DistrictName string `json:"district_name,omitempty"`
}

// IncidentFilter captures list criteria. Role scoping is applied on top of it.
type IncidentFilter struct {
	UnitCode      string
	DistrictCode  string
	OwnerUsername string
	Statuses      []Status
	Page          int
	PageSize      int
	SortOrder     string
}
