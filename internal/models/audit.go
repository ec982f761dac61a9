package models

import "time"

// Audit actions recorded for every incident mutation.
const (
	AuditActionIncidentCreate         = "INCIDENT_CREATE"
	AuditActionIncidentUpdate         = "INCIDENT_UPDATE"
	AuditActionIncidentSendToDistrict = "INCIDENT_SEND_TO_DISTRICT"
	AuditActionIncidentSendToCentral  = "INCIDENT_SEND_TO_CENTRAL"
	AuditActionIncidentFinalize       = "INCIDENT_FINALIZE"
	AuditActionIncidentDelete         = "INCIDENT_DELETE"
)

// AuditResourceIncident names the audited resource.
const AuditResourceIncident = "incident"

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
