package models

import "time"

// CatalogKind identifies one of the reference tables used by form selects.
type CatalogKind string

const (
	CatalogIncidentTypes   CatalogKind = "incident_types"
	CatalogDeclarants      CatalogKind = "declarants"
	CatalogInvolvedParties CatalogKind = "involved_parties"
)

// Table returns the backing table for the catalog.
func (k CatalogKind) Table() string {
	switch k {
	case CatalogIncidentTypes:
		return "incident_types"
	case CatalogDeclarants:
		return "declarants"
	case CatalogInvolvedParties:
		return "involved_parties"
	default:
		return ""
	}
}

// CatalogEntry is an active/inactive named reference row.
type CatalogEntry struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Choice is a value/label pair for closed-list fields.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Unit is a school or district as returned by the units registry.
type Unit struct {
	Code         string `json:"codigo_eol"`
	DistrictCode string `json:"dre_codigo_eol"`
	Name         string `json:"nome"`
}
