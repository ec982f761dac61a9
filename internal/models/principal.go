package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the workflow role of an authenticated principal, resolved once from
// the profile code carried in the token.
type Role string

const (
	RoleDirector           Role = "diretor"
	RoleAssistant          Role = "assistente_direcao"
	RoleDistrictFocalPoint Role = "ponto_focal_dre"
	RoleCentralUnit        Role = "gipe"
)

var roleLabels = map[Role]string{
	RoleDirector:           "Diretor(a)",
	RoleAssistant:          "Assistente de direção",
	RoleDistrictFocalPoint: "Ponto focal DRE",
	RoleCentralUnit:        "GIPE",
}

// Label returns the profile name printed on closing receipts.
func (r Role) Label() string {
	return roleLabels[r]
}

// Tier groups roles that share editing rights over the same stage.
type Tier string

const (
	TierNone     Tier = ""
	TierDirector Tier = "director"
	TierDistrict Tier = "district"
	TierCentral  Tier = "central"
)

// Principal is the acting user as supplied by the identity edge.
type Principal struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CPF       string `json:"cpf,omitempty"`
	Role      Role   `json:"role"`
	UnitScope string `json:"unit_scope"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ProfileCode accepts the profile code as either a JSON number or string.
type ProfileCode string

// UnmarshalJSON implements json.Unmarshaler.
func (p *ProfileCode) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "null" {
		raw = ""
	}
	*p = ProfileCode(raw)
	return nil
}

// IdentityClaims is the payload of bearer tokens issued by the identity service.
type IdentityClaims struct {
	Username    string      `json:"username"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	CPF         string      `json:"cpf"`
	ProfileCode ProfileCode `json:"perfil_codigo"`
	JobCode     ProfileCode `json:"cargo_codigo"`
	UnitCode    string      `json:"unidade_codigo_eol"`
	jwt.RegisteredClaims
}
