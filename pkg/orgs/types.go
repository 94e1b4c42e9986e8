package orgs

import (
	"encoding/json"
	"time"
)

// Organization status values as they appear in the register data.
const (
	StatusActive     = "active"
	StatusLiquidated = "liquidated"
	StatusDissolved  = "dissolved"
)

// Organization is a full register record including nested participations.
type Organization struct {
	OpenregistersID string          `json:"openregisters_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Jurisdiction    string          `json:"jurisdiction,omitempty"`
	LegalForm       string          `json:"legal_form,omitempty"`
	Status          string          `json:"status,omitempty"`
	Participations  []Participation `json:"participations,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

// Summary is the list-view projection of an Organization. Participations are
// omitted; detail views use Organization.
type Summary struct {
	OpenregistersID string `json:"openregisters_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Jurisdiction    string `json:"jurisdiction,omitempty"`
	LegalForm       string `json:"legal_form,omitempty"`
	Status          string `json:"status,omitempty"`
}

// Summary returns the list-view projection of the organization.
func (o *Organization) Summary() Summary {
	return Summary{
		OpenregistersID: o.OpenregistersID,
		Name:            o.Name,
		Description:     o.Description,
		Jurisdiction:    o.Jurisdiction,
		LegalForm:       o.LegalForm,
		Status:          o.Status,
	}
}

// PersonName is the name object inside a participation. Register exports are
// inconsistent, so decoding is tolerant: a malformed other_names entry (a
// bare string, a number, anything but an array of strings) is dropped rather
// than failing the whole record.
type PersonName struct {
	FirstName  string   `json:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty"`
	OtherNames []string `json:"other_names,omitempty"`
}

// personNameRaw mirrors PersonName with other_names left raw for tolerant
// decoding.
type personNameRaw struct {
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	OtherNames json.RawMessage `json:"other_names"`
}

// UnmarshalJSON decodes a name object, degrading malformed sub-fields to
// their zero values instead of returning an error.
func (n *PersonName) UnmarshalJSON(data []byte) error {
	var raw personNameRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not an object at all; contribute nothing.
		*n = PersonName{}
		return nil
	}

	n.FirstName = raw.FirstName
	n.LastName = raw.LastName
	n.OtherNames = nil

	if len(raw.OtherNames) > 0 {
		var names []string
		if err := json.Unmarshal(raw.OtherNames, &names); err == nil {
			n.OtherNames = names
		}
	}

	return nil
}

// Participation is one person's involvement with an organization. It is an
// embedded value with no identity outside the owning organization.
type Participation struct {
	Name *PersonName `json:"name,omitempty"`
	Role string      `json:"role,omitempty"`
}

// participationRaw mirrors Participation with name left raw.
type participationRaw struct {
	Name json.RawMessage `json:"name"`
	Role string          `json:"role"`
}

// UnmarshalJSON decodes a participation, treating a missing or non-object
// name as absent rather than erroring.
func (p *Participation) UnmarshalJSON(data []byte) error {
	var raw participationRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		*p = Participation{}
		return nil
	}

	p.Role = raw.Role
	p.Name = nil

	if len(raw.Name) > 0 && raw.Name[0] == '{' {
		var name PersonName
		if err := json.Unmarshal(raw.Name, &name); err == nil {
			p.Name = &name
		}
	}

	return nil
}

// DecodeParticipations parses the JSONB participations column. A null column
// or a value that is not an array yields an empty slice; individual malformed
// entries decode to empty participations.
func DecodeParticipations(data []byte) []Participation {
	if len(data) == 0 {
		return nil
	}

	var parts []Participation
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil
	}
	return parts
}

// Stats holds the aggregate counts served by GET /stats.
type Stats struct {
	TotalOrganizations int64        `json:"total_organizations"`
	ByStatus           []GroupCount `json:"by_status"`
	TopJurisdictions   []GroupCount `json:"top_jurisdictions"`
	TopLegalForms      []GroupCount `json:"top_legal_forms"`
}

// GroupCount is one row of a grouped count aggregation.
type GroupCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}
