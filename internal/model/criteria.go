package model

// SearchType selects which portal field the query text is matched against.
type SearchType int

const (
	// SearchByIdentifier searches by taxpayer number (NIF/NIPC).
	SearchByIdentifier SearchType = iota

	// SearchByName searches by entity designation.
	SearchByName
)

// String returns the label the portal expects in its search-type radio list.
func (s SearchType) String() string {
	switch s {
	case SearchByIdentifier:
		return "NIF/NIPC"
	case SearchByName:
		return "Designação"
	default:
		return "UNKNOWN"
	}
}

// CourtFilter restricts results to the current or to the extinct courts.
type CourtFilter string

const (
	// CourtAny applies no court filter.
	CourtAny CourtFilter = ""

	// CourtNewStructure limits results to the current judicial map.
	CourtNewStructure CourtFilter = "nova"

	// CourtExtinct limits results to courts extinguished by the 2014 reform.
	CourtExtinct CourtFilter = "extintos"
)

// Label returns the text of the portal's court radio button, or an empty
// string when no filter applies.
func (c CourtFilter) Label() string {
	switch c {
	case CourtNewStructure:
		return "Nova Estrutura Judiciária"
	case CourtExtinct:
		return "Tribunais Extintos"
	default:
		return ""
	}
}

// SearchCriteria describes one portal search. It is a plain value: once
// built and validated it is passed around by copy and never modified.
//
// Exactly one of Identifier and Name must be set. Dates use the ISO layout
// YYYY-MM-DD and are optional.
type SearchCriteria struct {
	// Identifier is a numeric NIF/NIPC.
	Identifier string `json:"identifier,omitempty" yaml:"nif,omitempty"`

	// Name is an entity designation.
	Name string `json:"name,omitempty" yaml:"designacao,omitempty"`

	// DateStart is the lower bound of the publication date range.
	DateStart string `json:"date_start,omitempty" yaml:"data_inicio,omitempty"`

	// DateEnd is the upper bound of the publication date range.
	DateEnd string `json:"date_end,omitempty" yaml:"data_fim,omitempty"`

	// Court filters by court structure.
	Court CourtFilter `json:"court,omitempty" yaml:"tribunal,omitempty"`

	// ActGroup is the portal's act-group identifier.
	ActGroup string `json:"act_group,omitempty" yaml:"grupo_actos,omitempty"`

	// Act is the portal's act identifier.
	Act string `json:"act,omitempty" yaml:"acto,omitempty"`
}

// Type returns the search type implied by the populated field.
func (c SearchCriteria) Type() SearchType {
	if c.Identifier != "" {
		return SearchByIdentifier
	}
	return SearchByName
}

// Query returns the text sent in the portal's search box.
func (c SearchCriteria) Query() string {
	if c.Identifier != "" {
		return c.Identifier
	}
	return c.Name
}

// Fingerprint returns a stable string identifying the query, used to group
// stored runs of the same search.
func (c SearchCriteria) Fingerprint() string {
	return c.Type().String() + "|" + c.Query() + "|" + c.DateStart + "|" + c.DateEnd + "|" +
		string(c.Court) + "|" + c.ActGroup + "|" + c.Act
}
