package model

import "strings"

// Creditor is one entity listed as a claimant within a Record.
// The portal sometimes masks part of the identifier (for example
// "50*****23"); the value is kept verbatim.
//
// Creditors have no identity beyond their two fields. The portal may list
// the same name twice and both entries are kept.
type Creditor struct {
	// Name is the creditor designation.
	Name string `json:"Nome"`

	// Identifier is the creditor's NIF/NIPC, possibly masked or empty.
	Identifier string `json:"NIF/NIPC,omitempty"`
}

// String renders the creditor the way the portal shows it inline.
func (c Creditor) String() string {
	if c.Identifier == "" {
		return c.Name
	}
	return c.Name + " (NIF/NIPC: " + c.Identifier + ")"
}

// Record is one insolvency-proceeding notice.
//
// A Record is created by the result parser from one row, enriched by the
// expander (Creditors populated) and treated as immutable afterwards.
// Reference is the closest thing to a natural key, but it is not unique
// across unrelated searches, so records are always handled as an ordered
// slice and never deduplicated.
type Record struct {
	// Court is the court that published the notice ("Tribunal").
	Court string `json:"Tribunal,omitempty"`

	// ActType is the kind of act being notified ("Ato"),
	// e.g. "Sentença - Declaração Insolvência".
	ActType string `json:"Ato,omitempty"`

	// Reference is the portal's document reference ("Referência").
	Reference string `json:"Referência,omitempty"`

	// CaseNumber is the proceeding number ("Processo"), e.g. "1234/24.0T8LSB".
	CaseNumber string `json:"Processo,omitempty"`

	// Kind is the proceeding species ("Espécie").
	Kind string `json:"Espécie,omitempty"`

	// Date is the publication date as printed by the portal.
	Date string `json:"Data,omitempty"`

	// FilingDate is the date the action was filed.
	FilingDate string `json:"Data da propositura da ação,omitempty"`

	// InsolventParty is the insolvent entity's designation.
	InsolventParty string `json:"Insolvente,omitempty"`

	// InsolventIdentifier is the insolvent entity's NIF/NIPC.
	InsolventIdentifier string `json:"NIF/NIPC,omitempty"`

	// Administrator is the appointed insolvency administrator.
	Administrator string `json:"Administrador Insolvência,omitempty"`

	// AdministratorIdentifier is the administrator's NIF/NIPC.
	AdministratorIdentifier string `json:"Administrador NIF/NIPC,omitempty"`

	// Description is the free-text summary some layouts print under the
	// row ("Descrição").
	Description string `json:"Descrição,omitempty"`

	// Creditors is the full creditor list, in the order the portal lists it.
	Creditors []Creditor `json:"Credores"`

	// SingleCreditorFallback is the single creditor shown inline on the
	// result row. It is kept even when Creditors is populated.
	SingleCreditorFallback string `json:"Credor,omitempty"`

	// SingleCreditorFallbackIdentifier is the NIF/NIPC printed next to
	// SingleCreditorFallback, if any.
	SingleCreditorFallbackIdentifier string `json:"Credor NIF/NIPC,omitempty"`

	// Links holds the absolute URLs of the documents attached to the row.
	Links []string `json:"Links,omitempty"`

	// ExpandTarget is the postback target of the row's creditor-list
	// control. Empty when the creditors are inline.
	ExpandTarget string `json:"-"`

	// ExpandArgument is the postback argument paired with ExpandTarget.
	ExpandArgument string `json:"-"`
}

// NeedsExpansion reports whether the record's creditors sit behind a
// postback control and have to be fetched separately.
func (r *Record) NeedsExpansion() bool {
	return r.ExpandTarget != ""
}

// Identifiable reports whether the record carries enough data to be told
// apart from other rows: a reference or a case number.
func (r *Record) Identifiable() bool {
	return strings.TrimSpace(r.Reference) != "" || strings.TrimSpace(r.CaseNumber) != ""
}

// Key returns the value used by the pagination loop guard.
// It prefers the reference and falls back to the case number.
func (r *Record) Key() string {
	if r.Reference != "" {
		return r.Reference
	}
	return r.CaseNumber
}

// References returns the loop-guard keys of records in order.
func References(records []Record) []string {
	refs := make([]string, 0, len(records))
	for i := range records {
		refs = append(refs, records[i].Key())
	}
	return refs
}
