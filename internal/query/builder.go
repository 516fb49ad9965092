package query

import (
	"strings"
	"time"

	"github.com/Raam977/citius-scraper/internal/model"
	"github.com/Raam977/citius-scraper/internal/session"
)

// Portal form field names.
const (
	FieldSearchText = "ctl00$ContentPlaceHolder1$txtPesquisa"
	FieldSearchType = "ctl00$ContentPlaceHolder1$rblTipo"
	FieldDateFrom   = "ctl00$ContentPlaceHolder1$txtCalendarDesde"
	FieldDateTo     = "ctl00$ContentPlaceHolder1$txtCalendarAte"
	FieldCourts     = "ctl00$ContentPlaceHolder1$rbtlTribunais"
	FieldActGroup   = "ctl00$ContentPlaceHolder1$ddlGrupoActos"
	FieldAct        = "ctl00$ContentPlaceHolder1$ddlActos"
	FieldDays       = "ctl00$ContentPlaceHolder1$rblDias"
	FieldSubmit     = "ctl00$ContentPlaceHolder1$btnSearch"
)

const (
	// DaysAll selects every publication date in the portal's day filter.
	DaysAll = "Todos"

	// SubmitLabel is the caption of the search button.
	SubmitLabel = "Pesquisar"

	// InputDateLayout is the date layout accepted in criteria.
	InputDateLayout = "2006-01-02"

	// PortalDateLayout is the date layout the portal expects.
	PortalDateLayout = "02-01-2006"
)

// Payload is a set of form values for one submission.
type Payload map[string]string

// Clone returns a copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Validate checks criteria without building a payload.
func Validate(c model.SearchCriteria) error {
	_, _, err := validate(c)
	return err
}

// Search builds the payload that submits the search form. The state's
// continuation tokens are merged in; criteria values win on conflict.
func Search(c model.SearchCriteria, state session.State) (Payload, error) {
	from, to, err := validate(c)
	if err != nil {
		return nil, err
	}
	c.Identifier = strings.TrimSpace(c.Identifier)
	c.Name = strings.TrimSpace(c.Name)

	payload := Payload(state.Payload())
	payload[FieldSearchText] = c.Query()
	payload[FieldSearchType] = c.Type().String()
	if !from.IsZero() {
		payload[FieldDateFrom] = from.Format(PortalDateLayout)
	}
	if !to.IsZero() {
		payload[FieldDateTo] = to.Format(PortalDateLayout)
	}
	if label := c.Court.Label(); label != "" {
		payload[FieldCourts] = label
	}
	if c.ActGroup != "" {
		payload[FieldActGroup] = c.ActGroup
	}
	if c.Act != "" {
		payload[FieldAct] = c.Act
	}
	payload[FieldDays] = DaysAll
	payload[FieldSubmit] = SubmitLabel

	return payload, nil
}

// Postback builds the payload that triggers a server-side control such as
// the next-page link or a record's creditor list.
func Postback(target, argument string, state session.State) Payload {
	payload := Payload(state.Payload())
	payload[session.FieldEventTarget] = target
	payload[session.FieldEventArgument] = argument
	return payload
}

// validate returns the parsed dates (zero when absent).
func validate(c model.SearchCriteria) (time.Time, time.Time, error) {
	var from, to time.Time

	id := strings.TrimSpace(c.Identifier)
	name := strings.TrimSpace(c.Name)
	switch {
	case id == "" && name == "":
		return from, to, invalid("identifier", "one of identifier or name is required")
	case id != "" && name != "":
		return from, to, invalid("identifier", "identifier and name are mutually exclusive")
	case id != "" && !isDigits(id):
		return from, to, invalid("identifier", "%q is not numeric", c.Identifier)
	}

	var err error
	if c.DateStart != "" {
		if from, err = time.Parse(InputDateLayout, c.DateStart); err != nil {
			return from, to, invalid("date_start", "%q is not a YYYY-MM-DD date", c.DateStart)
		}
	}
	if c.DateEnd != "" {
		if to, err = time.Parse(InputDateLayout, c.DateEnd); err != nil {
			return from, to, invalid("date_end", "%q is not a YYYY-MM-DD date", c.DateEnd)
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return from, to, invalid("date_start", "%s is after %s", c.DateStart, c.DateEnd)
	}

	switch c.Court {
	case model.CourtAny, model.CourtNewStructure, model.CourtExtinct:
	default:
		return from, to, invalid("court", "%q must be %q or %q", c.Court, model.CourtNewStructure, model.CourtExtinct)
	}

	return from, to, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
